package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidMoney は金額文字列の形式が不正な場合に返される。
var ErrInvalidMoney = errors.New("invalid amount")

// MaxMoneyCents は1件あたりの金額の上限（1兆、セント単位）。
// 上限額を9万件合計してもint64に収まる。
const MaxMoneyCents int64 = 1_000_000_000_000 * 100

// maxExponent は指数表記で受け付ける指数の絶対値の上限。
const maxExponent = 20

// Money は金額を小数点以下2桁の整数（セント単位）で保持する。
// 浮動小数点の丸め誤差を避けるため、集計は常にCentsで行う。
type Money struct {
	Cents int64
}

// ParseMoney は10進数の文字列をMoneyに変換する。
//
// 小数点にはドット（12.34）とカンマ（12,34）の両方を受け付け、
// 小数第3位で四捨五入する。負の値は受け付けないが、0は許可する。
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("12,345") -> 1235
//	ParseMoney("7")      -> 700
//	ParseMoney("1.5e2")  -> 15000
//
// 指数表記（JSONの数値表現）も受け付ける。上限はMaxMoneyCents。
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidMoney
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidMoney
	}
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		expanded, err := expandExponent(s[:i], s[i+1:])
		if err != nil {
			return Money{}, err
		}
		s = expanded
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidMoney
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return Money{}, ErrInvalidMoney
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return Money{}, ErrInvalidMoney
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || iv > MaxMoneyCents/100 {
		return Money{}, ErrInvalidMoney
	}

	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
		}
		if len(fracPart) > 2 && fracPart[2] >= '5' {
			frac++
		}
	}

	cents := iv*100 + frac
	if cents > MaxMoneyCents {
		return Money{}, ErrInvalidMoney
	}
	return Money{Cents: cents}, nil
}

// expandExponent は仮数部と指数部を小数点表記の文字列に展開する。
// 小数第3位までを残し、それより下の桁は四捨五入に影響しないので切り捨てる。
func expandExponent(mantissa, exponent string) (string, error) {
	if mantissa == "" || exponent == "" {
		return "", ErrInvalidMoney
	}
	exp, err := strconv.Atoi(exponent)
	if err != nil || exp > maxExponent || exp < -maxExponent {
		return "", ErrInvalidMoney
	}

	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	if intPart == "" && fracPart == "" {
		return "", ErrInvalidMoney
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return "", ErrInvalidMoney
		}
	}

	// 小数点の位置をexp桁ずらす
	digits := intPart + fracPart
	point := len(intPart) + exp
	if point < 0 {
		digits = strings.Repeat("0", -point) + digits
		point = 0
	}
	if point > len(digits) {
		digits += strings.Repeat("0", point-len(digits))
	}

	whole, frac := digits[:point], digits[point:]
	if len(frac) > 3 {
		frac = frac[:3]
	}
	if whole == "" {
		whole = "0"
	}
	if frac == "" {
		return whole, nil
	}
	return whole + "." + frac, nil
}

// Add は2つの金額の合計を返す。int64を超える場合は最大値で飽和する。
func (m Money) Add(o Money) Money {
	if o.Cents > 0 && m.Cents > math.MaxInt64-o.Cents {
		return Money{Cents: math.MaxInt64}
	}
	if o.Cents < 0 && m.Cents < math.MinInt64-o.Cents {
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: m.Cents + o.Cents}
}

// Float64 は表示・比率計算用にfloat64の値を返す。
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// String は "12.34" 形式の文字列を返す。
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// MarshalJSON は金額をJSONの数値（例: 12.34）として出力する。
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON はJSONの数値または数値文字列を受け付ける。
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return ErrInvalidMoney
		}
		raw = s
	}

	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
