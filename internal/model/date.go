package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidDate は日付文字列を解釈できない場合に返される。
var ErrInvalidDate = errors.New("invalid date")

// dateLayouts は受け付ける日付フォーマット。タイムゾーンを含まない形式はUTCとして扱う。
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	dateOnlyLayout,
	"2006/01/02",
}

const dateOnlyLayout = "2006-01-02"

// ParseDate は支出日付の文字列をtime.Timeに変換する。
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// IsDateOnly は文字列が時刻を含まない日付のみの形式かどうかを返す。
func IsDateOnly(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(dateOnlyLayout, s); err == nil {
		return true
	}
	_, err := time.Parse("2006/01/02", s)
	return err == nil
}
