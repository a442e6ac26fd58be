package expense

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/kakeibo/internal/events"
	"github.com/hitoshi/kakeibo/internal/model"
)

// csvColumns はCSVに必須の列名。列の順序は問わない。
var csvColumns = []string{"amount", "description", "category", "paymentMethod", "date"}

// utf8BOM はExcel等が付与するUTF-8のバイトオーダーマーク。
const utf8BOM = '\uFEFF'

// 一括登録失敗の理由（メトリクスのラベル）。
const (
	importFailInvalidCSV  = "invalid_csv"
	importFailIO          = "io"
	importFailPersistence = "persistence"
)

// BulkCreate はCSVを読み込み、全行をユーザーの支出として一括登録する。
//
// 1行でも不正な行があれば1件も登録せず、行番号を含むINVALID_CSVを返す。
// 登録は単一トランザクションで行い、拒否された場合はPERSISTENCE_ERRORとなる。
func (s *Service) BulkCreate(ctx context.Context, userID, fileName string, r io.Reader) (int, error) {
	expenses, err := s.parseCSV(userID, r)
	if err != nil {
		s.metrics.RecordImportFailure(importFailReason(err))
		slog.Warn("csv import rejected",
			slog.String("user_id", userID),
			slog.String("file_name", fileName),
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	if err := s.expenses.CreateBatch(ctx, expenses); err != nil {
		s.metrics.RecordImportFailure(importFailPersistence)
		slog.Error("failed to insert imported expenses",
			slog.String("user_id", userID),
			slog.Int("rows", len(expenses)),
			slog.String("error", err.Error()),
		)
		return 0, model.NewPersistenceError()
	}

	imp := &model.ExpenseImport{
		ID:        uuid.New().String(),
		UserID:    userID,
		FileName:  fileName,
		RowCount:  len(expenses),
		CreatedAt: s.now(),
	}
	// 支出は登録済みのため、履歴の記録失敗はログのみとする
	if err := s.imports.Create(ctx, imp); err != nil {
		slog.Warn("failed to record expense import",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	ids := make([]string, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
	}
	s.metrics.RecordExpensesImported(len(expenses))
	s.publish(ctx, events.TypeExpensesImported, userID, ids)

	slog.Info("expenses imported",
		slog.String("user_id", userID),
		slog.String("file_name", fileName),
		slog.Int("rows", len(expenses)),
	)
	return len(expenses), nil
}

// parseCSV はヘッダー行で列を特定し、各データ行を支出に変換する。
func (s *Service) parseCSV(userID string, r io.Reader) ([]*model.Expense, error) {
	br := bufio.NewReader(r)
	if ch, _, err := br.ReadRune(); err == nil && ch != utf8BOM {
		_ = br.UnreadRune()
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.NewInvalidCSVError(0, "ヘッダー行がありません")
	}
	if err != nil {
		return nil, csvReadError(err)
	}

	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var expenses []*model.Expense
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvReadError(err)
		}
		line, _ := reader.FieldPos(0)

		if isBlankRecord(record) {
			continue
		}

		e, err := s.rowToExpense(record, index, line)
		if err != nil {
			return nil, err
		}
		e.ID = uuid.New().String()
		e.UserID = userID
		e.CreatedAt = now
		e.UpdatedAt = now
		expenses = append(expenses, e)
	}

	if len(expenses) == 0 {
		return nil, model.NewInvalidCSVError(0, "データ行がありません")
	}
	return expenses, nil
}

// headerIndex は列名から列位置への対応を返す。列名は大文字小文字を区別しない。
func headerIndex(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}

	index := make(map[string]int, len(csvColumns))
	var missing []string
	for _, col := range csvColumns {
		i, ok := pos[strings.ToLower(col)]
		if !ok {
			missing = append(missing, col)
			continue
		}
		index[col] = i
	}
	if len(missing) > 0 {
		return nil, model.NewInvalidCSVError(1, fmt.Sprintf("列がありません: %s", strings.Join(missing, ", ")))
	}
	return index, nil
}

func (s *Service) rowToExpense(record []string, index map[string]int, line int) (*model.Expense, error) {
	field := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rawAmount := field("amount")
	rawDate := field("date")
	description := s.sanitizer.Sanitize(field("description"))
	category := s.sanitizer.Sanitize(field("category"))
	paymentMethod := s.sanitizer.Sanitize(field("paymentMethod"))

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"amount", rawAmount},
		{"description", description},
		{"category", category},
		{"paymentMethod", paymentMethod},
		{"date", rawDate},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, model.NewInvalidCSVError(line, fmt.Sprintf("未入力の項目があります: %s", strings.Join(missing, ", ")))
	}

	amount, err := model.ParseMoney(rawAmount)
	if err != nil {
		return nil, model.NewInvalidCSVError(line, fmt.Sprintf("無効な金額です: %s", rawAmount))
	}
	date, err := model.ParseDate(rawDate)
	if err != nil {
		return nil, model.NewInvalidCSVError(line, fmt.Sprintf("無効な日付です: %s", rawDate))
	}

	return &model.Expense{
		Amount:        amount,
		Description:   description,
		Category:      category,
		PaymentMethod: paymentMethod,
		Date:          date,
	}, nil
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// csvReadError はCSVの構文エラーをINVALID_CSVに、それ以外の読み込みエラーをIO_ERRORに変換する。
func csvReadError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return model.NewInvalidCSVError(parseErr.StartLine, parseErr.Err.Error())
	}
	slog.Error("failed to read csv", slog.String("error", err.Error()))
	return model.NewIOError()
}

func importFailReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeIO {
		return importFailIO
	}
	return importFailInvalidCSV
}
