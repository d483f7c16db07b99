// Package sheet mirrors cards into an xlsx workbook, one row per card.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

const SheetName = "Cards"

var header = []interface{}{
	"ID", "Name", "Company", "Phone", "Email", "Website", "Description",
	"Nickname", "Tags", "Notes", "Phase", "Created At", "Processed At", "Mirrored At",
}

type Mirror struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func New(path string) (*Mirror, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("workbook path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create workbook dir: %w", err)
	}
	return &Mirror{path: path, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Mirror writes the card into its row, appending a row for an unseen id.
func (m *Mirror) Mirror(ctx context.Context, card domain.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	rowIdx := len(rows) + 1
	for i, row := range rows {
		if i > 0 && len(row) > 0 && row[0] == card.ID {
			rowIdx = i + 1
			break
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return fmt.Errorf("resolve cell: %w", err)
	}
	values := m.rowFor(card)
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if err := f.SaveAs(m.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (m *Mirror) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(m.path)
	if err == nil {
		if idx, _ := f.GetSheetIndex(SheetName); idx >= 0 {
			return f, nil
		}
		if err := addCardSheet(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	f = excelize.NewFile()
	if err := addCardSheet(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func addCardSheet(f *excelize.File) error {
	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	row := header
	if err := f.SetSheetRow(SheetName, "A1", &row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (m *Mirror) rowFor(card domain.Card) []interface{} {
	return []interface{}{
		card.ID,
		domain.Deref(card.Name),
		domain.Deref(card.Company),
		strings.Join(card.Phone, ", "),
		strings.Join(card.Email, ", "),
		domain.Deref(card.Website),
		domain.Deref(card.Description),
		domain.Deref(card.Nickname),
		strings.Join(card.Tags, ", "),
		card.Notes,
		string(card.Phase),
		card.CreatedAt.Format(time.RFC3339),
		formatOptional(card.ProcessedAt),
		m.now().Format(time.RFC3339),
	}
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
