package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

const sheetName = "Queries"

var columns = []string{"ID", "Timestamp", "Query", "Response", "Error", "Context", "Human Response"}

// BuildAuditWorkbook renders audit rows as a spreadsheet for offline review
// and dataset curation. Rows keep the order they were listed in.
func BuildAuditWorkbook(records []domain.AuditRecord) (*excelize.File, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for col, title := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell name: %w", err)
		}
		if err := file.SetCellValue(sheetName, cell, title); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for row, record := range records {
		values := []any{
			record.ID,
			record.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			record.Query,
			record.Response,
			record.Error,
			record.Context,
			record.HumanResponse,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			if err := file.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row+1, err)
			}
		}
	}

	return file, nil
}
