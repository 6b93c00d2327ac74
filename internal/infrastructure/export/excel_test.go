package export

import (
	"testing"
	"time"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

func TestBuildAuditWorkbookWritesHeaderAndRows(t *testing.T) {
	records := []domain.AuditRecord{
		{
			ID:        "rec-1",
			Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Query:     "what about solar?",
			Response:  "answer",
		},
		{
			ID:        "rec-2",
			Timestamp: time.Date(2024, 3, 1, 9, 1, 0, 0, time.UTC),
			Query:     "flagged one",
			Error:     "Flagged content: {}",
		},
	}

	file, err := BuildAuditWorkbook(records)
	if err != nil {
		t.Fatalf("BuildAuditWorkbook() error = %v", err)
	}

	header, err := file.GetCellValue("Queries", "C1")
	if err != nil || header != "Query" {
		t.Fatalf("expected Query header, got %q (err=%v)", header, err)
	}
	query, err := file.GetCellValue("Queries", "C2")
	if err != nil || query != "what about solar?" {
		t.Fatalf("expected first query cell, got %q (err=%v)", query, err)
	}
	errCell, err := file.GetCellValue("Queries", "E3")
	if err != nil || errCell != "Flagged content: {}" {
		t.Fatalf("expected error cell, got %q (err=%v)", errCell, err)
	}
}
