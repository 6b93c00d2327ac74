package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*AuditRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &AuditRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestAppendInsertsNullsForEmptyOptionalFields(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO queries").
		WithArgs("rec-1", ts, "what about solar?", nil, "Match error: rpc failed", nil, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), domain.AuditRecord{
		ID:        "rec-1",
		Timestamp: ts,
		Query:     "what about solar?",
		Error:     "Match error: rpc failed",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendIsIdempotentOnRedelivery(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	ts := time.Now()
	// Second delivery conflicts on id and affects zero rows; no error.
	mock.ExpectExec("INSERT INTO queries").
		WithArgs("rec-1", ts, "q", "answer", nil, "prompt", "note").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Append(context.Background(), domain.AuditRecord{
		ID:            "rec-1",
		Timestamp:     ts,
		Query:         "q",
		Response:      "answer",
		Context:       "prompt",
		HumanResponse: "note",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentScansOptionalColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "ts", "query", "response", "error", "context", "human_response"}).
		AddRow("rec-2", ts, "q2", "answer", nil, "prompt", "").
		AddRow("rec-1", ts.Add(-time.Minute), "q1", nil, "Flagged content: {}", nil, "note")
	mock.ExpectQuery("SELECT id, ts, query, response, error, context, human_response").
		WithArgs(50).
		WillReturnRows(rows)

	records, err := repo.ListRecent(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Response != "answer" || records[0].Error != "" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].Error == "" || records[1].HumanResponse != "note" {
		t.Fatalf("unexpected second record %+v", records[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
