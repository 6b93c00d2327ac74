package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

type sinkFake struct {
	calls  int
	lastID string
	err    error
}

func (f *sinkFake) Append(_ context.Context, record domain.AuditRecord) error {
	f.calls++
	f.lastID = record.ID
	return f.err
}

func TestFallbackAuditSinkPrefersPrimary(t *testing.T) {
	primary := &sinkFake{}
	fallback := &sinkFake{}
	sink := NewFallbackAuditSink(primary, fallback)

	if err := sink.Append(context.Background(), domain.AuditRecord{ID: "r1"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if primary.calls != 1 || primary.lastID != "r1" {
		t.Fatalf("expected one primary append, got %+v", primary)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback must not run when the publish is confirmed, got %d calls", fallback.calls)
	}
}

func TestFallbackAuditSinkWritesStoreOnUnconfirmedPublish(t *testing.T) {
	primary := &sinkFake{err: errors.New("no responders available")}
	fallback := &sinkFake{}
	sink := NewFallbackAuditSink(primary, fallback)

	if err := sink.Append(context.Background(), domain.AuditRecord{ID: "r2"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if fallback.calls != 1 || fallback.lastID != "r2" {
		t.Fatalf("expected record written to the store, got %+v", fallback)
	}
}

func TestFallbackAuditSinkReportsDoubleFailure(t *testing.T) {
	primary := &sinkFake{err: errors.New("broker down")}
	fallback := &sinkFake{err: errors.New("store down")}
	sink := NewFallbackAuditSink(primary, fallback)

	if err := sink.Append(context.Background(), domain.AuditRecord{ID: "r3"}); err == nil {
		t.Fatalf("expected error when both sinks fail")
	}
}
