package bootstrap

import (
	"context"
	"log/slog"

	"github.com/emalabs/ask-ema/internal/core/domain"
	"github.com/emalabs/ask-ema/internal/core/ports"
)

// fallbackAuditSink appends through the broker and, when the broker cannot
// confirm the publish, writes straight to the durable store instead. A broker
// outage therefore costs latency on the audit write, never the record.
type fallbackAuditSink struct {
	primary  ports.AuditSink
	fallback ports.AuditSink
}

func NewFallbackAuditSink(primary, fallback ports.AuditSink) ports.AuditSink {
	return &fallbackAuditSink{primary: primary, fallback: fallback}
}

func (s *fallbackAuditSink) Append(ctx context.Context, record domain.AuditRecord) error {
	err := s.primary.Append(ctx, record)
	if err == nil {
		return nil
	}
	slog.Warn("audit_publish_unconfirmed", "record_id", record.ID, "error", err)
	return s.fallback.Append(ctx, record)
}
