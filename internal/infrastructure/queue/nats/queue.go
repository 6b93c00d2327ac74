package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

const (
	auditStream   = "ASKEMA_AUDIT"
	consumerGroup = "audit-writers"
)

// Queue moves audit records from the API to the persistence worker so the
// answer path never blocks on the audit store. Records go through a JetStream
// stream: publishes are acknowledged by the broker and redelivered until the
// consumer acks, so delivery is at least once. Records carry their own id and
// the store deduplicates.
type Queue struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ask-ema"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}
	if err := ensureStream(js, subject); err != nil {
		conn.Close()
		return nil, err
	}

	return &Queue{conn: conn, js: js, subject: subject}, nil
}

// ensureStream creates the audit stream on first start. Work-queue retention
// keeps records only until the worker has acked them.
func ensureStream(js nats.JetStreamContext, subject string) error {
	_, err := js.StreamInfo(auditStream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("jetstream stream info: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      auditStream,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("jetstream add stream: %w", err)
	}
	return nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Append publishes one audit record and waits for the broker's ack, so a
// nil return means the record is stored in the stream. It satisfies the
// pipeline's audit sink.
func (q *Queue) Append(ctx context.Context, record domain.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := q.js.Publish(q.subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("jetstream publish: %w", err)
	}
	return nil
}

// SubscribeAuditRecords consumes audit records through a durable consumer
// until ctx is cancelled, then drains the subscription. A handler failure
// naks the message for redelivery; an undecodable message is terminated
// because redelivery cannot fix it.
func (q *Queue) SubscribeAuditRecords(ctx context.Context, handler func(context.Context, domain.AuditRecord) error) error {
	sub, err := q.js.QueueSubscribe(q.subject, consumerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var record domain.AuditRecord
		if err := json.Unmarshal(msg.Data, &record); err != nil {
			slog.Error("audit_record_decode_failed", "error", err)
			_ = msg.Term()
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, record); err != nil {
			slog.Error("audit_record_handler_failed", "record_id", record.ID, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, nats.Durable(consumerGroup), nats.ManualAck(), nats.AckWait(30*time.Second))
	if err != nil {
		return fmt.Errorf("jetstream subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
