// Package queue runs backfill work received over JetStream, so a scheduler
// or operator can enqueue partitions without holding an HTTP request open
// for the duration of a sweep.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/catalog"
)

const (
	streamName        = "BACKFILL_JOBS"
	subjectPartition  = "backfill.partition"
	subjectPopularity = "backfill.popularity"
	subjectDLQ        = "backfill.dlq"
)

// PartitionJob asks the worker to backfill one (year, season).
type PartitionJob struct {
	Year   int    `json:"year"`
	Season string `json:"season"`
}

type Handlers struct {
	// Partition runs one (year, season) end to end. An error is treated as
	// retryable; redelivery plus the DLQ handle exhaustion.
	Partition func(ctx context.Context, year int, season string) error

	// Popularity fills missing popularity ranks. Optional.
	Popularity func(ctx context.Context) error
}

type Worker struct {
	Log      *zap.Logger
	NATS     *nats.Conn
	JS       nats.JetStreamContext
	Handlers Handlers

	MaxDeliver int
}

func NewWorker(log *zap.Logger, nc *nats.Conn, handlers Handlers) (*Worker, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Worker{Log: log, NATS: nc, JS: js, Handlers: handlers, MaxDeliver: 5}, nil
}

func (w *Worker) EnsureStream(ctx context.Context) error {
	info, err := w.JS.StreamInfo(streamName)
	if err == nil {
		for _, s := range info.Config.Subjects {
			if s == "backfill.>" {
				return nil
			}
		}
		cfg := info.Config
		cfg.Subjects = []string{"backfill.>"}
		_, err := w.JS.UpdateStream(&cfg)
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = w.JS.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"backfill.>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	return err
}

func (w *Worker) Run(ctx context.Context) error {
	if err := w.EnsureStream(ctx); err != nil {
		return err
	}

	partSub, err := w.JS.PullSubscribe(subjectPartition, "backfill_partition")
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- w.consumeLoop(ctx, partSub, subjectPartition) }()

	if w.Handlers.Popularity != nil {
		popSub, err := w.JS.PullSubscribe(subjectPopularity, "backfill_popularity")
		if err != nil {
			return err
		}
		go func() { errCh <- w.consumeLoop(ctx, popSub, subjectPopularity) }()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (w *Worker) consumeLoop(ctx context.Context, sub *nats.Subscription, subj string) error {
	w.Log.Info("consumer started", zap.String("subject", subj))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			return err
		}
		for _, m := range msgs {
			_ = w.handleMsg(ctx, m, subj)
		}
	}
}

func (w *Worker) handleMsg(ctx context.Context, m *nats.Msg, subj string) error {
	md, _ := m.Metadata()
	numDelivered := uint64(1)
	if md != nil {
		numDelivered = md.NumDelivered
	}

	if w.MaxDeliver > 0 && int(numDelivered) > w.MaxDeliver {
		_ = w.publishDLQ(subj, m.Data, fmt.Sprintf("max deliveries exceeded: %d", numDelivered))
		_ = m.Ack()
		return nil
	}

	switch subj {
	case subjectPartition:
		var job PartitionJob
		if err := json.Unmarshal(m.Data, &job); err != nil {
			w.Log.Warn("bad payload", zap.String("subject", subj), zap.Error(err))
			_ = m.Ack()
			return nil
		}
		if job.Year < 1900 || !catalog.ValidSeason(job.Season) {
			w.Log.Warn("bad partition job", zap.Int("year", job.Year), zap.String("season", job.Season))
			_ = m.Ack()
			return nil
		}
		if err := w.Handlers.Partition(ctx, job.Year, job.Season); err != nil {
			w.Log.Warn("partition job failed",
				zap.Int("year", job.Year),
				zap.String("season", job.Season),
				zap.Uint64("attempt", numDelivered),
				zap.Error(err))
			_ = m.NakWithDelay(backoffDelay(numDelivered))
			return err
		}
		_ = m.Ack()
		return nil

	case subjectPopularity:
		if err := w.Handlers.Popularity(ctx); err != nil {
			w.Log.Warn("popularity job failed", zap.Uint64("attempt", numDelivered), zap.Error(err))
			_ = m.NakWithDelay(backoffDelay(numDelivered))
			return err
		}
		_ = m.Ack()
		return nil

	default:
		_ = m.Ack()
		return nil
	}
}

func (w *Worker) publishDLQ(subject string, data []byte, reason string) error {
	msg := map[string]any{"subject": subject, "reason": reason, "payload": json.RawMessage(data)}
	b, _ := json.Marshal(msg)
	_, err := w.JS.Publish(subjectDLQ, b)
	return err
}
