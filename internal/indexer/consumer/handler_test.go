package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptledger/internal/eventlog"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/internal/platform/kafka/consumer"
	"receiptledger/pkg/domain"
	"receiptledger/pkg/platform/sentinel"
)

type recordingApplier struct {
	applied []*ledger.Event
	err     error
}

func (a *recordingApplier) Apply(_ context.Context, ev *ledger.Event) error {
	if a.err != nil {
		return a.err
	}
	a.applied = append(a.applied, ev)
	return nil
}

func message(t *testing.T, seq uint64) *consumer.Message {
	t.Helper()
	actor := domain.MustAccount("0xa000000000000000000000000000000000000001")
	ev := ledger.NewEvent(ledger.EventBusinessRegistered, actor, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ev.Sequence = seq
	ev.Business = actor
	value, err := eventlog.Encode(ev)
	require.NoError(t, err)
	return &consumer.Message{Topic: "receipt-ledger.events", Offset: int64(seq), Value: value}
}

func TestHandle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("applies decoded event", func(t *testing.T) {
		applier := &recordingApplier{}
		err := NewHandler(applier, logger).Handle(context.Background(), message(t, 3))
		require.NoError(t, err)
		require.Len(t, applier.applied, 1)
		assert.Equal(t, uint64(3), applier.applied[0].Sequence)
	})

	t.Run("commits malformed record without applying", func(t *testing.T) {
		applier := &recordingApplier{}
		msg := &consumer.Message{Topic: "receipt-ledger.events", Value: []byte("{not json")}
		err := NewHandler(applier, logger).Handle(context.Background(), msg)
		require.NoError(t, err)
		assert.Empty(t, applier.applied)
	})

	t.Run("returns gap so the record is redelivered", func(t *testing.T) {
		applier := &recordingApplier{err: sentinel.ErrOutOfOrder}
		err := NewHandler(applier, logger).Handle(context.Background(), message(t, 9))
		assert.ErrorIs(t, err, sentinel.ErrOutOfOrder)
	})

	t.Run("returns store failures", func(t *testing.T) {
		applier := &recordingApplier{err: errors.New("connection reset")}
		err := NewHandler(applier, logger).Handle(context.Background(), message(t, 1))
		assert.Error(t, err)
	})
}
