package seenbatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"fricon-core/internal/models"
	"fricon-core/internal/observability"
)

const DefaultThreshold = 4

var ErrClosed = errors.New("seen buffer closed")

// Sink receives flushed batches.
type Sink interface {
	MarkPostsSeen(ctx context.Context, posts []models.SeenPost) error
}

// Key identifies a feed observation.
func Key(item models.SeenPost) string {
	return fmt.Sprintf("%d:%s", item.CreatedAt, item.FeedID)
}

// Buffer collects feed observations and submits them in batches. At most one
// flush is in flight; the buffer is emptied before the batch is sent and a
// failed batch is dropped.
type Buffer struct {
	sink      Sink
	threshold int

	mu       sync.Mutex
	order    []string
	items    map[string]models.SeenPost
	flushing bool
	// idle is closed when the in-flight flush returns.
	idle   chan struct{}
	closed bool
}

func NewBuffer(sink Sink, threshold int) *Buffer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Buffer{sink: sink, threshold: threshold, items: make(map[string]models.SeenPost)}
}

// Add buffers item unless its key is already pending and flushes once the
// threshold is reached. It returns the size of the batch it flushed, if any.
func (b *Buffer) Add(ctx context.Context, item models.SeenPost) (int, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrClosed
	}
	k := Key(item)
	if _, ok := b.items[k]; ok {
		b.mu.Unlock()
		return 0, nil
	}
	b.items[k] = item
	b.order = append(b.order, k)
	if len(b.order) < b.threshold || b.flushing {
		b.mu.Unlock()
		return 0, nil
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	return b.send(ctx, batch)
}

// FlushNow submits whatever is pending unless a flush is already running.
func (b *Buffer) FlushNow(ctx context.Context) (int, error) {
	b.mu.Lock()
	if len(b.order) == 0 || b.flushing {
		b.mu.Unlock()
		return 0, nil
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	return b.send(ctx, batch)
}

// Close rejects further adds, waits for an in-flight flush and then flushes
// whatever is still pending.
func (b *Buffer) Close(ctx context.Context) (int, error) {
	for {
		b.mu.Lock()
		b.closed = true
		if !b.flushing {
			if len(b.order) == 0 {
				b.mu.Unlock()
				return 0, nil
			}
			batch := b.takeLocked()
			b.mu.Unlock()
			return b.send(ctx, batch)
		}
		idle := b.idle
		b.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return 0, fmt.Errorf("close seen buffer: %w", ctx.Err())
		}
	}
}

// Pending returns the number of buffered observations.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// takeLocked empties the buffer into a batch and raises the flushing flag.
func (b *Buffer) takeLocked() []models.SeenPost {
	batch := make([]models.SeenPost, 0, len(b.order))
	for _, k := range b.order {
		batch = append(batch, b.items[k])
	}
	b.order = nil
	b.items = make(map[string]models.SeenPost)
	b.flushing = true
	b.idle = make(chan struct{})
	return batch
}

func (b *Buffer) send(ctx context.Context, batch []models.SeenPost) (int, error) {
	defer func() {
		b.mu.Lock()
		b.flushing = false
		close(b.idle)
		b.mu.Unlock()
	}()

	ctx, span := otel.Tracer("fricon-core/seenbatch").Start(ctx, "seenbatch.flush")
	defer span.End()
	span.SetAttributes(attribute.Int("size", len(batch)))

	if err := b.sink.MarkPostsSeen(ctx, batch); err != nil {
		span.RecordError(err)
		observability.ObserveSeenFlush(len(batch), "error")
		log.Warn().Err(err).Int("size", len(batch)).Msg("seen flush failed, batch dropped")
		return 0, fmt.Errorf("flush seen posts: %w", err)
	}

	observability.ObserveSeenFlush(len(batch), "ok")
	_ = observability.PublishEvent(ctx, observability.RouteSeenFlush, "seen_flush", map[string]interface{}{
		"size": len(batch),
	}, nil)
	log.Debug().Int("size", len(batch)).Msg("seen posts flushed")
	return len(batch), nil
}
