package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"trading-analyticsv1/internal/model"
)

const defaultMaxBuffered = 10000

const (
	kindAnalytics = "analytics"
	kindAlert     = "alert"
)

type pendingWrite struct {
	Kind string
	Data []byte
}

// payloadWriter is the pipeline surface of Publisher.
type payloadWriter interface {
	writeAnalytics(ctx context.Context, rows []model.IndicatorRow) error
	writeAlert(ctx context.Context, payload []byte) error
}

// BufferedPublisher routes writes through a circuit breaker. Writes that
// fail or are rejected while the breaker is open are kept in a bounded
// buffer (oldest dropped first) and replayed when it closes again.
type BufferedPublisher struct {
	w   payloadWriter
	cb  *CircuitBreaker
	ctx context.Context

	mu     sync.Mutex
	buffer []pendingWrite
	maxBuf int

	OnBuffer func()
	OnFlush  func(count int)
}

// NewBufferedPublisher wraps p. ctx bounds the replay of buffered writes.
func NewBufferedPublisher(ctx context.Context, p *Publisher, cb *CircuitBreaker, maxBuffered int) *BufferedPublisher {
	return newBufferedPublisher(ctx, p, cb, maxBuffered)
}

func newBufferedPublisher(ctx context.Context, w payloadWriter, cb *CircuitBreaker, maxBuffered int) *BufferedPublisher {
	if maxBuffered <= 0 {
		maxBuffered = defaultMaxBuffered
	}
	bp := &BufferedPublisher{
		w:      w,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]pendingWrite, 0, 64),
		maxBuf: maxBuffered,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bp.flush()
		}
	}
	return bp
}

// PublishAnalytics implements model.Publisher.
func (bp *BufferedPublisher) PublishAnalytics(ctx context.Context, rows []model.IndicatorRow) {
	if len(rows) == 0 {
		return
	}
	err := bp.cb.Execute(func() error { return bp.w.writeAnalytics(ctx, rows) })
	if err == nil {
		return
	}
	if !errors.Is(err, ErrCircuitOpen) {
		log.Printf("[redis] analytics publish failed, buffering %d rows: %v", len(rows), err)
	}
	data, merr := json.Marshal(rows)
	if merr != nil {
		log.Printf("[redis] marshal analytics: %v", merr)
		return
	}
	bp.push(pendingWrite{Kind: kindAnalytics, Data: data})
}

// PublishAlert implements model.Publisher.
func (bp *BufferedPublisher) PublishAlert(ctx context.Context, rec model.AlertRecord) {
	data := rec.JSON()
	err := bp.cb.Execute(func() error { return bp.w.writeAlert(ctx, data) })
	if err == nil {
		return
	}
	if !errors.Is(err, ErrCircuitOpen) {
		log.Printf("[redis] alert publish failed for %s %s, buffering: %v", rec.Symbol, rec.Minute, err)
	}
	bp.push(pendingWrite{Kind: kindAlert, Data: data})
}

func (bp *BufferedPublisher) push(pw pendingWrite) {
	bp.mu.Lock()
	if len(bp.buffer) >= bp.maxBuf {
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, pw)
	bp.mu.Unlock()

	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// flush replays buffered writes in order. A failed replay is dropped.
func (bp *BufferedPublisher) flush() {
	bp.mu.Lock()
	if len(bp.buffer) == 0 {
		bp.mu.Unlock()
		return
	}
	toFlush := bp.buffer
	bp.buffer = make([]pendingWrite, 0, 64)
	bp.mu.Unlock()

	flushed := 0
	for _, pw := range toFlush {
		var err error
		switch pw.Kind {
		case kindAnalytics:
			var rows []model.IndicatorRow
			if err = json.Unmarshal(pw.Data, &rows); err == nil {
				err = bp.w.writeAnalytics(bp.ctx, rows)
			}
		case kindAlert:
			err = bp.w.writeAlert(bp.ctx, pw.Data)
		}
		if err != nil {
			log.Printf("[redis] replay of buffered %s failed: %v", pw.Kind, err)
			continue
		}
		flushed++
	}

	log.Printf("[redis] flushed %d/%d buffered writes", flushed, len(toFlush))
	if bp.OnFlush != nil {
		bp.OnFlush(flushed)
	}
}

// PendingCount returns the number of writes waiting to be replayed.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}
