package sweeper

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/Trackfy/internal/broker/messages"
	"github.com/BearBump/Trackfy/internal/models"
)

type Cleaner interface {
	Cleanup(ctx context.Context) (models.CleanupResult, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Sweeper периодически запускает ретенцию трек-кодов: первый проход вскоре
// после старта, дальше по фиксированному интервалу. Trigger даёт внеочередной
// проход, Run останавливается по контексту.
type Sweeper struct {
	cleaner  Cleaner
	producer Producer
	topic    string

	initialDelay time.Duration
	interval     time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRuns           atomic.Int64
	totalRemovedCodes   atomic.Int64
	totalRemovedGens    atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(cleaner Cleaner, producer Producer, topic string) *Sweeper {
	return &Sweeper{
		cleaner:           cleaner,
		producer:          producer,
		topic:             topic,
		initialDelay:      5 * time.Second,
		interval:          24 * time.Hour,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Sweeper) WithSettings(initialDelay, interval time.Duration) *Sweeper {
	if initialDelay > 0 {
		s.initialDelay = initialDelay
	}
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// Trigger forces an immediate sweep cycle (best-effort, non-blocking).
func (s *Sweeper) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt         time.Time  `json:"startedAt"`
	LastCycleAt       *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt     *time.Time `json:"lastTriggerAt,omitempty"`
	TotalRuns         int64      `json:"totalRuns"`
	TotalRemovedCodes int64      `json:"totalRemovedCodes"`
	TotalRemovedGens  int64      `json:"totalRemovedGenerations"`
	LastError         string     `json:"lastError,omitempty"`
}

func (s *Sweeper) Stats() Stats {
	st := Stats{
		StartedAt:         time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalRuns:         s.totalRuns.Load(),
		TotalRemovedCodes: s.totalRemovedCodes.Load(),
		TotalRemovedGens:  s.totalRemovedGens.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Sweeper) Run(ctx context.Context) error {
	slog.Info("retention sweeper scheduled", "initial_delay", s.initialDelay.String(), "interval", s.interval.String())

	first := time.NewTimer(s.initialDelay)
	defer first.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-first.C:
		s.runOnce(ctx)
	case <-s.triggerCh:
		s.runOnce(ctx)
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	s.lastCycleUnixNano.Store(now.UnixNano())
	s.totalRuns.Add(1)

	res, err := s.cleaner.Cleanup(ctx)
	if err != nil {
		slog.Error("retention sweep", "error", err.Error())
		s.lastErrorMu.Lock()
		s.lastError = err.Error()
		s.lastErrorMu.Unlock()
		return
	}

	s.totalRemovedCodes.Add(int64(res.RemovedCodes))
	s.totalRemovedGens.Add(int64(res.RemovedGenerations))

	if res.RemovedCodes == 0 && res.RemovedGenerations == 0 {
		slog.Info("retention sweep: nothing to remove")
		return
	}

	slog.Info("retention sweep done",
		"removed_codes", res.RemovedCodes,
		"removed_generations", res.RemovedGenerations,
		"remaining_codes", res.RemainingCodes,
		"remaining_generations", res.RemainingGenerations,
	)

	s.publish(ctx, now, res)
}

func (s *Sweeper) publish(ctx context.Context, sweptAt time.Time, res models.CleanupResult) {
	if s.producer == nil || s.topic == "" {
		return
	}

	b, err := json.Marshal(messages.CodesExpired{
		SweptAt:              sweptAt,
		RemovedCodes:         res.RemovedCodes,
		RemovedGenerations:   res.RemovedGenerations,
		RemainingCodes:       res.RemainingCodes,
		RemainingGenerations: res.RemainingGenerations,
	})
	if err != nil {
		slog.Error("marshal sweep event", "error", err.Error())
		return
	}

	if err := s.producer.Publish(ctx, s.topic, []byte("sweep"), b); err != nil {
		// Событие — только наблюдаемость; чистку из-за брокера не откатываем.
		slog.Error("publish sweep event", "error", err.Error())
	}
}
