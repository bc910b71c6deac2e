package negotiation

import (
	"context"
	"time"

	"github.com/Leganyst/openslots/internal/obs"
)

const (
	DefaultSweepInterval = 500 * time.Millisecond
	// столько терминальные переговоры живут в памяти для дешёвого Get
	DefaultRetention = 10 * time.Minute
)

// Sweeper истекает просроченные переговоры без участия сторон. Занятые
// параллельным действием остаются до следующего тика.
type Sweeper struct {
	engine    *Engine
	interval  time.Duration
	retention time.Duration
}

func NewSweeper(engine *Engine, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Sweeper{engine: engine, interval: interval, retention: retention}
}

// Run чистит на каждом тике, пока ctx не завершён.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := s.SweepOnce(ctx); n > 0 {
				obs.Logger.Info("negotiations expired", "count", n)
			}
			if n := s.engine.Prune(s.engine.now().Add(-s.retention)); n > 0 {
				obs.Logger.Debug("negotiations pruned", "count", n)
			}
		}
	}
}

// SweepOnce истекает все просроченные ACTIVE переговоры, которые удалось
// захватить, и возвращает их число.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	expired := 0
	for _, ent := range s.engine.activeEntries() {
		ok, err := s.engine.tryExpire(ctx, ent)
		if err != nil {
			obs.Logger.Warn("expire failed", "slot_id", ent.slotID, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired
}
