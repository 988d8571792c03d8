package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

// Snapshotter periodically asks each registered source for its current
// resting book and sequence, and saves it to Store. Grounded on the same
// tomb.v2 lifecycle idiom as Writer.
type Snapshotter struct {
	store    Store
	interval time.Duration
	sources  []snapshotFunc
	log      zerolog.Logger
}

type snapshotFunc struct {
	symbol string
	fn     func() Snapshot
}

// NewSnapshotter builds a Snapshotter that fires every interval.
func NewSnapshotter(store Store, interval time.Duration, logger zerolog.Logger) *Snapshotter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Snapshotter{store: store, interval: interval, log: logger.With().Str("component", "persistence.snapshotter").Logger()}
}

// Register adds a symbol whose snapshot is produced by calling fn on
// every tick.
func (s *Snapshotter) Register(symbol string, fn func() Snapshot) {
	s.sources = append(s.sources, snapshotFunc{symbol: symbol, fn: fn})
}

// Start launches the periodic loop under t.
func (s *Snapshotter) Start(t *tomb.Tomb) {
	t.Go(func() error {
		return s.run(t)
	})
}

func (s *Snapshotter) run(t *tomb.Tomb) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Snapshotter) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, src := range s.sources {
		snap := src.fn()
		if err := s.store.SaveSnapshot(ctx, snap); err != nil {
			s.log.Error().Err(err).Str("symbol", src.symbol).Msg("snapshot save failed")
		}
	}
}
