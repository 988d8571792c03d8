// Package marketdata samples each engine's dirty flag outside its lock
// and feeds the resulting BBO/depth snapshot to the broadcast
// aggregator, per spec.md §4.6.
package marketdata

import (
	"time"

	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/broadcast"
)

// Engine is the subset of *engine.Engine the publisher samples.
type Engine interface {
	Symbol() string
	Dirty() bool
	BBO() book.BBO
	Depth(n int) book.Depth
}

// Publisher polls every registered engine on a fixed tick, and hands a
// fresh Update to the aggregator only for symbols whose book actually
// changed since the last poll (Dirty() both reports and clears the
// flag).
type Publisher struct {
	engines     []Engine
	aggregator  *broadcast.Aggregator
	pollEvery   time.Duration
	depthLevels int
}

// NewPublisher builds a Publisher over engines, sampling every
// pollEvery and reporting depthLevels levels per side.
func NewPublisher(engines []Engine, aggregator *broadcast.Aggregator, pollEvery time.Duration, depthLevels int) *Publisher {
	if pollEvery <= 0 {
		pollEvery = time.Millisecond
	}
	return &Publisher{engines: engines, aggregator: aggregator, pollEvery: pollEvery, depthLevels: depthLevels}
}

// Start launches the polling loop under t.
func (p *Publisher) Start(t *tomb.Tomb) {
	t.Go(func() error {
		return p.run(t)
	})
}

func (p *Publisher) run(t *tomb.Tomb) error {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Publisher) poll() {
	for _, e := range p.engines {
		if !e.Dirty() {
			continue
		}
		p.aggregator.Set(broadcast.Update{
			Symbol:    e.Symbol(),
			BBO:       e.BBO(),
			Depth:     e.Depth(p.depthLevels),
			Timestamp: time.Now(),
		})
	}
}
