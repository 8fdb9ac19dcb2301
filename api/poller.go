/*
poller.go - Collaborator fact collection cycle

PURPOSE:
  Keeps the staging area fed from the upstream modules. Two triggers:
  a bus notification ("facts available" on a collaborator's topic) causes
  an immediate pull from that collaborator, and a periodic tick sweeps
  every registered source as a fallback for missed notifications.

DESIGN:
  - Background goroutine with a configurable sweep interval
  - Collaborator handles are injected at construction, one per topic
  - A failing source is logged and skipped; its facts are simply absent
    this cycle and will be picked up on the next trigger
  - All inserts funnel through the engine facade, so dedup stays safe
    regardless of how triggers overlap

USAGE:
  poller := NewPoller(eng, bus, sources, time.Hour, logger)
  poller.Start()
  // ... later
  poller.Stop()

SEE ALSO:
  - engine/bus.go: Topics, notices, CollaboratorSource
  - engine/collector.go: The dedup/insert half of the cycle
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/cashflow-engine/engine"
)

// Poller drives the collect cycle over the registered collaborators.
type Poller struct {
	Engine        *engine.Engine
	Bus           *engine.Bus
	Logger        *slog.Logger
	CheckInterval time.Duration

	sources map[engine.Topic]engine.CollaboratorSource

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPoller wires the engine to its collaborator handles and subscribes
// to each handle's topic on the bus.
func NewPoller(eng *engine.Engine, bus *engine.Bus, sources []engine.CollaboratorSource,
	interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}

	p := &Poller{
		Engine:        eng,
		Bus:           bus,
		Logger:        logger,
		CheckInterval: interval,
		sources:       make(map[engine.Topic]engine.CollaboratorSource, len(sources)),
	}
	for _, src := range sources {
		p.sources[src.Topic()] = src
	}

	if bus != nil {
		for topic := range p.sources {
			topic := topic
			bus.Subscribe(topic, func(engine.Notice) {
				p.collectOne(context.Background(), topic)
			})
		}
	}
	return p
}

// Start begins the periodic sweep.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil {
		return
	}
	// Stop closed the previous channel; each run gets its own.
	p.stop = make(chan struct{})
	p.ticker = time.NewTicker(p.CheckInterval)
	p.wg.Add(1)
	go p.run(p.stop)

	p.Logger.Info("poller started", "interval", p.CheckInterval, "sources", len(p.sources))
}

// Stop halts the periodic sweep. Bus subscriptions stay live.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil {
		p.ticker.Stop()
		close(p.stop)
		p.wg.Wait()
		p.ticker = nil
		p.Logger.Info("poller stopped")
	}
}

func (p *Poller) run(stop <-chan struct{}) {
	defer p.wg.Done()

	// Sweep immediately on start
	p.SweepNow()

	for {
		select {
		case <-p.ticker.C:
			p.SweepNow()
		case <-stop:
			return
		}
	}
}

// SweepNow pulls from every registered collaborator once.
func (p *Poller) SweepNow() {
	ctx := context.Background()
	for topic := range p.sources {
		p.collectOne(ctx, topic)
	}
}

func (p *Poller) collectOne(ctx context.Context, topic engine.Topic) {
	src, ok := p.sources[topic]
	if !ok {
		return
	}
	inserted, err := p.Engine.CollectFromSource(ctx, src)
	if err != nil {
		// Retried on the next notification or sweep.
		p.Logger.Warn("collaborator unavailable", "topic", topic, "error", err)
		return
	}
	if inserted > 0 {
		p.Logger.Info("facts staged", "topic", topic, "inserted", inserted)
	}
}
