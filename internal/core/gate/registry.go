package gate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/core/ports"
	"github.com/healthtracker/portal/internal/pkg/metrics"
)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
	defaultReprobeEvery  = 5 * time.Second
)

// Config tunes gate behaviour.
type Config struct {
	// CallTimeout bounds every identity service call.
	CallTimeout time.Duration
	// IdleTTL is how long an unused gate is kept before Sweep evicts it.
	IdleTTL time.Duration
	// ReprobeEvery limits how often a gate whose probe failed on the network
	// is probed again when its visitor comes back.
	ReprobeEvery time.Duration
}

type entry struct {
	gate       *Gate
	lastSeen   time.Time
	reprobedAt time.Time
}

// Registry holds one Gate per visitor.
type Registry struct {
	client ports.IdentityClient
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	gates map[string]*entry
}

// NewRegistry creates an empty registry. Zero config values fall back to defaults.
func NewRegistry(client ports.IdentityClient, cfg Config, log zerolog.Logger) *Registry {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.ReprobeEvery <= 0 {
		cfg.ReprobeEvery = defaultReprobeEvery
	}
	return &Registry{
		client: client,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		gates:  make(map[string]*entry),
	}
}

// Acquire returns the gate for visitorID, creating it on first sight. A new
// gate starts its initial probe in the background using seedToken, so the
// first snapshot reports IsLoading. An existing gate whose last probe failed
// on the network is probed again, at most once per ReprobeEvery. created
// reports whether a gate was made.
func (r *Registry) Acquire(visitorID, seedToken string) (g *Gate, created bool) {
	r.mu.Lock()
	if e, ok := r.gates[visitorID]; ok {
		now := r.now()
		e.lastSeen = now
		due := now.Sub(e.reprobedAt) >= r.cfg.ReprobeEvery
		r.mu.Unlock()
		if due && e.gate.markReprobe() {
			r.mu.Lock()
			e.reprobedAt = now
			r.mu.Unlock()
			go e.gate.Probe(context.Background())
		}
		return e.gate, false
	}

	g = New(r.client, seedToken, r.cfg.CallTimeout, r.log.With().Str("visitor_id", visitorID).Logger())
	r.gates[visitorID] = &entry{gate: g, lastSeen: r.now()}
	n := len(r.gates)
	r.mu.Unlock()

	metrics.ActiveGates.Set(float64(n))
	go g.Probe(context.Background())
	return g, true
}

// Lookup returns the gate for visitorID without creating one.
func (r *Registry) Lookup(visitorID string) (*Gate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.gates[visitorID]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.gate, true
}

// Len reports the number of gates held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}

// Sweep evicts gates idle for longer than IdleTTL. Gates with a command in
// flight are kept. It returns the number evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	evicted := 0
	for id, e := range r.gates {
		if e.lastSeen.After(cutoff) || e.gate.Snapshot().IsLoading {
			continue
		}
		delete(r.gates, id)
		evicted++
	}
	n := len(r.gates)
	r.mu.Unlock()

	metrics.ActiveGates.Set(float64(n))
	if evicted > 0 {
		r.log.Debug().Int("evicted", evicted).Int("remaining", n).Msg("idle gates swept")
	}
	return evicted
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
