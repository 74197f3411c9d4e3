package pulse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-quest/pulse/internal/domain"
	"github.com/nexus-quest/pulse/internal/infra/metrics"
)

// DefaultTimeout bounds one external synthesis call.
const DefaultTimeout = 30 * time.Second

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	Cooldown       time.Duration
	Timeout        time.Duration
	HistoryDays    int
	ContextEntries int
	Location       *time.Location   // calendar used for day keys; nil = time.Local
	Clock          func() time.Time // nil = time.Now
}

// DefaultConfig returns the product defaults: 5m cooldown, 30s timeout,
// 30 days of history and 7 entries of context.
func DefaultConfig() Config {
	return Config{
		Cooldown:       DefaultCooldown,
		Timeout:        DefaultTimeout,
		HistoryDays:    DefaultHistoryDays,
		ContextEntries: DefaultContextEntries,
		Location:       time.Local,
		Clock:          time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = d.HistoryDays
	}
	if c.ContextEntries <= 0 {
		c.ContextEntries = d.ContextEntries
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	return c
}

// Outcome describes what one refresh attempt did.
type Outcome string

const (
	OutcomeStored   Outcome = "stored"
	OutcomeInFlight Outcome = "in_flight"
	OutcomeCooldown Outcome = "cooldown"
	OutcomeFailed   Outcome = "failed"
)

// Orchestrator serializes calls to the synthesis provider. A single in-flight
// guard drops overlapping requests; the cache cooldown drops non-forced ones.
type Orchestrator struct {
	provider domain.SynthesisProvider
	kv       domain.KVStore
	cache    *Cache
	history  *History
	state    func() domain.State
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inFlight atomic.Bool

	mu        sync.RWMutex
	lastRunID string
	lastErr   error
	nextSub   int
	subs      map[int]func(domain.AISynthesis)
}

// NewOrchestrator wires a provider, a KV store and a state source. state must
// return a copy the orchestrator may keep.
func NewOrchestrator(provider domain.SynthesisProvider, kv domain.KVStore, state func() domain.State, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		provider: provider,
		kv:       kv,
		state:    state,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[int]func(domain.AISynthesis)),
	}
	o.cache = NewCache(kv, cfg.Cooldown, o.Now)
	o.history = NewHistory(kv, cfg.HistoryDays)
	return o
}

// Now returns the orchestrator clock in its configured location.
func (o *Orchestrator) Now() time.Time {
	return o.cfg.Clock().In(o.cfg.Location)
}

// Cache exposes the synthesis cache.
func (o *Orchestrator) Cache() *Cache { return o.cache }

// History exposes the history store.
func (o *Orchestrator) History() *History { return o.history }

// Loading reports whether a provider call is in flight.
func (o *Orchestrator) Loading() bool { return o.inFlight.Load() }

// LastRunID returns the id of the most recent attempted call.
func (o *Orchestrator) LastRunID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastRunID
}

// LastError returns the error of the most recent provider call, nil after
// a success or before any call.
func (o *Orchestrator) LastError() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// Subscribe registers fn to receive every newly stored synthesis.
// The returned func removes the subscription.
func (o *Orchestrator) Subscribe(fn func(domain.AISynthesis)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// RequestRefresh starts a refresh in the background and returns immediately.
func (o *Orchestrator) RequestRefresh(event domain.PulseEvent, force bool) {
	if o.inFlight.Load() {
		metrics.RefreshSkipped.WithLabelValues(string(OutcomeInFlight)).Inc()
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Refresh(o.ctx, event, force)
	}()
}

// Refresh runs one refresh attempt synchronously:
//  1. drop if a call is already in flight
//  2. drop while cooling down unless forced
//  3. snapshot + recent history → provider (bounded by the timeout)
//  4. on success persist cache and history together, then publish
//
// Failures are logged and leave the cache untouched.
func (o *Orchestrator) Refresh(ctx context.Context, event domain.PulseEvent, force bool) Outcome {
	if !o.inFlight.CompareAndSwap(false, true) {
		metrics.RefreshSkipped.WithLabelValues(string(OutcomeInFlight)).Inc()
		return OutcomeInFlight
	}
	defer o.inFlight.Store(false)

	if !force && o.cache.IsCoolingDown() {
		metrics.RefreshSkipped.WithLabelValues(string(OutcomeCooldown)).Inc()
		return OutcomeCooldown
	}

	runID := uuid.NewString()
	o.mu.Lock()
	o.lastRunID = runID
	o.mu.Unlock()

	req := domain.SynthesisRequest{
		Snapshot: BuildSnapshot(o.state(), o.Now()),
		History:  o.history.Read(o.cfg.ContextEntries),
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	start := time.Now()
	syn, err := o.provider.Synthesize(callCtx, req)
	metrics.SynthesisLatency.Observe(time.Since(start).Seconds())
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		outcome := "error"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
			err = fmt.Errorf("%w after %s: %v", domain.ErrSynthesisTimeout, o.cfg.Timeout, err)
		}
		metrics.SynthesisCalls.WithLabelValues(outcome).Inc()
		o.setLastErr(err)
		log.Printf("[pulse] run %s (%s via %s) failed: %v", runID, event, o.provider.Name(), err)
		return OutcomeFailed
	}
	metrics.SynthesisCalls.WithLabelValues("ok").Inc()
	o.setLastErr(nil)

	o.persist(syn, req.Snapshot)
	o.publish(syn)
	log.Printf("[pulse] run %s (%s via %s) stored: momentum=%s burnout=%.2f",
		runID, event, o.provider.Name(), syn.Momentum, syn.BurnoutRisk)
	return OutcomeStored
}

func (o *Orchestrator) setLastErr(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}

// persist writes cache and history together: in one batch when the store
// supports it, otherwise history then cache, restoring the previous history
// if the cache write fails.
func (o *Orchestrator) persist(syn domain.AISynthesis, snap domain.Snapshot) {
	now := o.Now()
	prevHist, _ := o.kv.Get(HistoryKey)
	histData, err := o.history.encodeAppend(domain.DayKey(now), syn, snap)
	if err != nil {
		log.Printf("[pulse] %v", err)
		return
	}
	cacheData, err := o.cache.encode(syn, now)
	if err != nil {
		log.Printf("[pulse] cache encode: %v", err)
		return
	}

	if b, ok := o.kv.(domain.BatchKVStore); ok {
		err = b.SetBatch(map[string][]byte{CacheKey: cacheData, HistoryKey: histData})
	} else if err = o.kv.Set(HistoryKey, histData); err == nil {
		if err = o.kv.Set(CacheKey, cacheData); err != nil {
			if prevHist == nil {
				prevHist = []byte("[]")
			}
			if rerr := o.kv.Set(HistoryKey, prevHist); rerr != nil {
				log.Printf("[pulse] restore history: %v", rerr)
			}
		}
	}
	if err != nil {
		log.Printf("[pulse] persist synthesis: %v", err)
	}
}

func (o *Orchestrator) publish(syn domain.AISynthesis) {
	o.mu.RLock()
	fns := make([]func(domain.AISynthesis), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.mu.RUnlock()
	for _, fn := range fns {
		fn(syn)
	}
}

// Wait blocks until background refreshes have finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Close cancels in-flight calls and waits for them to return.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}
