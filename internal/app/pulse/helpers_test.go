package pulse_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexus-quest/pulse/internal/domain"
)

// refNow is the fixed evaluation instant used across the tests.
var refNow = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

func day(n int) string { return domain.ShiftDay(domain.DayKey(refNow), -n) }

func at(n int) time.Time { return refNow.AddDate(0, 0, -n) }

func doneTask(id string, diff domain.Difficulty, daysAgo int) domain.Task {
	return domain.Task{ID: id, Title: id, Difficulty: diff, Completed: true, CompletedAt: at(daysAgo)}
}

func openTask(id string, diff domain.Difficulty) domain.Task {
	return domain.Task{ID: id, Title: id, Difficulty: diff}
}

func ids(insights []domain.Insight) map[string]domain.Insight {
	out := make(map[string]domain.Insight, len(insights))
	for _, in := range insights {
		out[in.ID] = in
	}
	return out
}

// ─── Fake KV ────────────────────────────────────────────────────────────────

type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	failSet bool
	failGet bool
	failKey string // Set fails for this key only
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("storage unavailable")
	}
	return m.data[key], nil
}

func (m *memKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet || key == m.failKey {
		return errors.New("quota exceeded")
	}
	m.sets++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

type batchKV struct {
	*memKV
	batches int
}

func (b *batchKV) SetBatch(pairs map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSet {
		return errors.New("quota exceeded")
	}
	b.batches++
	for k, v := range pairs {
		b.data[k] = append([]byte(nil), v...)
	}
	return nil
}

// ─── Fake Clock ─────────────────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ─── Fake Provider ──────────────────────────────────────────────────────────

type fakeProvider struct {
	calls   atomic.Int32
	mu      sync.Mutex
	result  domain.AISynthesis
	err     error
	block   chan struct{} // when non-nil, Synthesize waits on it or ctx
	lastReq domain.SynthesisRequest
	started chan struct{}
}

func newProvider(summary string) *fakeProvider {
	return &fakeProvider{result: synthesis(summary)}
}

func synthesis(summary string) domain.AISynthesis {
	return domain.AISynthesis{
		Summary:     summary,
		BurnoutRisk: 0.3,
		Momentum:    domain.MomentumSteady,
		Suggestion:  "Finish one medium quest.",
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.AISynthesis, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.lastReq = req
	block, started, res, err := p.block, p.started, p.result, p.err
	p.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.AISynthesis{}, ctx.Err()
		}
	}
	return res, err
}

func (p *fakeProvider) set(res domain.AISynthesis, err error) {
	p.mu.Lock()
	p.result, p.err = res, err
	p.mu.Unlock()
}

func (p *fakeProvider) request() domain.SynthesisRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}
