package pulse_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/domain"
)

func newOrchestrator(t *testing.T, p domain.SynthesisProvider, kv domain.KVStore, clock *fakeClock, timeout time.Duration) *pulse.Orchestrator {
	t.Helper()
	o := pulse.NewOrchestrator(p, kv, func() domain.State { return richState() }, pulse.Config{
		Cooldown: 5 * time.Minute,
		Timeout:  timeout,
		Location: time.UTC,
		Clock:    clock.Now,
	})
	t.Cleanup(o.Close)
	return o
}

// ─── Cooldown & Force ───────────────────────────────────────────────────────

func TestRefresh_CooldownDropsSecondCall(t *testing.T) {
	p := newProvider("first")
	clock := newClock(refNow)
	o := newOrchestrator(t, p, newMemKV(), clock, time.Second)
	ctx := context.Background()

	if got := o.Refresh(ctx, domain.EventBatchComplete, false); got != pulse.OutcomeStored {
		t.Fatalf("first Refresh() = %s, want stored", got)
	}
	clock.Advance(time.Minute)
	if got := o.Refresh(ctx, domain.EventReflectionSubmitted, false); got != pulse.OutcomeCooldown {
		t.Fatalf("second Refresh() = %s, want cooldown", got)
	}
	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}

	clock.Advance(5 * time.Minute)
	if got := o.Refresh(ctx, domain.EventReflectionSubmitted, false); got != pulse.OutcomeStored {
		t.Errorf("Refresh() after cooldown = %s, want stored", got)
	}
}

func TestRefresh_ForceBypassesCooldown(t *testing.T) {
	p := newProvider("first")
	o := newOrchestrator(t, p, newMemKV(), newClock(refNow), time.Second)
	ctx := context.Background()

	o.Refresh(ctx, domain.EventBatchComplete, false)
	p.set(synthesis("second"), nil)
	if got := o.Refresh(ctx, domain.EventManual, true); got != pulse.OutcomeStored {
		t.Fatalf("forced Refresh() = %s, want stored", got)
	}
	if n := p.calls.Load(); n != 2 {
		t.Errorf("provider calls = %d, want 2", n)
	}
	got, _ := o.Cache().GetCached()
	if got.Summary != "second" {
		t.Errorf("cached summary = %q, want second", got.Summary)
	}
}

// ─── Failures ───────────────────────────────────────────────────────────────

func TestRefresh_FailureKeepsCache(t *testing.T) {
	p := newProvider("good")
	o := newOrchestrator(t, p, newMemKV(), newClock(refNow), time.Second)
	ctx := context.Background()
	o.Refresh(ctx, domain.EventManual, true)
	if err := o.LastError(); err != nil {
		t.Fatalf("LastError() after success = %v", err)
	}

	p.set(domain.AISynthesis{}, domain.ErrMalformedSynthesis)
	if got := o.Refresh(ctx, domain.EventManual, true); got != pulse.OutcomeFailed {
		t.Fatalf("Refresh() = %s, want failed", got)
	}
	if err := o.LastError(); !errors.Is(err, domain.ErrMalformedSynthesis) {
		t.Errorf("LastError() = %v, want ErrMalformedSynthesis", err)
	}
	got, ok := o.Cache().GetCached()
	if !ok || got.Summary != "good" {
		t.Errorf("cache = %+v, %v; want the previous synthesis", got, ok)
	}
	if n := len(o.History().Read(0)); n != 1 {
		t.Errorf("history entries = %d, want 1", n)
	}
}

func TestRefresh_Timeout(t *testing.T) {
	p := newProvider("never")
	p.block = make(chan struct{})
	o := newOrchestrator(t, p, newMemKV(), newClock(refNow), 20*time.Millisecond)

	if got := o.Refresh(context.Background(), domain.EventManual, true); got != pulse.OutcomeFailed {
		t.Fatalf("Refresh() = %s, want failed", got)
	}
	if _, ok := o.Cache().GetCached(); ok {
		t.Error("a timed-out call must not populate the cache")
	}
	if o.Loading() {
		t.Error("loading flag must clear after a timeout")
	}
}

type slowProvider struct{ delay time.Duration }

func (slowProvider) Name() string { return "slow" }

func (s slowProvider) Synthesize(context.Context, domain.SynthesisRequest) (domain.AISynthesis, error) {
	time.Sleep(s.delay)
	return synthesis("too late"), nil
}

func TestRefresh_LateSuccessIsDiscarded(t *testing.T) {
	o := newOrchestrator(t, slowProvider{delay: 60 * time.Millisecond}, newMemKV(), newClock(refNow), 20*time.Millisecond)
	if got := o.Refresh(context.Background(), domain.EventManual, true); got != pulse.OutcomeFailed {
		t.Fatalf("Refresh() = %s, want failed", got)
	}
	if _, ok := o.Cache().GetCached(); ok {
		t.Error("a result arriving after the deadline must be discarded")
	}
}

func TestRefresh_ProviderUnavailable(t *testing.T) {
	p := newProvider("")
	p.set(domain.AISynthesis{}, errors.New("connection refused"))
	o := newOrchestrator(t, p, newMemKV(), newClock(refNow), time.Second)
	if got := o.Refresh(context.Background(), domain.EventManual, true); got != pulse.OutcomeFailed {
		t.Errorf("Refresh() = %s, want failed", got)
	}
	if o.LastRunID() == "" {
		t.Error("a failed attempt still gets a run id")
	}
}

// ─── In-flight Guard ────────────────────────────────────────────────────────

func TestRequestRefresh_DropsWhileInFlight(t *testing.T) {
	p := newProvider("slow")
	p.block = make(chan struct{})
	p.started = make(chan struct{})
	o := newOrchestrator(t, p, newMemKV(), newClock(refNow), 5*time.Second)

	o.RequestRefresh(domain.EventManual, true)
	<-p.started
	if !o.Loading() {
		t.Fatal("Loading() should be true during the call")
	}
	if got := o.Refresh(context.Background(), domain.EventManual, true); got != pulse.OutcomeInFlight {
		t.Errorf("overlapping Refresh() = %s, want in_flight", got)
	}
	o.RequestRefresh(domain.EventManual, true)

	close(p.block)
	o.Wait()
	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
	if o.Loading() {
		t.Error("Loading() should clear after completion")
	}
	if _, ok := o.Cache().GetCached(); !ok {
		t.Error("completed call should populate the cache")
	}
}

func TestClose_CancelsInFlight(t *testing.T) {
	p := newProvider("x")
	p.block = make(chan struct{})
	p.started = make(chan struct{})
	o := pulse.NewOrchestrator(p, newMemKV(), func() domain.State { return domain.State{} }, pulse.Config{
		Timeout: time.Minute, Location: time.UTC, Clock: newClock(refNow).Now,
	})

	o.RequestRefresh(domain.EventManual, true)
	<-p.started
	done := make(chan struct{})
	go func() { o.Close(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not cancel the in-flight call")
	}
	if _, ok := o.Cache().GetCached(); ok {
		t.Error("a cancelled call must not populate the cache")
	}
}

// ─── Persistence & Publish ──────────────────────────────────────────────────

func TestRefresh_SendsRecentHistory(t *testing.T) {
	p := newProvider("x")
	o := newOrchestrator(t, p, newMemKV(), newClock(refNow), time.Second)
	for i := 10; i >= 1; i-- {
		o.History().Append(day(i), synthesis("past"), domain.Snapshot{Day: day(i)})
	}

	o.Refresh(context.Background(), domain.EventManual, true)
	req := p.request()
	if len(req.History) != pulse.DefaultContextEntries {
		t.Fatalf("history sent = %d, want %d", len(req.History), pulse.DefaultContextEntries)
	}
	if req.History[0].Day != day(7) || req.History[6].Day != day(1) {
		t.Errorf("history window = %s..%s", req.History[0].Day, req.History[6].Day)
	}
	if req.Snapshot.Day != day(0) || req.Snapshot.Player.Name != "Ari" {
		t.Errorf("snapshot = %+v", req.Snapshot)
	}

	hist := o.History().Read(0)
	if last := hist[len(hist)-1]; last.Day != day(0) || last.Snapshot.Player.Name != "Ari" {
		t.Errorf("newest history entry = %+v", last)
	}
}

func TestRefresh_PersistsInOneBatch(t *testing.T) {
	kv := &batchKV{memKV: newMemKV()}
	o := newOrchestrator(t, newProvider("x"), kv, newClock(refNow), time.Second)
	o.Refresh(context.Background(), domain.EventManual, true)

	if kv.batches != 1 || kv.sets != 0 {
		t.Errorf("batches = %d, sets = %d; want one batch", kv.batches, kv.sets)
	}
	if kv.data[pulse.CacheKey] == nil || kv.data[pulse.HistoryKey] == nil {
		t.Error("both cache and history must be written")
	}
}

func TestRefresh_PlainKVWritesBothKeys(t *testing.T) {
	kv := newMemKV()
	o := newOrchestrator(t, newProvider("x"), kv, newClock(refNow), time.Second)
	o.Refresh(context.Background(), domain.EventManual, true)
	if kv.sets != 2 {
		t.Errorf("sets = %d, want 2", kv.sets)
	}
}

func TestRefresh_PersistFailureStillCoolsDown(t *testing.T) {
	kv := newMemKV()
	kv.failSet = true
	p := newProvider("x")
	o := newOrchestrator(t, p, kv, newClock(refNow), time.Second)

	if got := o.Refresh(context.Background(), domain.EventManual, true); got != pulse.OutcomeStored {
		t.Fatalf("Refresh() = %s, want stored", got)
	}
	if got := o.Refresh(context.Background(), domain.EventBatchComplete, false); got != pulse.OutcomeCooldown {
		t.Errorf("Refresh() = %s, want cooldown", got)
	}
}

func TestRefresh_PersistFailureKeepsCacheAndHistoryInStep(t *testing.T) {
	for _, tc := range []struct {
		name string
		kv   func() (domain.KVStore, *memKV)
		fail func(*memKV)
	}{
		{"batch", func() (domain.KVStore, *memKV) { m := newMemKV(); return &batchKV{memKV: m}, m }, func(m *memKV) { m.failSet = true }},
		{"plain", func() (domain.KVStore, *memKV) { m := newMemKV(); return m, m }, func(m *memKV) { m.failSet = true }},
		{"plain cache write only", func() (domain.KVStore, *memKV) { m := newMemKV(); return m, m }, func(m *memKV) { m.failKey = pulse.CacheKey }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			kv, mem := tc.kv()
			clock := newClock(refNow)
			p := newProvider("good")
			o := newOrchestrator(t, p, kv, clock, time.Second)
			ctx := context.Background()
			o.Refresh(ctx, domain.EventManual, true)

			clock.Advance(time.Minute)
			tc.fail(mem)
			p.set(synthesis("newer"), nil)
			if got := o.Refresh(ctx, domain.EventManual, true); got != pulse.OutcomeStored {
				t.Fatalf("Refresh() = %s, want stored", got)
			}

			cached, ok := o.Cache().GetCached()
			hist := o.History().Read(0)
			if !ok || len(hist) != 1 {
				t.Fatalf("cache ok=%v, history=%d entries", ok, len(hist))
			}
			if cached.Summary != "good" || hist[0].Synthesis.Summary != "good" {
				t.Errorf("cache = %q, history = %q; want both %q", cached.Summary, hist[0].Synthesis.Summary, "good")
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	o := newOrchestrator(t, newProvider("published"), newMemKV(), newClock(refNow), time.Second)
	var got []string
	unsub := o.Subscribe(func(s domain.AISynthesis) { got = append(got, s.Summary) })

	o.Refresh(context.Background(), domain.EventManual, true)
	unsub()
	o.Refresh(context.Background(), domain.EventManual, true)

	if len(got) != 1 || got[0] != "published" {
		t.Errorf("received %v, want one publish", got)
	}
}
