package bench

import (
	"context"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/httpbridge/packages/translate"
)

// Target is one request the benchmark can send
type Target struct {
	Name    string
	Request *translate.Request
	Weight  int           // relative weight for selection (default 1)
	Think   time.Duration // think time after this request; overrides Config.ThinkTime
}

// Executor performs a target request and records its outcome
type Executor func(ctx context.Context, t *Target) error

// Scheduler decides what to send next and how fast. It owns the rate
// limiter (rate mode) and the in-flight semaphore (every mode).
type Scheduler struct {
	config  *Config
	limiter *rate.Limiter
	slots   chan struct{}

	mu      sync.Mutex
	targets []*Target
	// cumulative[i] is the sum of the weights of targets[0..i]
	cumulative []int
}

// NewScheduler creates a scheduler for config. With a ramp-up the limiter
// starts at 1 req/s and is raised through UpdateRate.
func NewScheduler(config *Config) *Scheduler {
	s := &Scheduler{config: config}

	if config.Mode == RateMode && config.Rate > 0 {
		start := config.Rate
		if config.RampUp > 0 {
			start = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(start), 1)
	}

	s.slots = make(chan struct{}, max(config.MaxVUs, 1))
	return s
}

// AddTarget registers a target. Weights below 1 count as 1.
func (s *Scheduler) AddTarget(t *Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := max(t.Weight, 1)
	if n := len(s.cumulative); n > 0 {
		total += s.cumulative[n-1]
	}
	s.targets = append(s.targets, t)
	s.cumulative = append(s.cumulative, total)
}

// SelectTarget picks a target with probability proportional to its weight,
// or nil when there are none.
func (s *Scheduler) SelectTarget() *Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(s.targets) {
	case 0:
		return nil
	case 1:
		return s.targets[0]
	}

	n := rand.IntN(s.cumulative[len(s.cumulative)-1])
	i := sort.SearchInts(s.cumulative, n+1)
	return s.targets[i]
}

// Wait blocks on the rate limiter in rate mode. In other modes it only
// reports whether ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// Acquire takes an in-flight slot, blocking while all MaxVUs are busy.
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (s *Scheduler) Release() {
	<-s.slots
}

// rampFactor is the fraction of the target load due after elapsed
func (s *Scheduler) rampFactor(elapsed time.Duration) float64 {
	ramp := s.config.RampUp
	if ramp <= 0 || elapsed >= ramp {
		return 1
	}
	return float64(elapsed) / float64(ramp)
}

// RateAt is the request rate due after elapsed
func (s *Scheduler) RateAt(elapsed time.Duration) float64 {
	return s.config.Rate * s.rampFactor(elapsed)
}

// VUsAt is the virtual user count due after elapsed
func (s *Scheduler) VUsAt(elapsed time.Duration) int {
	return int(float64(s.config.VUs) * s.rampFactor(elapsed))
}

// UpdateRate moves the limiter to r requests per second. Non-positive
// rates are ignored.
func (s *Scheduler) UpdateRate(r float64) {
	if s.limiter == nil || r <= 0 {
		return
	}
	s.limiter.SetLimit(rate.Limit(r))
}

// TargetCount returns the number of registered targets
func (s *Scheduler) TargetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// Targets returns a copy of the registered targets
func (s *Scheduler) Targets() []*Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.targets)
}

// VURunner is one virtual user: pick a target, send it, think, repeat.
type VURunner struct {
	id        int
	scheduler *Scheduler
	config    *Config
	metrics   *Metrics
	executor  Executor
	cancel    context.CancelFunc
}

// NewVURunner creates virtual user id
func NewVURunner(id int, scheduler *Scheduler, config *Config, metrics *Metrics, executor Executor) *VURunner {
	return &VURunner{
		id:        id,
		scheduler: scheduler,
		config:    config,
		metrics:   metrics,
		executor:  executor,
	}
}

// Start runs the user on its own goroutine until ctx ends or Stop is called
func (v *VURunner) Start(ctx context.Context, wg *sync.WaitGroup) {
	ctx, v.cancel = context.WithCancel(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		v.run(ctx)
	}()
}

// Stop asks the user to finish after its current request
func (v *VURunner) Stop() {
	if v.cancel != nil {
		v.cancel()
	}
}

func (v *VURunner) run(ctx context.Context) {
	v.metrics.IncrementActiveVUs()
	defer v.metrics.DecrementActiveVUs()

	pause := time.NewTimer(0)
	defer pause.Stop()
	<-pause.C

	for ctx.Err() == nil {
		target := v.scheduler.SelectTarget()
		if target == nil {
			return
		}
		if err := v.scheduler.Acquire(ctx); err != nil {
			return
		}
		_ = v.executor(ctx, target)
		v.scheduler.Release()

		think := v.config.ThinkTime
		if target.Think > 0 {
			think = target.Think
		}
		if think <= 0 {
			continue
		}
		pause.Reset(think)
		select {
		case <-ctx.Done():
			return
		case <-pause.C:
		}
	}
}

// VUPool grows and shrinks a set of virtual users
type VUPool struct {
	scheduler *Scheduler
	config    *Config
	metrics   *Metrics
	executor  Executor

	mu      sync.Mutex
	runners []*VURunner
	stopped bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewVUPool creates an empty pool
func NewVUPool(scheduler *Scheduler, config *Config, metrics *Metrics, executor Executor) *VUPool {
	return &VUPool{
		scheduler: scheduler,
		config:    config,
		metrics:   metrics,
		executor:  executor,
	}
}

// Start launches the users due at time zero, at least one
func (p *VUPool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.Scale(max(p.scheduler.VUsAt(0), 1))
}

// Scale starts or stops users until n are running. The newest users are
// stopped first. It does nothing once the pool is stopped.
func (p *VUPool) Scale(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	n = max(n, 0)
	for len(p.runners) < n {
		r := NewVURunner(len(p.runners), p.scheduler, p.config, p.metrics, p.executor)
		r.Start(p.ctx, &p.wg)
		p.runners = append(p.runners, r)
	}
	for _, r := range p.runners[n:] {
		r.Stop()
	}
	p.runners = p.runners[:n]
}

// Stop stops every user
func (p *VUPool) Stop() {
	p.mu.Lock()
	for _, r := range p.runners {
		r.Stop()
	}
	p.runners = nil
	p.stopped = true
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until every started user has exited
func (p *VUPool) Wait() {
	p.wg.Wait()
}

// Count returns the number of running users
func (p *VUPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runners)
}
