// Package profiler tracks frame rate, per-phase frame timings and memory use.
package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/zeusync/zengine/internal/core/observability/log"
)

// Phase names one step of a frame.
type Phase string

const (
	PhaseInput    Phase = "input"
	PhaseDispatch Phase = "dispatch"
	PhaseJoin     Phase = "join"
	PhaseCommit   Phase = "commit"
	PhaseRender   Phase = "render"
)

// Snapshot is the report emitted once per interval.
type Snapshot struct {
	At          time.Time               `json:"at"`
	Frame       uint64                  `json:"frame"`
	FPS         float64                 `json:"fps"`
	Phases      map[Phase]time.Duration `json:"phases"`
	Faults      uint64                  `json:"faults"`
	HeapMB      float64                 `json:"heap_mb"`
	AllocRateMB float64                 `json:"alloc_rate_mb"`
	GCCount     uint32                  `json:"gc_count"`
}

// Profiler is fed by the frame loop. Phase timings are averaged over the
// frames of one reporting interval.
type Profiler struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	logger   log.Log

	frame      uint64
	frameCount int
	lastTime   time.Time
	phases     map[Phase]time.Duration
	faults     uint64

	memStats       runtime.MemStats
	lastTotalAlloc uint64
	readMem        bool

	last     Snapshot
	onReport []func(Snapshot)
}

type Option func(*Profiler)

// WithInterval sets the reporting interval. The default is one second.
func WithInterval(d time.Duration) Option {
	return func(p *Profiler) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithLogger(l log.Log) Option {
	return func(p *Profiler) { p.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Profiler) { p.now = now }
}

// WithMemStats enables reading runtime memory statistics on every report.
func WithMemStats(enabled bool) Option {
	return func(p *Profiler) { p.readMem = enabled }
}

func New(options ...Option) *Profiler {
	p := &Profiler{
		interval: time.Second,
		now:      time.Now,
		logger:   log.Provide(),
		phases:   make(map[Phase]time.Duration),
		readMem:  true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// OnReport registers a callback fired with every snapshot, on the goroutine
// that ended the frame.
func (p *Profiler) OnReport(fn func(Snapshot)) {
	p.mu.Lock()
	p.onReport = append(p.onReport, fn)
	p.mu.Unlock()
}

// Record adds d to phase for the current frame.
func (p *Profiler) Record(phase Phase, d time.Duration) {
	p.mu.Lock()
	p.phases[phase] += d
	p.mu.Unlock()
}

// Track starts timing phase; call the returned func when the phase ends.
func (p *Profiler) Track(phase Phase) func() {
	start := p.now()
	return func() { p.Record(phase, p.now().Sub(start)) }
}

// Fault counts a screen whose update join failed.
func (p *Profiler) Fault() {
	p.mu.Lock()
	p.faults++
	p.mu.Unlock()
}

// EndFrame closes frame number and reports once the interval has elapsed.
func (p *Profiler) EndFrame(number uint64) (Snapshot, bool) {
	p.mu.Lock()
	p.frame = number
	p.frameCount++
	now := p.now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.interval {
		p.mu.Unlock()
		return Snapshot{}, false
	}

	snap := Snapshot{
		At:     now,
		Frame:  p.frame,
		FPS:    float64(p.frameCount) / elapsed.Seconds(),
		Phases: make(map[Phase]time.Duration, len(p.phases)),
		Faults: p.faults,
	}
	for phase, total := range p.phases {
		snap.Phases[phase] = total / time.Duration(p.frameCount)
	}
	if p.readMem {
		runtime.ReadMemStats(&p.memStats)
		snap.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
		snap.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
		snap.GCCount = p.memStats.NumGC
		p.lastTotalAlloc = p.memStats.TotalAlloc
	}

	p.frameCount = 0
	p.lastTime = now
	p.phases = make(map[Phase]time.Duration, len(snap.Phases))
	p.last = snap
	listeners := append(([]func(Snapshot))(nil), p.onReport...)
	p.mu.Unlock()

	p.logger.Debug("frame stats",
		log.Uint64("frame", snap.Frame),
		log.Float64("fps", snap.FPS),
		log.Float64("heap_mb", snap.HeapMB),
		log.Uint64("faults", snap.Faults),
	)
	for _, fn := range listeners {
		fn(snap)
	}
	return snap, true
}

// Last returns the most recent snapshot.
func (p *Profiler) Last() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
