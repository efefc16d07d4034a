package strategy

import (
	"sync"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// DefaultMomentumWindow is the number of ticks kept per symbol.
const DefaultMomentumWindow = 20

// ring is a fixed-capacity FIFO of float64 samples.
type ring struct {
	buf  []float64
	head int // index of the oldest sample
	n    int
}

func newRing(size int) *ring { return &ring{buf: make([]float64, size)} }

func (r *ring) push(v float64) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) oldest() float64 { return r.buf[r.head] }
func (r *ring) newest() float64 { return r.buf[(r.head+r.n-1)%len(r.buf)] }

func (r *ring) mean() float64 {
	if r.n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.n; i++ {
		sum += r.buf[(r.head+i)%len(r.buf)]
	}
	return sum / float64(r.n)
}

// MomentumTracker keeps the last N prices (and per-tick volumes) per symbol
// and derives percentage momentum from them. It is safe for concurrent use and is
// the canonical source for the latest exchange price.
type MomentumTracker struct {
	window  int
	prices  map[string]*ring
	volumes map[string]*ring
	lastVol map[string]float64
	mu      sync.RWMutex
}

// NewMomentumTracker creates a tracker with the given window; values below 2
// fall back to DefaultMomentumWindow.
func NewMomentumTracker(window int) *MomentumTracker {
	if window < 2 {
		window = DefaultMomentumWindow
	}
	return &MomentumTracker{
		window:  window,
		prices:  make(map[string]*ring),
		volumes: make(map[string]*ring),
		lastVol: make(map[string]float64),
	}
}

// Record appends a price, evicting the oldest sample when the window is full.
func (t *MomentumTracker) Record(symbol string, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bufFor(t.prices, symbol).push(price)
}

// Observe records the price of a ticker update and the volume traded since
// the previous one. obs.Volume is a rolling exchange-window total, so the
// per-tick figure is its increase, floored at zero when old trades roll off.
func (t *MomentumTracker) Observe(obs domain.PriceObservation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bufFor(t.prices, obs.Symbol).push(obs.Price)
	if prev, ok := t.lastVol[obs.Symbol]; ok {
		t.bufFor(t.volumes, obs.Symbol).push(max(obs.Volume-prev, 0))
	}
	t.lastVol[obs.Symbol] = obs.Volume
}

// Momentum returns (newest - oldest) / oldest * 100 over the window. It is 0
// with fewer than two samples or a zero oldest sample.
func (t *MomentumTracker) Momentum(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.prices[symbol]
	if !ok || r.n < 2 {
		return 0
	}
	oldest := r.oldest()
	if oldest == 0 {
		return 0
	}
	return (r.newest() - oldest) / oldest * 100
}

// Latest returns the most recent price for symbol.
func (t *MomentumTracker) Latest(symbol string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.prices[symbol]
	if !ok || r.n == 0 {
		return 0, false
	}
	return r.newest(), true
}

// VolumeRatio compares the newest per-tick volume with the mean over the
// tracked window. It returns 0 until at least two deltas are known.
func (t *MomentumTracker) VolumeRatio(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.volumes[symbol]
	if !ok || r.n < 2 {
		return 0
	}
	avg := r.mean()
	if avg <= 0 {
		return 0
	}
	return r.newest() / avg
}

// bufFor must be called with t.mu held for writing.
func (t *MomentumTracker) bufFor(m map[string]*ring, symbol string) *ring {
	r, ok := m[symbol]
	if !ok {
		r = newRing(t.window)
		m[symbol] = r
	}
	return r
}
