package series

import (
	"sort"
	"sync"
	"time"
)

// Buffer is the ordered, bounded price series the rest of the system reads.
// It owns its points exclusively: writers get the Observe/Append/Seed API,
// readers get copy-on-read snapshots, and every path runs under one mutex so
// a concurrent reader sees either the pre- or post-append state.
//
// Coalescing policy: a real point arriving within the coalescing interval of
// the newest real point updates that point in place (last price wins, time
// advances). High-frequency swaps amortize into fixed-cadence samples, so
// "one swap == one point" deliberately does not hold.
type Buffer struct {
	mu        sync.Mutex
	points    []Point
	mode      BoundingMode
	window    time.Duration
	maxPoints int
	coalesce  time.Duration
	now       func() time.Time

	hasPrice  bool
	lastPrice float64
}

// Options configures a Buffer. Window applies in BoundByWindow mode,
// MaxPoints in BoundByCount mode; the unused one is ignored. Coalesce 0
// disables in-place updates, making every append a distinct point. Now is
// an injectable clock for tests and defaults to time.Now.
type Options struct {
	Mode      BoundingMode
	Window    time.Duration
	MaxPoints int
	Coalesce  time.Duration
	Now       func() time.Time
}

func New(opts Options) *Buffer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Buffer{
		mode:      opts.Mode,
		window:    opts.Window,
		maxPoints: opts.MaxPoints,
		coalesce:  opts.Coalesce,
		now:       now,
	}
}

// Observe records a live price: it becomes the current price and is appended
// as a real point stamped with the buffer's clock.
func (b *Buffer) Observe(price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasPrice = true
	b.lastPrice = price
	b.insert(Point{Time: b.now().UnixMilli(), Price: price}, true)
	b.evict()
}

// Append inserts one point, keeping the series non-decreasing in time.
// Unlike Observe it does not touch the current price.
func (b *Buffer) Append(p Point) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insert(p, true)
	b.evict()
}

// Seed merges already-finalized historical points into the series by time.
// Coalescing is skipped: backfilled observations are distinct samples, and
// merging by time (rather than replacing wholesale) means a seed that lands
// after live appends have begun cannot clobber newer data.
func (b *Buffer) Seed(points []Point) {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range sorted {
		b.insert(p, false)
	}
	b.evict()
}

// Snapshot returns an ordered copy of the current points. The caller owns
// the slice; internal storage is never exposed.
func (b *Buffer) Snapshot() []Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Point, len(b.points))
	copy(out, b.points)
	return out
}

// CurrentPrice returns the most recent live price. The second return is
// false until the first Observe.
func (b *Buffer) CurrentPrice() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPrice, b.hasPrice
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.points)
}

// Evict applies the bounding policy. Called internally on every mutation and
// externally by the periodic maintenance tick, so a quiet feed still ages
// points out of a window-bounded buffer.
func (b *Buffer) Evict() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evict()
}

// FillGaps appends explicit placeholder points at the cadence spacing
// between the newest point and now, giving the rendered series a regular
// time axis during gaps. No-op on an empty buffer: there is nothing to
// anchor the cadence to.
func (b *Buffer) FillGaps(cadence time.Duration) {
	if cadence <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.points) == 0 {
		return
	}
	nowMs := b.now().UnixMilli()
	step := cadence.Milliseconds()
	for t := b.points[len(b.points)-1].Time + step; t <= nowMs; t += step {
		b.points = append(b.points, Point{Time: t, Placeholder: true})
	}
	b.evict()
}

// insert places p at its sorted position. Callers hold b.mu.
func (b *Buffer) insert(p Point, allowCoalesce bool) {
	n := len(b.points)

	if allowCoalesce && b.coalesce > 0 && !p.Placeholder && n > 0 {
		last := &b.points[n-1]
		if !last.Placeholder && p.Time >= last.Time &&
			p.Time-last.Time <= b.coalesce.Milliseconds() {
			last.Price = p.Price
			last.Time = p.Time
			return
		}
	}

	// Late arrivals are rare; walk back from the tail to the sorted slot.
	// Ties go after existing points, preserving delivery order.
	i := n
	for i > 0 && b.points[i-1].Time > p.Time {
		i--
	}
	b.points = append(b.points, Point{})
	copy(b.points[i+1:], b.points[i:])
	b.points[i] = p
}

// evict applies the bounding policy. Callers hold b.mu.
func (b *Buffer) evict() {
	switch b.mode {
	case BoundByWindow:
		if b.window <= 0 {
			return
		}
		cutoff := b.now().Add(-b.window).UnixMilli()
		i := 0
		for i < len(b.points) && b.points[i].Time < cutoff {
			i++
		}
		if i > 0 {
			b.points = append(b.points[:0], b.points[i:]...)
		}
	case BoundByCount:
		if b.maxPoints > 0 && len(b.points) > b.maxPoints {
			b.points = append(b.points[:0], b.points[len(b.points)-b.maxPoints:]...)
		}
	}
}
