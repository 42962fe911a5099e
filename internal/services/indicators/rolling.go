package indicators

import "math"

// ringSum keeps the running sum of the last n pushed values with Neumaier
// compensation. A window holding one repeated value yields exactly that value.
type ringSum struct {
	buf   []float64
	next  int
	count int
	sum   float64
	comp  float64
	run   int // trailing pushes equal to the last value
}

func newRingSum(n int) ringSum {
	if n < 1 {
		n = 1
	}
	return ringSum{buf: make([]float64, n)}
}

func (r *ringSum) push(v float64) {
	if r.count > 0 && r.last() == v {
		r.run++
	} else {
		r.run = 1
	}
	if r.count == len(r.buf) {
		r.add(-r.buf[r.next])
	} else {
		r.count++
	}
	r.buf[r.next] = v
	r.add(v)
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
	}
}

func (r *ringSum) add(x float64) {
	t := r.sum + x
	if math.Abs(r.sum) >= math.Abs(x) {
		r.comp += (r.sum - t) + x
	} else {
		r.comp += (x - t) + r.sum
	}
	r.sum = t
}

func (r *ringSum) last() float64 {
	i := r.next - 1
	if i < 0 {
		i = len(r.buf) - 1
	}
	return r.buf[i]
}

func (r *ringSum) full() bool { return r.count == len(r.buf) }

func (r *ringSum) mean() float64 {
	if r.count == 0 {
		return 0
	}
	if r.run >= r.count {
		return r.last()
	}
	return (r.sum + r.comp) / float64(r.count)
}

// rollingMax tracks the maximum of the last `window` pushed values
// with a monotonic deque (amortized O(1) per push).
type rollingMax struct {
	window int
	seen   int
	head   int
	idx    []int
	vals   []float64
}

func newRollingMax(window int) rollingMax {
	if window < 1 {
		window = 1
	}
	return rollingMax{
		window: window,
		idx:    make([]int, 0, window+1),
		vals:   make([]float64, 0, window+1),
	}
}

func (m *rollingMax) push(v float64) {
	pos := m.seen
	m.seen++

	for len(m.vals) > m.head && m.vals[len(m.vals)-1] <= v {
		m.vals = m.vals[:len(m.vals)-1]
		m.idx = m.idx[:len(m.idx)-1]
	}
	m.vals = append(m.vals, v)
	m.idx = append(m.idx, pos)

	for m.idx[m.head] <= pos-m.window {
		m.head++
	}

	// compact consumed prefix
	if m.head > m.window {
		n := copy(m.vals, m.vals[m.head:])
		copy(m.idx, m.idx[m.head:])
		m.vals = m.vals[:n]
		m.idx = m.idx[:n]
		m.head = 0
	}
}

func (m *rollingMax) full() bool { return m.seen >= m.window }

func (m *rollingMax) max() float64 {
	if len(m.vals) == m.head {
		return 0
	}
	return m.vals[m.head]
}
