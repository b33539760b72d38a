package merge

import "sync"

// SubRanges defines the percent bands the merge phases map onto.
type SubRanges struct {
	StagingStart float64
	StagingEnd   float64
	EncodeEnd    float64
}

// DefaultSubRanges maps staging onto 10-30 and encoding onto 30-90, leaving
// the tail for readback and the 100 pin.
func DefaultSubRanges() SubRanges {
	return SubRanges{StagingStart: 10, StagingEnd: 30, EncodeEnd: 90}
}

func (r SubRanges) normalized() SubRanges {
	if r.StagingStart < 0 {
		r.StagingStart = 0
	}
	if r.StagingEnd <= r.StagingStart {
		r.StagingEnd = r.StagingStart
	}
	if r.StagingEnd > 100 {
		r.StagingEnd = 100
	}
	if r.EncodeEnd <= r.StagingEnd {
		r.EncodeEnd = r.StagingEnd
	}
	if r.EncodeEnd > 100 {
		r.EncodeEnd = 100
	}
	return r
}

// Mapper converts phase-local progress into a monotonically non-decreasing
// displayed percent in [0,100] for a single job. Out-of-order engine
// fractions clamp to the last displayed value rather than regressing it.
type Mapper struct {
	mu      sync.Mutex
	ranges  SubRanges
	current float64
}

// NewMapper builds a mapper for one job.
func NewMapper(ranges SubRanges) *Mapper {
	return &Mapper{ranges: ranges.normalized()}
}

// Staging maps completion of staged input done out of total onto the staging
// band and returns the displayed percent.
func (m *Mapper) Staging(done, total int) float64 {
	if total <= 0 {
		return m.Current()
	}
	fraction := float64(done) / float64(total)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	value := m.ranges.StagingStart + fraction*(m.ranges.StagingEnd-m.ranges.StagingStart)
	return m.advance(value)
}

// Encoding maps an engine-reported fraction in [0,1] onto the encode band
// and returns the displayed percent.
func (m *Mapper) Encoding(fraction float64) float64 {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	value := m.ranges.StagingEnd + fraction*(m.ranges.EncodeEnd-m.ranges.StagingEnd)
	return m.advance(value)
}

// Complete pins the displayed value at 100. Called only after the output has
// been successfully read back.
func (m *Mapper) Complete() float64 {
	return m.advance(100)
}

// Current returns the last displayed percent.
func (m *Mapper) Current() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Mapper) advance(value float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value > m.current {
		m.current = value
	}
	return m.current
}
