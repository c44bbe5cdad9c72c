package metrics

import "sync/atomic"

// MetricID identifies one counter. IDs are dense and index directly into
// the counter array.
type MetricID uint16

const (
	LoginSuccess MetricID = iota
	LoginFailure
	LoginLocked
	RegisterSuccess
	RegisterDuplicate
	RefreshSuccess
	RefreshFailure
	ValidateSuccess
	ValidateFailure
	PasswordChangeSuccess
	PasswordChangeInvalidOld
	ResetRequest
	ResetConfirmSuccess
	ResetConfirmFailure
	Logout
	StaleTokenRejected
	metricIDCount
)

const cacheLineSize = 64

// paddedCounter keeps each counter on its own cache line so hot counters
// incremented from different goroutines do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls whether counters record at all. A disabled Metrics is
// a cheap no-op.
type Config struct {
	Enabled bool
}

// Metrics is a fixed set of atomic counters. All methods are safe for
// concurrent use and tolerate a nil receiver.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Counters map[MetricID]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{Counters: map[MetricID]uint64{}}
	}

	s := Snapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	return s
}
