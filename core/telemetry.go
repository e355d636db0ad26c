package core

import (
	"sort"
	"sync"

	"github.com/edaniels/golog"
)

// Telemetry receives named numeric values once per control cycle.
type Telemetry interface {
	PutNumber(key string, value float64)
}

// NopTelemetry discards everything.
type NopTelemetry struct{}

func (NopTelemetry) PutNumber(string, float64) {}

// LogTelemetry writes values to a logger at debug level.
type LogTelemetry struct {
	Logger golog.Logger
}

func (t LogTelemetry) PutNumber(key string, value float64) {
	t.Logger.Debugw("telemetry", "key", key, "value", value)
}

// Sample is one recorded telemetry value.
type Sample struct {
	Time  float64
	Value float64
}

// Recorder keeps every value it receives, stamped with the clock time, and
// optionally forwards to another sink.
type Recorder struct {
	mu      sync.Mutex
	clock   Clock
	next    Telemetry
	series  map[string][]Sample
	maxSize int
}

// NewRecorder creates a recorder. maxSize bounds each series (0 = unbounded);
// once full the oldest samples are dropped.
func NewRecorder(clock Clock, maxSize int, next Telemetry) *Recorder {
	if next == nil {
		next = NopTelemetry{}
	}
	return &Recorder{
		clock:   clock,
		next:    next,
		series:  make(map[string][]Sample),
		maxSize: maxSize,
	}
}

func (r *Recorder) PutNumber(key string, value float64) {
	r.mu.Lock()
	s := append(r.series[key], Sample{Time: r.clock.Now(), Value: value})
	if r.maxSize > 0 && len(s) > r.maxSize {
		s = s[len(s)-r.maxSize:]
	}
	r.series[key] = s
	r.mu.Unlock()
	r.next.PutNumber(key, value)
}

// Series returns a copy of the samples recorded for key.
func (r *Recorder) Series(key string) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.series[key]))
	copy(out, r.series[key])
	return out
}

// Last returns the most recent value for key.
func (r *Recorder) Last(key string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.series[key]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Value, true
}

// Keys lists recorded keys in sorted order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
