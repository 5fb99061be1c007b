package logger

import (
	"strconv"
	"strings"
	"sync/atomic"

	coreconfig "github.com/m3rciful/keybot/core/config"
)

// sampleRatio lets n of every d events through. The zero value disables sampling.
type sampleRatio struct {
	n, d uint64
}

var defaultDebugSample = sampleRatio{n: 1, d: 50}

// sampler gates high-volume debug events. It is safe for concurrent use.
type sampler struct {
	ratio atomic.Pointer[sampleRatio]
	seen  atomic.Uint64
}

func newSampler(r sampleRatio) *sampler {
	s := &sampler{}
	s.configure(r)
	return s
}

func (s *sampler) configure(r sampleRatio) {
	if r.n > r.d {
		r.n = r.d
	}
	s.ratio.Store(&r)
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	r := s.ratio.Load()
	if r == nil || r.n == 0 {
		return true
	}
	return (s.seen.Add(1)-1)%r.d < r.n
}

// parseSampleRatio reads "n/d" or a bare "d" meaning 1/d. "0" turns sampling off.
func parseSampleRatio(spec string) (sampleRatio, bool) {
	spec = strings.TrimSpace(spec)
	if num, den, found := strings.Cut(spec, "/"); found {
		n, err := strconv.ParseUint(strings.TrimSpace(num), 10, 32)
		if err != nil {
			return sampleRatio{}, false
		}
		d, err := strconv.ParseUint(strings.TrimSpace(den), 10, 32)
		if err != nil || d == 0 {
			return sampleRatio{}, false
		}
		if n == 0 {
			return sampleRatio{}, true
		}
		return sampleRatio{n: n, d: d}, true
	}
	d, err := strconv.ParseUint(spec, 10, 32)
	if err != nil {
		return sampleRatio{}, false
	}
	if d == 0 {
		return sampleRatio{}, true
	}
	return sampleRatio{n: 1, d: d}, true
}

// debugSampleRatio falls back to the default ratio when logging.debug_sample is unset or unreadable.
func debugSampleRatio(cfg *coreconfig.Config) sampleRatio {
	if cfg == nil || strings.TrimSpace(cfg.Logging.DebugSample) == "" {
		return defaultDebugSample
	}
	r, ok := parseSampleRatio(cfg.Logging.DebugSample)
	if !ok {
		return defaultDebugSample
	}
	return r
}

// ShouldSampleDebug reports whether debug-level details should be logged for high-volume events.
func ShouldSampleDebug() bool {
	if traceOverride {
		return true
	}
	return debugSampler.allow()
}
