package logger

import (
	"errors"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/keybot/core/config"
)

func TestParseSampleRatio(t *testing.T) {
	cases := []struct {
		spec string
		want sampleRatio
		ok   bool
	}{
		{"1/10", sampleRatio{n: 1, d: 10}, true},
		{" 3 / 4 ", sampleRatio{n: 3, d: 4}, true},
		{"25", sampleRatio{n: 1, d: 25}, true},
		{"0", sampleRatio{}, true},
		{"0/9", sampleRatio{}, true},
		{"1/0", sampleRatio{}, false},
		{"-1/5", sampleRatio{}, false},
		{"often", sampleRatio{}, false},
	}
	for _, tc := range cases {
		got, ok := parseSampleRatio(tc.spec)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseSampleRatio(%q) = %+v, %v; want %+v, %v", tc.spec, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDebugSampleRatioDefaults(t *testing.T) {
	if got := debugSampleRatio(nil); got != defaultDebugSample {
		t.Fatalf("nil config: got %+v", got)
	}
	cfg := &coreconfig.Config{}
	cfg.Logging.DebugSample = "garbage"
	if got := debugSampleRatio(cfg); got != defaultDebugSample {
		t.Fatalf("unreadable spec: got %+v", got)
	}
	cfg.Logging.DebugSample = "0"
	if got := debugSampleRatio(cfg); got != (sampleRatio{}) {
		t.Fatalf("disabled spec: got %+v", got)
	}
}

func TestSamplerAllowsRatio(t *testing.T) {
	s := newSampler(sampleRatio{n: 2, d: 5})
	passed := 0
	for i := 0; i < 50; i++ {
		if s.allow() {
			passed++
		}
	}
	if passed != 20 {
		t.Fatalf("passed %d of 50, want 20", passed)
	}

	s.configure(sampleRatio{n: 9, d: 3})
	for i := 0; i < 6; i++ {
		if !s.allow() {
			t.Fatalf("numerator above denominator must pass everything")
		}
	}

	s.configure(sampleRatio{})
	for i := 0; i < 6; i++ {
		if !s.allow() {
			t.Fatalf("disabled sampler must pass everything")
		}
	}
}

func TestRoundMSAndSummaries(t *testing.T) {
	if got := RoundMS(-time.Second); got != 0 {
		t.Fatalf("negative duration: got %v", got)
	}
	if got := RoundMS(1500 * time.Microsecond); got != 2*time.Millisecond {
		t.Fatalf("round: got %v", got)
	}
	preview, cut := SummarizeStrings([]string{"a", "b", "c"}, 2)
	if preview != "a, b" || !cut {
		t.Fatalf("summary = %q, %v", preview, cut)
	}
	preview, cut = SummarizeStrings([]string{"a"}, 2)
	if preview != "a" || cut {
		t.Fatalf("summary = %q, %v", preview, cut)
	}
	if Status(nil) != "ok" || Status(errors.New("boom")) != "fail" {
		t.Fatalf("status mapping")
	}
}
