package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func testOptions() Options {
	return Options{
		Workers:      4,
		QueueSize:    128,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		Retryable:    func(err error) bool { return errors.Is(err, errTransient) },
	}
}

func TestRunResumesAtFailedStep(t *testing.T) {
	d := NewDispatcher(testOptions())
	defer d.Close()

	calls := make([]int, 3)
	failures := 1
	steps := []Step{
		{Endpoint: "sendMessage", Run: func() error { calls[0]++; return nil }},
		{Endpoint: "sendMessage", Run: func() error {
			calls[1]++
			if failures > 0 {
				failures--
				return errTransient
			}
			return nil
		}},
		{Endpoint: "sendPhoto", Run: func() error { calls[2]++; return nil }},
	}

	rep := d.Run(context.Background(), d.NewJob(1, "reply", steps...))
	if rep.Err != nil {
		t.Fatalf("unexpected error: %v", rep.Err)
	}
	if rep.Sent != 3 || rep.Attempts != 4 {
		t.Fatalf("report = %+v, want 3 sent in 4 attempts", rep)
	}
	if calls[0] != 1 || calls[1] != 2 || calls[2] != 1 {
		t.Fatalf("calls = %v, delivered steps must not repeat", calls)
	}
}

func TestRunStopsOnPermanentFailure(t *testing.T) {
	d := NewDispatcher(testOptions())
	defer d.Close()

	permanent := errors.New("chat not found")
	third := false
	rep := d.Run(context.Background(), d.NewJob(1, "reply",
		Step{Run: func() error { return nil }},
		Step{Run: func() error { return permanent }},
		Step{Run: func() error { third = true; return nil }},
	))
	if !errors.Is(rep.Err, permanent) {
		t.Fatalf("err = %v, want %v", rep.Err, permanent)
	}
	if rep.Sent != 1 || rep.Attempts != 2 || third {
		t.Fatalf("report = %+v, third step ran = %v", rep, third)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d", d.ErrorCount())
	}
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	d := NewDispatcher(testOptions())
	defer d.Close()

	rep := d.Run(context.Background(), d.NewJob(1, "reply", Step{Run: func() error { return errTransient }}))
	if !errors.Is(rep.Err, errTransient) || rep.Attempts != 3 {
		t.Fatalf("report = %+v, want 3 attempts ending in the transient error", rep)
	}
}

func TestEnqueueKeepsChatOrder(t *testing.T) {
	d := NewDispatcher(testOptions())

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 40; i++ {
		chat := int64(i % 3)
		seq := i
		err := d.Enqueue(context.Background(), d.NewJob(chat, "reply", Step{Run: func() error {
			mu.Lock()
			got[chat] = append(got[chat], seq)
			mu.Unlock()
			return nil
		}}))
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	d.Close()

	for chat, seqs := range got {
		for i := 1; i < len(seqs); i++ {
			if seqs[i] < seqs[i-1] {
				t.Fatalf("chat %d delivered out of order: %v", chat, seqs)
			}
		}
	}
	total := len(got[0]) + len(got[1]) + len(got[2])
	if total != 40 {
		t.Fatalf("delivered %d jobs, want 40", total)
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(testOptions())
	d.Close()
	err := d.Enqueue(context.Background(), d.NewJob(1, "reply", Step{Run: func() error { return nil }}))
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestJobIDsIncrease(t *testing.T) {
	d := NewDispatcher(testOptions())
	defer d.Close()
	prev := d.NewJob(1, "a")
	for i := 0; i < 100; i++ {
		next := d.NewJob(1, "a")
		if next.ID.Compare(prev.ID) <= 0 {
			t.Fatalf("job id %s not after %s", next.ID, prev.ID)
		}
		prev = next
	}
}

func TestRetryableClassification(t *testing.T) {
	if Retryable(nil) || Retryable(errors.New("bad request (400)")) {
		t.Fatal("client errors must not be retried")
	}
	if !Retryable(errors.New("telegram: Too Many Requests (429)")) {
		t.Fatal("flood waits must be retried")
	}
	if !Retryable(errors.New("telegram: Bad Gateway (502)")) {
		t.Fatal("server errors must be retried")
	}
	if got := sanitizeErrorMessage(errors.New("post https://api.telegram.org/bot123:abc-DEF/sendMessage")); got != "post https://api.telegram.org/bot<redacted>/sendMessage" {
		t.Fatalf("token leaked: %s", got)
	}
}
