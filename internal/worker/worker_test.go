package worker_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/longhornrumble/dealprep/internal/worker"
)

var fastRetry = worker.Options{
	Workers:           1,
	MaxRetries:        3,
	FailurePolicy:     worker.FailurePolicyPartialOutput,
	RequestTimeout:    time.Second,
	BackoffInitial:    time.Millisecond,
	BackoffMax:        2 * time.Millisecond,
	BackoffJitterFrac: 0,
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "status" }
func (e statusErr) Retryable() bool { return e.code == 429 || e.code >= 500 }

func TestProcessAll_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, _ string) (string, error) {
		if calls.Add(1) <= 2 {
			return "", worker.Transient(errors.New("try again"))
		}
		return "ok", nil
	}

	out, err := worker.ProcessAll(context.Background(), []string{"acme.org"}, fn, fastRetry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Err != nil || out[0].Output != "ok" {
		t.Fatalf("unexpected output: %#v", out)
	}
	if out[0].Attempts != 3 || calls.Load() != 3 {
		t.Fatalf("attempts=%d calls=%d, want 3", out[0].Attempts, calls.Load())
	}
}

func TestProcessAll_RetryableInterface(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCalls int32
	}{
		{name: "503 retried", err: statusErr{code: 503}, wantCalls: 4},
		{name: "404 not retried", err: statusErr{code: 404}, wantCalls: 1},
		{name: "plain error not retried", err: errors.New("permanent"), wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			fn := func(_ context.Context, _ string) (string, error) {
				calls.Add(1)
				return "", tt.err
			}
			out, err := worker.ProcessAll(context.Background(), []string{"x"}, fn, fastRetry)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out[0].Err == nil {
				t.Fatalf("expected error result")
			}
			if calls.Load() != tt.wantCalls {
				t.Fatalf("calls=%d want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestProcessAll_RespectsPerErrorRetryCap(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", &worker.LimitedTransientError{Err: errors.New("cancelled upstream"), ExtraRetries: 1}
	}

	opts := fastRetry
	opts.MaxRetries = 10
	out, err := worker.ProcessAll(context.Background(), []string{"acme.org"}, fn, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Err == nil {
		t.Fatalf("expected error output, got %#v", out[0])
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls (1 initial + 1 retry), got %d", calls.Load())
	}
}

func TestProcessAll_PanicBecomesFailure(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, site string) (string, error) {
		if site == "bad" {
			panic("boom")
		}
		return site, nil
	}
	out, err := worker.ProcessAll(context.Background(), []string{"bad", "good"}, fn, worker.Options{Workers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var pe *worker.PanicError
	if !errors.As(out[0].Err, &pe) {
		t.Fatalf("expected PanicError, got %v", out[0].Err)
	}
	if out[1].Err != nil || out[1].Output != "good" {
		t.Fatalf("unexpected out[1]: %#v", out[1])
	}
	if worker.Failed(out) != 1 {
		t.Fatalf("Failed=%d want 1", worker.Failed(out))
	}
}

func TestProcessAll_FailFastStops(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, site string) (string, error) {
		calls.Add(1)
		if site == "bad.org" {
			return "", errors.New("boom")
		}
		t.Errorf("unexpected call for %q", site)
		return "", nil
	}

	out, err := worker.ProcessAll(context.Background(), []string{"bad.org", "good.org"}, fn, worker.Options{
		Workers:       1,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output on fail-fast, got %#v", out)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestProcessAll_PartialOutputKeepsInputOrder(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(5-n) * time.Millisecond)
		if n == 2 {
			return 0, errors.New("boom")
		}
		return n * n, nil
	}

	out, err := worker.ProcessAll(context.Background(), []int{0, 1, 2, 3, 4}, fn, worker.Options{Workers: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range out {
		if r.Input != i || r.Index != i {
			t.Fatalf("out[%d] has input %d index %d", i, r.Input, r.Index)
		}
		if i == 2 {
			if r.Err == nil {
				t.Fatalf("expected error for item 2")
			}
			continue
		}
		if r.Err != nil || r.Output != i*i {
			t.Fatalf("unexpected out[%d]: %#v", i, r)
		}
	}
}

func TestProcessAllWithCallback_CompletesInCompletionOrder(t *testing.T) {
	t.Parallel()

	releaseSlow := make(chan struct{})
	startedSlow := make(chan struct{})

	fn := func(_ context.Context, site string) (string, error) {
		if site == "slow.org" {
			close(startedSlow)
			<-releaseSlow
		}
		return site, nil
	}

	var mu sync.Mutex
	var seen []string
	firstSeen := make(chan string, 1)
	doneErr := make(chan error, 1)
	go func() {
		_, err := worker.ProcessAllWithCallback(
			context.Background(),
			[]string{"slow.org", "fast.org"},
			fn,
			func(res worker.Result[string, string]) error {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, res.Input)
				if len(seen) == 1 {
					firstSeen <- res.Input
				}
				return nil
			},
			worker.Options{Workers: 2},
		)
		doneErr <- err
	}()

	select {
	case <-startedSlow:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for slow task to start")
	}
	select {
	case got := <-firstSeen:
		if got != "fast.org" {
			t.Fatalf("expected fast callback first, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first callback")
	}

	close(releaseSlow)
	select {
	case err := <-doneErr:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(seen, []string{"fast.org", "slow.org"}) {
		t.Fatalf("unexpected callback order: %v", seen)
	}
}

func TestProcessAllWithCallback_CallbackErrorStopsRun(t *testing.T) {
	t.Parallel()

	callbackErr := errors.New("callback failed")
	_, err := worker.ProcessAllWithCallback(
		context.Background(),
		[]string{"acme.org"},
		func(_ context.Context, site string) (string, error) {
			return site, nil
		},
		func(worker.Result[string, string]) error {
			return callbackErr
		},
		worker.Options{Workers: 1},
	)
	if !errors.Is(err, callbackErr) {
		t.Fatalf("expected callback error, got %v", err)
	}
}
