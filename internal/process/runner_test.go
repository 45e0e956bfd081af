package process

import (
	"context"
	"testing"
	"time"

	"github.com/texforge/texforge/pkg/logger"
)

func TestRun_RejectsNonAllowlistedCommand(t *testing.T) {
	r := NewRunner(logger.New())
	_, err := r.Run(context.Background(), []string{"/bin/true"}, nil, "", nil, time.Second, map[string]bool{"/bin/false": true})
	if err == nil {
		t.Fatal("expected an error for a command outside the allow-list")
	}
}

func TestRun_RejectsMissingExecutable(t *testing.T) {
	r := NewRunner(logger.New())
	argv := []string{"/bin/does-not-exist-texforge"}
	_, err := r.Run(context.Background(), argv, nil, "", nil, time.Second, map[string]bool{argv[0]: true})
	if err == nil {
		t.Fatal("expected an error for a missing executable")
	}
}

func TestRun_SuccessCapturesZeroExitCode(t *testing.T) {
	r := NewRunner(logger.New())
	argv := []string{"/bin/true"}
	res, err := r.Run(context.Background(), argv, nil, "", nil, 5*time.Second, map[string]bool{argv[0]: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
	if res.TimedOut || res.Cancelled {
		t.Fatal("expected neither TimedOut nor Cancelled for a clean run")
	}
}

func TestRun_FailureCapturesNonZeroExitCode(t *testing.T) {
	r := NewRunner(logger.New())
	argv := []string{"/bin/false"}
	res, err := r.Run(context.Background(), argv, nil, "", nil, 5*time.Second, map[string]bool{argv[0]: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode == 0 {
		t.Fatal("expected a non-zero exit code from /bin/false")
	}
}

func TestRun_TimeoutSetsTimedOutFlag(t *testing.T) {
	r := NewRunner(logger.New())
	argv := []string{"/bin/sleep", "5"}
	start := time.Now()
	res, err := r.Run(context.Background(), argv, nil, "", nil, 200*time.Millisecond, map[string]bool{argv[0]: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut to be set")
	}
	if elapsed := time.Since(start); elapsed > KillGracePeriod+3*time.Second {
		t.Fatalf("expected escalation to reap the process well before a second grace period, took %s", elapsed)
	}
}

func TestRun_ContextCancellationSetsCancelledFlag(t *testing.T) {
	r := NewRunner(logger.New())
	ctx, cancel := context.WithCancel(context.Background())
	argv := []string{"/bin/sleep", "5"}

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := r.Run(ctx, argv, nil, "", nil, 10*time.Second, map[string]bool{argv[0]: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Cancelled {
		t.Fatal("expected Cancelled to be set")
	}
}
