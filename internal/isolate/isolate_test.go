package isolate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wavebatch/internal/task"
)

// fakeExecutor scripts the child process behavior.
type fakeExecutor struct {
	run func(ctx context.Context, stdin []byte) ([]byte, error)
}

func (f fakeExecutor) Run(ctx context.Context, stdin []byte) ([]byte, error) {
	return f.run(ctx, stdin)
}

func resultExecutor(t *testing.T, result task.Result) Executor {
	t.Helper()
	return fakeExecutor{run: func(_ context.Context, stdin []byte) ([]byte, error) {
		var spec task.Spec
		if err := json.Unmarshal(stdin, &spec); err != nil {
			t.Errorf("child received bad spec: %v", err)
		}
		return json.Marshal(result)
	}}
}

func TestRunPassesThroughChildResult(t *testing.T) {
	want := task.ValidationFailure("1001", "no waveform data")
	sup, err := New(time.Minute, WithExecutor(resultExecutor(t, want)))
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	got := sup.Run(context.Background(), task.Spec{TaskID: "1001"})
	if got != want {
		t.Fatalf("result = %+v, want %+v", got, want)
	}
}

func TestRunKillsHangingChildAtDeadline(t *testing.T) {
	hang := fakeExecutor{run: func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	sup, err := New(50*time.Millisecond, WithExecutor(hang))
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	started := time.Now()
	result := sup.Run(context.Background(), task.Spec{TaskID: "slow"})
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("deadline not enforced, took %s", elapsed)
	}
	if result.Kind != task.KindTimeout {
		t.Fatalf("kind = %q, want %q (%+v)", result.Kind, task.KindTimeout, result)
	}
	if result.Error != "Timeout>0s" {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestRunClassifiesParentCancelAsCrash(t *testing.T) {
	hang := fakeExecutor{run: func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	sup, err := New(time.Minute, WithExecutor(hang))
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := sup.Run(ctx, task.Spec{TaskID: "cancelled"})
	if result.Kind != task.KindWorkerCrash {
		t.Fatalf("kind = %q, want %q", result.Kind, task.KindWorkerCrash)
	}
}

func TestRunClassifiesChildDeathAsCrash(t *testing.T) {
	dead := fakeExecutor{run: func(context.Context, []byte) ([]byte, error) {
		return nil, errors.New("exit status 137")
	}}
	sup, err := New(time.Minute, WithExecutor(dead))
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	result := sup.Run(context.Background(), task.Spec{TaskID: "oom"})
	if result.Kind != task.KindWorkerCrash {
		t.Fatalf("kind = %q, want %q", result.Kind, task.KindWorkerCrash)
	}
}

func TestRunRejectsGarbageStdout(t *testing.T) {
	garbage := fakeExecutor{run: func(context.Context, []byte) ([]byte, error) {
		return []byte("segfault noise"), nil
	}}
	sup, err := New(time.Minute, WithExecutor(garbage))
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	result := sup.Run(context.Background(), task.Spec{TaskID: "noisy"})
	if result.Kind != task.KindWorkerCrash {
		t.Fatalf("kind = %q, want %q", result.Kind, task.KindWorkerCrash)
	}
	if result.TaskID != "noisy" {
		t.Fatalf("task id %q should be filled in by the parent", result.TaskID)
	}
}

func TestRunFillsMissingTaskID(t *testing.T) {
	blank := fakeExecutor{run: func(context.Context, []byte) ([]byte, error) {
		return json.Marshal(task.Result{OutputPath: "/out/a.dcm"})
	}}
	sup, err := New(time.Minute, WithExecutor(blank))
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	result := sup.Run(context.Background(), task.Spec{TaskID: "a"})
	if result.TaskID != "a" || result.Failed() {
		t.Fatalf("result = %+v", result)
	}
}
