package pool

import (
	"context"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"wavebatch/internal/logging"
	"wavebatch/internal/task"
)

func specs(n int) []task.Spec {
	out := make([]task.Spec, n)
	for i := range out {
		out[i] = task.Spec{TaskID: strconv.Itoa(i)}
	}
	return out
}

func TestDispatchDeliversEveryResult(t *testing.T) {
	run := func(_ context.Context, spec task.Spec) task.Result {
		return task.Success(spec.TaskID, "/out/"+spec.TaskID+".dcm")
	}
	p := New(4, run, logging.NewNop())

	var ids []string
	for result := range p.Dispatch(context.Background(), specs(25)) {
		if result.Failed() {
			t.Fatalf("unexpected failure: %+v", result)
		}
		ids = append(ids, result.TaskID)
	}

	if len(ids) != 25 {
		t.Fatalf("got %d results, want 25", len(ids))
	}
	sort.Strings(ids)
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate result for %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestDispatchIsolatesPanics(t *testing.T) {
	run := func(_ context.Context, spec task.Spec) task.Result {
		if spec.TaskID == "3" {
			panic("index out of range")
		}
		return task.Success(spec.TaskID, "")
	}
	p := New(2, run, logging.NewNop())

	crashes := 0
	total := 0
	for result := range p.Dispatch(context.Background(), specs(10)) {
		total++
		if result.Kind == task.KindWorkerCrash {
			crashes++
			if result.TaskID != "3" {
				t.Fatalf("crash attributed to %s", result.TaskID)
			}
		}
	}
	if total != 10 {
		t.Fatalf("a panicking task must not lose results: got %d of 10", total)
	}
	if crashes != 1 {
		t.Fatalf("crashes = %d, want 1", crashes)
	}
}

func TestDispatchHonorsConcurrencyLimit(t *testing.T) {
	var active, peak atomic.Int32
	run := func(_ context.Context, spec task.Spec) task.Result {
		now := active.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return task.Success(spec.TaskID, "")
	}
	p := New(3, run, logging.NewNop())

	for range p.Dispatch(context.Background(), specs(12)) {
	}
	if got := peak.Load(); got > 3 {
		t.Fatalf("peak concurrency %d exceeds 3 workers", got)
	}
}

func TestDispatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	run := func(ctx context.Context, spec task.Spec) task.Result {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return task.WorkerCrash(spec.TaskID, ctx.Err())
	}
	p := New(1, run, logging.NewNop())

	results := p.Dispatch(ctx, specs(50))
	<-started
	cancel()

	count := 0
	for range results {
		count++
	}
	if count >= 50 {
		t.Fatalf("cancel should stop feeding tasks, saw %d results", count)
	}
}

func TestNewClampsWorkerCount(t *testing.T) {
	if p := New(0, nil, logging.NewNop()); p.Workers() != 1 {
		t.Fatalf("workers = %d, want clamp to 1", p.Workers())
	}
	if p := New(-5, nil, logging.NewNop()); p.Workers() != 1 {
		t.Fatalf("workers = %d, want clamp to 1", p.Workers())
	}
}
