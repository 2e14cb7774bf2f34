package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cornersweep/internal/corner"
	"cornersweep/internal/simulator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeExecutor writes the result file for decks not listed in skip and
// tracks peak concurrency.
type fakeExecutor struct {
	skip    map[string]bool
	fail    map[string]bool
	delay   time.Duration
	active  atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
	invoked []simulator.Command
}

func (f *fakeExecutor) Execute(ctx context.Context, cmd simulator.Command) (*simulator.ExecutionResult, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.invoked = append(f.invoked, cmd)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return &simulator.ExecutionResult{Killed: true, KillReason: "cancelled"}, nil
		}
	}

	deck := cmd.Arguments[len(cmd.Arguments)-1]
	if f.fail[filepath.Base(deck)] {
		return nil, errors.New("spawn failed")
	}
	if f.skip[filepath.Base(deck)] {
		return &simulator.ExecutionResult{Success: true, ExitCode: 1}, nil
	}
	if err := os.WriteFile(deck+".csv", []byte("V(B),V(C)\n"), 0644); err != nil {
		return nil, err
	}
	return &simulator.ExecutionResult{Success: true}, nil
}

func makeJobs(t *testing.T, n int) []Job {
	t.Helper()
	dir := t.TempDir()
	jobs := make([]Job, n)
	for i := range jobs {
		deck := filepath.Join(dir, "dev"+string(rune('a'+i))+".spice")
		jobs[i] = Job{
			Item:       corner.WorkItem{Device: "dev", Corner: corner.Spec{Temperature: "25"}, Ordinal: i},
			DeckPath:   deck,
			ResultPath: deck + ".csv",
			LogPath:    deck + ".log",
		}
	}
	return jobs
}

func TestDispatchResolvesAll(t *testing.T) {
	exec := &fakeExecutor{}
	d := New(exec, Config{Binary: "sim", Arguments: []string{"-b", simulator.TokenDeck}, Workers: 3}, nil)
	jobs := makeJobs(t, 10)

	outcomes := d.Dispatch(context.Background(), jobs)

	require.Len(t, outcomes, len(jobs))
	for i, o := range outcomes {
		assert.True(t, o.Resolved, "job %d", i)
		assert.NoError(t, o.Err)
		assert.Equal(t, jobs[i], o.Job)
	}
	assert.Len(t, exec.invoked, len(jobs))
}

func TestDispatchRespectsWorkerLimit(t *testing.T) {
	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	d := New(exec, Config{Binary: "sim", Arguments: []string{simulator.TokenDeck}, Workers: 2}, nil)

	outcomes := d.Dispatch(context.Background(), makeJobs(t, 8))

	require.Len(t, outcomes, 8)
	assert.LessOrEqual(t, exec.peak.Load(), int32(2))
	assert.GreaterOrEqual(t, exec.peak.Load(), int32(1))
}

func TestDispatchFailuresDoNotAbort(t *testing.T) {
	jobs := makeJobs(t, 4)
	exec := &fakeExecutor{
		skip: map[string]bool{filepath.Base(jobs[1].DeckPath): true},
		fail: map[string]bool{filepath.Base(jobs[2].DeckPath): true},
	}
	d := New(exec, Config{Binary: "sim", Arguments: []string{simulator.TokenDeck}, Workers: 4}, nil)

	outcomes := d.Dispatch(context.Background(), jobs)

	assert.True(t, outcomes[0].Resolved)
	assert.False(t, outcomes[1].Resolved)
	assert.ErrorIs(t, outcomes[1].Err, ErrNoResult)
	assert.False(t, outcomes[2].Resolved)
	assert.EqualError(t, outcomes[2].Err, "spawn failed")
	assert.True(t, outcomes[3].Resolved)
}

func TestDispatchExpandsTokens(t *testing.T) {
	exec := &fakeExecutor{}
	d := New(exec, Config{
		Binary:    "Xyce",
		Arguments: []string{"-hspice-ext", "all", "-l", simulator.TokenLog, simulator.TokenDeck},
		Workers:   1,
		Timeout:   time.Minute,
	}, nil)
	jobs := makeJobs(t, 1)

	d.Dispatch(context.Background(), jobs)

	require.Len(t, exec.invoked, 1)
	cmd := exec.invoked[0]
	assert.Equal(t, "Xyce", cmd.Binary)
	assert.Equal(t, []string{"-hspice-ext", "all", "-l", jobs[0].LogPath, jobs[0].DeckPath}, cmd.Arguments)
	assert.Equal(t, time.Minute, cmd.Timeout)
}

func TestDispatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExecutor{}
	d := New(exec, Config{Binary: "sim", Arguments: []string{simulator.TokenDeck}, Workers: 2}, nil)
	outcomes := d.Dispatch(ctx, makeJobs(t, 3))

	for _, o := range outcomes {
		assert.False(t, o.Resolved)
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Empty(t, exec.invoked)
}

func TestDispatchEmpty(t *testing.T) {
	d := New(&fakeExecutor{}, Config{Binary: "sim"}, nil)
	assert.Empty(t, d.Dispatch(context.Background(), nil))
	assert.Equal(t, DefaultWorkers(), d.Workers())
}

func TestDispatchIgnoresStaleResult(t *testing.T) {
	jobs := makeJobs(t, 2)
	for _, j := range jobs {
		require.NoError(t, os.WriteFile(j.ResultPath, []byte("V(B),V(C)\n"), 0644))
	}
	exec := &fakeExecutor{skip: map[string]bool{filepath.Base(jobs[0].DeckPath): true}}
	d := New(exec, Config{Binary: "sim", Arguments: []string{simulator.TokenDeck}, Workers: 2}, nil)

	outcomes := d.Dispatch(context.Background(), jobs)

	assert.False(t, outcomes[0].Resolved)
	assert.ErrorIs(t, outcomes[0].Err, ErrNoResult)
	_, err := os.Stat(jobs[0].ResultPath)
	assert.True(t, os.IsNotExist(err))
	assert.True(t, outcomes[1].Resolved)
}
