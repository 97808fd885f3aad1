package reporter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
)

// recordingSink keeps every snapshot it is handed.
type recordingSink struct {
	snaps []Snapshot
	err   error
}

func (s *recordingSink) Write(snap Snapshot) error {
	mustValidate(snap)
	s.snaps = append(s.snaps, snap)
	return s.err
}

func (s *recordingSink) last() Snapshot { return s.snaps[len(s.snaps)-1] }

// countingRecorder implements metrics.Recorder for assertions.
type countingRecorder struct {
	statuses []string
	outcomes map[string]int
	cycles   []time.Duration
	writes   int
	failed   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[string]int{}}
}

func (c *countingRecorder) SetDaemonStatus(s string)                        { c.statuses = append(c.statuses, s) }
func (c *countingRecorder) IncRepoOutcome(o string)                         { c.outcomes[o]++ }
func (c *countingRecorder) ObserveCycleDuration(d time.Duration)            { c.cycles = append(c.cycles, d) }
func (c *countingRecorder) ObserveRepoDuration(string, time.Duration, bool) {}
func (c *countingRecorder) ObserveDiffSize(string, int)                     {}
func (c *countingRecorder) ObserveSinkWrite(_ time.Duration, ok bool) {
	c.writes++
	if !ok {
		c.failed++
	}
}

func newTestReporter(t *testing.T) (*Reporter, *recordingSink, *clockwork.FakeClock) {
	t.Helper()
	sink := &recordingSink{}
	clock := clockwork.NewFakeClock()
	r, err := New(sink, WithClock(clock))
	require.NoError(t, err)
	return r, sink, clock
}

func TestNewPublishesStarting(t *testing.T) {
	r, sink, _ := newTestReporter(t)

	require.Len(t, sink.snaps, 1)
	snap := sink.last()
	assert.Equal(t, StatusStarting, snap.Status)
	assert.Nil(t, snap.CurrentRepo)
	assert.NotNil(t, snap.Repos)
	assert.Empty(t, snap.Repos)
	assert.Nil(t, snap.Statistics.CurrentCycleTime)
	assert.Nil(t, snap.Statistics.LastCycleTime)
	assert.Equal(t, StatusStarting, r.Status())
}

func TestNewPanicsWithoutSink(t *testing.T) {
	assert.Panics(t, func() { _, _ = New(nil) })
}

func TestNewReturnsUsableReporterOnWriteFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	r, err := New(sink, WithClock(clockwork.NewFakeClock()))
	require.Error(t, err)
	require.NotNil(t, r)

	sink.err = nil
	require.NoError(t, r.FinishSleep())
	assert.Equal(t, StatusIdle, sink.last().Status)
}

func TestStartAndFinishRepo(t *testing.T) {
	r, sink, _ := newTestReporter(t)
	require.NoError(t, r.FinishSleep())

	require.NoError(t, r.StartRepo("r1", "Repo One"))
	snap := sink.last()
	assert.Equal(t, StatusUpdating, snap.Status)
	require.NotNil(t, snap.CurrentRepo)
	assert.Equal(t, RepoOutcome{Name: "r1", HumanName: "Repo One", Status: RepoUpdating}, *snap.CurrentRepo)
	assert.Empty(t, snap.Repos)

	require.NoError(t, r.FinishRepo())
	snap = sink.last()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.CurrentRepo)
	assert.Equal(t, []RepoOutcome{{Name: "r1", HumanName: "Repo One", Status: RepoOK}}, snap.Repos)
}

func TestFailRepoKeepsDaemonUpdating(t *testing.T) {
	r, sink, _ := newTestReporter(t)
	require.NoError(t, r.FinishSleep())
	require.NoError(t, r.StartRepo("r1", "Repo One"))

	require.NoError(t, r.FailRepo())
	snap := sink.last()
	// A failed repository leaves the daemon updating; a successful one
	// leaves it idle.
	assert.Equal(t, StatusUpdating, snap.Status)
	assert.Nil(t, snap.CurrentRepo)
	assert.Equal(t, []RepoOutcome{{Name: "r1", HumanName: "Repo One", Status: RepoFailed}}, snap.Repos)
}

func TestRepoHistoryIsAppendOnly(t *testing.T) {
	r, sink, _ := newTestReporter(t)
	require.NoError(t, r.FinishSleep())

	steps := []struct {
		name string
		ok   bool
	}{{"a", true}, {"b", false}, {"c", true}}
	prev := []RepoOutcome{}
	for _, step := range steps {
		require.NoError(t, r.StartRepo(step.name, step.name))
		if step.ok {
			require.NoError(t, r.FinishRepo())
		} else {
			require.NoError(t, r.FailRepo())
		}
		repos := sink.last().Repos
		require.Len(t, repos, len(prev)+1)
		assert.Equal(t, prev, repos[:len(prev)], "earlier entries never change")
		prev = repos
	}
	assert.Equal(t, []RepoStatus{RepoOK, RepoFailed, RepoOK},
		[]RepoStatus{prev[0].Status, prev[1].Status, prev[2].Status})
}

func TestRepoPreconditionsPanic(t *testing.T) {
	r, _, _ := newTestReporter(t)

	assert.Panics(t, func() { _ = r.FinishRepo() }, "finish without start")
	assert.Panics(t, func() { _ = r.FailRepo() }, "fail without start")

	require.NoError(t, r.StartRepo("a", "A"))
	assert.Panics(t, func() { _ = r.StartRepo("b", "B") }, "second start while in flight")
}

func TestCycleTimingAcrossTwoCycles(t *testing.T) {
	r, sink, clock := newTestReporter(t)

	// cycle 1
	require.NoError(t, r.FinishSleep())
	require.NoError(t, r.StartRepo("a", "A"))
	clock.Advance(4 * time.Second)
	require.NoError(t, r.FinishRepo())
	cur := sink.last().Statistics.CurrentCycleTime
	require.NotNil(t, cur)
	assert.InDelta(t, 4.0, *cur, 1e-9)

	require.NoError(t, r.StartSleep(time.Minute))
	snap := sink.last()
	assert.Equal(t, StatusSleeping, snap.Status)
	assert.Nil(t, snap.Statistics.CurrentCycleTime)
	require.NotNil(t, snap.Statistics.LastCycleTime)
	assert.InDelta(t, 4.0, *snap.Statistics.LastCycleTime, 1e-9)

	clock.Advance(time.Minute)

	// cycle 2
	require.NoError(t, r.FinishSleep())
	require.NoError(t, r.StartRepo("b", "B"))
	clock.Advance(time.Second)
	require.NoError(t, r.FailRepo())

	snap = sink.last()
	assert.Len(t, snap.Repos, 2)
	require.NotNil(t, snap.Statistics.LastCycleTime)
	assert.InDelta(t, 4.0, *snap.Statistics.LastCycleTime, 1e-9, "last cycle time is the first cycle's duration")
	require.NotNil(t, snap.Statistics.CurrentCycleTime)
	assert.InDelta(t, 1.0, *snap.Statistics.CurrentCycleTime, 1e-9)
}

func TestStartSleepWithoutCycleHasNoLastTime(t *testing.T) {
	r, sink, _ := newTestReporter(t)

	require.NoError(t, r.StartSleep(time.Second))
	snap := sink.last()
	assert.Equal(t, StatusSleeping, snap.Status)
	assert.Nil(t, snap.Statistics.LastCycleTime)
	assert.Nil(t, snap.Statistics.CurrentCycleTime)
}

func TestUpdateSleepRepublishesSleeping(t *testing.T) {
	r, sink, _ := newTestReporter(t)
	require.NoError(t, r.StartSleep(time.Minute))
	before := len(sink.snaps)

	require.NoError(t, r.UpdateSleep(30*time.Second))
	require.NoError(t, r.UpdateSleep(0))
	assert.Len(t, sink.snaps, before+2)
	assert.Equal(t, StatusSleeping, sink.last().Status)
}

func TestFinishSleepReportsRunningTimer(t *testing.T) {
	r, sink, _ := newTestReporter(t)

	require.NoError(t, r.FinishSleep())
	snap := sink.last()
	assert.Equal(t, StatusIdle, snap.Status)
	require.NotNil(t, snap.Statistics.CurrentCycleTime, "the new cycle is already timed in the idle snapshot")
	assert.InDelta(t, 0.0, *snap.Statistics.CurrentCycleTime, 1e-9)
}

func TestEveryTransitionPublishesOnceWithFourKeys(t *testing.T) {
	r, sink, clock := newTestReporter(t)

	transitions := []func() error{
		r.FinishSleep,
		func() error { return r.StartRepo("a", "A") },
		r.FailRepo,
		func() error { return r.StartRepo("b", "B") },
		r.FinishRepo,
		func() error { return r.StartSleep(time.Second) },
		func() error { return r.UpdateSleep(time.Millisecond) },
		r.FinishSleep,
		r.Close,
	}
	for i, tr := range transitions {
		clock.Advance(100 * time.Millisecond)
		require.NoError(t, tr())
		require.Len(t, sink.snaps, i+2, "one snapshot per transition")
	}

	for _, snap := range sink.snaps {
		data, err := json.Marshal(snap)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		require.Len(t, doc, 4)
		for _, k := range SnapshotKeys {
			assert.Contains(t, doc, k)
		}
	}
}

func TestCloseAndAfter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	clock := clockwork.NewFakeClock()
	r, err := New(NewFileSink(path), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, r.FinishSleep())
	require.NoError(t, r.StartRepo("a", "A"))
	require.NoError(t, r.FinishRepo())

	require.NoError(t, r.Close())
	got, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, got.Status)
	assert.Len(t, got.Repos, 1)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	for name, call := range map[string]func() error{
		"StartSleep":  func() error { return r.StartSleep(time.Second) },
		"UpdateSleep": func() error { return r.UpdateSleep(time.Second) },
		"FinishSleep": r.FinishSleep,
		"StartRepo":   func() error { return r.StartRepo("b", "B") },
		"FailRepo":    r.FailRepo,
		"FinishRepo":  r.FinishRepo,
		"Close":       r.Close,
	} {
		assert.ErrorIs(t, call(), ErrClosed, name)
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "nothing is written after Close")
	assert.Equal(t, StatusStopped, r.Status())
}

func TestSinkFailureIsReturnedAndStateAdvances(t *testing.T) {
	r, sink, _ := newTestReporter(t)
	ioErr := serrors.IOError("write", "/nowhere/status.json", errors.New("read-only file system"))
	sink.err = ioErr

	err := r.StartRepo("a", "A")
	require.ErrorIs(t, err, ioErr)
	assert.True(t, serrors.IsCategory(err, serrors.CategoryIO))
	assert.Equal(t, StatusUpdating, r.Status())

	sink.err = nil
	require.NoError(t, r.FinishRepo())
	assert.Len(t, sink.last().Repos, 1)
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	r, sink, _ := newTestReporter(t)
	require.NoError(t, r.StartRepo("a", "A"))
	require.NoError(t, r.FinishRepo())

	sink.last().Repos[0].Name = "mutated"
	got := r.Snapshot()
	assert.Equal(t, "a", got.Repos[0].Name)
}

func TestRecorderObservesTransitions(t *testing.T) {
	rec := newCountingRecorder()
	clock := clockwork.NewFakeClock()
	r, err := New(&recordingSink{}, WithClock(clock), WithRecorder(rec))
	require.NoError(t, err)

	require.NoError(t, r.FinishSleep())
	require.NoError(t, r.StartRepo("a", "A"))
	require.NoError(t, r.FailRepo())
	require.NoError(t, r.StartRepo("b", "B"))
	clock.Advance(2 * time.Second)
	require.NoError(t, r.FinishRepo())
	require.NoError(t, r.StartSleep(time.Minute))

	assert.Equal(t, []string{"starting", "idle", "updating", "updating", "updating", "idle", "sleeping"}, rec.statuses)
	assert.Equal(t, map[string]int{"failed": 1, "ok": 1}, rec.outcomes)
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.cycles)
	assert.Equal(t, 7, rec.writes)
	assert.Zero(t, rec.failed)
}

func TestReporterWithMultiSink(t *testing.T) {
	shared := NewSharedMap()
	path := filepath.Join(t.TempDir(), "status.json")
	r, err := New(MultiSink{NewFileSink(path), NewMemorySink(shared)}, WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)
	require.NoError(t, r.StartRepo("a", "Alpha"))

	fromFile, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, fromFile.Fields(), shared.Copy())
}
