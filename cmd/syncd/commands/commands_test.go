package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/syncd/internal/config"
	"git.home.luguber.info/inful/syncd/internal/reporter"
	helpers "git.home.luguber.info/inful/syncd/internal/testutil/testutils"
)

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// writeConfig writes a configuration with one repository that cannot be
// opened and history enabled, returning its path.
func writeConfig(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "syncd.yaml")
	content := fmt.Sprintf(`daemon:
  interval: 1m
  heartbeat: 10s
  repositories:
    - name: missing-repo
      path: %s
status:
  file: %s
  memory: true
history:
  enabled: true
  path: %s
`, filepath.Join(dir, "missing"), filepath.Join(dir, "status.json"), filepath.Join(dir, "history.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath, dir
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncd.yaml")
	var out bytes.Buffer

	require.NoError(t, (&InitCmd{}).Run(&Global{Out: &out}, &CLI{Config: path}))
	assert.Contains(t, out.String(), "initialized successfully")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Daemon.Repositories, 2)

	require.Error(t, (&InitCmd{}).Run(&Global{Out: &out}, &CLI{Config: path}), "refuses to overwrite")
	require.NoError(t, (&InitCmd{Force: true}).Run(&Global{Out: &out}, &CLI{Config: path}))
}

func TestStatusReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	r, err := reporter.New(reporter.NewFileSink(path))
	require.NoError(t, err)
	require.NoError(t, r.FinishSleep())

	var out bytes.Buffer
	root := &CLI{Config: filepath.Join(dir, "absent.yaml")}
	require.NoError(t, (&StatusCmd{Format: "json", File: path, Source: "file"}).Run(&Global{Out: &out}, root))
	assert.Contains(t, out.String(), `"status": "idle"`)

	out.Reset()
	require.NoError(t, (&StatusCmd{Format: "text", File: path, Source: "file"}).Run(&Global{Out: &out}, root))
	assert.Contains(t, out.String(), "No repositories processed yet.")
}

func TestStatusMissingFile(t *testing.T) {
	dir := t.TempDir()
	cmd := &StatusCmd{Format: "text", File: filepath.Join(dir, "none.json"), Source: "file"}
	require.Error(t, cmd.Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: filepath.Join(dir, "absent.yaml")}))
}

func TestRunDaemonOnceAndHistory(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	require.NoError(t, RunDaemon(t.Context(), cfg, true))
	helpers.NewFileAssertions(t, filepath.Join(dir, "status.json")).
		AssertExists().
		AssertContains("stopped").
		AssertContains("missing-repo")

	snap, err := reporter.ReadSnapshotFile(filepath.Join(dir, "status.json"))
	require.NoError(t, err)
	assert.Equal(t, reporter.StatusStopped, snap.Status)
	require.Len(t, snap.Repos, 1)
	assert.Equal(t, reporter.RepoFailed, snap.Repos[0].Status)
	assert.Equal(t, "Missing Repo", snap.Repos[0].HumanName)

	var out bytes.Buffer
	root := &CLI{Config: cfgPath}
	require.NoError(t, (&HistoryCmd{Limit: 20}).Run(&Global{Out: &out}, root))
	for _, status := range []string{"starting", "idle", "updating", "sleeping", "stopped"} {
		assert.Contains(t, out.String(), status)
	}

	out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 5, Cycles: true}).Run(&Global{Out: &out}, root))
	assert.Contains(t, out.String(), "completed")
}

func TestHistoryWithoutDatabase(t *testing.T) {
	dir := t.TempDir()
	root := &CLI{Config: filepath.Join(dir, "absent.yaml")}
	t.Chdir(dir)
	require.Error(t, (&HistoryCmd{Limit: 5}).Run(&Global{Out: &bytes.Buffer{}}, root))
	_, err := os.Stat(filepath.Join(dir, config.DefaultHistoryPath))
	assert.True(t, os.IsNotExist(err), "history must not create an empty database")
}

func TestDiffHelper(t *testing.T) {
	repo, w, dir := helpers.SetupTestGitRepo(t)
	a := helpers.CommitFile(t, w, dir, "notes.txt", "one\n", "A")
	head, err := repo.Head()
	require.NoError(t, err)
	helpers.CreateBranch(t, w, "topic", a)
	helpers.CommitFile(t, w, dir, "notes.txt", "one\ntwo\n", "B")

	root := &CLI{Config: filepath.Join(t.TempDir(), "absent.yaml")}
	var out bytes.Buffer
	cmd := &DiffHelperCmd{Base: head.Name().Short(), Head: "topic", Repo: dir}
	require.NoError(t, cmd.Run(&Global{Out: &out}, root))
	assert.Contains(t, out.String(), "+two")

	out.Reset()
	cmd.Stat = true
	require.NoError(t, cmd.Run(&Global{Out: &out}, root))
	assert.Equal(t, "1\t0\tnotes.txt\n", out.String())
}

func TestWatchPrintsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		cmd := &WatchCmd{Format: "text", File: path, Debounce: 10 * time.Millisecond}
		done <- cmd.run(ctx, &Global{Out: out}, &CLI{Config: filepath.Join(dir, "absent.yaml")})
	}()

	// give the watcher time to register before the first write
	time.Sleep(100 * time.Millisecond)
	r, err := reporter.New(reporter.NewFileSink(path))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bytes.Contains([]byte(out.String()), []byte("starting")) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, r.Close())
	require.Eventually(t, func() bool { return bytes.Contains([]byte(out.String()), []byte("stopped")) }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
