package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nostrbackup/internal/config"
)

type reloadTarget struct {
	mu      sync.Mutex
	applied []*config.Config
}

func (r *reloadTarget) ReloadConfig(_ context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, cfg)
	return nil
}

func (r *reloadTarget) last() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.applied) == 0 {
		return nil
	}
	return r.applied[len(r.applied)-1]
}

func TestConfigWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nostrbackup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relays:\n  - wss://a.example\n"), 0o600))

	target := &reloadTarget{}
	w, err := NewConfigWatcher(path, target)
	require.NoError(t, err)
	w.debounceTime = 20 * time.Millisecond
	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	require.NoError(t, os.WriteFile(path, []byte("relays:\n  - wss://a.example\n  - wss://b.example/\n"), 0o600))

	require.Eventually(t, func() bool {
		cfg := target.last()
		return cfg != nil && len(cfg.Relays) == 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"wss://a.example", "wss://b.example"}, target.last().Relays)
}

func TestConfigWatcher_IgnoresOtherFilesAndBadContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nostrbackup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relays: []\n"), 0o600))

	target := &reloadTarget{}
	w, err := NewConfigWatcher(path, target)
	require.NoError(t, err)
	w.debounceTime = 10 * time.Millisecond
	reloaded := make(chan error, 4)
	w.onReload = func(err error) { reloaded <- err }
	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("relays: [\"http://wrong.example\"]\n"), 0o600))

	select {
	case err := <-reloaded:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload attempted")
	}
	assert.Nil(t, target.last())
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nostrbackup.yaml")
	w, err := NewConfigWatcher(path, &reloadTarget{})
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
}
