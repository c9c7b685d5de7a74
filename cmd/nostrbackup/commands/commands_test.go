package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nostrbackup/internal/backup"
	"git.home.luguber.info/inful/nostrbackup/internal/config"
	"git.home.luguber.info/inful/nostrbackup/internal/event"
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
	"git.home.luguber.info/inful/nostrbackup/internal/testrelay"
)

var author = strings.Repeat("cd", 32)

type env struct {
	dir    string
	config string
	db     string
	net    *testrelay.Network
	out    *bytes.Buffer
	logs   *bytes.Buffer
}

func newEnv(t *testing.T, relays ...string) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		dir:    dir,
		config: filepath.Join(dir, "nostrbackup.yaml"),
		db:     filepath.Join(dir, "backups.db"),
		net:    testrelay.NewNetwork(),
		out:    &bytes.Buffer{},
		logs:   &bytes.Buffer{},
	}
	var b strings.Builder
	b.WriteString("relays:\n")
	for _, r := range relays {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	fmt.Fprintf(&b, "exchange:\n  idle_timeout: 200ms\n  ack_timeout: 200ms\nbackup:\n  database: %s\n", e.db)
	fmt.Fprintf(&b, "daemon:\n  pubkey: %s\n  backup_name: test-backup\n", author)
	require.NoError(t, os.WriteFile(e.config, []byte(b.String()), 0o600))
	return e
}

func (e *env) run(t *testing.T, args ...string) error {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("nostrbackup"),
		kong.Vars{"version": "test"},
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	ctx, err := parser.Parse(append([]string{"-c", e.config}, args...))
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(e.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctx.Run(&Global{Out: e.out, Dialer: e.net, Logger: logger}, &cli)
}

func (e *env) store(t *testing.T) *backup.SQLiteStore {
	t.Helper()
	store, err := backup.NewSQLiteStore(e.db, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFetchCommandSavesBackup(t *testing.T) {
	e := newEnv(t, "wss://a.example", "wss://b.example")
	e.net.Handle("wss://a.example", testrelay.Serve(testrelay.Event("e1", author, 1), testrelay.Event("e2", author, 1)))
	e.net.Handle("wss://b.example", testrelay.Serve(testrelay.Event("e2", author, 1)))

	export := filepath.Join(e.dir, "export.json")
	require.NoError(t, e.run(t, "fetch", "--export", export))

	out := e.out.String()
	assert.Contains(t, out, "a.example: Done (2)")
	assert.Contains(t, out, "b.example: Done (1)")
	assert.Contains(t, out, "Fetched 2 events from 2/2 relays")
	assert.Contains(t, out, "fetch wave 1/1: 2/2 relays done, 0 failed")
	assert.Contains(t, out, "Saved backup ")

	infos, err := e.store(t).List(t.Context())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, strings.HasSuffix(infos[0].Name, "_test-backup"))
	assert.Equal(t, 2, infos[0].Events)

	exported, err := backup.ReadFile(export)
	require.NoError(t, err)
	assert.Len(t, exported, 2)
}

func TestFetchCommandLogsRelayStatus(t *testing.T) {
	e := newEnv(t, "wss://a.example", "wss://down.example")
	e.net.Handle("wss://a.example", testrelay.Serve(testrelay.Event("e1", author, 1)))

	require.NoError(t, e.run(t, "fetch", "--no-save"))

	logs := e.logs.String()
	assert.Contains(t, logs, "Relay status changed")
	assert.Contains(t, logs, "operation=fetch")
	assert.Contains(t, logs, "relay=wss://a.example phase=Done")
	assert.Contains(t, logs, "relay=wss://down.example phase=Error")
	assert.Contains(t, logs, "Relay transferred events")
}

func TestFetchCommandNoSave(t *testing.T) {
	e := newEnv(t, "wss://a.example")
	e.net.Handle("wss://a.example", testrelay.Serve(testrelay.Event("e1", author, 1)))

	require.NoError(t, e.run(t, "fetch", "--no-save", "--name", "ignored"))

	infos, err := e.store(t).List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestFetchCommandAllRelaysFailed(t *testing.T) {
	e := newEnv(t, "wss://down.example")

	err := e.run(t, "fetch")
	require.Error(t, err)
	assert.Equal(t, 8, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, e.out.String(), "down.example: Error (0)")
}

func TestFetchCommandRejectsBadPubkey(t *testing.T) {
	e := newEnv(t, "wss://a.example")

	err := e.run(t, "fetch", "--pubkey", "not-a-key")
	require.Error(t, err)
	assert.Equal(t, 2, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Empty(t, e.net.Dials())
}

func TestPublishCommandFromBackup(t *testing.T) {
	e := newEnv(t, "wss://a.example", "wss://b.example")
	e.net.Handle("wss://a.example", testrelay.Accept())
	e.net.Handle("wss://b.example", testrelay.RejectID("e2"))

	info, err := e.store(t).Save(t.Context(), "seed", []event.Event{
		testrelay.Event("e1", author, 1),
		testrelay.Event("e2", author, 1),
		testrelay.Event("e3", author, 1),
	})
	require.NoError(t, err)

	require.NoError(t, e.run(t, "publish", "--backup", info.Name))

	out := e.out.String()
	assert.Contains(t, out, "a.example: Done (3)")
	assert.Contains(t, out, "b.example: Error (1)")
	assert.Contains(t, out, "Published 3 events to 1/2 relays")
}

func TestPublishCommandFromFile(t *testing.T) {
	e := newEnv(t, "wss://a.example")
	e.net.Handle("wss://a.example", testrelay.Accept())

	file := filepath.Join(e.dir, "events.json")
	require.NoError(t, backup.ExportFile(file, []event.Event{testrelay.Event("e1", author, 1)}))

	require.NoError(t, e.run(t, "publish", "--file", file))
	assert.Contains(t, e.out.String(), "a.example: Done (1)")
}

func TestPublishCommandErrors(t *testing.T) {
	e := newEnv(t, "wss://down.example")

	err := e.run(t, "publish")
	require.Error(t, err)
	assert.Equal(t, 2, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))

	err = e.run(t, "publish", "--backup", "missing")
	require.Error(t, err)
	assert.Equal(t, 3, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))

	file := filepath.Join(e.dir, "events.json")
	require.NoError(t, backup.ExportFile(file, []event.Event{testrelay.Event("e1", author, 1)}))
	err = e.run(t, "publish", "--file", file)
	require.Error(t, err)
	assert.Equal(t, 8, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestBackupsCommands(t *testing.T) {
	e := newEnv(t, "wss://a.example")
	require.NoError(t, e.run(t, "backups"))
	assert.Contains(t, e.out.String(), "No backups")

	info, err := e.store(t).Save(t.Context(), "weekly", []event.Event{testrelay.Event("e1", author, 1)})
	require.NoError(t, err)

	e.out.Reset()
	require.NoError(t, e.run(t, "backups", "list"))
	assert.Contains(t, e.out.String(), "NAME")
	assert.Contains(t, e.out.String(), info.Name)

	export := filepath.Join(e.dir, "weekly.json")
	e.out.Reset()
	require.NoError(t, e.run(t, "backups", "export", info.Name, export))
	assert.Contains(t, e.out.String(), "Exported 1 events")
	events, err := backup.ReadFile(export)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)

	require.NoError(t, e.run(t, "backups", "delete", info.Name))
	err = e.run(t, "backups", "delete", info.Name)
	require.ErrorIs(t, err, backup.ErrNotFound)
}

func TestKeyCommands(t *testing.T) {
	e := newEnv(t)
	hex := "7e7e9c42a91bfef19fa929e5fda1b72e0ebc1a4c1141673e2794234d86addf4e"
	npub := "npub10elfcs4fr0l0r8af98jlmgdh9c8tcxjvz9qkw038js35mp4dma8qzvjptg"

	require.NoError(t, e.run(t, "key", "npub", hex))
	assert.Equal(t, npub+"\n", e.out.String())

	e.out.Reset()
	require.NoError(t, e.run(t, "key", "hex", npub))
	assert.Equal(t, hex+"\n", e.out.String())

	require.Error(t, e.run(t, "key", "hex", "npub1invalid"))
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	e := &env{config: filepath.Join(dir, "nostrbackup.yaml"), out: &bytes.Buffer{}, net: testrelay.NewNetwork()}

	require.NoError(t, e.run(t, "init"))
	assert.FileExists(t, e.config)
	assert.Contains(t, e.out.String(), "initialized successfully")

	require.Error(t, e.run(t, "init"))
	require.NoError(t, e.run(t, "init", "--force"))
}

func TestDaemonCommandRunsAndStops(t *testing.T) {
	e := newEnv(t, "wss://a.example")
	e.net.Handle("wss://a.example", testrelay.Serve(testrelay.Event("e1", author, 1)))

	cfg, err := config.Load(e.config)
	require.NoError(t, err)
	cfg.Metrics.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := &DaemonCmd{Listen: "127.0.0.1:0", RunNow: true}
	done := make(chan error, 1)
	go func() { done <- cmd.run(ctx, &Global{Out: e.out, Dialer: e.net}, "", cfg) }()

	store := e.store(t)
	require.Eventually(t, func() bool {
		infos, err := store.List(context.Background())
		return err == nil && len(infos) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
