package commands

import (
	"fmt"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/nostrbackup/internal/backup"
	"git.home.luguber.info/inful/nostrbackup/internal/event"
	"git.home.luguber.info/inful/nostrbackup/internal/exchange"
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
	"git.home.luguber.info/inful/nostrbackup/internal/keys"
)

// FetchCmd implements the 'fetch' command.
type FetchCmd struct {
	Pubkey string `short:"p" help:"Author public key (npub or hex); defaults to daemon.pubkey"`
	Kinds  []int  `short:"k" help:"Only fetch these event kinds"`
	Name   string `short:"n" help:"Backup name; defaults to daemon.backup_name"`
	Export string `short:"e" help:"Also write the events to this JSON file" type:"path"`
	NoSave bool   `name:"no-save" help:"Do not store a backup"`
}

func (f *FetchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Relays) == 0 {
		return errors.ConfigError("no relays configured").WithContext("path", root.Config).Build()
	}

	raw := f.Pubkey
	if raw == "" {
		raw = cfg.Daemon.Pubkey
	}
	if raw == "" {
		return errors.ValidationError("a pubkey is required (--pubkey or daemon.pubkey)").Build()
	}
	pubkey, err := keys.ParsePubkey(raw)
	if err != nil {
		return err
	}
	kinds := f.Kinds
	if len(kinds) == 0 {
		kinds = cfg.Daemon.Kinds
	}

	engine, closeEngine, err := newEngine(g, cfg, uuid.NewString())
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx, cancel := signalContext()
	defer cancel()

	res := engine.Fetch(ctx, cfg.Relays, event.AuthorFilters(pubkey, kinds), pubkey)

	w := g.out()
	printStatus(w, res.Status)
	failed := len(exchange.Failed(res.Outcomes))
	_, _ = fmt.Fprintf(w, "Fetched %d events from %d/%d relays\n", len(res.Events), len(res.Outcomes)-failed, len(res.Outcomes))

	if failed == len(res.Outcomes) {
		return errors.ConnectionError("no relay completed the fetch").
			WithContext("relays", len(res.Outcomes)).
			Build()
	}
	if len(res.Events) == 0 {
		_, _ = fmt.Fprintln(w, "No events fetched, nothing to store")
		return nil
	}

	if f.Export != "" {
		if err := backup.ExportFile(f.Export, res.Events); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "Exported to %s\n", f.Export)
	}
	if f.NoSave {
		return nil
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	name := f.Name
	if name == "" {
		name = cfg.Daemon.BackupName
	}
	info, err := store.Save(ctx, name, res.Events)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Saved backup %s (%d events, %d bytes)\n", info.Name, info.Events, info.Size)
	return nil
}
