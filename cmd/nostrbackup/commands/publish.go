package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/nostrbackup/internal/backup"
	"git.home.luguber.info/inful/nostrbackup/internal/config"
	"git.home.luguber.info/inful/nostrbackup/internal/event"
	"git.home.luguber.info/inful/nostrbackup/internal/exchange"
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Backup string `short:"b" help:"Name of a stored backup" xor:"source"`
	File   string `short:"f" help:"JSON file holding an array of events" type:"existingfile" xor:"source"`
}

func (p *PublishCmd) Run(g *Global, root *CLI) error {
	if p.Backup == "" && p.File == "" {
		return errors.ValidationError("one of --backup or --file is required").Build()
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Relays) == 0 {
		return errors.ConfigError("no relays configured").WithContext("path", root.Config).Build()
	}

	ctx, cancel := signalContext()
	defer cancel()

	events, err := p.load(ctx, cfg)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return errors.ValidationError("nothing to publish").Build()
	}

	engine, closeEngine, err := newEngine(g, cfg, uuid.NewString())
	if err != nil {
		return err
	}
	defer closeEngine()

	res := engine.Publish(ctx, cfg.Relays, events)

	w := g.out()
	printStatus(w, res.Status)
	failed := len(exchange.Failed(res.Outcomes))
	_, _ = fmt.Fprintf(w, "Published %d events to %d/%d relays\n", len(events), len(res.Outcomes)-failed, len(res.Outcomes))

	if failed == len(res.Outcomes) {
		return errors.ConnectionError("publish failed on every relay").
			WithContext("relays", len(res.Outcomes)).
			Build()
	}
	return nil
}

func (p *PublishCmd) load(ctx context.Context, cfg *config.Config) ([]event.Event, error) {
	if p.File != "" {
		return backup.ReadFile(p.File)
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	return store.Load(ctx, p.Backup)
}
