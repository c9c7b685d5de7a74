package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/nostrbackup/internal/backup"
)

// BackupsCmd groups backup management subcommands.
type BackupsCmd struct {
	List   BackupsListCmd   `cmd:"" default:"1" help:"List stored backups"`
	Export BackupsExportCmd `cmd:"" help:"Write a backup to a JSON file"`
	Delete BackupsDeleteCmd `cmd:"" help:"Delete a stored backup"`
}

// BackupsListCmd implements 'backups list'.
type BackupsListCmd struct{}

func (BackupsListCmd) Run(g *Global, root *CLI) error {
	return withStore(root, func(ctx context.Context, store backup.Store) error {
		infos, err := store.List(ctx)
		if err != nil {
			return err
		}
		w := g.out()
		if len(infos) == 0 {
			_, _ = fmt.Fprintln(w, "No backups")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "NAME\tEVENTS\tSIZE\tCHUNKS\tCREATED")
		for _, info := range infos {
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n",
				info.Name, info.Events, info.Size, info.Chunks, info.Created.Local().Format(time.DateTime))
		}
		return tw.Flush()
	})
}

// BackupsExportCmd implements 'backups export'.
type BackupsExportCmd struct {
	Name string `arg:"" help:"Backup name"`
	Path string `arg:"" help:"Destination JSON file" type:"path"`
}

func (c *BackupsExportCmd) Run(g *Global, root *CLI) error {
	return withStore(root, func(ctx context.Context, store backup.Store) error {
		events, err := store.Load(ctx, c.Name)
		if err != nil {
			return err
		}
		if err := backup.ExportFile(c.Path, events); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(g.out(), "Exported %d events to %s\n", len(events), c.Path)
		return nil
	})
}

// BackupsDeleteCmd implements 'backups delete'.
type BackupsDeleteCmd struct {
	Name string `arg:"" help:"Backup name"`
}

func (c *BackupsDeleteCmd) Run(g *Global, root *CLI) error {
	return withStore(root, func(ctx context.Context, store backup.Store) error {
		if err := store.Delete(ctx, c.Name); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(g.out(), "Deleted %s\n", c.Name)
		return nil
	})
}

func withStore(root *CLI, fn func(context.Context, backup.Store) error) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(context.Background(), store)
}
