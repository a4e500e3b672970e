package main

import (
	"errors"
	"fmt"

	"github.com/HerbHall/hostprobe/internal/export"
	"github.com/HerbHall/hostprobe/internal/render"
	"github.com/HerbHall/hostprobe/internal/store"
	"github.com/spf13/cobra"
)

var errNoArchive = errors.New("no archive configured: pass --archive or set archive.path")

func newHistoryCmd(d deps, configPath *string) *cobra.Command {
	var (
		limit int
		id    string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded in the case archive",
		Example: `  hostprobe history --archive cases.db
  hostprobe history --archive cases.db --id 6f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(*configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Archive.Path == "" {
				return errNoArchive
			}

			ctx := cmd.Context()
			s, err := openArchive(ctx, cfg.Archive.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := store.NewArchive(ctx, s)
			if err != nil {
				return err
			}

			if id != "" {
				r, err := a.Get(ctx, id)
				if err != nil {
					return err
				}
				body, err := export.Encode(r)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(d.stdout, string(body))
				return err
			}

			runs, err := a.List(ctx, limit)
			if err != nil {
				return err
			}
			render.NewPrinter(d.stdout, d.color).History(runs)
			return nil
		},
	}

	cmd.Flags().String("archive", "", "SQLite case archive")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 for all)")
	cmd.Flags().StringVar(&id, "id", "", "Print the full report of one run")
	return cmd
}
