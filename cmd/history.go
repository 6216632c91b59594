package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/songsort/internal/formatter"
	"github.com/desertthunder/songsort/internal/repositories"
	"github.com/desertthunder/songsort/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultPruneAge = 90 * 24 * time.Hour

// historyRepo opens the history database, failing when history is disabled.
func (r *Runner) historyRepo() (*repositories.RunRepository, func(), error) {
	db, repo, err := r.openHistory()
	if err != nil {
		return nil, nil, err
	}
	if repo == nil {
		return nil, nil, fmt.Errorf("%w: run history is disabled (database.path is empty)", shared.ErrInvalidConfig)
	}
	return repo, func() { db.Close() }, nil
}

// History lists recorded runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	repo, closeDB, err := r.historyRepo()
	if err != nil {
		return err
	}
	defer closeDB()

	reports, err := repo.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	data, err := formatter.History(reports, format)
	if err != nil {
		return err
	}
	return r.write(data)
}

// HistoryShow prints one recorded run.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	repo, closeDB, err := r.historyRepo()
	if err != nil {
		return err
	}
	defer closeDB()

	report, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	data, err := formatter.Report(report, format)
	if err != nil {
		return err
	}
	return r.write(data)
}

// HistoryPrune deletes runs older than --older-than.
func (r *Runner) HistoryPrune(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidFlag)
	}

	repo, closeDB, err := r.historyRepo()
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := repo.Prune(ctx, time.Now().Add(-age))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Pruned %d runs\n", n)
}
