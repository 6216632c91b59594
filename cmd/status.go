package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songsort/internal/formatter"
	"github.com/desertthunder/songsort/internal/summary"
	"github.com/desertthunder/songsort/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Status prints store counts.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	snap, err := tasks.Inspect(r.songStore(), r.categoryStore())
	if err != nil {
		return err
	}

	data, err := formatter.Snapshot(snap, format)
	if err != nil {
		return err
	}
	return r.write(data)
}

// Summary prints songs per category computed from the stores, optionally rewriting the summary file.
func (r *Runner) Summary(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	library, err := r.songStore().Load()
	if err != nil {
		return err
	}
	assignments, err := r.categoryStore().Load()
	if err != nil {
		return err
	}

	s := summary.Build(assignments, library)
	if cmd.Bool("write") {
		if err := summary.Write(r.config.Files.Summary, s); err != nil {
			return err
		}
		r.logger.Info("summary written", "path", r.config.Files.Summary)
	}

	data, err := formatter.Summary(s, format, cmd.Int("top"))
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	return r.write(data)
}
