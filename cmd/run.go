package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/songsort/internal/formatter"
	"github.com/desertthunder/songsort/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run executes one pipeline run and prints its report.
//
// The report is printed even when the run fails so partial progress stays visible.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	if n := cmd.Int("batch-size"); n != 0 {
		r.config.Classifier.BatchSize = n
	}
	if m := strings.TrimSpace(cmd.String("model")); m != "" {
		r.config.Credentials.LLM.Model = m
	}
	if r.tokens == nil || r.llm == nil {
		if err := r.config.Validate(); err != nil {
			return err
		}
	}

	var recorder tasks.RunRecorder
	if !cmd.Bool("no-history") {
		db, repo, err := r.openHistory()
		if err != nil {
			r.logger.Warn("run history disabled", "error", err)
		} else if repo != nil {
			defer db.Close()
			recorder = repo
		}
	}

	engine, err := r.engine(ctx, cmd.Bool("reclassify"), recorder)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	report, runErr := engine.Run(ctx, progress)
	close(progress)
	wg.Wait()

	if report != nil {
		data, err := formatter.Report(report, format)
		if err != nil {
			return err
		}
		if err := r.write(data); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	if report.Unclassified > 0 && format == formatter.Text {
		r.logger.Warn("some songs are still uncategorized; run again to retry them", "count", report.Unclassified)
	}
	return nil
}
