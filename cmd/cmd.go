// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/songsort/internal/formatter"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func formatNames() string {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (" + formatNames() + ")",
		Value:   "text",
	}
}

// globalFlags are available to every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigPath,
			Sources: cli.EnvVars("SONGSORT_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error); overrides log.level",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Shorthand for --log-level debug",
		},
	}
}

// runCommand fetches liked songs, categorizes new ones, and regenerates the summary.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Fetch liked songs, categorize the uncategorized ones, and regenerate the summary",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reclassify",
				Usage: "Categorize every song again, overwriting existing assignments",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Songs per LLM request (1-50); overrides classifier.batch_size",
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "LLM model; overrides credentials.llm.model",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record this run in the history database",
			},
			formatFlag(),
		},
		Action: r.Run,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authorize read access to your Spotify liked songs using OAuth2",
				Action: r.AuthSpotify,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultAuthTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show which credentials are configured",
				Action: r.AuthStatus,
			},
		},
	}
}

// statusCommand reports store counts without contacting any service.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show how many liked songs are stored and categorized",
		Flags:  []cli.Flag{formatFlag()},
		Action: r.Status,
	}
}

// summaryCommand renders the category summary from the stores.
func summaryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Show songs per category",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "top",
				Aliases: []string{"n"},
				Usage:   "Number of categories to list in text and markdown output (0 for all)",
				Value:   15,
			},
			&cli.BoolFlag{
				Name:  "write",
				Usage: "Regenerate the summary file from the stores",
			},
			formatFlag(),
		},
		Action: r.Summary,
	}
}

// historyCommand lists recorded runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to list (0 for all)",
				Value:   20,
			},
			formatFlag(),
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show one run with its skipped batches",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{formatFlag()},
				Action:    r.HistoryShow,
			},
			{
				Name:  "prune",
				Usage: "Delete runs older than the given age",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age cutoff, e.g. 720h",
						Value: defaultPruneAge,
					},
				},
				Action: r.HistoryPrune,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml from the template and initialize the history database",
		Action: r.Setup,
	}
}
