// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is the per-command override for the configuration file path.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

// setupCommand initializes the config file, database, and checkpoint directory.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, database, and checkpoint directory",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles Spotify authentication operations.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Check the stored token against the Spotify profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistsCommand lists the account's playlists and picks ingest sources.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "List the authenticated user's playlists",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to show",
				Value: 50,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
			&cli.BoolFlag{
				Name:  "pick",
				Usage: "Select playlists interactively and write them to the source list",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Source list file the picker writes to",
				Value:   "playlists.txt",
			},
		},
		Action: r.Playlists,
	}
}

// ingestCommand fetches source playlists into the canonical store.
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Fetch source playlists into the canonical store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Source list file, one playlist id or URL per line",
				Value:   "playlists.txt",
			},
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Ad-hoc playlist id or URL (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "liked",
				Usage: "Also ingest the saved tracks library",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Discard checkpoints and refetch every source",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Ingest,
	}
}

// reportCommand analyzes the canonical store.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Analyze the ingested library: duplicates, overlap, totals",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Export the deduplicated set as CSV to this path",
			},
			&cli.StringFlag{
				Name:  "md",
				Usage: "Write the report as Markdown to this path",
			},
		},
		Action: r.Report,
	}
}

// mergeCommand consolidates the deduplicated library into merged playlists.
func mergeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Create merged playlist(s) from the deduplicated library",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Name for the merged playlist",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show the merge plan without creating anything",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Discard a previous merge plan and start over",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Merge,
	}
}

// featuresCommand enriches stored tracks with audio features.
func featuresCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "features",
		Usage: "Fetch audio features for stored tracks",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Features,
	}
}
