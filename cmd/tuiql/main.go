// Command tuiql is an interactive terminal workbench for exploring and
// editing SQLite databases: schema browsing, query plans, diffing,
// full-text search helpers, and a small plugin system, all from one REPL.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mrorigo/tuiql/internal/appconfig"
	"github.com/mrorigo/tuiql/internal/kernelerr"
	"github.com/mrorigo/tuiql/internal/obslog"
	"github.com/mrorigo/tuiql/internal/tqlsession"
)

func main() {
	cmd := &cli.Command{
		Name:      "tuiql",
		Usage:     "interactive SQLite terminal workbench",
		ArgsUsage: "[DB_PATH]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "readonly",
				Usage: "open the database read-only",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "tuiql: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	obslog.Configure(cmd.Bool("verbose"), os.Stderr)

	configPath := cmd.String("config")
	if configPath == "" {
		configPath = appconfig.DefaultPath()
	}
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return err
	}

	historyPath := tqlsession.DefaultHistoryPath()
	sess, err := tqlsession.New(historyPath, cfg)
	if err != nil {
		return kernelerr.Wrap(kernelerr.Database, "open history store", err)
	}
	defer sess.Close()

	dbPath := cmd.Args().First()
	if dbPath == "" {
		dbPath = cfg.DefaultDBPath
	}
	if dbPath != "" {
		if err := sess.Dispatch(":open " + dbPath); err != nil {
			return err
		}
		if cmd.Bool("readonly") {
			if err := sess.Dispatch(":ro"); err != nil {
				return err
			}
		}
	}

	return tqlsession.RunREPL(sess)
}

// exitCodeFor maps a kernel error category to the process exit code: 1 for
// an unrecoverable startup error (an invalid config file, or a database or
// history store that can't be opened), 2 for everything else: a CLI
// argument-parsing failure from urfave/cli itself, or any other error run
// returns, such as a failure to start the line editor.
func exitCodeFor(err error) int {
	if kernelerr.As(err, kernelerr.Config) || kernelerr.As(err, kernelerr.Database) {
		return 1
	}
	return 2
}
