package tqlsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ergochat/readline"
	"golang.org/x/sync/errgroup"

	"github.com/mrorigo/tuiql/internal/obslog"
	"github.com/mrorigo/tuiql/internal/tqlcomplete"
)

// replCompleter adapts tqlcomplete.Suggest to readline's AutoCompleter
// interface, the same split the original REPL used to keep completion
// logic independent of the line-editing library.
type replCompleter struct {
	sess *Session
}

func (c *replCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	prefix := string(line[:pos])
	fields := strings.Fields(prefix)
	word := ""
	if len(fields) > 0 && !strings.HasSuffix(prefix, " ") {
		word = fields[len(fields)-1]
	}

	suggestions := tqlcomplete.Suggest(word, c.sess.catalog)

	out := make([][]rune, 0, len(suggestions))
	for _, s := range suggestions {
		if strings.HasPrefix(strings.ToLower(s), strings.ToLower(word)) {
			out = append(out, []rune(s[len(word):]))
		}
	}
	return out, len(word)
}

// historyPath returns the readline input-history file location, distinct
// from the persisted query history store.
func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tuiql_history"
	}
	return home + string(os.PathSeparator) + ".tuiql_history"
}

// DefaultHistoryPath returns the conventional location of the persisted
// query history database.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tuiql_history.db"
	}
	return home + string(os.PathSeparator) + ".tuiql_history.db"
}

// RunREPL drives the interactive loop: it reads lines via readline,
// dispatches them against the session, and supervises two goroutines (a
// SIGINT listener that interrupts the active statement, and the
// line-reading loop itself) with errgroup so either one's failure unwinds
// the whole loop cleanly.
func RunREPL(s *Session) error {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          s.Prompt(),
		HistoryFile:     historyPath(),
		HistoryLimit:    500,
		AutoComplete:    &replCompleter{sess: s},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watchSignals(gctx, s)
	})

	g.Go(func() error {
		defer cancel()
		return runLoop(rl, s)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchSignals converts SIGINT into a connection interrupt rather than
// process termination, so a long-running statement can be cancelled
// without losing the session's open connection and history.
func watchSignals(ctx context.Context, s *Session) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			if s.conn != nil {
				s.conn.Interrupt()
				obslog.Log.Info().Msg("interrupt requested, cancelling active statement")
			}
		}
	}
}

func runLoop(rl *readline.Instance, s *Session) error {
	fmt.Fprintln(s.out, "tuiql — type :help for commands, :quit to exit")

	for {
		rl.SetPrompt(s.Prompt())
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if dispatchErr := s.Dispatch(line); dispatchErr != nil {
			if IsQuit(dispatchErr) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", dispatchErr)
		}
	}
}
