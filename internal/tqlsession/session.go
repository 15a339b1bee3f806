// Package tqlsession is the REPL kernel: the meta-command dispatcher, the
// readline-backed input loop, and the result printer, all bound to one
// Session that owns the active connection, catalog, and history store.
package tqlsession

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/mrorigo/tuiql/internal/appconfig"
	"github.com/mrorigo/tuiql/internal/kernelerr"
	"github.com/mrorigo/tuiql/internal/obslog"
	"github.com/mrorigo/tuiql/internal/quoting"
	"github.com/mrorigo/tuiql/internal/tqlcatalog"
	"github.com/mrorigo/tuiql/internal/tqldb"
	"github.com/mrorigo/tuiql/internal/tqldiff"
	"github.com/mrorigo/tuiql/internal/tqlexport"
	"github.com/mrorigo/tuiql/internal/tqlfts5"
	"github.com/mrorigo/tuiql/internal/tqlhistory"
	"github.com/mrorigo/tuiql/internal/tqljson1"
	"github.com/mrorigo/tuiql/internal/tqllint"
	"github.com/mrorigo/tuiql/internal/tqlplan"
	"github.com/mrorigo/tuiql/internal/tqlplugin"
	"github.com/mrorigo/tuiql/internal/tqlschema"
)

// commandEntry maps a ':' prefix to its handler, the same shape the
// original REPL used for its much larger query-builder vocabulary.
type commandEntry struct {
	prefix  string
	handler func(args string) error
	hidden  bool
}

// Session is the process-wide kernel state: at most one active
// connection, its catalog snapshot, the history store, the plugin
// registry, and the command table.
type Session struct {
	conn     *tqldb.Connection
	catalog  *tqlcatalog.Catalog
	history  *tqlhistory.Store
	plugins  *tqlplugin.Registry
	safeOff  bool
	lastResult tqldb.Result
	hasResult  bool

	out      io.Writer
	commands []commandEntry
}

// New builds a session with history opened at historyPath and the given
// plugin descriptors loaded from configuration.
func New(historyPath string, cfg appconfig.Config) (*Session, error) {
	hist, err := tqlhistory.Open(historyPath)
	if err != nil {
		return nil, err
	}

	s := &Session{
		history: hist,
		plugins: tqlplugin.NewRegistry(cfg.Plugins),
		safeOff: cfg.SafeOff,
		out:     os.Stdout,
	}
	s.initCommands()
	return s, nil
}

// SetOutput redirects session output, mainly for tests.
func (s *Session) SetOutput(w io.Writer) { s.out = w }

// Close releases the session's resources.
func (s *Session) Close() error {
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			return err
		}
	}
	return s.history.Close()
}

// Prompt renders the current prompt string per spec: database name, a
// trailing '*' while a transaction is active, and a '[RO]' marker when
// the connection is readonly.
func (s *Session) Prompt() string {
	if s.conn == nil {
		return "tuiql> "
	}
	name := s.conn.Path()
	suffix := ""
	if s.conn.TxState() == tqldb.TxActive {
		suffix = "*"
	}
	ro := ""
	if s.conn.Readonly() {
		ro = "[RO]"
		if s.isInteractive() {
			ro = "\x1b[31m[RO]\x1b[0m"
		}
	}
	return fmt.Sprintf("%s%s%s> ", name, suffix, ro)
}

// isInteractive reports whether the session's output is a terminal, so the
// prompt can skip ANSI color codes when output is redirected to a file or
// pipe.
func (s *Session) isInteractive() bool {
	f, ok := s.out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// initCommands builds the dispatch table, ordered by prefix length
// descending so a longer, more specific prefix never loses to a shorter
// one that happens to match too.
func (s *Session) initCommands() {
	s.commands = []commandEntry{
		{prefix: "open ", handler: s.cmdOpen},
		{prefix: "attach ", handler: s.cmdAttach},
		{prefix: "ro", handler: func(string) error { return s.cmdReadonly(true) }},
		{prefix: "rw", handler: func(string) error { return s.cmdReadonly(false) }},
		{prefix: "begin", handler: func(string) error { return s.requireConn(func() error { return s.conn.Begin() }) }},
		{prefix: "commit", handler: func(string) error { return s.requireConn(func() error { return s.conn.Commit() }) }},
		{prefix: "rollback", handler: func(string) error { return s.requireConn(func() error { return s.conn.Rollback() }) }},
		{prefix: "pragma ", handler: s.cmdPragma},
		{prefix: "tables", handler: s.cmdTables},
		{prefix: "erd", handler: s.cmdERD},
		{prefix: "plan_enhanced", handler: s.cmdPlanEnhanced},
		{prefix: "plan", handler: s.cmdPlan},
		{prefix: "fts5", handler: s.cmdFTS5},
		{prefix: "json", handler: s.cmdJSON},
		{prefix: "diff ", handler: s.cmdDiff},
		{prefix: "hist", handler: s.cmdHist},
		{prefix: "export ", handler: s.cmdExport},
		{prefix: "find ", handler: s.cmdFind},
		{prefix: "show ", handler: s.cmdShow},
		{prefix: "plugin ", handler: s.cmdPlugin},
		{prefix: "snip", handler: func(string) error { return kernelerr.ErrUnimplemented }},
		{prefix: "help", handler: func(arg string) error { s.cmdHelp(arg); return nil }},
		{prefix: "quit", handler: func(string) error { return errQuit }, hidden: true},
	}
	sort.SliceStable(s.commands, func(i, j int) bool {
		return len(s.commands[i].prefix) > len(s.commands[j].prefix)
	})
}

var errQuit = fmt.Errorf("quit")

// IsQuit reports whether err is the sentinel returned by the ":quit"
// command, so the caller's loop can stop without treating it as a
// failure.
func IsQuit(err error) bool { return err == errQuit }

// CommandNames lists non-hidden command names, sorted, for ":help" and
// unknown-command suggestions.
func (s *Session) CommandNames() []string {
	var out []string
	for _, c := range s.commands {
		if c.hidden {
			continue
		}
		out = append(out, strings.TrimSpace(c.prefix))
	}
	sort.Strings(out)
	return out
}

// Dispatch routes one input line: meta-commands beginning with ':' go to
// the command table, everything else runs as SQL.
func (s *Session) Dispatch(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, ":") {
		return s.dispatchCommand(line[1:])
	}
	return s.runSQL(line)
}

func (s *Session) dispatchCommand(line string) error {
	lower := strings.ToLower(line)
	for _, cmd := range s.commands {
		if strings.HasSuffix(cmd.prefix, " ") {
			if strings.HasPrefix(lower, cmd.prefix) {
				return cmd.handler(strings.TrimSpace(line[len(cmd.prefix):]))
			}
			continue
		}
		if lower == cmd.prefix || strings.HasPrefix(lower, cmd.prefix+" ") {
			rest := ""
			if len(line) > len(cmd.prefix) {
				rest = strings.TrimSpace(line[len(cmd.prefix):])
			}
			return cmd.handler(rest)
		}
	}

	name := strings.Fields(line)[0]
	return kernelerr.UnknownCommand(name, closestCommands(name, s.CommandNames()))
}

// runSQL lints, confirms Danger findings, executes, prints, and records
// history for a single SQL statement.
func (s *Session) runSQL(sql string) error {
	if s.conn == nil {
		return kernelerr.New(kernelerr.Command, "no active connection (use :open first)")
	}

	findings := tqllint.Lint(sql, s.conn.TxState() == tqldb.TxActive, false)
	for _, f := range findings {
		fmt.Fprintf(s.out, "[%s] %s\n", f.Severity, f.Message)
	}
	if tqllint.HasDanger(findings) && !s.safeOff {
		fmt.Fprintln(s.out, "refusing to run a Danger-flagged statement without confirmation (set safe_off = true in config.toml to disable this check)")
		return nil
	}

	start := time.Now()
	res, err := s.conn.Execute(sql)
	dbName := s.conn.Path()

	s.history.Add(tqlhistory.Entry{
		DatabaseName: dbName,
		Query:        sql,
		ExecutedAt:   start,
		DurationMS:   time.Since(start).Milliseconds(),
		Success:      err == nil,
		ErrorMessage: errMessage(err),
	})

	if err != nil {
		return err
	}

	if tqldb.IsSchemaChange(sql) && s.catalog != nil {
		if rerr := s.catalog.Refresh(s.conn, ""); rerr != nil {
			obslog.Log.Warn().Err(rerr).Msg("catalog refresh failed after DDL")
		}
	}

	s.lastResult = res
	s.hasResult = true
	tqlexport.RenderTable(s.out, res)
	return nil
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Session) requireConn(fn func() error) error {
	if s.conn == nil {
		return kernelerr.New(kernelerr.Command, "no active connection (use :open first)")
	}
	return fn()
}

func (s *Session) cmdOpen(args string) error {
	if args == "" {
		return kernelerr.New(kernelerr.Command, "usage: :open <path>")
	}
	if s.conn != nil {
		if s.conn.TxState() == tqldb.TxActive {
			return kernelerr.ErrUnflushedTransaction
		}
		_ = s.conn.Close()
	}
	conn, err := tqldb.Open(args, false)
	if err != nil {
		return err
	}
	cat, err := tqlcatalog.Load(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	s.conn = conn
	s.catalog = cat
	return nil
}

func (s *Session) cmdAttach(args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return kernelerr.New(kernelerr.Command, "usage: :attach <name> <path>")
	}
	return s.requireConn(func() error {
		_, err := s.conn.Execute(fmt.Sprintf("ATTACH DATABASE '%s' AS %s", fields[1], fields[0]))
		return err
	})
}

func (s *Session) cmdReadonly(readonly bool) error {
	if s.conn == nil {
		return kernelerr.New(kernelerr.Command, "no active connection (use :open first)")
	}
	if s.conn.TxState() == tqldb.TxActive {
		return kernelerr.ErrUnflushedTransaction
	}
	path := s.conn.Path()
	_ = s.conn.Close()
	conn, err := tqldb.Open(path, readonly)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *Session) cmdPragma(args string) error {
	return s.requireConn(func() error {
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return kernelerr.New(kernelerr.Command, "usage: :pragma <name> [value]")
		}
		var sql string
		if len(fields) == 1 {
			sql = "PRAGMA " + fields[0]
		} else {
			sql = fmt.Sprintf("PRAGMA %s = %s", fields[0], fields[1])
		}
		res, err := s.conn.Execute(sql)
		if err != nil {
			return err
		}
		tqlexport.RenderTable(s.out, res)
		return nil
	})
}

func (s *Session) cmdTables(string) error {
	if s.catalog == nil || len(s.catalog.Tables) == 0 {
		fmt.Fprintln(s.out, "(no tables)")
		return nil
	}
	for _, t := range s.catalog.Tables {
		rowCount := "~unknown"
		if t.RowCountKnown {
			rowCount = fmt.Sprintf("%d", t.RowCount)
		}
		fmt.Fprintf(s.out, "%s (%s rows)\n", t.Name, rowCount)
		for _, c := range t.Columns {
			marker := ""
			if c.PrimaryKey {
				marker = " [PK]"
			}
			notnull := ""
			if c.NotNull {
				notnull = " NOT NULL"
			}
			fmt.Fprintf(s.out, "  %s%s%s %s\n", c.Name, marker, notnull, c.Type)
		}
	}
	return nil
}

func (s *Session) cmdERD(args string) error {
	if s.catalog == nil {
		return kernelerr.New(kernelerr.Schema, "no catalog loaded")
	}
	g := tqlschema.Build(s.catalog)
	fmt.Fprint(s.out, tqlschema.Render(s.catalog, g, tqlschema.RenderOptions{Focus: args}))
	return nil
}

func (s *Session) cmdPlan(sql string) error {
	return s.requireConn(func() error {
		nodes, err := tqlplan.Parse(s.conn, sql, s.catalog)
		if err != nil {
			return err
		}
		fmt.Fprint(s.out, tqlplan.Render(nodes))
		return nil
	})
}

func (s *Session) cmdPlanEnhanced(sql string) error {
	return s.requireConn(func() error {
		nodes, elapsed, err := tqlplan.Enhanced(s.conn, sql, s.catalog)
		if err != nil {
			return err
		}
		fmt.Fprint(s.out, tqlplan.Render(nodes))
		fmt.Fprintf(s.out, "elapsed: %s\n", elapsed)
		return nil
	})
}

const fts5Usage = "usage: :fts5 help|list|create <table> <col1,col2,...> [tokenizer]|populate <fts_table> <source_table> <col1,col2,...>|search <table> <query> [--highlight=col|--snippet=col] [--rank] [--limit=n]"

func (s *Session) cmdFTS5(args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		fmt.Fprintln(s.out, fts5Usage)
		return nil
	}
	switch fields[0] {
	case "help":
		fmt.Fprintln(s.out, fts5Usage)
		return nil
	case "list":
		return s.requireConn(func() error {
			res, err := s.conn.Execute("SELECT sql FROM sqlite_master WHERE type='table'")
			if err != nil {
				return err
			}
			var stmts []string
			for _, row := range res.Rows {
				stmts = append(stmts, row[0].Text)
			}
			for _, name := range tqlfts5.List(stmts) {
				fmt.Fprintln(s.out, name)
			}
			return nil
		})
	case "create":
		if len(fields) < 3 {
			return kernelerr.New(kernelerr.Command, fts5Usage)
		}
		tokenizer := ""
		if len(fields) >= 4 {
			tokenizer = fields[3]
		}
		return s.requireConn(func() error {
			return s.runAndRender(tqlfts5.Create(fields[1], strings.Split(fields[2], ","), tokenizer))
		})
	case "populate":
		if len(fields) != 4 {
			return kernelerr.New(kernelerr.Command, fts5Usage)
		}
		return s.requireConn(func() error {
			return s.runAndRender(tqlfts5.Populate(fields[1], fields[2], strings.Split(fields[3], ",")))
		})
	case "search":
		if len(fields) < 3 {
			return kernelerr.New(kernelerr.Command, fts5Usage)
		}
		table := fields[1]
		opts := tqlfts5.SearchOptions{}
		var queryWords []string
		for _, f := range fields[2:] {
			switch {
			case strings.HasPrefix(f, "--highlight="):
				opts.Highlight = &tqlfts5.HighlightSpec{Column: strings.TrimPrefix(f, "--highlight="), StartTag: "[", EndTag: "]"}
			case strings.HasPrefix(f, "--snippet="):
				opts.Snippet = &tqlfts5.SnippetSpec{Column: strings.TrimPrefix(f, "--snippet="), StartTag: "[", EndTag: "]", Ellipsis: "...", TokenContext: 10}
			case strings.HasPrefix(f, "--limit="):
				n, _ := strconv.Atoi(strings.TrimPrefix(f, "--limit="))
				opts.Limit = n
			case f == "--rank":
				opts.RankOrder = true
			default:
				queryWords = append(queryWords, f)
			}
		}
		if len(queryWords) == 0 {
			return kernelerr.New(kernelerr.Command, fts5Usage)
		}
		return s.requireConn(func() error {
			cols, err := s.columnsOf(table)
			if err != nil {
				return err
			}
			opts.Columns = cols
			return s.runAndRender(tqlfts5.Search(table, strings.Join(queryWords, " "), opts))
		})
	default:
		return kernelerr.New(kernelerr.Command, "unsupported fts5 subcommand "+fields[0])
	}
}

const jsonUsage = "usage: :json extract <table> <column> <path>|each <table> <column> [path]|tree <table> <column> [path]|array <expr...>|object <key value...>"

func (s *Session) cmdJSON(args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		fmt.Fprintln(s.out, jsonUsage)
		return nil
	}
	switch fields[0] {
	case "help":
		fmt.Fprintln(s.out, jsonUsage)
		return nil
	case "extract":
		if len(fields) != 4 {
			return kernelerr.New(kernelerr.Command, jsonUsage)
		}
		return s.requireConn(func() error {
			if err := s.checkJSON1(); err != nil {
				return err
			}
			sql := fmt.Sprintf("SELECT %s FROM %s", tqljson1.Extract(fields[2], fields[3]), quoting.DoubleQuote(fields[1]))
			return s.runAndRender(sql)
		})
	case "each", "tree":
		if len(fields) < 3 || len(fields) > 4 {
			return kernelerr.New(kernelerr.Command, jsonUsage)
		}
		path := ""
		if len(fields) == 4 {
			path = fields[3]
		}
		return s.requireConn(func() error {
			if err := s.checkJSON1(); err != nil {
				return err
			}
			var tvf string
			if fields[0] == "each" {
				tvf = tqljson1.Each(fields[2], path)
			} else {
				tvf = tqljson1.Tree(fields[2], path)
			}
			sql := fmt.Sprintf("SELECT je.key, je.value, je.type FROM %s, %s AS je", quoting.DoubleQuote(fields[1]), tvf)
			return s.runAndRender(sql)
		})
	case "array":
		return s.requireConn(func() error {
			if err := s.checkJSON1(); err != nil {
				return err
			}
			return s.runAndRender("SELECT " + tqljson1.Array(fields[1:]...))
		})
	case "object":
		if len(fields[1:])%2 != 0 {
			return kernelerr.New(kernelerr.Command, "usage: :json object <key value>...")
		}
		return s.requireConn(func() error {
			if err := s.checkJSON1(); err != nil {
				return err
			}
			return s.runAndRender("SELECT " + tqljson1.Object(fields[1:]...))
		})
	default:
		return kernelerr.New(kernelerr.Command, "unsupported json subcommand "+fields[0])
	}
}

// runAndRender executes sql against the active connection and prints it the
// same way a plain SQL statement typed at the prompt would be.
func (s *Session) runAndRender(sql string) error {
	res, err := s.conn.Execute(sql)
	if err != nil {
		return err
	}
	tqlexport.RenderTable(s.out, res)
	return nil
}

// columnsOf reads a table's column names via PRAGMA table_info, used to
// resolve a column name to the positional index highlight()/snippet() need.
func (s *Session) columnsOf(table string) ([]string, error) {
	res, err := s.conn.Execute(fmt.Sprintf("PRAGMA table_info(%s)", quoting.DoubleQuote(table)))
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, row[1].Text)
	}
	return cols, nil
}

func (s *Session) cmdDiff(args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return kernelerr.New(kernelerr.Command, "usage: :diff <dbA> <dbB>")
	}
	connA, err := tqldb.Open(fields[0], true)
	if err != nil {
		return err
	}
	defer connA.Close()
	connB, err := tqldb.Open(fields[1], true)
	if err != nil {
		return err
	}
	defer connB.Close()

	catA, err := tqlcatalog.Load(connA)
	if err != nil {
		return err
	}
	catB, err := tqlcatalog.Load(connB)
	if err != nil {
		return err
	}

	for _, e := range tqldiff.Diff(catA, catB) {
		fmt.Fprintln(s.out, e.String())
	}
	return nil
}

func (s *Session) cmdHist(args string) error {
	limit := 20
	if args != "" {
		fmt.Sscanf(args, "%d", &limit)
	}
	db := ""
	if s.conn != nil {
		db = s.conn.Path()
	}
	entries, err := s.history.Recent(db, limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(s.out, "%s  %s  (%s)\n", e.ExecutedAt.Format(time.RFC3339), e.Query, humanize.Comma(e.DurationMS)+"ms")
	}
	return nil
}

func (s *Session) cmdExport(args string) error {
	if !s.hasResult {
		return kernelerr.New(kernelerr.UI, "no result to export yet")
	}
	opts := tqlexport.Options{}
	var fields []string
	for _, f := range strings.Fields(args) {
		if f == "--pretty-json" {
			opts.PrettyJSON = true
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return kernelerr.New(kernelerr.Command, "usage: :export csv|json|md [path] [--pretty-json]")
	}

	var format tqlexport.Format
	switch fields[0] {
	case "csv":
		format = tqlexport.CSV
	case "json":
		format = tqlexport.JSON
	case "md":
		format = tqlexport.Markdown
	default:
		return kernelerr.New(kernelerr.Command, "unknown export format "+fields[0])
	}

	if len(fields) == 1 {
		return tqlexport.Write(s.out, s.lastResult, format, opts)
	}

	f, err := os.Create(fields[1])
	if err != nil {
		return kernelerr.Wrap(kernelerr.UI, "create "+fields[1], err)
	}
	defer f.Close()
	return tqlexport.Write(f, s.lastResult, format, opts)
}

func (s *Session) cmdFind(args string) error {
	if s.catalog == nil {
		return kernelerr.New(kernelerr.Schema, "no catalog loaded")
	}
	needle := strings.ToLower(args)
	for _, t := range s.catalog.Tables {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			fmt.Fprintf(s.out, "table %s\n", t.Name)
		}
		for _, c := range t.Columns {
			if strings.Contains(strings.ToLower(c.Name), needle) {
				fmt.Fprintf(s.out, "column %s.%s\n", t.Name, c.Name)
			}
		}
	}
	return nil
}

// cmdShow implements the supplemented ":show <table> <rowid>" single-row
// inspector.
func (s *Session) cmdShow(args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return kernelerr.New(kernelerr.Command, "usage: :show <table> <rowid>")
	}
	return s.requireConn(func() error {
		res, err := s.conn.Execute(fmt.Sprintf("SELECT * FROM %s WHERE rowid = %s", fields[0], fields[1]))
		if err != nil {
			return err
		}
		if len(res.Rows) == 0 {
			fmt.Fprintln(s.out, "(no such row)")
			return nil
		}
		for i, col := range res.Columns {
			fmt.Fprintf(s.out, "%s: %s\n", col, elideLong(res.Rows[0][i]))
		}
		return nil
	})
}

// showTextLimit is the single-row inspector's elision threshold for TEXT
// values; BLOB values are already elided by Cell.String() itself.
const showTextLimit = 200

func elideLong(c tqldb.Cell) string {
	if c.Kind == tqldb.KindText && len(c.Text) > showTextLimit {
		return fmt.Sprintf("%s... (%d chars)", c.Text[:showTextLimit], len(c.Text))
	}
	return c.String()
}

func (s *Session) cmdPlugin(args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return kernelerr.New(kernelerr.Command, "usage: :plugin <name> [args...]")
	}
	return s.plugins.Invoke(fields[0], fields[1:], s.out, s.out)
}

// cmdHelp lists every command, or when arg is given, the three closest
// matches by edit distance for a half-remembered name.
func (s *Session) cmdHelp(arg string) {
	names := s.CommandNames()
	if arg != "" {
		names = closestCommands(arg, names)
	}
	for _, name := range names {
		fmt.Fprintf(s.out, ":%s\n", name)
	}
}

func (s *Session) checkJSON1() error {
	_, err := s.conn.Execute("SELECT json('1')")
	if err != nil {
		return kernelerr.Wrap(kernelerr.Json, "json1 extension not available", err)
	}
	return nil
}
