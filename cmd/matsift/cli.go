package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hpungsan/matsift/internal/cache"
	"github.com/hpungsan/matsift/internal/config"
	"github.com/hpungsan/matsift/internal/credential"
	"github.com/hpungsan/matsift/internal/db"
	"github.com/hpungsan/matsift/internal/elemset"
	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/history"
	"github.com/hpungsan/matsift/internal/mcp"
	"github.com/hpungsan/matsift/internal/mpapi"
	"github.com/hpungsan/matsift/internal/periodic"
	"github.com/hpungsan/matsift/internal/pipeline"
	"github.com/hpungsan/matsift/internal/query"
	"github.com/hpungsan/matsift/internal/stages"
)

// Reduced search preset.
var (
	reducedElements    = []string{"Sn", "Sb", "Bi"}
	reducedExcludes    = []string{elemset.GroupTransitionMetal, elemset.GroupRadioactive, elemset.GroupFBlock, elemset.GroupToxic}
	reducedFilterOrder = []string{"NP", "chosenCDElem", "ME", "specOS", "NoPolarVar", "SiteEquiv"}
)

const reducedTaskCount = 300

// env is the per-invocation state shared by commands. Before fills it.
type env struct {
	baseDir string
	cfg     *config.Config
	logger  *zap.Logger
	db      *sql.DB
}

// database opens the run-history database on first use.
func (e *env) database() (*sql.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	database, err := db.Init(e.baseDir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	db.ConfigurePool(database, e.cfg)
	e.db = database
	return database, nil
}

func (e *env) cacheStore() *cache.FileStore {
	return cache.NewFileStore(e.cfg.ResolveCacheDir(e.baseDir))
}

func (e *env) keyStore() *credential.FileKeyStore {
	return &credential.FileKeyStore{Path: e.cfg.ResolveCredentialFile(e.baseDir)}
}

func (e *env) client(key string) *mpapi.Client {
	c := mpapi.New(e.cfg.APIEndpoint, key)
	c.Logger = e.logger.Named("mpapi")
	return c
}

// orchestrator wires the search pipeline. Console output goes to out, stage
// program output to stageOut, and missing keys are asked for through prompter.
func (e *env) orchestrator(out, stageOut io.Writer, prompter credential.Prompter) (*pipeline.Orchestrator, error) {
	database, err := e.database()
	if err != nil {
		return nil, err
	}

	creds := &credential.Provider{
		Store:       e.keyStore(),
		Prompter:    prompter,
		Prober:      e.client(""),
		Out:         out,
		MaxAttempts: e.cfg.CredentialMaxAttempts,
		Logger:      e.logger.Named("credential"),
	}

	var classifier pipeline.Classifier = stages.Noop{Logger: e.logger}
	if len(e.cfg.ClassifyCommand) > 0 {
		classifier = &stages.ExecClassifier{Command: e.cfg.ClassifyCommand, Stdout: stageOut, Logger: e.logger}
	}
	var analyzer pipeline.Analyzer = stages.Noop{Logger: e.logger}
	if len(e.cfg.AnalyzeCommand) > 0 {
		analyzer = &stages.ExecAnalyzer{Command: e.cfg.AnalyzeCommand, Stdout: stageOut, Logger: e.logger}
	}

	return &pipeline.Orchestrator{
		Cache:       e.cacheStore(),
		Credentials: creds,
		NewClient:   func(key string) pipeline.Client { return e.client(key) },
		Classifier:  classifier,
		Analyzer:    analyzer,
		Recorder:    history.NewSQLRecorder(database),
		Logger:      e.logger.Named("pipeline"),
		Out:         out,
	}, nil
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	e := &env{}

	app := &cli.App{
		Name:    "matsift",
		Usage:   "Search the Materials Project for candidate compounds and run the screening pipeline",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-dir", EnvVars: []string{"MATSIFT_HOME"}, Usage: "State directory (default ~/.matsift)"},
			&cli.BoolFlag{Name: "debug", Usage: "Debug logging on stderr"},
		},
		Before: func(c *cli.Context) error {
			return e.init(c)
		},
		After: func(c *cli.Context) error {
			e.close()
			return nil
		},
		Commands: []*cli.Command{
			searchCmd(e),
			reducedCmd(e),
			elementsCmd(),
			cacheCmd(e),
			keyCmd(e),
			historyCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func (e *env) init(c *cli.Context) error {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if c.Bool("debug") {
		level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logCfg := zap.NewProductionConfig()
	logCfg.Level = level
	logger, err := logCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	e.logger = logger

	e.baseDir = c.String("base-dir")
	if e.baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not determine home directory: %w", err)
		}
		e.baseDir = filepath.Join(home, ".matsift")
	}

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(e.baseDir, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	e.cfg = cfg
	return nil
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
		e.db = nil
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// searchFlags are shared by search and reduced.
func searchFlags(defaultName string, defaultTasks int) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Value: defaultName, Usage: "Search name; also the cache file name"},
		&cli.IntFlag{Name: "tasks", Value: defaultTasks, Usage: "Classification task-count hint (0 = config)"},
		&cli.IntFlag{Name: "max-sites", Usage: "Maximum sites per structure (0 = config)"},
		&cli.IntFlag{Name: "nelements", Usage: "Exact number of distinct elements (0 = config)"},
		&cli.IntFlag{Name: "chunk-size", Usage: "Remote batch size (0 = config)"},
	}
}

// searchCmd creates the search command.
func searchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search by element lists, reusing the cached results for the name if present",
		Flags: append(searchFlags("", 0),
			&cli.StringFlag{Name: "elements", Aliases: []string{"e"}, Usage: "Comma-separated symbols; a material contains at least one"},
			&cli.StringSliceFlag{Name: "include-group", Usage: "Element groups to include"},
			&cli.StringFlag{Name: "exclude", Aliases: []string{"x"}, Usage: "Comma-separated symbols a material must not contain"},
			&cli.StringSliceFlag{Name: "exclude-group", Usage: "Element groups to exclude"},
			&cli.StringFlag{Name: "filter-order", Usage: "Comma-separated analysis filter order"},
		),
		Action: func(c *cli.Context) error {
			if c.String("name") == "" {
				return outputError(errors.NewInvalidRequest("--name is required"))
			}

			include, err := parseElements(c.String("elements"), c.StringSlice("include-group"))
			if err != nil {
				return outputError(err)
			}
			exclude, err := parseElements(c.String("exclude"), c.StringSlice("exclude-group"))
			if err != nil {
				return outputError(err)
			}

			return e.runSearch(c, include, exclude, splitList(c.String("filter-order")))
		},
	}
}

// reducedCmd creates the reduced command: Sn/Sb/Bi compounds free of
// transition metals, radioactive, f-block and toxic elements.
func reducedCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "reduced",
		Usage: "Run the reduced Sn/Sb/Bi search preset",
		Flags: searchFlags("ReducedSearch", reducedTaskCount),
		Action: func(c *cli.Context) error {
			exclude, err := elemset.Groups(reducedExcludes...)
			if err != nil {
				return outputError(err)
			}
			return e.runSearch(c, elemset.New(reducedElements...), exclude, reducedFilterOrder)
		},
	}
}

func (e *env) runSearch(c *cli.Context, include, exclude elemset.Set, filterOrder []string) error {
	for _, flag := range []string{"tasks", "max-sites", "nelements", "chunk-size"} {
		if c.Int(flag) < 0 {
			return outputError(errors.NewInvalidRequest(fmt.Sprintf("--%s must not be negative", flag)))
		}
	}

	out := c.App.Writer
	o, err := e.orchestrator(out, out, credential.NewLinePrompter(c.App.Reader, out))
	if err != nil {
		return outputError(err)
	}

	_, err = o.Run(c.Context, pipeline.RunInput{
		SearchName:  c.String("name"),
		Elements:    include,
		Exclude:     exclude,
		FilterOrder: filterOrder,
		Constraints: query.Constraints{
			MaxSites:    firstPositive(c.Int("max-sites"), e.cfg.MaxSites),
			NumElements: firstPositive(c.Int("nelements"), e.cfg.NumElements),
		},
		TaskCount: firstPositive(c.Int("tasks"), e.cfg.TaskCount),
		ChunkSize: firstPositive(c.Int("chunk-size"), e.cfg.ChunkSize),
	})
	if err != nil {
		return outputError(err)
	}
	return nil
}

// elementsCmd creates the elements command.
func elementsCmd() *cli.Command {
	return &cli.Command{
		Name:  "elements",
		Usage: "Print element symbols: all of them, or the union of named groups",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "group", Aliases: []string{"g"}, Usage: "Group names: " + strings.Join(elemset.GroupNames(), ", ")},
			&cli.IntSliceFlag{Name: "exclude-z", Usage: "Atomic numbers to leave out (without --group)"},
		},
		Action: func(c *cli.Context) error {
			var symbols []string
			if groups := c.StringSlice("group"); len(groups) > 0 {
				set, err := elemset.Groups(groups...)
				if err != nil {
					return outputError(err)
				}
				symbols = set.Symbols()
			} else {
				all, err := periodic.AllElements(c.IntSlice("exclude-z")...)
				if err != nil {
					return outputError(err)
				}
				symbols = all
			}
			table, err := periodic.ElementsOf(symbols)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{"elements": symbols, "table": table, "count": len(symbols)})
		},
	}
}

// cacheCmd creates the cache command group.
func cacheCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect cached search results",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached searches",
				Action: func(c *cli.Context) error {
					entries, err := e.cacheStore().List()
					if err != nil {
						return outputError(err)
					}
					if entries == nil {
						entries = []cache.Entry{}
					}
					return outputJSON(c.App.Writer, map[string]any{"items": entries})
				},
			},
			{
				Name:      "show",
				Usage:     "Print the cached records of a search",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Print at most this many records (0 = all)"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("search name is required"))
					}
					rs, err := e.cacheStore().Load(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					if limit := c.Int("limit"); limit > 0 && len(rs) > limit {
						rs = rs[:limit]
					}
					return outputJSON(c.App.Writer, rs)
				},
			},
		},
	}
}

// keyCmd creates the key command group.
func keyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "Manage the saved Materials Project API key",
		Subcommands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Validate and save a new API key, replacing any saved one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Usage: "Key to save (prompted for when omitted)"},
				},
				Action: func(c *cli.Context) error {
					out := c.App.Writer
					var prompter credential.Prompter = credential.NewLinePrompter(c.App.Reader, out)
					maxAttempts := e.cfg.CredentialMaxAttempts
					if key := c.String("key"); key != "" {
						prompter = fixedPrompter(key)
						maxAttempts = 1
					}

					p := &credential.Provider{
						Store:       replacingKeyStore{e.keyStore()},
						Prompter:    prompter,
						Prober:      e.client(""),
						Out:         out,
						MaxAttempts: maxAttempts,
						Logger:      e.logger.Named("credential"),
					}
					if _, err := p.Obtain(c.Context); err != nil {
						return outputError(err)
					}
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "Probe the saved API key against the service",
				Action: func(c *cli.Context) error {
					key, ok, err := e.keyStore().Read()
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					if !ok {
						return outputError(errors.NewNotFound("saved API key"))
					}
					if err := e.client("").ProbeConnectivity(c.Context, key); err != nil {
						return outputError(errors.NewCredentialInvalid(err))
					}
					fmt.Fprintln(c.App.Writer, "API key is valid.")
					return nil
				},
			},
		},
	}
}

// historyCmd creates the history command.
func historyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded search runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Only runs of this search"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: history.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			database, err := e.database()
			if err != nil {
				return outputError(err)
			}
			output, err := history.List(database, history.ListInput{
				SearchName: c.String("name"),
				Limit:      c.Int("limit"),
				Offset:     c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command (MCP over stdio).
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(e.cfg.DisabledTools); len(unknown) > 0 {
				e.logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
			}

			// stdout carries the protocol: console chatter is dropped, stage
			// output goes to stderr, and there is nobody to ask for a key.
			o, err := e.orchestrator(io.Discard, c.App.ErrWriter, credential.NoPrompter{})
			if err != nil {
				return outputError(err)
			}

			deps := mcp.Deps{Cache: o.Cache, DB: e.db, Search: o}
			if err := mcp.Run(deps, e.cfg, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// replacingKeyStore hides any saved key so Obtain always asks for a new one.
type replacingKeyStore struct {
	credential.KeyStore
}

func (replacingKeyStore) Read() (string, bool, error) { return "", false, nil }

// fixedPrompter answers every prompt with the same key.
type fixedPrompter string

func (p fixedPrompter) Prompt(context.Context, string) (string, error) { return string(p), nil }

// parseElements merges explicit symbols with named groups, groups first.
func parseElements(symbols string, groups []string) (elemset.Set, error) {
	grouped, err := elemset.Groups(groups...)
	if err != nil {
		return elemset.Set{}, err
	}
	explicit, err := elemset.Parse(symbols)
	if err != nil {
		return elemset.Set{}, err
	}
	return elemset.Union(grouped, explicit), nil
}

// splitList splits a comma-separated string, dropping blanks.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.SearchError
	if stderrors.As(err, &sErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
