// Package main is the command line harness for xmldb.
//
// It operates on a workspace of sample containers: it can run the demo
// scenario, add and list records, export and import archives, watch the
// workspace for changes, print the JSON schema of the container and show the
// git history of the workspace. Configuration is read from a YAML file and
// overridden by flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/maruel/xmldb/internal/config"
	"github.com/maruel/xmldb/xmldb"
	"github.com/maruel/xmldb/xmldb/history"
	"github.com/maruel/xmldb/xmldb/sample"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "xmldb: %v\n", err)
		os.Exit(1)
	}
}

const usage = `usage: xmldb [flags] <command> [args]

commands:
  demo                      run the create/insert/query/remove/export scenario
  add <text>...             insert one sample record per argument
  list [field value]        list sample records, optionally filtered
  export [name]             archive the workspace into the archive directory
  import <archive> <dir>    extract an archive into dir
  watch                     log workspace events until interrupted
  schema                    print the JSON schema of the sample container
  history [n]               show the last n commits of the sample container
`

func mainImpl() error {
	configPath := flag.String("config", "xmldb.yaml", "Configuration file")
	workspace := flag.String("workspace", "", "Workspace directory, overrides the configuration")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error), overrides the configuration")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workspace != "" {
		cfg.Workspace = *workspace
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Level()
	slog.SetDefault(newLogger(level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	e, repo, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = e.Close()
	}()

	args := flag.Args()[1:]
	switch cmd := flag.Arg(0); cmd {
	case "demo":
		return runDemo(e, cfg)
	case "add":
		return runAdd(e, args)
	case "list":
		return runList(e, args)
	case "export":
		name := "workspace-" + time.Now().Format("20060102-150405")
		if len(args) > 0 {
			name = args[0]
		}
		p, err := e.Export(cfg.Archive.Dir, name, cfg.Archive.Extension)
		if err != nil {
			return err
		}
		slog.Info("Exported", "path", p)
		return nil
	case "import":
		if len(args) != 2 {
			return errors.New("import requires <archive> <dir>")
		}
		return e.Import(args[0], args[1])
	case "watch":
		return runWatch(ctx, e)
	case "schema":
		return printSchema()
	case "history":
		return runHistory(e, repo, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(level slog.Level) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// openEngine returns an engine rooted at the configured workspace with the
// sample types registered. repo is nil unless history is enabled.
func openEngine(cfg *config.Config) (*xmldb.Engine, *history.Repo, error) {
	opts := &xmldb.Options{
		Codec:  xmldb.XMLCodec{OmitDefaultNamespace: cfg.OmitDefaultNamespace},
		Logger: slog.Default(),
	}
	var repo *history.Repo
	if cfg.History.Enabled {
		var err error
		if repo, err = history.Open(cfg.Workspace, cfg.History.AuthorName, cfg.History.AuthorEmail); err != nil {
			return nil, nil, err
		}
		opts.History = repo
	}
	e := xmldb.New(opts)
	if err := e.SetWorkspace(cfg.Workspace, xmldb.TypeOf[*sample.SampleDatabase](), xmldb.TypeOf[*sample.Sample]()); err != nil {
		return nil, nil, err
	}
	return e, repo, nil
}

// ensureDatabase creates the sample container if its file is missing.
func ensureDatabase(e *xmldb.Engine) error {
	if _, err := xmldb.Load[*sample.SampleDatabase](e); err != nil {
		if !errors.Is(err, xmldb.ErrNotFound) {
			return err
		}
		return xmldb.CreateDatabase[*sample.SampleDatabase](e)
	}
	return nil
}

func runDemo(e *xmldb.Engine, cfg *config.Config) error {
	if err := xmldb.CreateDatabase[*sample.SampleDatabase](e); err != nil {
		return err
	}
	samples := make([]*sample.Sample, 10)
	for i := range samples {
		samples[i] = &sample.Sample{SomeData: fmt.Sprintf("Data%d", i)}
	}
	if err := xmldb.Insert(e, samples); err != nil {
		return err
	}
	all, err := xmldb.Get[*sample.Sample](e)
	if err != nil {
		return err
	}
	slog.Info("Inserted", "records", len(all))
	some, err := xmldb.GetWhere[*sample.Sample](e, "SomeData", "Data5")
	if err != nil {
		return err
	}
	slog.Info("Queried", "field", "SomeData", "value", "Data5", "records", len(some))
	if err := xmldb.Remove(e, some); err != nil {
		return err
	}
	all, err = xmldb.Get[*sample.Sample](e)
	if err != nil {
		return err
	}
	slog.Info("Removed", "remaining", len(all))
	p, err := e.Export(cfg.Archive.Dir, "copyOfSampleDatabase", cfg.Archive.Extension)
	if err != nil {
		return err
	}
	slog.Info("Exported", "path", p)
	return xmldb.DeleteDatabase[*sample.SampleDatabase](e)
}

func runAdd(e *xmldb.Engine, args []string) error {
	if len(args) == 0 {
		return errors.New("add requires at least one value")
	}
	if err := ensureDatabase(e); err != nil {
		return err
	}
	items := make([]*sample.Sample, len(args))
	for i, a := range args {
		items[i] = &sample.Sample{SomeData: a}
	}
	if err := xmldb.Insert(e, items); err != nil {
		return err
	}
	for _, s := range items {
		slog.Info("Added", "uid", s.UID, "data", s.SomeData)
	}
	return nil
}

func runList(e *xmldb.Engine, args []string) error {
	var items []*sample.Sample
	var err error
	switch len(args) {
	case 0:
		items, err = xmldb.Get[*sample.Sample](e)
	case 2:
		items, err = xmldb.GetWhere[*sample.Sample](e, args[0], args[1])
	default:
		return errors.New("list takes no argument or <field> <value>")
	}
	if errors.Is(err, xmldb.ErrNoMatch) {
		slog.Info("No match")
		return nil
	}
	if err != nil {
		return err
	}
	for _, s := range items {
		fmt.Printf("%d\t%s\t%s\n", s.EID, s.UID, s.SomeData)
	}
	return nil
}

func runWatch(ctx context.Context, e *xmldb.Engine) error {
	cancel := e.Subscribe(func(ev xmldb.Event) {
		slog.Info("Event", "kind", ev.Kind.String(), "name", ev.Name, "path", ev.Path, "time", ev.Time)
	})
	defer cancel()
	slog.Info("Watching", "dir", e.Workspace())
	<-ctx.Done()
	return ctx.Err()
}

func printSchema() error {
	s := jsonschema.Reflect(&sample.SampleDatabase{})
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	_, err = fmt.Printf("%s\n", data)
	return err
}

func runHistory(e *xmldb.Engine, repo *history.Repo, args []string) error {
	if repo == nil {
		return errors.New("history is disabled in the configuration")
	}
	n := 20
	if len(args) > 0 {
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
			return fmt.Errorf("invalid count %q", args[0])
		}
	}
	p, _ := e.Path(xmldb.TypeOf[*sample.SampleDatabase]())
	commits, err := repo.Log(p, n)
	if err != nil {
		return err
	}
	for _, c := range commits {
		fmt.Printf("%s %s %s\n", c.Hash[:12], c.When.Format(time.DateTime), c.Message)
	}
	return nil
}
