package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jhaugan/catsync/internal/cli"
	"github.com/jhaugan/catsync/internal/config"
	"github.com/jhaugan/catsync/internal/gitclient"
	"github.com/jhaugan/catsync/internal/graphql"
	"github.com/jhaugan/catsync/internal/snapshot"
	"github.com/peterbourgon/ff/v3"
)

var (
	// Version is the application version.
	// It is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
)

func gitClientAuthFromEnv() *gitclient.Auth {
	user := os.Getenv("CATSYNC_GIT_USER")
	if user == "" {
		return nil
	}
	pass := os.Getenv("CATSYNC_GIT_PASSWORD")
	return &gitclient.Auth{
		Username: user,
		Password: pass,
	}
}

// Options contains program options that can be set via command-line flags or environment variables.
type Options struct {
	Endpoint     string
	APIToken     string
	SnapshotDir  string
	GitURL       string
	GitRef       string
	RulesFile    string
	Filter       string
	Prefix       string
	Snapshot     string
	ReportFile   string
	MaxPages     int
	HTTPTimeout  time.Duration
	KeepGoing    bool
	SkipExisting bool
	HTML         bool
}

func main() {
	if len(os.Args) < 2 {
		// Default to the interactive menu.
		runMenu(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "menu":
		runMenu(os.Args[2:])
	case "fetch-systems":
		runFlow("fetch-systems", os.Args[2:], (*cli.App).FetchSystems)
	case "convert-systems":
		runFlow("convert-systems", os.Args[2:], (*cli.App).ConvertSystems)
	case "fetch-domains":
		runFlow("fetch-domains", os.Args[2:], (*cli.App).FetchDomains)
	case "convert-domains":
		runFlow("convert-domains", os.Args[2:], (*cli.App).ConvertDomains)
	case "reconcile":
		runFlow("reconcile", os.Args[2:], (*cli.App).Reconcile)
	case "report":
		runReport(os.Args[2:])
	case "snapshots":
		runSnapshots(os.Args[2:])
	case "version":
		fmt.Printf("catsync %s\n", Version)
	default:
		// Also default to the menu if the argument looks like a flag
		if strings.HasPrefix(os.Args[1], "-") {
			runMenu(os.Args[1:])
			return
		}
		fmt.Fprintf(os.Stderr, "Unknown command %q. Available commands: menu, fetch-systems, convert-systems, fetch-domains, convert-domains, reconcile, report, snapshots, version\n", os.Args[1])
		os.Exit(1)
	}
}

func parseFlags(name string, args []string) Options {
	var opts Options
	fs := flag.NewFlagSet("catsync "+name, flag.ExitOnError)
	fs.StringVar(&opts.Endpoint, "endpoint", "https://app.opslevel.com/graphql", "URL of the catalog GraphQL endpoint")
	fs.StringVar(&opts.APIToken, "api-token", "", "API token for the catalog. Usually set via the CATSYNC_API_TOKEN environment variable.")
	fs.StringVar(&opts.SnapshotDir, "snapshot-dir", ".", "Directory where snapshot files are written and read")
	fs.StringVar(&opts.GitURL, "git-url", "", "URL of a git repository to read the snapshot archive from (read-only)")
	fs.StringVar(&opts.GitRef, "git-ref", "", "Git ref (branch or tag) to read snapshots from. Defaults to the repository's default branch.")
	fs.StringVar(&opts.RulesFile, "rules", "", "Path to the rules YAML file")
	fs.StringVar(&opts.Filter, "filter", "", "Filter expression selecting the records the convert and reconcile flows operate on")
	fs.StringVar(&opts.Prefix, "service-prefix", "", "Alias prefix for services created from systems. Overrides the rules file.")
	fs.StringVar(&opts.Snapshot, "snapshot", "", "Path of the snapshot used by reconcile and report, relative to the archive. If empty, the flow prompts for it.")
	fs.StringVar(&opts.ReportFile, "out", "", "Output file for the report command. If empty, the report goes to stdout.")
	fs.IntVar(&opts.MaxPages, "max-pages", 1000, "Max. number of pages to fetch per query before giving up")
	fs.DurationVar(&opts.HTTPTimeout, "http-timeout", 30*time.Second, "Timeout for a single HTTP request to the endpoint")
	fs.BoolVar(&opts.KeepGoing, "keep-going", false, "Continue converting after a record fails and report all failures at the end")
	fs.BoolVar(&opts.SkipExisting, "skip-existing", false, "List existing target entities first and skip records whose target alias is already taken")
	fs.BoolVar(&opts.HTML, "html", false, "Render the report as an HTML page instead of markdown")

	err := ff.Parse(fs, args, ff.WithEnvVarPrefix("CATSYNC"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(1)
	}
	logOpts := opts
	if logOpts.APIToken != "" {
		logOpts.APIToken = "(set)"
	}
	log.Printf("Using config from flags/env vars: %+v", logOpts)
	return opts
}

func newApp(opts Options, needsAPI bool) *cli.App {
	if needsAPI && opts.APIToken == "" {
		log.Fatalf("No API token configured. Set CATSYNC_API_TOKEN or pass -api-token.")
	}
	client := graphql.New(opts.Endpoint, opts.APIToken, graphql.Options{
		HTTPClient: &http.Client{Timeout: opts.HTTPTimeout},
	})

	var rules *config.Bundle
	if opts.RulesFile != "" {
		var err error
		rules, err = config.Load(opts.RulesFile)
		if err != nil {
			log.Fatalf("Could not load rules: %v", err)
		}
	}

	app, err := cli.New(client, snapshot.NewDirSource(opts.SnapshotDir), cli.Options{
		Archive:      createArchive(opts),
		Rules:        rules,
		Filter:       opts.Filter,
		Prefix:       opts.Prefix,
		MaxPages:     opts.MaxPages,
		KeepGoing:    opts.KeepGoing,
		SkipExisting: opts.SkipExisting,
		SnapshotPath: opts.Snapshot,
		ReportFile:   opts.ReportFile,
		HTML:         opts.HTML,
	})
	if err != nil {
		log.Fatalf("Could not set up: %v", err)
	}
	return app
}

// createArchive returns the read side of the snapshot archive, or nil to
// read from the local snapshot directory.
func createArchive(opts Options) snapshot.Source {
	if opts.GitURL == "" {
		return nil
	}
	auth := gitClientAuthFromEnv()
	log.Printf("Retrieving snapshot archive from git URL %s", opts.GitURL)
	loader, err := gitclient.New(opts.GitURL, auth)
	if err != nil {
		log.Fatalf("Failed to retrieve git repo: %v", err)
	}
	src, err := snapshot.NewGitSource(loader, opts.GitRef)
	if err != nil {
		log.Fatalf("Cannot read snapshots from git: %v", err)
	}
	log.Printf("Using git archive at ref %q", src.Ref())
	return src
}

func runMenu(args []string) {
	opts := parseFlags("menu", args)
	app := newApp(opts, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := app.RunMenu(ctx); err != nil {
		log.Fatalf("Menu failed: %v", err)
	}
}

func runFlow(name string, args []string, flow func(*cli.App, context.Context) error) {
	opts := parseFlags(name, args)
	app := newApp(opts, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := flow(app, ctx); err != nil {
		log.Fatalf("Command %s failed: %v", name, err)
	}
}

func runSnapshots(args []string) {
	opts := parseFlags("snapshots", args)
	// Listing the archive needs no API access.
	app := newApp(opts, false)
	if err := app.Snapshots(); err != nil {
		log.Fatalf("Listing snapshots failed: %v", err)
	}
}

func runReport(args []string) {
	opts := parseFlags("report", args)
	// Rendering a snapshot needs no API access.
	app := newApp(opts, false)
	if err := app.Report(); err != nil {
		log.Fatalf("Report failed: %v", err)
	}
}
