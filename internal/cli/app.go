// Package cli implements the command flows behind the interactive menu
// and the direct subcommands. Flows live on an App whose transport,
// snapshot sources, input and output are injected, so they are testable
// without a console or network.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/jhaugan/catsync/internal/api"
	"github.com/jhaugan/catsync/internal/config"
	"github.com/jhaugan/catsync/internal/filter"
	"github.com/jhaugan/catsync/internal/report"
	"github.com/jhaugan/catsync/internal/snapshot"
	"github.com/jhaugan/catsync/internal/sync"
)

// Options configures an App beyond its required dependencies.
type Options struct {
	// Archive is the snapshot source reconciliation reads from.
	// [optional] Defaults to the local snapshot store.
	Archive snapshot.Source
	// Rules is the loaded rules bundle.
	// [optional] Defaults to config.Default().
	Rules *config.Bundle
	// In is the console input used by the menu and prompts.
	// [optional] Defaults to os.Stdin.
	In io.Reader
	// Out receives all user-facing output.
	// [optional] Defaults to os.Stdout.
	Out io.Writer
	// Filter overrides the per-kind default filters for every flow.
	// [optional]
	Filter string
	// Prefix overrides the configured service alias prefix.
	// [optional]
	Prefix string
	// MaxPages bounds each paginated fetch. See sync.Paginator.
	// [optional]
	MaxPages int
	// KeepGoing continues a conversion batch past per-record failures.
	// [optional]
	KeepGoing bool
	// SkipExisting skips sources whose target alias is already taken.
	// [optional]
	SkipExisting bool
	// SnapshotPath is the snapshot used by the reconcile and report
	// flows. If empty, the user is prompted for a path.
	// [optional]
	SnapshotPath string
	// ReportFile receives the rendered report. An empty value renders
	// to Out.
	// [optional]
	ReportFile string
	// HTML renders the report as an HTML page instead of markdown.
	// [optional]
	HTML bool
	// Now supplies the time used for snapshot file naming.
	// [optional] Defaults to time.Now.
	Now func() time.Time
}

// App carries the dependencies shared by all command flows.
type App struct {
	client  sync.Executor
	store   snapshot.Source
	archive snapshot.Source
	rules   *config.Bundle
	// Compiled -filter override, nil when none was given.
	flagFilter *filter.Evaluator
	in         *bufio.Reader
	out        io.Writer
	opts       Options
}

// New creates an App. The record filter given in opts is compiled here,
// so a bad filter fails before any flow runs.
func New(client sync.Executor, store snapshot.Source, opts Options) (*App, error) {
	archive := opts.Archive
	if archive == nil {
		archive = store
	}
	rules := opts.Rules
	if rules == nil {
		rules = config.Default()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	a := &App{
		client:  client,
		store:   store,
		archive: archive,
		rules:   rules,
		in:      bufio.NewReader(in),
		out:     out,
		opts:    opts,
	}
	if opts.Filter != "" {
		ev, err := filter.Compile(opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %v", opts.Filter, err)
		}
		a.flagFilter = ev
	}
	return a, nil
}

// FetchSystems fetches all systems and writes the dated snapshot file.
func (a *App) FetchSystems(ctx context.Context) error {
	records, err := a.fetchAll(ctx, sync.SystemsQuery)
	if err != nil {
		return err
	}
	name, err := a.writeSnapshot(records, api.KindSystem)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Systems data saved to %s\n", name)
	return nil
}

// FetchDomains fetches all domains and writes the dated snapshot file.
func (a *App) FetchDomains(ctx context.Context) error {
	records, err := a.fetchAll(ctx, sync.DomainsQuery)
	if err != nil {
		return err
	}
	name, err := a.writeSnapshot(records, api.KindDomain)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Domains data saved to %s\n", name)
	return nil
}

// ConvertSystems creates one service per (selected) system.
func (a *App) ConvertSystems(ctx context.Context) error {
	existing, err := a.existingTargets(ctx, sync.ServicesQuery)
	if err != nil {
		return err
	}
	records, err := a.fetchAll(ctx, sync.SystemsQuery)
	if err != nil {
		return err
	}
	records, err = a.selectRecords(api.KindSystem, records)
	if err != nil {
		return err
	}
	conv := &sync.ServiceConverter{Client: a.client, Prefix: a.servicePrefix()}
	return a.convertAll(ctx, records, conv, existing, "System %s converted to service with ID %s\n")
}

// ConvertDomains creates one system per (selected) domain.
func (a *App) ConvertDomains(ctx context.Context) error {
	existing, err := a.existingTargets(ctx, sync.SystemsQuery)
	if err != nil {
		return err
	}
	records, err := a.fetchAll(ctx, sync.DomainsQuery)
	if err != nil {
		return err
	}
	records, err = a.selectRecords(api.KindDomain, records)
	if err != nil {
		return err
	}
	conv := &sync.SystemConverter{Client: a.client}
	return a.convertAll(ctx, records, conv, existing, "Domain %s converted to system with ID %s\n")
}

// snapshotPath returns the snapshot path for the reconcile and report
// flows, prompting the user when no -snapshot was given.
func (a *App) snapshotPath() (string, error) {
	if a.opts.SnapshotPath != "" {
		return a.opts.SnapshotPath, nil
	}
	fmt.Fprint(a.out, "Please enter the path to the domains_data.json file: ")
	return a.readLine()
}

// Reconcile reads a domains snapshot, fetches the live systems and
// assigns each matched system the services its former children were
// converted to. A missing snapshot file is reported, not fatal.
func (a *App) Reconcile(ctx context.Context) error {
	path, err := a.snapshotPath()
	if err != nil {
		return err
	}
	snap, err := snapshot.Read(a.archive, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(a.out, "File %s not found. Please try again.\n", path)
			return nil
		}
		return err
	}
	systems, err := a.fetchAll(ctx, sync.SystemsQuery)
	if err != nil {
		return err
	}
	systems, err = a.selectRecords(api.KindSystem, systems)
	if err != nil {
		return err
	}
	rec := &sync.Reconciler{Client: a.client, ChildPrefix: a.childPrefix()}
	res, err := rec.Reconcile(ctx, snap, systems)
	if err != nil {
		return err
	}
	for _, p := range res.Problems {
		fmt.Fprintf(a.out, "Problem: %s\n", p)
	}
	fmt.Fprintf(a.out, "Reconciliation finished: %s\n", res)
	return nil
}

// Report renders a snapshot into a markdown or HTML summary. The output
// goes to the configured report file, or to standard output when none
// was given.
func (a *App) Report() error {
	path, err := a.snapshotPath()
	if err != nil {
		return err
	}
	info, ok := snapshot.ParseInfo(path)
	if !ok {
		return fmt.Errorf("cannot tell the snapshot kind from %q; expected a name like systems_data_20260310.json", path)
	}
	records, err := snapshot.Read(a.archive, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(a.out, "File %s not found. Please try again.\n", path)
			return nil
		}
		return err
	}
	gen := report.NewGenerator(info, records)

	w := a.out
	if a.opts.ReportFile != "" {
		f, err := os.Create(a.opts.ReportFile)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if a.opts.HTML {
		err = gen.WriteHTML(w)
	} else {
		err = gen.WriteMarkdown(w)
	}
	if err != nil {
		return err
	}
	if a.opts.ReportFile != "" {
		fmt.Fprintf(a.out, "Report written to %s\n", a.opts.ReportFile)
	}
	return nil
}

// Snapshots lists the snapshot archive.
func (a *App) Snapshots() error {
	infos, err := snapshot.List(a.archive)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(a.out, "No snapshots found")
		return nil
	}
	for _, in := range infos {
		fmt.Fprintf(a.out, "%s  %-6s  %s\n", in.Date.Format("2006-01-02"), in.Kind, in.Path)
	}
	return nil
}

// RunMenu presents the interactive menu, reads one selection from the
// console and runs the corresponding flow once. An invalid selection
// prints a message and returns without error.
func (a *App) RunMenu(ctx context.Context) error {
	fmt.Fprintln(a.out, "Select an option:")
	fmt.Fprintln(a.out, "1. Fetch systems and write to a file.")
	fmt.Fprintln(a.out, "2. Convert systems to services.")
	fmt.Fprintln(a.out, "3. Fetch domains and write to a file.")
	fmt.Fprintln(a.out, "4. Convert domains to systems.")
	fmt.Fprintln(a.out, "5. Assign services to systems from a domains snapshot.")
	fmt.Fprint(a.out, "Enter your choice (1/2/3/4/5): ")
	choice, err := a.readLine()
	if err != nil {
		return err
	}
	switch choice {
	case "1":
		return a.FetchSystems(ctx)
	case "2":
		return a.ConvertSystems(ctx)
	case "3":
		return a.FetchDomains(ctx)
	case "4":
		return a.ConvertDomains(ctx)
	case "5":
		return a.Reconcile(ctx)
	default:
		fmt.Fprintln(a.out, "Invalid choice. Please enter 1, 2, 3, 4, or 5.")
		return nil
	}
}

func (a *App) fetchAll(ctx context.Context, q sync.EntityQuery) ([]api.Entity, error) {
	p := &sync.Paginator{Client: a.client, MaxPages: a.opts.MaxPages}
	return p.FetchAll(ctx, q)
}

func (a *App) writeSnapshot(records []api.Entity, kind api.Kind) (string, error) {
	w := snapshot.Writer{Target: a.store, Now: a.opts.Now}
	return w.Write(records, kind)
}

// selectRecords applies the effective filter for kind: the -filter
// override if given, else the per-kind default from the rules file.
func (a *App) selectRecords(kind api.Kind, records []api.Entity) ([]api.Entity, error) {
	ev := a.flagFilter
	if ev == nil {
		switch kind {
		case api.KindDomain:
			ev = a.rules.Filters.DomainsFilter()
		default:
			ev = a.rules.Filters.SystemsFilter()
		}
	}
	if ev == nil {
		return records, nil
	}
	selected := make([]api.Entity, 0, len(records))
	for i := range records {
		match, err := ev.Matches(kind, &records[i])
		if err != nil {
			return nil, fmt.Errorf("applying filter %s: %v", ev, err)
		}
		if match {
			selected = append(selected, records[i])
		}
	}
	fmt.Fprintf(a.out, "Filter %s selected %d of %d %ss\n", ev, len(selected), len(records), kind)
	return selected, nil
}

// converter is the common surface of the entity converters.
type converter interface {
	Convert(ctx context.Context, source *api.Entity) (string, error)
	TargetAlias(source *api.Entity) string
}

// existingTargets returns the lowercased aliases of all entities matched
// by q when the skip-existing pre-check is enabled, nil otherwise. With
// the pre-check off, the duplication risk is pointed out instead.
func (a *App) existingTargets(ctx context.Context, q sync.EntityQuery) (map[string]bool, error) {
	if !a.opts.SkipExisting {
		fmt.Fprintln(a.out, "Note: conversions always create new entities, so re-running this flow creates duplicates")
		return nil, nil
	}
	records, err := a.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool)
	for i := range records {
		for _, alias := range records[i].AllAliases() {
			taken[strings.ToLower(alias)] = true
		}
	}
	return taken, nil
}

// convertAll runs conv over records serially. The first failure aborts
// the batch unless KeepGoing is set, in which case failures are reported
// per record and counted at the end.
func (a *App) convertAll(ctx context.Context, records []api.Entity, conv converter, existing map[string]bool, doneFormat string) error {
	failed := 0
	for i := range records {
		rec := &records[i]
		if existing != nil {
			if alias := conv.TargetAlias(rec); existing[strings.ToLower(alias)] {
				fmt.Fprintf(a.out, "Skipping %s: target alias %s already exists\n", rec.Name, alias)
				continue
			}
		}
		id, err := conv.Convert(ctx, rec)
		if err != nil {
			if !a.opts.KeepGoing {
				return err
			}
			failed++
			fmt.Fprintf(a.out, "Failed to convert %s: %v\n", rec.Name, err)
			continue
		}
		fmt.Fprintf(a.out, doneFormat, rec.Name, id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(records))
	}
	return nil
}

func (a *App) servicePrefix() string {
	if a.opts.Prefix != "" {
		return a.opts.Prefix
	}
	// An empty prefix here lets the converter default apply.
	return a.rules.Convert.ServicePrefix
}

func (a *App) childPrefix() string {
	if p := a.rules.Reconcile.ChildPrefix; p != "" {
		return p
	}
	return a.servicePrefix()
}

// readLine reads one line from the console, without the trailing
// newline. A final unterminated line is returned without an error.
func (a *App) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
