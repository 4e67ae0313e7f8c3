package sync

import (
	"context"
	"fmt"

	"github.com/jhaugan/catsync/internal/api"
)

// Reconciler restores parent/child relationships after a conversion
// cycle: a domain snapshot records which systems each domain contained,
// and those children have since been recreated as services. For every
// live system that matches a snapshot entry, the entry's children are
// assigned to the system as child services.
type Reconciler struct {
	Client Executor
	// ChildPrefix is the alias prefix under which former children were
	// recreated as services.
	// [optional] Defaults to DefaultServicePrefix.
	ChildPrefix string
}

// Report summarizes a reconciliation run. Per-record problems are
// collected here rather than aborting the batch.
type Report struct {
	Matched   int // live systems with a snapshot entry
	Unmatched int // live systems without one
	Assigned  int // systems whose assignment mutation succeeded
	Failed    int // systems whose assignment mutation failed
	Skipped   int // children skipped because they could not be resolved
	Problems  []string
}

func (r *Report) String() string {
	return fmt.Sprintf("%d systems matched (%d assigned, %d failed), %d unmatched, %d children skipped",
		r.Matched, r.Assigned, r.Failed, r.Unmatched, r.Skipped)
}

// Reconcile matches each live system against the snapshot and assigns the
// matched entry's recorded children to the system. Unresolvable children
// and failed assignments are reported and skipped; only context
// cancellation stops the run early.
//
// Ids change across a delete/re-create cycle, so matching uses names and
// aliases: a snapshot entry matches a system when any of the entry's
// alias forms equals any of the system's, ignoring case. The first
// matching entry in snapshot order wins.
func (r *Reconciler) Reconcile(ctx context.Context, snapshot, systems []api.Entity) (*Report, error) {
	rep := &Report{}
	for i := range systems {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		sys := &systems[i]
		entry := matchSnapshot(snapshot, sys)
		if entry == nil {
			rep.Unmatched++
			continue
		}
		rep.Matched++
		children := r.childIdentifiers(entry, rep)
		if len(children) == 0 {
			continue
		}
		if err := r.assign(ctx, sys, children); err != nil {
			rep.Failed++
			rep.Problems = append(rep.Problems, fmt.Sprintf("system %q: %v", sys.Name, err))
			continue
		}
		rep.Assigned++
	}
	return rep, nil
}

func matchSnapshot(snapshot []api.Entity, sys *api.Entity) *api.Entity {
	for i := range snapshot {
		e := &snapshot[i]
		for _, a := range sys.AllAliases() {
			if e.HasAlias(a) {
				return e
			}
		}
	}
	return nil
}

// childIdentifiers maps the snapshot entry's children to the aliases of
// the services they were recreated as. Children without a name cannot be
// resolved and are recorded as skipped.
func (r *Reconciler) childIdentifiers(entry *api.Entity, rep *Report) []api.IdentifierInput {
	var ids []api.IdentifierInput
	for _, c := range entry.Children() {
		if c.Name == "" {
			rep.Skipped++
			rep.Problems = append(rep.Problems, fmt.Sprintf("snapshot entry %q: child %q has no name, skipped", entry.Name, c.ID))
			continue
		}
		ids = append(ids, api.IdentifierInput{Alias: r.childPrefix() + c.Name})
	}
	return ids
}

func (r *Reconciler) assign(ctx context.Context, sys *api.Entity, children []api.IdentifierInput) error {
	vars := map[string]any{
		"system":        api.IdentifierInput{ID: sys.ID},
		"childServices": children,
	}
	resp, err := r.Client.Execute(ctx, assignChildrenMutation, vars)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	res, err := decodeMutation(resp.Data, "systemChildAssign")
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%s", res.Errors.join())
	}
	return nil
}

func (r *Reconciler) childPrefix() string {
	if r.ChildPrefix == "" {
		return DefaultServicePrefix
	}
	return r.ChildPrefix
}
