package reconcile

import "context"

// ActionType is what the engine decided to do with one record.
type ActionType string

const (
	// ActionCreate inserts a record absent from the target.
	ActionCreate ActionType = "create"
	// ActionUpdate rewrites a record whose fields differ (or ForceUpdate).
	ActionUpdate ActionType = "update"
	// ActionUnchanged leaves an equal record alone.
	ActionUnchanged ActionType = "unchanged"
	// ActionDelete removes a target record absent from the sources (prune).
	ActionDelete ActionType = "delete"
	// ActionError marks a record that could not be planned or written.
	ActionError ActionType = "error"
)

// Item is one record as listed from a target.
type Item[T any] struct {
	// ID is the target-local identifier. It is never shared across targets.
	ID string

	// Value is the record in canonical form.
	Value T
}

// Target is a store the engine reconciles sources into.
type Target[T any] interface {
	// Name identifies the target in reports and logs.
	Name() string

	// List returns every record currently in the target.
	List(ctx context.Context) ([]Item[T], error)

	// Create inserts value and returns its target-local ID.
	Create(ctx context.Context, value T) (string, error)

	// Update overwrites the record with id.
	Update(ctx context.Context, id string, value T) error

	// Delete removes the record with id.
	Delete(ctx context.Context, id string) error
}

// Preparer is implemented by targets that need setup before listing,
// such as authenticating against a remote API. A failing Prepare fails the
// whole target without per-record calls. With opts.DryRun set, Prepare must
// not mutate the store.
type Preparer interface {
	Prepare(ctx context.Context, opts ReconcileOptions) error
}

// Committer is implemented by targets that buffer writes and persist them
// once after apply, such as a snapshot file.
type Committer interface {
	Commit(ctx context.Context) error
}

// Adapter provides the model-specific parts of reconciliation.
type Adapter[S, T any] interface {
	// Name returns the model name (e.g. "services").
	Name() string

	// Normalize converts a source definition into the canonical record.
	Normalize(src S) (T, error)

	// Key returns the cross-store identity of a record.
	Key(value T) string

	// Compare returns mismatch descriptions between the stored and the
	// incoming record, or nil when they are equal.
	Compare(existing, incoming T) []string
}

// Spec bundles the configuration of a reconciliation run.
type Spec[S, T any] struct {
	// Adapter provides model-specific reconciliation logic.
	Adapter Adapter[S, T]
}

// ReconcileOptions controls a reconciliation run.
type ReconcileOptions struct {
	// DryRun plans without writing. The report shows the planned actions.
	DryRun bool

	// ForceUpdate rewrites matched records even when they are equal.
	ForceUpdate bool

	// PruneMissing deletes target records absent from the sources. It is
	// skipped when any source fails to normalize.
	PruneMissing bool
}

// Action is one planned mutation.
type Action[T any] struct {
	// Type specifies the action to perform.
	Type ActionType

	// Key is the record identity.
	Key string

	// ID is the target-local identifier of the matched record, if any.
	ID string

	// Mismatch lists the differing fields for updates.
	Mismatch []string

	// Value is the incoming record for creates and updates.
	Value T

	// Err is set for ActionError.
	Err error
}

// Plan is the diff between the sources and one target.
type Plan[T any] struct {
	// Target is the name of the planned target.
	Target string

	// Actions in source order, followed by deletions.
	Actions []Action[T]

	// Summary provides aggregate counts.
	Summary PlanSummary

	// PruneSkipped is set when pruning was requested but a source failed.
	PruneSkipped bool

	// Fatal is set when the target could not be prepared or listed.
	Fatal error
}

// PlanSummary provides aggregate statistics for a plan.
type PlanSummary struct {
	Create    int `json:"create"`
	Update    int `json:"update"`
	Unchanged int `json:"unchanged"`
	Delete    int `json:"delete"`
	Errors    int `json:"errors"`
}

// Outcome is the result for one record.
type Outcome struct {
	Name     string     `json:"name"`
	Action   ActionType `json:"action"`
	Error    string     `json:"error,omitempty"`
	ID       string     `json:"id,omitempty"`
	Mismatch []string   `json:"mismatch,omitempty"`
}

// Report aggregates the outcomes of one target run. It is log output only.
type Report struct {
	Target       string    `json:"target"`
	DryRun       bool      `json:"dry_run"`
	Created      int       `json:"created"`
	Updated      int       `json:"updated"`
	Unchanged    int       `json:"unchanged"`
	Deleted      int       `json:"deleted"`
	Errors       int       `json:"errors"`
	PruneSkipped bool      `json:"prune_skipped,omitempty"`
	Outcomes     []Outcome `json:"outcomes"`
}

func (r *Report) record(o Outcome) {
	switch o.Action {
	case ActionCreate:
		r.Created++
	case ActionUpdate:
		r.Updated++
	case ActionUnchanged:
		r.Unchanged++
	case ActionDelete:
		r.Deleted++
	case ActionError:
		r.Errors++
	}
	r.Outcomes = append(r.Outcomes, o)
}
