package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrEmptyKey is recorded for sources that normalize to an empty identity.
var ErrEmptyKey = errors.New("record has an empty identity")

// TargetError reports a failure affecting a whole target.
type TargetError struct {
	Target string
	Stage  string
	Err    error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target %s: %s failed: %v", e.Target, e.Stage, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

// BuildPlan computes the actions that bring target in line with sources.
// It calls only Prepare and List on the target. A failure of either is
// recorded in Plan.Fatal and every source is planned as an error.
func BuildPlan[S, T any](ctx context.Context, spec *Spec[S, T], sources []S, target Target[T], opts ReconcileOptions) *Plan[T] {
	plan := &Plan[T]{Target: target.Name()}
	adapter := spec.Adapter

	if p, ok := target.(Preparer); ok {
		if err := p.Prepare(ctx, opts); err != nil {
			return failPlan(plan, adapter, sources, &TargetError{Target: plan.Target, Stage: "prepare", Err: err})
		}
	}

	items, err := target.List(ctx)
	if err != nil {
		return failPlan(plan, adapter, sources, &TargetError{Target: plan.Target, Stage: "list", Err: err})
	}

	index := BuildIndex(items, adapter.Key)
	seen := make(map[string]struct{}, len(sources))
	normalizeFailed := false

	for i, src := range sources {
		value, err := adapter.Normalize(src)
		if err != nil {
			normalizeFailed = true
			plan.add(Action[T]{Type: ActionError, Key: fmt.Sprintf("source[%d]", i), Err: err})
			continue
		}

		key := adapter.Key(value)
		if key == "" {
			normalizeFailed = true
			plan.add(Action[T]{Type: ActionError, Key: fmt.Sprintf("source[%d]", i), Err: ErrEmptyKey})
			continue
		}
		seen[key] = struct{}{}

		existing, found := MatchByName(index, key)
		if !found {
			plan.add(Action[T]{Type: ActionCreate, Key: key, Value: value})
			// Later duplicates of this key compare against the planned value.
			index[key] = Item[T]{Value: value}
			continue
		}

		mismatch := adapter.Compare(existing.Value, value)
		switch {
		case len(mismatch) > 0:
			plan.add(Action[T]{Type: ActionUpdate, Key: key, ID: existing.ID, Mismatch: mismatch, Value: value})
		case opts.ForceUpdate:
			plan.add(Action[T]{Type: ActionUpdate, Key: key, ID: existing.ID, Mismatch: []string{"forced"}, Value: value})
		default:
			plan.add(Action[T]{Type: ActionUnchanged, Key: key, ID: existing.ID})
		}
		index[key] = Item[T]{ID: existing.ID, Value: value}
	}

	if opts.PruneMissing {
		if normalizeFailed {
			plan.PruneSkipped = true
		} else {
			for _, item := range items {
				key := adapter.Key(item.Value)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				plan.add(Action[T]{Type: ActionDelete, Key: key, ID: item.ID})
			}
		}
	}

	return plan
}

// ApplyPlan executes plan against target sequentially and reports every
// outcome. Per-record failures are captured and the run continues. With
// DryRun the report shows the planned actions and nothing is written.
// The returned error is a *TargetError for target-level failures only.
func ApplyPlan[T any](ctx context.Context, target Target[T], plan *Plan[T], opts ReconcileOptions, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := &Report{Target: plan.Target, DryRun: opts.DryRun, PruneSkipped: plan.PruneSkipped}

	if plan.Fatal != nil || opts.DryRun {
		for _, a := range plan.Actions {
			report.record(outcomeOf(a, a.Err))
		}
		return report, plan.Fatal
	}

	// IDs assigned by creates in this run, for duplicate sources planned as updates.
	created := make(map[string]string)

	for _, a := range plan.Actions {
		if err := ctx.Err(); err != nil {
			failed := a
			failed.Type = ActionError
			report.record(outcomeOf(failed, err))
			continue
		}

		var err error
		switch a.Type {
		case ActionCreate:
			var id string
			id, err = target.Create(ctx, a.Value)
			if err == nil {
				a.ID = id
				created[a.Key] = id
			}
		case ActionUpdate:
			if a.ID == "" {
				a.ID = created[a.Key]
			}
			err = target.Update(ctx, a.ID, a.Value)
		case ActionDelete:
			err = target.Delete(ctx, a.ID)
		}

		if err != nil {
			logger.Warn("Record reconcile failed",
				zap.String("target", plan.Target),
				zap.String("name", a.Key),
				zap.String("action", string(a.Type)),
				zap.Error(err),
			)
			a.Type = ActionError
		}
		report.record(outcomeOf(a, err))
	}

	if c, ok := target.(Committer); ok {
		if err := c.Commit(ctx); err != nil {
			return report, &TargetError{Target: plan.Target, Stage: "commit", Err: err}
		}
	}

	return report, nil
}

// Reconcile plans and applies in one call.
func Reconcile[S, T any](ctx context.Context, spec *Spec[S, T], sources []S, target Target[T], opts ReconcileOptions, logger *zap.Logger) (*Report, error) {
	plan := BuildPlan(ctx, spec, sources, target, opts)
	return ApplyPlan(ctx, target, plan, opts, logger)
}

func (p *Plan[T]) add(a Action[T]) {
	switch a.Type {
	case ActionCreate:
		p.Summary.Create++
	case ActionUpdate:
		p.Summary.Update++
	case ActionUnchanged:
		p.Summary.Unchanged++
	case ActionDelete:
		p.Summary.Delete++
	case ActionError:
		p.Summary.Errors++
	}
	p.Actions = append(p.Actions, a)
}

func failPlan[S, T any](plan *Plan[T], adapter Adapter[S, T], sources []S, err error) *Plan[T] {
	plan.Fatal = err
	for i, src := range sources {
		key := fmt.Sprintf("source[%d]", i)
		if value, nerr := adapter.Normalize(src); nerr == nil && adapter.Key(value) != "" {
			key = adapter.Key(value)
		}
		plan.add(Action[T]{Type: ActionError, Key: key, Err: err})
	}
	return plan
}

func outcomeOf[T any](a Action[T], err error) Outcome {
	o := Outcome{Name: a.Key, Action: a.Type, ID: a.ID, Mismatch: a.Mismatch}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}
