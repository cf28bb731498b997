package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Kind names a target class. Targets always run in Order.
type Kind string

const (
	KindDatabase Kind = "database"
	KindSnapshot Kind = "snapshot"
	KindRemote   Kind = "remote"
)

// Order is the fixed sequence in which targets are reconciled.
var Order = []Kind{KindDatabase, KindSnapshot, KindRemote}

// ParseKind validates a target name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Order {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown target %q", s)
}

// TargetStatus is the overall state of one target after a sync.
type TargetStatus string

const (
	StatusOK     TargetStatus = "ok"
	StatusFailed TargetStatus = "failed"
)

// TargetResult is the outcome of one target.
type TargetResult struct {
	Target Kind         `json:"target"`
	Status TargetStatus `json:"status"`
	Report *Report      `json:"report"`
	Error  string       `json:"error,omitempty"`
}

// SyncResult collects the per-target results of SyncAll.
type SyncResult struct {
	Results  map[Kind]*TargetResult `json:"results"`
	Order    []Kind                 `json:"order"`
	Duration time.Duration          `json:"duration_ns"`
}

// Failed returns the targets whose status is failed, in run order.
func (r *SyncResult) Failed() []Kind {
	var out []Kind
	for _, k := range r.Order {
		if res := r.Results[k]; res != nil && res.Status == StatusFailed {
			out = append(out, k)
		}
	}
	return out
}

// Errors sums the per-record errors of every target.
func (r *SyncResult) Errors() int {
	n := 0
	for _, res := range r.Results {
		if res.Report != nil {
			n += res.Report.Errors
		}
	}
	return n
}

// SyncOptions controls SyncAll.
type SyncOptions struct {
	ReconcileOptions

	// Only restricts the run to these targets. Empty means all.
	Only []Kind
}

func (o SyncOptions) includes(k Kind) bool {
	if len(o.Only) == 0 {
		return true
	}
	for _, only := range o.Only {
		if only == k {
			return true
		}
	}
	return false
}

// Coordinator runs the engine once per target.
type Coordinator[S, T any] struct {
	spec   *Spec[S, T]
	logger *zap.Logger
}

// NewCoordinator creates a coordinator for spec.
func NewCoordinator[S, T any](spec *Spec[S, T], logger *zap.Logger) *Coordinator[S, T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator[S, T]{spec: spec, logger: logger}
}

// SyncAll reconciles sources into each of targets in Order. A target-level
// failure is recorded and the remaining targets still run. Kinds absent from
// targets or excluded by opts.Only are skipped.
func (c *Coordinator[S, T]) SyncAll(ctx context.Context, sources []S, targets map[Kind]Target[T], opts SyncOptions) *SyncResult {
	start := time.Now()
	result := &SyncResult{Results: make(map[Kind]*TargetResult)}

	for _, kind := range Order {
		target, ok := targets[kind]
		if !ok || target == nil || !opts.includes(kind) {
			continue
		}

		log := c.logger.With(zap.String("target", string(kind)))
		log.Info("Reconciling target", zap.Int("sources", len(sources)), zap.Bool("dry_run", opts.DryRun))

		report, err := Reconcile(ctx, c.spec, sources, target, opts.ReconcileOptions, log)
		res := &TargetResult{Target: kind, Status: StatusOK, Report: report}
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			log.Error("Target failed", zap.Error(err))
		} else {
			log.Info("Target reconciled",
				zap.Int("created", report.Created),
				zap.Int("updated", report.Updated),
				zap.Int("unchanged", report.Unchanged),
				zap.Int("deleted", report.Deleted),
				zap.Int("errors", report.Errors),
			)
		}

		result.Results[kind] = res
		result.Order = append(result.Order, kind)
	}

	result.Duration = time.Since(start)
	return result
}
