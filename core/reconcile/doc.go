// Package reconcile converges target stores onto a list of source definitions.
//
// The engine is generic over the source type S and the canonical record type T.
// An Adapter supplies normalization, identity and comparison; a Target supplies
// list and write operations for one store.
//
// # Plan and apply
//
// BuildPlan lists the target once, indexes the records by key and diffs every
// source against that index:
//   - absent key: create
//   - present key with mismatching fields (or ForceUpdate): update
//   - otherwise: unchanged
//   - with PruneMissing, listed records absent from the sources: delete
//
// ApplyPlan executes the actions sequentially. A failing record is captured
// in the Report and the run continues; only Prepare, List and Commit failures
// are reported as target-level errors. Without ForceUpdate a second run over
// the same sources reports every record unchanged.
//
// # Coordinator
//
// Coordinator.SyncAll runs the engine against each target in Order (database,
// snapshot, remote). A failed target does not stop the others:
//
//	spec := &reconcile.Spec[models.RawRecord, models.ServiceRecord]{Adapter: adapter}
//	result := reconcile.NewCoordinator(spec, logger).SyncAll(ctx, sources, targets, opts)
//	for _, kind := range result.Order {
//	    fmt.Println(kind, result.Results[kind].Status)
//	}
package reconcile
