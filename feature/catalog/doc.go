// Package catalog exposes the service catalog over HTTP and runs syncs.
//
// The Service wraps the repository for CRUD and the reconcile coordinator for
// syncing the YAML definitions into the database, the static snapshot and the
// remote production instance. Concurrent sync requests are collapsed with
// singleflight.
//
// # Routes
//
//	GET    /services            list (name, limit, offset)
//	GET    /services/:id        one record
//	POST   /services            create
//	PUT    /services/:id        patch
//	DELETE /services/:id        hard delete
//	POST   /services/sync       sync (force, prune, dry_run, targets)
//
// Responses use the legacy shape: flat fields plus a nested details object.
package catalog
