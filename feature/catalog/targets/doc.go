// Package targets implements the stores the catalog is reconciled into:
// the relational database, the static snapshot read by the frontend, and a
// remote production instance reached over HTTP.
//
// Each target implements reconcile.Target over models.ServiceRecord. The
// snapshot target buffers changes and writes the whole document on Commit;
// the remote target logs in during Prepare and retries failed requests with
// the same bounded policy as the database client.
package targets
