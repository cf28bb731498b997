// Package middleware groups the HTTP middleware for the Fiber application.
//
//   - auth: API key validation protecting the admin endpoints.
//   - rayid: a request id (ray id) stored on the context and echoed in the
//     X-Ray-ID response header for tracing; logger.WithRayID picks it up.
package middleware
