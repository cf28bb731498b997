// Package server holds the HTTP server configuration.
//
// The Config struct defines the listen port, the API key protecting the admin
// endpoints and the request body limit. It is embedded by core/config.
package server
