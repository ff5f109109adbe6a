// Package server holds the operator HTTP server configuration.
//
// The start command owns the Fiber app itself; this package only defines the
// listen port, the API key that protects the operator endpoints and the
// graceful shutdown bound.
package server
