// Package client contains the HTTP client for the notematic auth server and
// a small file-backed session store used by the CLI.
//
// Server answers are mapped to sentinel errors that callers match with
// errors.Is: ErrUnauthorized, ErrConflict, ErrBadRequest, ErrUnavailable.
// All calls accept a context.Context and honour cancellation.
package client
