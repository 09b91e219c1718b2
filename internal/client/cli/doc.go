// Package cli provides the notematic command-line client.
//
// It runs a single command given on the command line (register, login,
// refresh, whoami, logout) or, without one, an interactive prompt accepting
// the same commands. Tokens are remembered in a session file between runs;
// whoami transparently refreshes an expired access token once.
package cli
