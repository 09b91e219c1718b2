// Package config loads settings for the notematic CLI.
//
// Sources are applied in order, each overriding the previous one:
//
//  1. Defaults (LoadDefaults).
//  2. A JSON file named by -c/-config (parseJson).
//  3. Command-line flags (parseFlags).
//
// JSON keys: server_url, request_timeout (duration string such as "5s"),
// session_file.
package config
