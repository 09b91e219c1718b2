package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/notematic/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., "127.0.0.1:8080")
//	-g string   gRPC bind address (e.g., ":50051")
//	-s string   access token secret
//	-r string   refresh token secret
//	-b string   store backend ("couchdb" or "postgres")
//	-u string   CouchDB base URL
//	-n string   CouchDB database name
//	-d string   PostgreSQL DSN
//	-k int      bcrypt cost
//	-R string   Redis address for the user lookup cache
//	-l string   log backend ("slog" or "zap")
//
// Store credentials are deliberately not accepted as flags; they would be
// visible in the process list.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-s", "-r", "-b", "-u", "-n", "-d", "-k", "-R", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "r", config.RefreshTokenSecret, "refresh token secret")
	fs.StringVar(&config.StoreBackend, "b", config.StoreBackend, "store backend")
	fs.StringVar(&config.CouchDBURL, "u", config.CouchDBURL, "CouchDB base URL")
	fs.StringVar(&config.CouchDBDatabase, "n", config.CouchDBDatabase, "CouchDB users database")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "PostgreSQL DSN")
	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.RedisAddr, "R", config.RedisAddr, "Redis address")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
