package config

import (
	"net"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables read at startup.
var envBindings = map[string]string{
	"environment":          "ENVIRONMENT",
	"log_backend":          "LOG_BACKEND",
	"grpc_addr":            "GRPC_ADDR",
	"access_token_secret":  "JWT_SECRET",
	"refresh_token_secret": "REFRESH_TOKEN_SECRET",
	"bcrypt_cost":          "BCRYPT_COST",
	"store_backend":        "STORE_BACKEND",
	"couchdb_url":          "COUCHDB_URL",
	"couchdb_user":         "COUCHDB_USER",
	"couchdb_password":     "COUCHDB_PASSWORD",
	"couchdb_database":     "COUCHDB_DATABASE",
	"store_timeout":        "STORE_TIMEOUT",
	"database_dsn":         "DATABASE_DSN",
	"redis_addr":           "REDIS_ADDR",
	"redis_password":       "REDIS_PASSWORD",
	"redis_db":             "REDIS_DB",
	"user_cache_ttl":       "USER_CACHE_TTL",
}

// parseEnv overlays values from environment variables. The HTTP address is
// assembled from API_HOST and API_PORT; a missing half keeps its current
// value.
func parseEnv(config *Config) {
	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	_ = v.BindEnv("api_host", "API_HOST")
	_ = v.BindEnv("api_port", "API_PORT")

	overlay(v, config)

	if v.IsSet("api_host") || v.IsSet("api_port") {
		host, port, err := net.SplitHostPort(config.HTTPAddr)
		if err != nil {
			host, port = "", ""
		}
		if v.IsSet("api_host") {
			host = v.GetString("api_host")
		}
		if v.IsSet("api_port") {
			port = v.GetString("api_port")
		}
		config.HTTPAddr = net.JoinHostPort(host, port)
	}
}
