package config

import (
	"os"

	"github.com/dmitrijs2005/notematic/internal/flagx"
	"github.com/spf13/viper"
)

// parseJson overlays values from the JSON file named by -c/-config.
// Only keys present in the file are applied, so defaults survive partial
// files. Durations accept strings such as "10s". An unreadable or invalid
// file panics: the server must not start on a half-read configuration.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		panic(err)
	}
	overlay(v, config)
}

// overlay copies every key set in v onto config. Keys are shared by the JSON
// file and the environment bindings.
func overlay(v *viper.Viper, config *Config) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	str("http_addr", &config.HTTPAddr)
	str("grpc_addr", &config.GRPCAddr)
	str("environment", &config.Environment)
	str("log_backend", &config.LogBackend)
	str("access_token_secret", &config.AccessTokenSecret)
	str("refresh_token_secret", &config.RefreshTokenSecret)
	str("store_backend", &config.StoreBackend)
	str("couchdb_url", &config.CouchDBURL)
	str("couchdb_user", &config.CouchDBUser)
	str("couchdb_password", &config.CouchDBPassword)
	str("couchdb_database", &config.CouchDBDatabase)
	str("database_dsn", &config.DatabaseDSN)
	str("redis_addr", &config.RedisAddr)
	str("redis_password", &config.RedisPassword)

	if v.IsSet("bcrypt_cost") {
		config.BcryptCost = v.GetInt("bcrypt_cost")
	}
	if v.IsSet("redis_db") {
		config.RedisDB = v.GetInt("redis_db")
	}
	if v.IsSet("store_timeout") {
		config.StoreTimeout = v.GetDuration("store_timeout")
	}
	if v.IsSet("user_cache_ttl") {
		config.UserCacheTTL = v.GetDuration("user_cache_ttl")
	}
}
