package config

import (
	"os"

	"github.com/dmitrijs2005/notematic/internal/flagx"
	"github.com/spf13/viper"
)

// parseJson overlays Config with values loaded from a JSON file. Keys absent
// from the file keep their previous values. Panics on read or parse errors.
func parseJson(cfg *Config) {
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

	if v.IsSet("server_url") {
		cfg.ServerURL = v.GetString("server_url")
	}
	if v.IsSet("request_timeout") {
		cfg.RequestTimeout = v.GetDuration("request_timeout")
	}
	if v.IsSet("session_file") {
		cfg.SessionFile = v.GetString("session_file")
	}
}
