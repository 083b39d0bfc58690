// Package config loads serve-mode settings from file and environment.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Addr       string `mapstructure:"addr"`
	LogLevel   string `mapstructure:"log_level"`
	LogConsole bool   `mapstructure:"log_console"`
	CacheSize  int    `mapstructure:"cache_size"`
	MaxCells   int    `mapstructure:"max_cells"`
}

// Load reads hexmesh.yaml from the working directory unless an explicit
// file is given. Environment variables (HEXMESH_ADDR, HEXMESH_MAX_CELLS,
// ...) take precedence over the file.
func Load(file string) (Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", false)
	v.SetDefault("cache_size", 128)
	v.SetDefault("max_cells", 200000)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("hexmesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HEXMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; an explicit one must exist.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}

	if c.CacheSize <= 0 {
		c.CacheSize = 128
	}
	if c.MaxCells <= 0 {
		c.MaxCells = 200000
	}
	return c, nil
}
