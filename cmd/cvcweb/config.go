package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/craigvc/cvcwebsolutions-sub003/maint"
)

const (
	defaultAPIURL  = "http://localhost:3456"
	defaultDBPath  = "data/payload.db"
	defaultContent = "data/content.db"
	configFileName = "cvcweb"
	envPrefix      = "CVCWEB"
)

// assignment maps one portfolio title to a client category. It is a list
// entry rather than a map key because viper lowercases map keys.
type assignment struct {
	Title    string `mapstructure:"title"`
	Category string `mapstructure:"category"`
}

// cliConfig holds the settings shared by the maintenance commands.
type cliConfig struct {
	APIURL              string       `mapstructure:"api_url"`
	DB                  string       `mapstructure:"db"`
	ContentDB           string       `mapstructure:"content_db"`
	DryRun              bool         `mapstructure:"dry_run"`
	MediaPrefix         string       `mapstructure:"media_prefix"`
	CategoryAssignments []assignment `mapstructure:"category_assignments"`
}

func (c *cliConfig) assignments() map[string]string {
	m := make(map[string]string, len(c.CategoryAssignments))
	for _, a := range c.CategoryAssignments {
		if a.Title != "" && a.Category != "" {
			m[a.Title] = a.Category
		}
	}
	return m
}

// loadConfig merges, lowest first: defaults, cvcweb.yaml, CVCWEB_* env vars,
// and flags set on the command line. A missing default config file is not
// an error; a missing file named with --config is.
func loadConfig(path string, flags *pflag.FlagSet) (*cliConfig, error) {
	v := viper.New()
	v.SetDefault("api_url", defaultAPIURL)
	v.SetDefault("db", defaultDBPath)
	v.SetDefault("content_db", defaultContent)
	v.SetDefault("dry_run", false)
	v.SetDefault("media_prefix", maint.DefaultMediaPrefix)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range map[string]string{
			"api_url": "api-url", "db": "db", "content_db": "content-db", "dry_run": "dry-run",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
