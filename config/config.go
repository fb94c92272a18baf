// Package config provides configuration management for the application.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Category binds an interned category key to its human-readable wiki
// category name. The category set is fixed configuration; an unknown key is
// a client error.
type Category struct {
	Key  string
	Name string
}

// Config holds the application configuration.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Cache  CacheConfig
	Search SearchConfig
	Wiki   WikiConfig
	Log    LogConfig

	// Categories is the fixed, ordered category set. Iteration order is
	// significant: item lookups resolve against categories in this order.
	Categories []Category
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              string
	DefaultItemsLimit int
	MetricsEnabled    bool
}

// RedisConfig holds the fast cache tier configuration. An empty URL runs
// the service on the durable file tier only.
type RedisConfig struct {
	URL string
}

// CacheConfig holds TTLs and the durable tier / snapshot directories.
type CacheConfig struct {
	TTL      time.Duration
	CacheDir string
	DataDir  string
}

// SearchConfig holds search aggregation settings. Search results rot
// faster than source data, so their TTL is shorter than the category TTL.
type SearchConfig struct {
	TTL            time.Duration
	MinQueryLength int
	MaxResults     int
}

// WikiConfig identifies the fandom wiki being scraped.
type WikiConfig struct {
	Slug     string
	Language string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Format string // "json" or "text"
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // .env file is optional

	viper.SetDefault("PORT", "8000")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("CACHE_TTL", 3600)
	viper.SetDefault("CACHE_DIR", "data/cache")
	viper.SetDefault("DATA_DIR", "data/wiki")
	viper.SetDefault("SEARCH_CACHE_TTL", 300)
	viper.SetDefault("SEARCH_MIN_QUERY_LENGTH", 3)
	viper.SetDefault("SEARCH_MAX_RESULTS", 20)
	viper.SetDefault("DEFAULT_ITEMS_LIMIT", 50)
	viper.SetDefault("WIKI_SLUG", "cyberpunk")
	viper.SetDefault("WIKI_LANGUAGE", "en")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("METRICS_ENABLED", false)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:              viper.GetString("PORT"),
			DefaultItemsLimit: viper.GetInt("DEFAULT_ITEMS_LIMIT"),
			MetricsEnabled:    viper.GetBool("METRICS_ENABLED"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("REDIS_URL"),
		},
		Cache: CacheConfig{
			TTL:      time.Duration(viper.GetInt("CACHE_TTL")) * time.Second,
			CacheDir: viper.GetString("CACHE_DIR"),
			DataDir:  viper.GetString("DATA_DIR"),
		},
		Search: SearchConfig{
			TTL:            time.Duration(viper.GetInt("SEARCH_CACHE_TTL")) * time.Second,
			MinQueryLength: viper.GetInt("SEARCH_MIN_QUERY_LENGTH"),
			MaxResults:     viper.GetInt("SEARCH_MAX_RESULTS"),
		},
		Wiki: WikiConfig{
			Slug:     viper.GetString("WIKI_SLUG"),
			Language: viper.GetString("WIKI_LANGUAGE"),
		},
		Log: LogConfig{
			Format: viper.GetString("LOG_FORMAT"),
		},
		Categories: DefaultCategories(),
	}

	return cfg, nil
}

// DefaultCategories returns the fixed category set of the Cyberpunk 2077
// wiki, in resolution order.
func DefaultCategories() []Category {
	return []Category{
		{Key: "characters", Name: "Cyberpunk 2077 Characters"},
		{Key: "vehicles", Name: "Cyberpunk 2077 Vehicles"},
		{Key: "weapons", Name: "Weapons in Cyberpunk 2077"},
		{Key: "locations", Name: "Cyberpunk 2077 Locations"},
		{Key: "perks", Name: "Perks in Cyberpunk 2077"},
		{Key: "items", Name: "Items in Cyberpunk 2077"},
	}
}

// CategoryKeys returns the configured category keys in order.
func (c *Config) CategoryKeys() []string {
	keys := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		keys[i] = cat.Key
	}
	return keys
}

// CategoryName resolves a category key to its wiki category name.
func (c *Config) CategoryName(key string) (string, bool) {
	for _, cat := range c.Categories {
		if cat.Key == key {
			return cat.Name, true
		}
	}
	return "", false
}
