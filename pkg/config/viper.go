// Package config initializes the application's configuration. It uses the
// Viper library to read settings from a config file, environment variables,
// and command-line flags, providing a unified configuration system.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultUserAgent identifies the crawler to the target site.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// InitConfig sets defaults, config search paths, and environment variable
// binding. Call once at startup, before any viper reads.
func InitConfig(cfgFile string, logger *zap.Logger) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/aoty-crawler/")
		viper.AddConfigPath("$HOME/.aoty-crawler")
	}

	viper.SetDefault("crawler.base_url", "https://www.albumoftheyear.org")
	viper.SetDefault("crawler.user_agent", DefaultUserAgent)
	viper.SetDefault("crawler.genre", "")
	viper.SetDefault("crawler.start_year", time.Now().Year())
	viper.SetDefault("crawler.years_back", 1)
	viper.SetDefault("crawler.albums_per_year", 250)
	viper.SetDefault("crawler.test_mode", false)
	viper.SetDefault("crawler.test_limit", 5)
	viper.SetDefault("crawler.resume", false)
	viper.SetDefault("crawler.resume_file", "")
	viper.SetDefault("crawler.request_timeout", "30s")
	viper.SetDefault("crawler.download_delay", "3s")
	viper.SetDefault("crawler.max_retries", 3)
	viper.SetDefault("crawler.retry_base_delay", "3s")
	viper.SetDefault("crawler.retry_jitter", "1s")

	viper.SetDefault("renderer.enabled", true)
	viper.SetDefault("renderer.timeout", "60s")
	viper.SetDefault("renderer.challenge_max_waits", 5)
	viper.SetDefault("renderer.challenge_wait_delay", "3s")

	viper.SetDefault("output.dir", "data/output")
	viper.SetDefault("output.genre_catalog", "data/genres.json")

	viper.SetDefault("database.dsn", "")
	viper.SetDefault("metrics.addr", "")

	viper.SetEnvPrefix("AOTY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("No config file found; using defaults and environment")
		} else {
			logger.Warn("Error reading config file", zap.Error(err))
		}
		return
	}
	logger.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
}
