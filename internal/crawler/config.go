package crawler

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// CrawlConfig captures every configuration knob that influences a crawl run.
// All values originate from Viper so the crawler can be configured via files,
// env vars, or CLI flags.
type CrawlConfig struct {
	BaseURL       string
	UserAgent     string
	TargetGenre   string
	StartYear     int
	YearsBack     int
	AlbumsPerYear int
	TestMode      bool
	TestLimit     int

	Resume     bool
	ResumeFile string
	OutputDir  string

	RequestTimeout time.Duration
	DownloadDelay  time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryJitter    time.Duration

	RenderEnabled      bool
	RenderTimeout      time.Duration
	ChallengeMaxWaits  int
	ChallengeWaitDelay time.Duration

	GenreCatalogPath string
	PostgresDSN      string
	MetricsAddr      string
}

// LoadCrawlConfig constructs a CrawlConfig by reading from Viper.
func LoadCrawlConfig(v *viper.Viper) (CrawlConfig, error) {
	cfg := CrawlConfig{
		BaseURL:            v.GetString("crawler.base_url"),
		UserAgent:          v.GetString("crawler.user_agent"),
		TargetGenre:        v.GetString("crawler.genre"),
		StartYear:          v.GetInt("crawler.start_year"),
		YearsBack:          v.GetInt("crawler.years_back"),
		AlbumsPerYear:      v.GetInt("crawler.albums_per_year"),
		TestMode:           v.GetBool("crawler.test_mode"),
		TestLimit:          v.GetInt("crawler.test_limit"),
		Resume:             v.GetBool("crawler.resume"),
		ResumeFile:         v.GetString("crawler.resume_file"),
		OutputDir:          v.GetString("output.dir"),
		RequestTimeout:     v.GetDuration("crawler.request_timeout"),
		DownloadDelay:      v.GetDuration("crawler.download_delay"),
		MaxRetries:         v.GetInt("crawler.max_retries"),
		RetryBaseDelay:     v.GetDuration("crawler.retry_base_delay"),
		RetryJitter:        v.GetDuration("crawler.retry_jitter"),
		RenderEnabled:      v.GetBool("renderer.enabled"),
		RenderTimeout:      v.GetDuration("renderer.timeout"),
		ChallengeMaxWaits:  v.GetInt("renderer.challenge_max_waits"),
		ChallengeWaitDelay: v.GetDuration("renderer.challenge_wait_delay"),
		GenreCatalogPath:   v.GetString("output.genre_catalog"),
		PostgresDSN:        v.GetString("database.dsn"),
		MetricsAddr:        v.GetString("metrics.addr"),
	}
	if cfg.TestMode {
		cfg.AlbumsPerYear = cfg.TestLimit
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations. A failure
// here aborts the run before any task executes.
func (c CrawlConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.StartYear < 1950 || c.StartYear > 2100 {
		return fmt.Errorf("crawler.start_year %d out of range", c.StartYear)
	}
	if c.YearsBack <= 0 {
		return fmt.Errorf("crawler.years_back must be > 0")
	}
	if c.AlbumsPerYear <= 0 {
		return fmt.Errorf("crawler.albums_per_year must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.DownloadDelay < 0 {
		return fmt.Errorf("crawler.download_delay must be >= 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.RenderEnabled {
		if c.RenderTimeout <= 0 {
			return fmt.Errorf("renderer.timeout must be > 0")
		}
		if c.ChallengeMaxWaits <= 0 {
			return fmt.Errorf("renderer.challenge_max_waits must be > 0")
		}
	}
	return nil
}
