package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
)

const (
	AppName    = "feedsync"
	AppVersion = "1.0.0"
)

// DefaultUserAgent identifies feedsync when fetching feeds.
var DefaultUserAgent = "Mozilla/5.0 (compatible; " + AppName + "/" + AppVersion + ")"

// Chrome headers for TLS fingerprinting (must match azuretls Chrome profile version)
const (
	ChromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
	ChromeSecChUa   = `"Google Chrome";v="135", "Chromium";v="135", "Not-A.Brand";v="8"`
)

const (
	StoreNotion = "notion"
	StoreSQLite = "sqlite"
)

// ErrConfig marks configuration problems that must stop the process.
var ErrConfig = errors.New("configuration error")

// ErrHelp is returned by Load when usage was printed.
var ErrHelp = errors.New("help requested")

type Config struct {
	NotionToken      string
	NotionDatabaseID string
	NotionBaseURL    string

	FeedsFile  string
	Store      string
	SQLitePath string

	RequestInterval     time.Duration
	MaxRateLimitRetries int
	FetchTimeout        time.Duration
	StoreTimeout        time.Duration
	UserAgent           string
	ProxyURL            string
	BrowserFallback     bool

	LogLevel    string
	LogFile     string
	StepSummary string
	Timezone    *time.Location

	// Interval repeats the sync until interrupted. Zero runs once.
	Interval time.Duration
}

type options struct {
	NotionToken      string `long:"notion-token" env:"NOTION_TOKEN" description:"Notion integration token"`
	NotionDatabaseID string `long:"notion-database-id" env:"NOTION_DATABASE_ID" description:"Target Notion database id or URL"`
	NotionBaseURL    string `long:"notion-base-url" env:"NOTION_BASE_URL" default:"https://api.notion.com/v1" description:"Notion API base URL"`

	FeedsFile  string `long:"feeds" env:"FEEDS_FILE" default:"feeds.json" description:"Feed list (JSON or YAML)"`
	Store      string `long:"store" env:"FEEDSYNC_STORE" default:"notion" choice:"notion" choice:"sqlite" description:"Store backend"`
	SQLitePath string `long:"sqlite-path" env:"FEEDSYNC_SQLITE_PATH" default:"./data/feedsync.db" description:"Database file for the sqlite store"`

	RequestInterval     time.Duration `long:"request-interval" env:"FEEDSYNC_REQUEST_INTERVAL" default:"400ms" description:"Minimum spacing between store requests"`
	MaxRateLimitRetries int           `long:"max-rate-limit-retries" env:"FEEDSYNC_MAX_RATE_LIMIT_RETRIES" default:"5" description:"Retries per store call after HTTP 429 (0 = unbounded)"`
	FetchTimeout        time.Duration `long:"fetch-timeout" env:"FEEDSYNC_FETCH_TIMEOUT" default:"30s" description:"Timeout for fetching one feed"`
	StoreTimeout        time.Duration `long:"store-timeout" env:"FEEDSYNC_STORE_TIMEOUT" default:"30s" description:"Timeout for one store request"`
	UserAgent           string        `long:"user-agent" env:"FEEDSYNC_USER_AGENT" description:"User-Agent for feed requests"`
	ProxyURL            string        `long:"proxy" env:"FEEDSYNC_PROXY" description:"HTTP or SOCKS5 proxy for feed requests"`
	BrowserFallback     bool          `long:"browser-fallback" env:"FEEDSYNC_BROWSER_FALLBACK" description:"Retry feeds answering 403 with a browser TLS fingerprint"`

	LogLevel    string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
	LogFile     string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file"`
	StepSummary string `long:"step-summary" env:"GITHUB_STEP_SUMMARY" description:"Write a markdown job summary to this path"`
	Timezone    string `long:"timezone" env:"FEEDSYNC_TIMEZONE" default:"UTC" description:"Timezone for report timestamps"`

	Interval time.Duration `long:"interval" env:"FEEDSYNC_INTERVAL" description:"Repeat the sync at this interval instead of running once"`
}

// Load parses flags and environment into a Config.
func Load(args []string) (Config, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = AppName
	ignoreEmptyEnv(parser.Group)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			return Config{}, ErrHelp
		}
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	cfg := Config{
		NotionToken:         strings.TrimSpace(opts.NotionToken),
		NotionBaseURL:       strings.TrimRight(opts.NotionBaseURL, "/"),
		FeedsFile:           opts.FeedsFile,
		Store:               opts.Store,
		SQLitePath:          opts.SQLitePath,
		RequestInterval:     opts.RequestInterval,
		MaxRateLimitRetries: opts.MaxRateLimitRetries,
		FetchTimeout:        opts.FetchTimeout,
		StoreTimeout:        opts.StoreTimeout,
		UserAgent:           opts.UserAgent,
		ProxyURL:            strings.TrimSpace(opts.ProxyURL),
		BrowserFallback:     opts.BrowserFallback,
		LogLevel:            opts.LogLevel,
		LogFile:             opts.LogFile,
		StepSummary:         opts.StepSummary,
		Interval:            opts.Interval,
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid timezone %q: %v", ErrConfig, opts.Timezone, err)
	}
	cfg.Timezone = loc

	if cfg.Store == StoreNotion {
		if cfg.NotionToken == "" {
			return Config{}, fmt.Errorf("%w: NOTION_TOKEN is required", ErrConfig)
		}
		if strings.TrimSpace(opts.NotionDatabaseID) == "" {
			return Config{}, fmt.Errorf("%w: NOTION_DATABASE_ID is required", ErrConfig)
		}
		id, err := NormalizeDatabaseID(opts.NotionDatabaseID)
		if err != nil {
			return Config{}, fmt.Errorf("%w: NOTION_DATABASE_ID: %v", ErrConfig, err)
		}
		cfg.NotionDatabaseID = id
	}
	if cfg.RequestInterval < 0 {
		return Config{}, fmt.Errorf("%w: request interval must be non-negative", ErrConfig)
	}
	if cfg.Interval < 0 {
		return Config{}, fmt.Errorf("%w: interval must be non-negative", ErrConfig)
	}
	if cfg.MaxRateLimitRetries < 0 {
		return Config{}, fmt.Errorf("%w: max rate limit retries must be non-negative", ErrConfig)
	}

	return cfg, nil
}

// ignoreEmptyEnv drops the env binding of options whose variable is set but
// empty, so CI templates that expand unset values keep the declared defaults.
func ignoreEmptyEnv(group *flags.Group) {
	for _, opt := range group.Options() {
		if opt.EnvDefaultKey == "" {
			continue
		}
		if value, ok := os.LookupEnv(opt.EnvDefaultKey); ok && strings.TrimSpace(value) == "" {
			opt.EnvDefaultKey = ""
		}
	}
	for _, child := range group.Groups() {
		ignoreEmptyEnv(child)
	}
}

var hexID = regexp.MustCompile(`[0-9a-fA-F]{32}|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// NormalizeDatabaseID accepts a dashed or undashed id, or a Notion URL that
// ends in one, and returns the dashed form.
func NormalizeDatabaseID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	matches := hexID.FindAllString(raw, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("no database id in %q", raw)
	}
	id, err := uuid.Parse(matches[len(matches)-1])
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
