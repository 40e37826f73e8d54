// Package config provides configuration management for clipforge.
// Defaults are overridden first by an optional YAML file, then by
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort         = 8080
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".clipforge"
	DefaultLiveSchedule = "*/2 * * * *"

	DefaultPipelineTimeout = 300 // seconds
	DefaultSegmentTimeout  = 120 // seconds
	DefaultMaxParallel     = 1

	// Environment variable names
	EnvPort            = "CLIPFORGE_PORT"
	EnvLogLevel        = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir         = "CLIPFORGE_DATA_DIR"
	EnvConfigFile      = "CLIPFORGE_CONFIG"
	EnvFFmpegPath      = "CLIPFORGE_FFMPEG_PATH"
	EnvWorkDir         = "CLIPFORGE_WORK_DIR"
	EnvPipelineTimeout = "CLIPFORGE_PIPELINE_TIMEOUT"
	EnvSegmentTimeout  = "CLIPFORGE_SEGMENT_TIMEOUT"
	EnvMaxParallel     = "CLIPFORGE_MAX_PARALLEL"
	EnvAllowedOrigins  = "CLIPFORGE_ALLOWED_ORIGINS"
	EnvLiveChannels    = "CLIPFORGE_LIVE_CHANNELS"
	EnvLiveSchedule    = "CLIPFORGE_LIVE_SCHEDULE"

	// Twitch credential env vars keep their conventional names so existing
	// deployments carry over unchanged.
	EnvTwitchClientID     = "TWITCH_CLIENT_ID"
	EnvTwitchClientSecret = "TWITCH_CLIENT_SECRET"

	// Database filename
	DBFilename = "clipforge.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	TwitchClientID() string
	TwitchClientSecret() string
	FFmpegPath() string
	WorkDir() string
	PipelineTimeout() time.Duration
	SegmentTimeout() time.Duration
	MaxParallel() int
	AllowedOrigins() []string
	LiveChannels() []string
	LiveSchedule() string
}

// fileConfig is the YAML structure of the optional config file.
type fileConfig struct {
	Server struct {
		Port     int    `yaml:"port"`
		LogLevel string `yaml:"log_level"`
		DataDir  string `yaml:"data_dir"`
	} `yaml:"server"`
	Twitch struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"twitch"`
	Pipeline struct {
		FFmpegPath      string `yaml:"ffmpeg_path"`
		WorkDir         string `yaml:"work_dir"`
		TimeoutSeconds  int    `yaml:"timeout_s"`
		SegmentTimeoutS int    `yaml:"segment_timeout_s"`
		MaxParallel     int    `yaml:"max_parallel"`
	} `yaml:"pipeline"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	Live struct {
		Channels []string `yaml:"channels"`
		Schedule string   `yaml:"schedule"`
	} `yaml:"live"`
}

// EnvConfig reads configuration from an optional YAML file plus environment
// variable overrides
type EnvConfig struct {
	port               int
	logLevel           string
	dataDir            string
	twitchClientID     string
	twitchClientSecret string
	ffmpegPath         string
	workDir            string
	pipelineTimeout    time.Duration
	segmentTimeout     time.Duration
	maxParallel        int
	allowedOrigins     []string
	liveChannels       []string
	liveSchedule       string
}

// New creates a new EnvConfig with defaults, YAML file values and
// environment variable overrides, in that order of precedence.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		dataDir:         defaultDataDir(),
		pipelineTimeout: DefaultPipelineTimeout * time.Second,
		segmentTimeout:  DefaultSegmentTimeout * time.Second,
		maxParallel:     DefaultMaxParallel,
		allowedOrigins:  []string{"*"},
		liveSchedule:    DefaultLiveSchedule,
	}

	if err := cfg.loadFile(os.Getenv(EnvConfigFile)); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if fc.Server.Port != 0 {
		c.port = fc.Server.Port
	}
	if fc.Server.LogLevel != "" {
		c.logLevel = fc.Server.LogLevel
	}
	if fc.Server.DataDir != "" {
		c.dataDir = fc.Server.DataDir
	}
	if fc.Twitch.ClientID != "" {
		c.twitchClientID = fc.Twitch.ClientID
	}
	if fc.Twitch.ClientSecret != "" {
		c.twitchClientSecret = fc.Twitch.ClientSecret
	}
	if fc.Pipeline.FFmpegPath != "" {
		c.ffmpegPath = fc.Pipeline.FFmpegPath
	}
	if fc.Pipeline.WorkDir != "" {
		c.workDir = fc.Pipeline.WorkDir
	}
	if fc.Pipeline.TimeoutSeconds > 0 {
		c.pipelineTimeout = time.Duration(fc.Pipeline.TimeoutSeconds) * time.Second
	}
	if fc.Pipeline.SegmentTimeoutS > 0 {
		c.segmentTimeout = time.Duration(fc.Pipeline.SegmentTimeoutS) * time.Second
	}
	if fc.Pipeline.MaxParallel > 0 {
		c.maxParallel = fc.Pipeline.MaxParallel
	}
	if len(fc.CORS.AllowedOrigins) > 0 {
		c.allowedOrigins = fc.CORS.AllowedOrigins
	}
	if len(fc.Live.Channels) > 0 {
		c.liveChannels = fc.Live.Channels
	}
	if fc.Live.Schedule != "" {
		c.liveSchedule = fc.Live.Schedule
	}

	return nil
}

func (c *EnvConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if id := os.Getenv(EnvTwitchClientID); id != "" {
		c.twitchClientID = id
	}
	if secret := os.Getenv(EnvTwitchClientSecret); secret != "" {
		c.twitchClientSecret = secret
	}
	if fp := os.Getenv(EnvFFmpegPath); fp != "" {
		c.ffmpegPath = fp
	}
	if wd := os.Getenv(EnvWorkDir); wd != "" {
		c.workDir = wd
	}

	if v := os.Getenv(EnvPipelineTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid %s: must be a positive number of seconds", EnvPipelineTimeout)
		}
		c.pipelineTimeout = time.Duration(secs) * time.Second
	}
	if v := os.Getenv(EnvSegmentTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid %s: must be a positive number of seconds", EnvSegmentTimeout)
		}
		c.segmentTimeout = time.Duration(secs) * time.Second
	}
	if v := os.Getenv(EnvMaxParallel); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s: must be a positive integer", EnvMaxParallel)
		}
		c.maxParallel = n
	}

	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		c.allowedOrigins = splitList(v)
	}
	if v := os.Getenv(EnvLiveChannels); v != "" {
		c.liveChannels = splitList(v)
	}
	if v := os.Getenv(EnvLiveSchedule); v != "" {
		c.liveSchedule = v
	}

	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) TwitchClientID() string {
	return c.twitchClientID
}

func (c *EnvConfig) TwitchClientSecret() string {
	return c.twitchClientSecret
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// WorkDir returns the base directory for per-run temp workspaces.
// Empty means the system temp dir.
func (c *EnvConfig) WorkDir() string {
	return c.workDir
}

func (c *EnvConfig) PipelineTimeout() time.Duration {
	return c.pipelineTimeout
}

func (c *EnvConfig) SegmentTimeout() time.Duration {
	return c.segmentTimeout
}

func (c *EnvConfig) MaxParallel() int {
	return c.maxParallel
}

func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *EnvConfig) LiveChannels() []string {
	return c.liveChannels
}

func (c *EnvConfig) LiveSchedule() string {
	return c.liveSchedule
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
