package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// Config holds all configuration for the bot
type Config struct {
	Telegram TelegramConfig
	Access   AccessConfig
	Download DownloadConfig
	Gofile   GofileConfig
	Storage  StorageConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
	Service  ServiceConfig
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string
	// UploadLimitBytes is the largest file sent directly through the Bot API
	UploadLimitBytes int64
	LogChannelID     int64
	RequestTimeout   time.Duration
}

// AccessConfig holds the static part of the permission list
type AccessConfig struct {
	SudoUsers []int64
	Users     []int64
}

// DownloadConfig holds download pipeline configuration
type DownloadConfig struct {
	Dir              string
	MaxSizeBytes     int64
	MaxConcurrent    int
	FFmpegPath       string
	ProgressInterval time.Duration
	SessionTTL       time.Duration
	ProbeTimeout     time.Duration
	DownloadTimeout  time.Duration
	TranscodeTimeout time.Duration
	SweepInterval    time.Duration
}

// GofileConfig holds hosted upload configuration
type GofileConfig struct {
	APIKey            string
	APIURL            string
	ForceHosted       bool
	AttemptsPerServer int
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	UploadTimeout     time.Duration
}

// StorageConfig holds paths of persisted state
type StorageConfig struct {
	DataDir     string
	UsersFile   string
	CookiesFile string
}

// KafkaConfig holds Kafka audit configuration
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// Enabled reports whether audit events should be published
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name        string
	MetricsPort string
}

// Result provides config parts for fx dependency injection using fx.Out pattern
type Result struct {
	fx.Out

	Config   *Config
	Telegram *TelegramConfig
	Access   *AccessConfig
	Download *DownloadConfig
	Gofile   *GofileConfig
	Storage  *StorageConfig
	Kafka    *KafkaConfig
	Logging  *LoggingConfig
	Service  *ServiceConfig
}

// Out loads configuration and returns Result for fx injection
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:   cfg,
		Telegram: &cfg.Telegram,
		Access:   &cfg.Access,
		Download: &cfg.Download,
		Gofile:   &cfg.Gofile,
		Storage:  &cfg.Storage,
		Kafka:    &cfg.Kafka,
		Logging:  &cfg.Logging,
		Service:  &cfg.Service,
	}, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	return parse(envSource{file: file})
}

// envSource resolves a key from the environment first, then from the optional YAML file
type envSource struct {
	file map[string]string
}

func (s envSource) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func parse(src envSource) (*Config, error) {
	p := &parser{src: src}

	dataDir := src.get("DATA_DIR", "data")

	cfg := &Config{
		Telegram: TelegramConfig{
			BotToken:         strings.TrimSpace(src.get("BOT_TOKEN", "")),
			UploadLimitBytes: p.megabytes("TELEGRAM_UPLOAD_LIMIT_MB", 50),
			LogChannelID:     p.int64("LOG_CHANNEL_ID", 0),
			RequestTimeout:   p.duration("TELEGRAM_REQUEST_TIMEOUT", 30*time.Second),
		},
		Access: AccessConfig{
			SudoUsers: p.ids("SUDO_USERS"),
			Users:     p.ids("USERS"),
		},
		Download: DownloadConfig{
			Dir:              src.get("DOWNLOAD_DIR", "downloads"),
			MaxSizeBytes:     p.megabytes("MAX_DOWNLOAD_SIZE", 2048),
			MaxConcurrent:    int(p.int64("MAX_CONCURRENT_DOWNLOADS", 2)),
			FFmpegPath:       src.get("FFMPEG_PATH", "ffmpeg"),
			ProgressInterval: p.duration("PROGRESS_INTERVAL", 3*time.Second),
			SessionTTL:       p.duration("SESSION_TTL", 10*time.Minute),
			ProbeTimeout:     p.duration("PROBE_TIMEOUT", 30*time.Second),
			DownloadTimeout:  p.duration("DOWNLOAD_TIMEOUT", 30*time.Minute),
			TranscodeTimeout: p.duration("TRANSCODE_TIMEOUT", 15*time.Minute),
			SweepInterval:    p.duration("SWEEP_INTERVAL", 10*time.Minute),
		},
		Gofile: GofileConfig{
			APIKey:            src.get("GOFILE_API_KEY", ""),
			APIURL:            strings.TrimRight(src.get("GOFILE_API_URL", "https://api.gofile.io"), "/"),
			ForceHosted:       p.bool("FORCE_GOFILE", false),
			AttemptsPerServer: int(p.int64("GOFILE_ATTEMPTS_PER_SERVER", 2)),
			MaxAttempts:       int(p.int64("GOFILE_MAX_ATTEMPTS", 6)),
			InitialBackoff:    p.duration("GOFILE_INITIAL_BACKOFF", time.Second),
			MaxBackoff:        p.duration("GOFILE_MAX_BACKOFF", 30*time.Second),
			UploadTimeout:     p.duration("UPLOAD_TIMEOUT", 30*time.Minute),
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			UsersFile:   filepath.Join(dataDir, "users.json"),
			CookiesFile: filepath.Join(dataDir, "cookies.txt"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(src.get("KAFKA_BROKERS", "")),
			AuditTopic: src.get("KAFKA_AUDIT_TOPIC", "ytdl.audit"),
		},
		Logging: LoggingConfig{
			Level: src.get("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name:        src.get("SERVICE_NAME", "tg-ytdl-gofile"),
			MetricsPort: src.get("METRICS_PORT", "9090"),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return pkgerrors.NewConfigError("BOT_TOKEN is required")
	}

	if len(c.Access.SudoUsers) == 0 {
		return pkgerrors.NewConfigError("SUDO_USERS is required")
	}

	if c.Download.MaxSizeBytes <= 0 {
		return pkgerrors.NewConfigError("MAX_DOWNLOAD_SIZE must be positive")
	}

	if c.Download.MaxConcurrent <= 0 {
		return pkgerrors.NewConfigError("MAX_CONCURRENT_DOWNLOADS must be positive")
	}

	if c.Telegram.UploadLimitBytes <= 0 {
		return pkgerrors.NewConfigError("TELEGRAM_UPLOAD_LIMIT_MB must be positive")
	}

	if c.Gofile.AttemptsPerServer <= 0 || c.Gofile.MaxAttempts <= 0 {
		return pkgerrors.NewConfigError("GOFILE_ATTEMPTS_PER_SERVER and GOFILE_MAX_ATTEMPTS must be positive")
	}

	return nil
}

// parser accumulates the first conversion error so Load can report it once
type parser struct {
	src envSource
	err error
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = pkgerrors.NewConfigError(fmt.Sprintf("%s has invalid value %q", key, value))
	}
}

func (p *parser) int64(key string, defaultValue int64) int64 {
	raw := p.src.get(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		p.fail(key, raw)
		return defaultValue
	}
	return v
}

// megabytes reads a size in MB and returns it in bytes
func (p *parser) megabytes(key string, defaultValue int64) int64 {
	v := p.int64(key, defaultValue)
	if v > math.MaxInt64>>20 || v < math.MinInt64>>20 {
		p.fail(key, p.src.get(key, ""))
		return defaultValue << 20
	}
	return v << 20
}

func (p *parser) bool(key string, defaultValue bool) bool {
	raw := p.src.get(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, raw)
		return defaultValue
	}
	return v
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	raw := p.src.get(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		p.fail(key, raw)
		return defaultValue
	}
	return v
}

func (p *parser) ids(key string) []int64 {
	raw := p.src.get(key, "")
	var ids []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			p.fail(key, raw)
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadFile reads the optional YAML config file into a flat key/value map.
// Scalars of any type are accepted and kept as their YAML text.
func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.NewConfigError(fmt.Sprintf("read CONFIG_FILE %s: %v", path, err))
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.NewConfigError(fmt.Sprintf("parse CONFIG_FILE %s: %v", path, err))
	}

	values := make(map[string]string, len(doc))
	for key, node := range doc {
		switch node.Kind {
		case yaml.ScalarNode:
			values[strings.ToUpper(key)] = node.Value
		case yaml.SequenceNode:
			items := make([]string, 0, len(node.Content))
			for _, item := range node.Content {
				items = append(items, item.Value)
			}
			values[strings.ToUpper(key)] = strings.Join(items, ",")
		default:
			return nil, pkgerrors.NewConfigError(fmt.Sprintf("CONFIG_FILE key %s must be a scalar or a list", key))
		}
	}

	return values, nil
}
