// Package config loads service configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Render   RenderConfig   `yaml:"render"`
	Assets   AssetsConfig   `yaml:"assets"`
	Database DatabaseConfig `yaml:"database"`
	Logger   LoggerConfig   `yaml:"logger"`
}

type ServerConfig struct {
	Addr               string   `yaml:"addr"`
	Mode               string   `yaml:"mode"`
	CORSOrigins        []string `yaml:"cors_origins"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
	PublicBaseURL      string   `yaml:"public_base_url"`
}

type RenderConfig struct {
	DPI                int           `yaml:"dpi"`
	BleedIn            float64       `yaml:"bleed_in"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	MaxOutputBytes     int           `yaml:"max_output_bytes"`
	JPEGQuality        int           `yaml:"jpeg_quality"`
	OverlayConcurrency int           `yaml:"overlay_concurrency"`
}

type AssetsConfig struct {
	// Provider is "cdn" (image-CDN delivery URLs) or "minio" (presigned object URLs).
	Provider   string      `yaml:"provider"`
	CDNBaseURL string      `yaml:"cdn_base_url"`
	CloudName  string      `yaml:"cloud_name"`
	MinIO      MinIOConfig `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	UseSSL    bool          `yaml:"use_ssl"`
	URLTTL    time.Duration `yaml:"url_ttl"`
}

// Enabled reports whether enough is set to build a client.
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != "" && m.AccessKey != "" && m.SecretKey != "" && m.Bucket != ""
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Level      string `yaml:"level"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:               ":8080",
			Mode:               "release",
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 60,
			RateLimitBurst:     10,
			MaxBodyBytes:       10 << 20,
		},
		Render: RenderConfig{
			DPI:                150,
			BleedIn:            0.125,
			FetchTimeout:       8 * time.Second,
			MaxOutputBytes:     6 << 20,
			JPEGQuality:        85,
			OverlayConcurrency: 4,
		},
		Assets: AssetsConfig{
			Provider:   "cdn",
			CDNBaseURL: "https://res.cloudinary.com",
			MinIO: MinIOConfig{
				Region: "us-east-1",
				URLTTL: 24 * time.Hour,
			},
		},
		Logger: LoggerConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Level:      "info",
		},
	}
}

// Load reads .env (if present), then the YAML file at CONFIG_PATH
// (default config.yaml, optional), then environment overrides.
func Load() Config {
	_ = godotenv.Load()
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path. It panics on unreadable or invalid configuration.
func LoadFrom(path string) Config {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	setString(&cfg.Server.Mode, "GIN_MODE")
	setString(&cfg.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	setInt(&cfg.Render.DPI, "PRINT_DEFAULT_DPI")
	setFloat(&cfg.Render.BleedIn, "PRINT_BLEED_IN")

	setString(&cfg.Assets.Provider, "ASSET_PROVIDER")
	setString(&cfg.Assets.CDNBaseURL, "CDN_BASE_URL")
	setString(&cfg.Assets.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&cfg.Assets.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Assets.MinIO.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Assets.MinIO.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Assets.MinIO.Bucket, "MINIO_BUCKET")
	setString(&cfg.Assets.MinIO.Region, "MINIO_REGION")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		cfg.Assets.MinIO.UseSSL, _ = strconv.ParseBool(v)
	}

	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Logger.Level, "LOG_LEVEL")
	setString(&cfg.Logger.File, "LOG_FILE")
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is empty")
	}
	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitBurst < 0 {
		return errors.New("server rate limits must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	if c.Render.DPI <= 0 || c.Render.DPI > 1200 {
		return fmt.Errorf("render.dpi %d out of range", c.Render.DPI)
	}
	if c.Render.BleedIn < 0 {
		return errors.New("render.bleed_in must not be negative")
	}
	if c.Render.FetchTimeout <= 0 {
		return errors.New("render.fetch_timeout must be positive")
	}
	if c.Render.MaxOutputBytes <= 0 {
		return errors.New("render.max_output_bytes must be positive")
	}
	if c.Render.JPEGQuality < 1 || c.Render.JPEGQuality > 100 {
		return fmt.Errorf("render.jpeg_quality %d out of range", c.Render.JPEGQuality)
	}
	if c.Render.OverlayConcurrency < 1 {
		return errors.New("render.overlay_concurrency must be at least 1")
	}
	switch c.Assets.Provider {
	case "cdn":
	case "minio":
		if !c.Assets.MinIO.Enabled() {
			return errors.New("assets.provider is minio but assets.minio is incomplete")
		}
	default:
		return fmt.Errorf("unknown assets.provider %q", c.Assets.Provider)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
