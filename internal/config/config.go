package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"media-upload-go/internal/compressor"
)

// Config represents the main configuration structure
type Config struct {
	Upload      UploadConfig      `mapstructure:"upload" yaml:"upload"`
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Watch       WatchConfig       `mapstructure:"watch" yaml:"watch"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// UploadConfig describes where uploads are stored and how they are accepted
type UploadConfig struct {
	RootDir       string            `mapstructure:"root_dir" yaml:"root_dir"`
	URLPrefix     string            `mapstructure:"url_prefix" yaml:"url_prefix"`
	MaxUploadSize int64             `mapstructure:"max_upload_size" yaml:"max_upload_size"` // bytes per file
	MaxFiles      int               `mapstructure:"max_files" yaml:"max_files"`
	Directories   map[string]string `mapstructure:"directories" yaml:"directories"` // category -> subdirectory
}

// CompressionConfig contains resize bounds and encoder settings
type CompressionConfig struct {
	MaxWidth        int `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight       int `mapstructure:"max_height" yaml:"max_height"`
	AvatarMaxWidth  int `mapstructure:"avatar_max_width" yaml:"avatar_max_width"`
	AvatarMaxHeight int `mapstructure:"avatar_max_height" yaml:"avatar_max_height"`
	JPEGQuality     int `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	WebPQuality     int `mapstructure:"webp_quality" yaml:"webp_quality"`
	Workers         int `mapstructure:"workers" yaml:"workers"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// DatabaseConfig contains the upload ledger location
type DatabaseConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// WatchConfig contains inbox folder settings
type WatchConfig struct {
	InboxDir string        `mapstructure:"inbox_dir" yaml:"inbox_dir"`
	Category string        `mapstructure:"category" yaml:"category"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DefaultDirectories maps each category to its upload subdirectory.
func DefaultDirectories() map[string]string {
	return map[string]string{
		string(compressor.CategoryAvatar):     "avatars",
		string(compressor.CategoryPostImage):  "posts",
		string(compressor.CategoryEventImage): "events",
		string(compressor.CategoryGeneric):    "misc",
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Upload: UploadConfig{
			RootDir:       "uploads",
			URLPrefix:     "/uploads",
			MaxUploadSize: 10 << 20,
			MaxFiles:      10,
			Directories:   DefaultDirectories(),
		},
		Compression: CompressionConfig{
			MaxWidth:        compressor.DefaultBounds.MaxWidth,
			MaxHeight:       compressor.DefaultBounds.MaxHeight,
			AvatarMaxWidth:  compressor.AvatarBounds.MaxWidth,
			AvatarMaxHeight: compressor.AvatarBounds.MaxHeight,
			JPEGQuality:     compressor.DefaultJPEGQuality,
			WebPQuality:     compressor.DefaultWebPQuality,
			Workers:         0, // 0 means number of CPUs
		},
		Server: ServerConfig{
			Host:         "",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			DataDir: "data",
		},
		Watch: WatchConfig{
			InboxDir: "inbox",
			Category: string(compressor.CategoryGeneric),
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "logs/media-upload.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	v := viper.New()

	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.media-upload")
		v.AddConfigPath("/etc/media-upload")
	}

	v.SetEnvPrefix("MEDIA_UPLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnv registers scalar keys so AutomaticEnv overrides reach Unmarshal
// even when the key is absent from the config file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"upload.root_dir", "upload.url_prefix", "upload.max_upload_size", "upload.max_files",
		"compression.max_width", "compression.max_height",
		"compression.avatar_max_width", "compression.avatar_max_height",
		"compression.jpeg_quality", "compression.webp_quality", "compression.workers",
		"server.host", "server.port",
		"database.data_dir",
		"watch.inbox_dir", "watch.category", "watch.debounce",
		"logging.level", "logging.file_path",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Upload.RootDir) == "" {
		return fmt.Errorf("upload.root_dir is required")
	}
	c.Upload.RootDir = expandPath(c.Upload.RootDir)
	c.Upload.URLPrefix = "/" + strings.Trim(c.Upload.URLPrefix, "/")

	if c.Upload.MaxUploadSize <= 0 {
		c.Upload.MaxUploadSize = 10 << 20
	}
	if c.Upload.MaxFiles <= 0 {
		c.Upload.MaxFiles = 10
	}

	dirs := DefaultDirectories()
	for name, dir := range c.Upload.Directories {
		if _, err := compressor.ParseCategory(name); err != nil {
			return fmt.Errorf("upload.directories: %w", err)
		}
		dir = filepath.Clean(dir)
		if dir == "." || filepath.IsAbs(dir) || strings.HasPrefix(dir, "..") {
			return fmt.Errorf("upload.directories.%s must be a relative subdirectory: %q", name, dir)
		}
		dirs[name] = dir
	}
	c.Upload.Directories = dirs

	if c.Compression.MaxWidth <= 0 {
		c.Compression.MaxWidth = compressor.DefaultBounds.MaxWidth
	}
	if c.Compression.MaxHeight <= 0 {
		c.Compression.MaxHeight = compressor.DefaultBounds.MaxHeight
	}
	if c.Compression.AvatarMaxWidth <= 0 {
		c.Compression.AvatarMaxWidth = compressor.AvatarBounds.MaxWidth
	}
	if c.Compression.AvatarMaxHeight <= 0 {
		c.Compression.AvatarMaxHeight = compressor.AvatarBounds.MaxHeight
	}
	if c.Compression.JPEGQuality < 1 || c.Compression.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg_quality: %d (valid: 1-100)", c.Compression.JPEGQuality)
	}
	if c.Compression.WebPQuality < 1 || c.Compression.WebPQuality > 100 {
		return fmt.Errorf("invalid webp_quality: %d (valid: 1-100)", c.Compression.WebPQuality)
	}
	if c.Compression.Workers < 0 {
		c.Compression.Workers = 0
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if _, err := compressor.ParseCategory(c.Watch.Category); err != nil {
		return fmt.Errorf("watch.category: %w", err)
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// BoundsFor returns the configured resize bounds for a category.
func (c *Config) BoundsFor(category compressor.Category) compressor.Bounds {
	if category == compressor.CategoryAvatar {
		return compressor.Bounds{MaxWidth: c.Compression.AvatarMaxWidth, MaxHeight: c.Compression.AvatarMaxHeight}
	}
	return compressor.Bounds{MaxWidth: c.Compression.MaxWidth, MaxHeight: c.Compression.MaxHeight}
}

// CompressionOptions builds compressor options for a category.
func (c *Config) CompressionOptions(category compressor.Category) compressor.Options {
	return compressor.Options{Category: category, Bounds: c.BoundsFor(category)}
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
