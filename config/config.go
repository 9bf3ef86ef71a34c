// Package config loads the server configuration from a TOML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/BurntSushi/toml"
)

// Config stores the IIIF server configuration.
type Config struct {
	Host      string `toml:"host" validate:"required"`
	Port      int    `toml:"port" validate:"gte=0,lte=65535"`
	Templates string `toml:"templates"`
	MaxWidth  int    `toml:"maxWidth" validate:"gte=0"`
	MaxHeight int    `toml:"maxHeight" validate:"gte=0"`
	MaxArea   int    `toml:"maxArea" validate:"gte=0"`
	// TileSize is the tile edge advertised in info.json.
	TileSize int `toml:"tileSize" validate:"gte=0"`
	// Strict refuses out of range percentages, reduce factors and angles
	// instead of clamping them.
	Strict   bool   `toml:"strict"`
	Renderer string `toml:"renderer" validate:"required,oneof=imaging vips"`
	LogLevel string `toml:"logLevel" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	// Debug enables debug namespaces, e.g. "iiif,shard" or "*".
	Debug    string `toml:"debug"`

	Images  ImagesConfig  `toml:"images"`
	Cache   CacheConfig   `toml:"cache"`
	Admin   AdminConfig   `toml:"admin"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ImagesConfig says where the source images come from.
type ImagesConfig struct {
	// Sources are tried in order.
	Sources []string `toml:"sources" validate:"min=1,dive,oneof=disk http s3 gcs"`
	// Root is the shard tree of the disk source.
	Root    string         `toml:"root"`
	Timeout string         `toml:"timeout"`
	S3      map[string]any `toml:"s3"`
	GCS     map[string]any `toml:"gcs"`
	// Cache keeps the bytes read from the remote sources.
	Cache StoreConfig `toml:"cache"`

	TimeoutDuration time.Duration `toml:"-"`
}

// StoreConfig is a key value cache backend.
type StoreConfig struct {
	Type string `toml:"type" validate:"required,oneof=memory pebble badger none"`
	Path string `toml:"path" validate:"required_if=Type pebble,required_if=Type badger"`
	Size string `toml:"size"`
	TTL  string `toml:"ttl"`

	SizeBytes   int64         `toml:"-"`
	TTLDuration time.Duration `toml:"-"`
}

// CacheConfig represents the configuration information regarding the cache.
type CacheConfig struct {
	// HTTP is the max-age in seconds of the responses.
	HTTP       int64  `toml:"http" validate:"gte=0"`
	Thumbnails string `toml:"thumbnails"`
	// Self is this node in the groupcache pool, Peers are all the nodes.
	Self  string   `toml:"self" validate:"omitempty,url"`
	Peers []string `toml:"peers" validate:"dive,url"`

	ThumbnailsSize int64 `toml:"-"`
}

// AdminConfig protects the shard administration endpoints. They are off
// when no secret is set.
type AdminConfig struct {
	Secret   string `toml:"secret" validate:"omitempty,min=32"`
	TokenTTL string `toml:"tokenTTL"`

	TokenTTLDuration time.Duration `toml:"-"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Load reads the TOML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode is Load for an in memory document.
func Decode(data string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finalize(cfg *Config) error {
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	if cfg.Cache.Self == "" {
		cfg.Cache.Self = fmt.Sprintf("http://%s:%d/", cfg.Host, cfg.Port)
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	var err error
	if cfg.Cache.ThumbnailsSize, err = toBytes("cache.thumbnails", cfg.Cache.Thumbnails); err != nil {
		return err
	}
	if cfg.Images.Cache.SizeBytes, err = toBytes("images.cache.size", cfg.Images.Cache.Size); err != nil {
		return err
	}
	if cfg.Images.Cache.TTLDuration, err = toDuration("images.cache.ttl", cfg.Images.Cache.TTL); err != nil {
		return err
	}
	if cfg.Images.TimeoutDuration, err = toDuration("images.timeout", cfg.Images.Timeout); err != nil {
		return err
	}
	if cfg.Admin.TokenTTLDuration, err = toDuration("admin.tokenTTL", cfg.Admin.TokenTTL); err != nil {
		return err
	}
	return nil
}

func toBytes(field, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	n, err := bytefmt.ToBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a size: %w", field, value, err)
	}
	return int64(n), nil
}

func toDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration: %w", field, value, err)
	}
	return d, nil
}

// Listen is the address the server binds to.
func (c *Config) Listen() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
