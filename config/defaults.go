package config

// Default returns a configuration serving a local shard tree with the pure
// Go renderer.
func Default() *Config {
	return &Config{
		Host:      "localhost",
		Port:      8080,
		Templates: "templates",
		TileSize:  512,
		Renderer:  "imaging",
		LogLevel:  "INFO",
		Images: ImagesConfig{
			Sources: []string{"disk", "http"},
			Root:    "images",
			Timeout: "30s",
			Cache: StoreConfig{
				Type: "memory",
				Size: "64M",
				TTL:  "1h",
			},
		},
		Cache: CacheConfig{
			HTTP:       3600,
			Thumbnails: "128M",
		},
		Admin: AdminConfig{
			TokenTTL: "1h",
		},
	}
}
