package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "willingd",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     15 * time.Second,
				WriteTimeout:    15 * time.Second,
				IdleTimeout:     120 * time.Second,
				RequestTimeout:  10 * time.Second,
				ShutdownTimeout: 30 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
				MaxAge:         300,
			},
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Willing: WillingConfig{
			InterestAmplifier:    1.0,
			WillingnessAmplifier: 1.0,
			DownFrequencyGroups:  []string{},
			DownFrequencyRate:    3.0,
			DecayInterval:        5 * time.Second,
			DecayFactor:          0.6,
		},
		Storage: StorageConfig{
			Type:             "memory",
			SnapshotInterval: 30 * time.Second,
			Badger: BadgerConfig{
				Path:              "./data/willing",
				SyncWrites:        true,
				ValueLogFileSize:  64 << 20, // 64MB
				NumVersionsToKeep: 1,
			},
			Redis: RedisConfig{
				Address:     "localhost:6379",
				Password:    "",
				DB:          0,
				KeyPrefix:   "willing:",
				DialTimeout: 5 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    5 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
	}
}
