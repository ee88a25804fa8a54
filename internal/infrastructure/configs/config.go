package configs

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/musorogski/cucme/internal/infrastructure/env"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	Room        RoomConfig        `koanf:"room"`
	Credential  CredentialConfig  `koanf:"credential"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	StaticDir      string        `koanf:"static_dir"`
}

type RoomConfig struct {
	// MaxParticipants caps room membership; a policy value, never
	// hardcoded at call sites.
	MaxParticipants int           `koanf:"max_participants"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`
}

type CredentialConfig struct {
	BcryptCost int `koanf:"bcrypt_cost"`
}

type RateLimiterConfig struct {
	MaxRatePerSecond int           `koanf:"maxRatePerSecond"`
	MaxBurst         int           `koanf:"maxBurst"`
	CacheTTL         time.Duration `koanf:"cacheTTL"`
	SourceHeaderKey  string        `koanf:"sourceHeaderKey"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load from YAML file if it exists
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Only return error if file was explicitly provided but failed to load
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply defaults and environment variable overrides
	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 3000)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.static_dir", "")

	// Room policy defaults
	setDefault(k, "room.max_participants", 3)
	setDefault(k, "room.sweep_interval", time.Minute)

	// Credential defaults (bcrypt cost 10)
	setDefault(k, "credential.bcrypt_cost", 10)

	// Rate limiter defaults
	setDefault(k, "rateLimiter.maxRatePerSecond", 10)
	setDefault(k, "rateLimiter.maxBurst", 20)
	setDefault(k, "rateLimiter.cacheTTL", 5*time.Minute)
	setDefault(k, "rateLimiter.sourceHeaderKey", "X-Forwarded-For")
}

func applyEnvOverrides(k *koanf.Koanf) {
	// HTTP config from env
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if staticDir := env.GetString("HTTP_STATIC_DIR", ""); staticDir != "" {
		k.Set("http.static_dir", staticDir)
	}

	// Room policy from env
	if maxParticipants := env.GetInt("ROOM_MAX_PARTICIPANTS", 0); maxParticipants > 0 {
		k.Set("room.max_participants", maxParticipants)
	}
	if sweepInterval := env.GetDuration("ROOM_SWEEP_INTERVAL", 0); sweepInterval > 0 {
		k.Set("room.sweep_interval", sweepInterval)
	}

	// Credential config from env
	if cost := env.GetInt("BCRYPT_COST", 0); cost > 0 {
		k.Set("credential.bcrypt_cost", cost)
	}

	// Rate limiter config from env
	if maxRate := env.GetInt("RATE_LIMIT_MAX_RATE_PER_SECOND", 0); maxRate > 0 {
		k.Set("rateLimiter.maxRatePerSecond", maxRate)
	}
	if maxBurst := env.GetInt("RATE_LIMIT_MAX_BURST", 0); maxBurst > 0 {
		k.Set("rateLimiter.maxBurst", maxBurst)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
