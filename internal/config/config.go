package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vigil/internal/domain"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	ProviderPrimary        string
	ProviderFallbacks      []string
	ProviderTimeoutSeconds int

	DriftMethod        string
	DriftThreshold     float64
	ReferenceImagePath string

	PulseWindowSeconds     int
	PulseFailRateThreshold float64
	PulseMinSamples        int
	PulsePerProvider       bool

	OutputsDir  string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool

	GeminiAPIKey   string
	EmbeddingModel string

	PolicyBundlePath string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OpenAIAPIKey          string
	OpenAISimulateDown    bool
	StabilityAPIKey       string
	StabilitySimulateDown bool
	ComfyUIURL            string
	ComfyUIMode           string
	ComfyUITimeoutSecs    int
}

func FromEnv() Config {
	return Config{
		HTTPAddr:    envDefault("HTTP_ADDR", ":8080"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		LogLevel:    envDefault("LOG_LEVEL", "info"),

		ProviderPrimary:        envDefault("PROVIDER_PRIMARY", "stub"),
		ProviderFallbacks:      splitList(os.Getenv("PROVIDER_FALLBACKS")),
		ProviderTimeoutSeconds: envIntDefault("PROVIDER_TIMEOUT_SECONDS", 30),

		DriftMethod:        strings.ToLower(envDefault("DRIFT_METHOD", "auto")),
		DriftThreshold:     envFloatDefault("DRIFT_THRESHOLD", 0.35),
		ReferenceImagePath: os.Getenv("REFERENCE_IMAGE_PATH"),

		PulseWindowSeconds:     envIntDefault("PULSE_WINDOW_SECONDS", 300),
		PulseFailRateThreshold: envFloatDefault("PULSE_FAILRATE_THRESHOLD", 0.2),
		PulseMinSamples:        envIntDefault("PULSE_MIN_SAMPLES", 5),
		PulsePerProvider:       envBoolDefault("PULSE_PER_PROVIDER", false),

		OutputsDir:  envDefault("OUTPUTS_DIR", "outputs"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envDefault("S3_BUCKET", "vigil-artifacts"),
		S3Region:    envDefault("S3_REGION", "us-east-1"),
		S3UseSSL:    envBoolDefault("S3_USE_SSL", false),

		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),

		PolicyBundlePath: os.Getenv("POLICY_BUNDLE_PATH"),

		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envIntDefault("REDIS_DB", 0),

		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAISimulateDown:    envBoolDefault("OPENAI_IMG_SIMULATE_DOWN", false),
		StabilityAPIKey:       os.Getenv("STABILITY_API_KEY"),
		StabilitySimulateDown: envBoolDefault("STABILITY_SIMULATE_DOWN", false),
		ComfyUIURL:            envDefault("COMFYUI_URL", "http://127.0.0.1:8188"),
		ComfyUIMode:           envDefault("COMFYUI_MODE", "stub"),
		ComfyUITimeoutSecs:    envIntDefault("COMFYUI_TIMEOUT", 60),
	}
}

// ProviderChain is the primary followed by the fallbacks, in order.
func (c Config) ProviderChain() []string {
	chain := make([]string, 0, 1+len(c.ProviderFallbacks))
	chain = append(chain, c.ProviderPrimary)
	chain = append(chain, c.ProviderFallbacks...)
	return chain
}

func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

func (c Config) PulseWindow() time.Duration {
	return time.Duration(c.PulseWindowSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// Validate rejects configurations the service must not start with. Unknown
// provider names surface later, when the chain is resolved against the
// registry.
func (c Config) Validate() error {
	if c.ProviderPrimary == "" {
		return fmt.Errorf("PROVIDER_PRIMARY must not be empty: %w", domain.ErrInvalidConfiguration)
	}
	seen := map[string]bool{}
	for _, name := range c.ProviderChain() {
		if name == "" {
			return fmt.Errorf("provider chain contains an empty name: %w", domain.ErrInvalidConfiguration)
		}
		if seen[name] {
			return fmt.Errorf("provider %q listed twice in chain: %w", name, domain.ErrInvalidConfiguration)
		}
		seen[name] = true
	}
	if c.ProviderTimeoutSeconds <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be positive: %w", domain.ErrInvalidConfiguration)
	}
	if !domain.DriftMethod(c.DriftMethod).Valid() {
		return fmt.Errorf("DRIFT_METHOD %q not one of auto|embedding|phash|ssim: %w", c.DriftMethod, domain.ErrInvalidConfiguration)
	}
	if c.DriftThreshold < 0 || c.DriftThreshold > 1 {
		return fmt.Errorf("DRIFT_THRESHOLD %f outside [0,1]: %w", c.DriftThreshold, domain.ErrInvalidConfiguration)
	}
	if c.ReferenceImagePath == "" {
		return fmt.Errorf("REFERENCE_IMAGE_PATH is required for drift scoring: %w", domain.ErrInvalidConfiguration)
	}
	if c.PulseWindowSeconds <= 0 {
		return fmt.Errorf("PULSE_WINDOW_SECONDS must be positive: %w", domain.ErrInvalidConfiguration)
	}
	if c.PulseFailRateThreshold < 0 || c.PulseFailRateThreshold > 1 {
		return fmt.Errorf("PULSE_FAILRATE_THRESHOLD %f outside [0,1]: %w", c.PulseFailRateThreshold, domain.ErrInvalidConfiguration)
	}
	if c.PulseMinSamples < 1 {
		return fmt.Errorf("PULSE_MIN_SAMPLES must be at least 1: %w", domain.ErrInvalidConfiguration)
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ":")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
