package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by KINSHIP_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("KINSHIP_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// APIKey returns the static bearer key clients must present. When empty,
// authentication is disabled.
func APIKey() string {
	return os.Getenv("KINSHIP_API_KEY")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured extraction provider.
// Defaults to "openai" if not set.
// Valid values: openai, anthropic, gemini, cerebras, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// LLMAPIKey returns the API key for the configured extraction provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// DedupWorkers returns the number of concurrent duplicate-resolution workers
// per pipeline run. Defaults to 4 if not set.
func DedupWorkers() int {
	n, err := strconv.Atoi(os.Getenv("DEDUP_WORKERS"))
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// CandidateThreshold returns the minimum similarity for a stored person to
// count as a duplicate candidate. Defaults to 0.85 if not set.
func CandidateThreshold() float64 {
	v, err := strconv.ParseFloat(os.Getenv("RESOLVER_CANDIDATE_THRESHOLD"), 64)
	if err != nil || v <= 0 || v > 1 {
		return 0.85
	}
	return v
}

// AutoMergeThreshold returns the similarity at which a match merges without
// clarification. Defaults to 0.95 if not set.
func AutoMergeThreshold() float64 {
	v, err := strconv.ParseFloat(os.Getenv("RESOLVER_AUTO_MERGE_THRESHOLD"), 64)
	if err != nil || v <= 0 || v > 1 {
		return 0.95
	}
	return v
}

// AmbiguityGap returns the minimum lead the best candidate needs over the
// runner-up for an automatic merge. Defaults to 0.05 if not set.
func AmbiguityGap() float64 {
	v, err := strconv.ParseFloat(os.Getenv("RESOLVER_AMBIGUITY_GAP"), 64)
	if err != nil || v < 0 || v > 1 {
		return 0.05
	}
	return v
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
