package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by COGNICORE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("COGNICORE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine; the process environment still applies.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	return intEnv("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// StoreDriver selects persistence: "postgres" (default) or "memory".
func StoreDriver() string {
	return stringEnv("STORE_DRIVER", "postgres")
}

// RedisURL enables the Redis-backed working memory when set.
func RedisURL() string {
	return os.Getenv("REDIS_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// LLMProvider returns the reasoning provider.
// Valid values: anthropic, openai, mock. Defaults to anthropic.
func LLMProvider() string {
	return stringEnv("LLM_PROVIDER", "anthropic")
}

// LLMModel overrides the provider's default model.
func LLMModel() string {
	return os.Getenv("LLM_MODEL")
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingProvider returns the configured embedding provider.
// Valid values: openai, mock. Defaults to openai.
func EmbeddingProvider() string {
	return stringEnv("EMBEDDING_PROVIDER", "openai")
}

func EmbeddingAPIKey() string {
	if EmbeddingProvider() == "mock" {
		return ""
	}
	return OpenAIAPIKey()
}

// EmbeddingModel must produce (or truncate to) 1536-dimensional vectors.
func EmbeddingModel() string {
	return stringEnv("EMBEDDING_MODEL", "text-embedding-3-small")
}

// EmbeddingBaseURL allows an OpenAI-compatible gateway.
func EmbeddingBaseURL() string {
	return stringEnv("EMBEDDING_BASE_URL", "")
}

func EmbeddingCacheSize() int {
	return intEnv("EMBEDDING_CACHE_SIZE", 4096)
}

// ReasoningRPS paces calls to the shared reasoning client across all agents.
func ReasoningRPS() float64 {
	return floatEnv("REASONING_RPS", 2)
}

func ReasoningBurst() int {
	return intEnv("REASONING_BURST", 4)
}

func ReasoningTimeout() time.Duration {
	return durationEnv("REASONING_TIMEOUT", 60*time.Second)
}

func ReasoningMaxRetries() int {
	return intEnv("REASONING_MAX_RETRIES", 3)
}

func LoopInterval() time.Duration {
	return durationEnv("LOOP_INTERVAL", 300*time.Second)
}

func LoopErrorBackoff() time.Duration {
	return durationEnv("LOOP_ERROR_BACKOFF", 60*time.Second)
}

func LoopIntentionsPerCycle() int {
	return intEnv("LOOP_INTENTIONS_PER_CYCLE", 1)
}

func LoopPerceiveTimeout() time.Duration {
	return durationEnv("LOOP_PERCEIVE_TIMEOUT", 30*time.Second)
}

// LoopPhaseTimeout bounds each cycle phase, including its persistence calls.
func LoopPhaseTimeout() time.Duration {
	return durationEnv("LOOP_PHASE_TIMEOUT", 120*time.Second)
}

func LoopExecuteTimeout() time.Duration {
	return durationEnv("LOOP_EXECUTE_TIMEOUT", 60*time.Second)
}

func LoopStopTimeout() time.Duration {
	return durationEnv("LOOP_STOP_TIMEOUT", 30*time.Second)
}

// StrategicSchedule is a cron expression for scheduled strategic reasoning.
func StrategicSchedule() string {
	return stringEnv("STRATEGIC_SCHEDULE", "0 */6 * * *")
}

// BeliefDecayModel is "linear" (default) or "exponential".
func BeliefDecayModel() string {
	return stringEnv("BELIEF_DECAY_MODEL", "linear")
}

func WorkingMemoryCapacity() int {
	return intEnv("WORKING_MEMORY_CAPACITY", 20)
}

func ConsolidationInterval() time.Duration {
	return durationEnv("CONSOLIDATION_INTERVAL", 6*time.Hour)
}

func WorkingMemorySweepInterval() time.Duration {
	return durationEnv("WORKING_MEMORY_SWEEP_INTERVAL", time.Minute)
}

// GoalTriggersFile points at a JSON array of goal trigger rules.
func GoalTriggersFile() string {
	return os.Getenv("GOAL_TRIGGERS_FILE")
}

// RoleRequirements parses ROLE_REQUIREMENTS, e.g.
// "account_manager=inbox,crm;sdr=inbox", into role -> required capabilities.
func RoleRequirements() map[string][]string {
	out := map[string][]string{}
	for _, entry := range strings.Split(os.Getenv("ROLE_REQUIREMENTS"), ";") {
		role, caps, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || role == "" {
			continue
		}
		for _, c := range strings.Split(caps, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out[role] = append(out[role], c)
			}
		}
	}
	return out
}

// OTLPEndpoint enables trace export when set (e.g. "localhost:4317").
func OTLPEndpoint() string {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	return floatEnv("RATE_LIMIT_RPS", 100)
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return intEnv("RATE_LIMIT_BURST", 20)
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	return stringEnv("LOG_LEVEL", "info")
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func floatEnv(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

// durationEnv accepts Go durations ("90s") or bare seconds ("90").
func durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}
