package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	defaultListenAddr         = ":8080"
	defaultDBPath             = "./dmvagent.db"
	defaultLLMMaxTokens       = 256
	defaultLLMTemperature     = 0.2
	defaultClassifyRetries    = 2
	defaultClassifyIntervalMS = 500
	defaultMaxUploadBytes     = 10 << 20
	defaultMaxExtractedChars  = 20000
	defaultKafkaTopic         = "dmv-verified-documents"
	defaultDigestSchedule     = "0 17 * * *"
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	CatalogPath string `yaml:"catalog_path"`

	DBDriver    string `yaml:"db_driver"`
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`

	LLMProvider     string   `yaml:"llm_provider"`
	LLMModel        string   `yaml:"llm_model"`
	LLMMaxTokens    int      `yaml:"llm_max_tokens"`
	LLMTemperature  *float64 `yaml:"llm_temperature"`
	AnthropicAPIKey string   `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string   `yaml:"openai_api_key"`
	OpenAIBaseURL   string   `yaml:"openai_base_url"`

	ClassifyRetries         int `yaml:"classify_retries"`
	ClassifyRetryIntervalMS int `yaml:"classify_retry_interval_ms"`

	MaxUploadBytes             int64 `yaml:"max_upload_bytes"`
	MaxExtractedChars          int   `yaml:"max_extracted_chars"`
	ExternalHTTPTimeoutSeconds int   `yaml:"external_http_timeout_seconds"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	DigestSchedule string `yaml:"digest_schedule"`
	Timezone       string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig loads the configuration and exits the process on any problem.
func LoadConfig() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

// Load reads config.yaml (or CONFIG_PATH), applies env overrides and
// defaults, and validates the result.
func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing %s: %w", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	var errs envErrors
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.CatalogPath, "CATALOG_PATH")
	envOverride(&cfg.DBDriver, "DB_DRIVER")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.DatabaseURL, "DATABASE_URL")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	errs.add(envOverrideInt(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS"))
	errs.add(envOverrideFloatPtr(&cfg.LLMTemperature, "LLM_TEMPERATURE"))
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideAllowEmpty(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	errs.add(envOverrideInt(&cfg.ClassifyRetries, "CLASSIFY_RETRIES"))
	errs.add(envOverrideInt(&cfg.ClassifyRetryIntervalMS, "CLASSIFY_RETRY_INTERVAL_MS"))
	errs.add(envOverrideInt64(&cfg.MaxUploadBytes, "MAX_UPLOAD_BYTES"))
	errs.add(envOverrideInt(&cfg.MaxExtractedChars, "MAX_EXTRACTED_CHARS"))
	errs.add(envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"))
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}
	envOverride(&cfg.KafkaTopic, "KAFKA_TOPIC")
	envOverride(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")
	if err := errs.err(); err != nil {
		return Config{}, err
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMMaxTokens == 0 {
		cfg.LLMMaxTokens = defaultLLMMaxTokens
	}
	if cfg.LLMTemperature == nil {
		t := defaultLLMTemperature
		cfg.LLMTemperature = &t
	}
	if cfg.ClassifyRetryIntervalMS == 0 {
		cfg.ClassifyRetryIntervalMS = defaultClassifyIntervalMS
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.MaxExtractedChars == 0 {
		cfg.MaxExtractedChars = defaultMaxExtractedChars
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = defaultKafkaTopic
	}
	if cfg.DigestSchedule == "" {
		cfg.DigestSchedule = defaultDigestSchedule
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Retries are opt-out with an explicit negative value; zero means default.
	if cfg.ClassifyRetries == 0 {
		cfg.ClassifyRetries = defaultClassifyRetries
	} else if cfg.ClassifyRetries < 0 {
		cfg.ClassifyRetries = 0
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when db_driver=postgres")
		}
	default:
		return fmt.Errorf("db_driver must be 'sqlite' or 'postgres', got '%s'", c.DBDriver)
	}

	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key is required when llm_provider=openai")
		}
	default:
		return fmt.Errorf("llm_provider must be 'anthropic' or 'openai', got '%s'", c.LLMProvider)
	}

	if (c.SlackBotToken == "") != (c.SlackChannelID == "") {
		return fmt.Errorf("partial Slack config: slack_bot_token and slack_channel_id are required together")
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		return fmt.Errorf("kafka_topic must not be empty when kafka_brokers is set")
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	if _, err := cron.ParseStandard(c.DigestSchedule); err != nil {
		return fmt.Errorf("invalid digest_schedule '%s': %w", c.DigestSchedule, err)
	}
	if c.LLMMaxTokens < 16 {
		return fmt.Errorf("invalid llm_max_tokens '%d': must be >= 16", c.LLMMaxTokens)
	}
	if t := *c.LLMTemperature; t < 0 || t > 1 {
		return fmt.Errorf("invalid llm_temperature '%f': must be between 0 and 1", t)
	}
	if c.ClassifyRetryIntervalMS < 0 {
		return fmt.Errorf("invalid classify_retry_interval_ms '%d': must be >= 0", c.ClassifyRetryIntervalMS)
	}
	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("invalid max_upload_bytes '%d': must be >= 1024", c.MaxUploadBytes)
	}
	if c.MaxExtractedChars < 100 {
		return fmt.Errorf("invalid max_extracted_chars '%d': must be >= 100", c.MaxExtractedChars)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	return nil
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) KafkaConfigured() bool {
	return len(c.KafkaBrokers) > 0
}

func (c Config) ClassifyRetryInterval() time.Duration {
	return time.Duration(c.ClassifyRetryIntervalMS) * time.Millisecond
}

func (c Config) Temperature() float64 {
	if c.LLMTemperature == nil {
		return defaultLLMTemperature
	}
	return *c.LLMTemperature
}

type envErrors []error

func (e *envErrors) add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

func (e envErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e[0]
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideInt64(field *int64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloatPtr(field **float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = &parsed
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
