package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/docmesh/internal/domain"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "docmesh.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("DOCMESH_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setDuration(&cfg.Server.ReadHeaderTimeout, "DOCMESH_READ_HEADER_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "DOCMESH_SHUTDOWN_TIMEOUT")

	// Document server
	setString(&cfg.Docs.Addr, "DOCMESH_DOCS_ADDR")
	setString(&cfg.Docs.Dir, "DOCMESH_DOCS_DIR")
	setList(&cfg.Docs.Extensions, "DOCMESH_DOCS_EXTENSIONS")
	setInt(&cfg.Docs.MaxHits, "DOCMESH_DOCS_MAX_HITS")
	setString(&cfg.Docs.AuthToken, "DOCMESH_DOCS_AUTH_TOKEN")

	// Agent server
	setString(&cfg.Agent.Addr, "DOCMESH_AGENT_ADDR")
	setString(&cfg.Agent.PublicURL, "DOCMESH_AGENT_PUBLIC_URL")
	setString(&cfg.Agent.Name, "DOCMESH_AGENT_NAME")
	setInt(&cfg.Agent.MaxConcurrent, "DOCMESH_AGENT_MAX_CONCURRENT")
	setDuration(&cfg.Agent.TaskTimeout, "DOCMESH_AGENT_TASK_TIMEOUT")
	setDuration(&cfg.Agent.ConnectTimeout, "DOCMESH_AGENT_CONNECT_TIMEOUT")
	setBool(&cfg.Agent.Streaming, "DOCMESH_AGENT_STREAMING")
	setBool(&cfg.Agent.PushNotifications, "DOCMESH_AGENT_PUSH_NOTIFICATIONS")
	setString(&cfg.Agent.DocsMCPURL, "DOCS_MCP_URL")
	setString(&cfg.Agent.GatewayToken, "GATEWAY_TOKEN")

	// Discovery
	if v := os.Getenv("DOCMESH_AGENT_URL"); v != "" {
		cfg.Discovery.AgentURLs = []string{v}
	}
	setList(&cfg.Discovery.AgentURLs, "DOCMESH_AGENT_URLS")
	setInt(&cfg.Discovery.Retries, "DOCMESH_DISCOVERY_RETRIES")
	setDuration(&cfg.Discovery.RetryDelay, "DOCMESH_DISCOVERY_RETRY_DELAY")
	setDuration(&cfg.Discovery.FetchTimeout, "DOCMESH_DISCOVERY_FETCH_TIMEOUT")
	setDuration(&cfg.Discovery.TaskTimeout, "DOCMESH_DISCOVERY_TASK_TIMEOUT")
	setInt(&cfg.Discovery.MaxParallel, "DOCMESH_DISCOVERY_MAX_PARALLEL")
	setBool(&cfg.Discovery.UseSession, "DOCMESH_DISCOVERY_USE_SESSION")

	// LLM
	setString(&cfg.LLM.URL, "LITELLM_URL")
	setString(&cfg.LLM.APIKey, "LITELLM_API_KEY")
	setString(&cfg.LLM.Model, "DOCMESH_LLM_MODEL")
	setInt(&cfg.LLM.MaxSteps, "DOCMESH_LLM_MAX_STEPS")
	setDuration(&cfg.LLM.Timeout, "DOCMESH_LLM_TIMEOUT")

	setString(&cfg.Logging.Level, "DOCMESH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DOCMESH_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "DOCMESH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DOCMESH_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxEntries, "DOCMESH_CACHE_MAX_ENTRIES")
	setDuration(&cfg.Cache.TTL, "DOCMESH_CACHE_TTL")
	setString(&cfg.Cache.Bucket, "DOCMESH_CACHE_BUCKET")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "DOCMESH_NATS_STREAM")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "DOCMESH_OTEL_INSECURE")
	setFloat64(&cfg.Telemetry.SampleRate, "DOCMESH_OTEL_SAMPLE_RATE")
}

// validate checks settings every role depends on.
func validate(cfg *Config) error {
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.MaxEntries < 1 {
		return errors.New("cache.max_entries must be >= 1")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be > 0")
	}
	if cfg.Telemetry.SampleRate < 0 || cfg.Telemetry.SampleRate > 1 {
		return errors.New("telemetry.sample_rate must be within [0, 1]")
	}
	return nil
}

// ValidateDocs checks the settings of the document server role.
func ValidateDocs(cfg *Config) error {
	if cfg.Docs.Addr == "" {
		return fmt.Errorf("%w: docs.addr is required", domain.ErrValidation)
	}
	if cfg.Docs.Dir == "" {
		return fmt.Errorf("%w: docs.dir is required", domain.ErrValidation)
	}
	if cfg.Docs.MaxHits < 1 {
		return fmt.Errorf("%w: docs.max_hits must be >= 1", domain.ErrValidation)
	}
	return nil
}

// ValidateAgent checks the settings of the agent server role.
func ValidateAgent(cfg *Config) error {
	if cfg.Agent.DocsMCPURL == "" {
		return fmt.Errorf("%w: DOCS_MCP_URL is not set (example: http://localhost:8000/sse)", domain.ErrValidation)
	}
	if err := requireHTTPURL("DOCS_MCP_URL", cfg.Agent.DocsMCPURL); err != nil {
		return err
	}
	if err := requireHTTPURL("agent.public_url", cfg.Agent.PublicURL); err != nil {
		return err
	}
	if cfg.Agent.Addr == "" {
		return fmt.Errorf("%w: agent.addr is required", domain.ErrValidation)
	}
	if len(cfg.Agent.Skills) == 0 {
		return fmt.Errorf("%w: agent.skills must declare at least one skill", domain.ErrValidation)
	}
	if cfg.Agent.MaxConcurrent < 1 {
		return fmt.Errorf("%w: agent.max_concurrent must be >= 1", domain.ErrValidation)
	}
	if cfg.Agent.TaskTimeout <= 0 {
		return fmt.Errorf("%w: agent.task_timeout must be > 0", domain.ErrValidation)
	}
	return validateLLM(cfg)
}

// ValidateOrchestrator checks the settings of the orchestrator role.
func ValidateOrchestrator(cfg *Config) error {
	if err := ValidateDiscovery(cfg); err != nil {
		return err
	}
	return validateLLM(cfg)
}

// ValidateDiscovery checks the discovery settings alone.
func ValidateDiscovery(cfg *Config) error {
	if len(cfg.Discovery.AgentURLs) == 0 {
		return fmt.Errorf("%w: discovery.agent_urls is empty (set DOCMESH_AGENT_URLS)", domain.ErrValidation)
	}
	for _, u := range cfg.Discovery.AgentURLs {
		if err := requireHTTPURL("discovery.agent_urls", u); err != nil {
			return err
		}
	}
	if cfg.Discovery.Retries < 0 {
		return fmt.Errorf("%w: discovery.retries must be >= 0", domain.ErrValidation)
	}
	if cfg.Discovery.FetchTimeout <= 0 || cfg.Discovery.TaskTimeout <= 0 {
		return fmt.Errorf("%w: discovery timeouts must be > 0", domain.ErrValidation)
	}
	if cfg.Discovery.MaxParallel < 1 {
		return fmt.Errorf("%w: discovery.max_parallel must be >= 1", domain.ErrValidation)
	}
	return nil
}

func validateLLM(cfg *Config) error {
	if cfg.LLM.URL == "" {
		return fmt.Errorf("%w: LITELLM_URL is not set", domain.ErrValidation)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("%w: llm.model is required", domain.ErrValidation)
	}
	if cfg.LLM.MaxSteps < 1 {
		return fmt.Errorf("%w: llm.max_steps must be >= 1", domain.ErrValidation)
	}
	return nil
}

func requireHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s %q is not an absolute http(s) URL", domain.ErrValidation, field, raw)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList splits a comma-separated value, dropping empty items.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
