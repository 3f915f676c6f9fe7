// Package config provides hierarchical configuration loading for docmesh.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds the runtime configuration of every docmesh role. Each role
// reads only the sections it needs.
type Config struct {
	Server       Server       `yaml:"server"`
	Docs         Docs         `yaml:"docs"`
	Agent        Agent        `yaml:"agent"`
	Discovery    Discovery    `yaml:"discovery"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	LLM          LLM          `yaml:"llm"`
	Logging      Logging      `yaml:"logging"`
	Breaker      Breaker      `yaml:"breaker"`
	Cache        Cache        `yaml:"cache"`
	NATS         NATS         `yaml:"nats"`
	Telemetry    Telemetry    `yaml:"telemetry"`
}

// Server holds settings shared by the HTTP listeners.
type Server struct {
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// Docs configures the document MCP server.
type Docs struct {
	Addr       string   `yaml:"addr"`
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	MaxHits    int      `yaml:"max_hits"` // per document
	Name       string   `yaml:"name"`
	Version    string   `yaml:"version"`
	AuthToken  string   `yaml:"auth_token"` // empty disables auth
}

// Skill is one skill published on the agent card.
type Skill struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

// Agent configures the agent server role.
type Agent struct {
	Addr        string  `yaml:"addr"`
	PublicURL   string  `yaml:"public_url"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Version     string  `yaml:"version"`
	Skills      []Skill `yaml:"skills"`
	// Card capabilities; both default to false.
	Streaming         bool          `yaml:"streaming"`
	PushNotifications bool          `yaml:"push_notifications"`
	Instructions      string        `yaml:"instructions"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	TaskTimeout       time.Duration `yaml:"task_timeout"`
	DocsMCPURL        string        `yaml:"docs_mcp_url"`
	GatewayToken      string        `yaml:"gateway_token"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
}

// Discovery configures how the orchestrator finds and calls agents.
type Discovery struct {
	AgentURLs    []string      `yaml:"agent_urls"`
	Retries      int           `yaml:"retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`
	MaxParallel  int           `yaml:"max_parallel"`
	UseSession   bool          `yaml:"use_session"` // route tasks over one websocket per agent
}

// Orchestrator configures the interactive orchestrator.
type Orchestrator struct {
	Instructions string `yaml:"instructions"`
	Prompt       string `yaml:"prompt"`
}

// LLM configures the OpenAI-compatible model endpoint.
type LLM struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxSteps    int           `yaml:"max_steps"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Source  bool   `yaml:"source"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Cache configures the task result cache. With NATS configured and a bucket
// set, results are also kept in a JetStream KV bucket shared by replicas.
type Cache struct {
	MaxEntries int64         `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
	Bucket     string        `yaml:"bucket"`
}

// NATS holds NATS JetStream configuration. An empty URL disables events.
type NATS struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// Telemetry configures OpenTelemetry export. An empty endpoint disables it.
type Telemetry struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Defaults returns a Config with the values of a local three-process setup.
func Defaults() Config {
	return Config{
		Server: Server{
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Docs: Docs{
			Addr:       ":8000",
			Dir:        "docs",
			Extensions: []string{".md"},
			MaxHits:    50,
			Name:       "docs-mcp",
			Version:    "1.0.0",
		},
		Agent: Agent{
			Addr:        ":8010",
			PublicURL:   "http://localhost:8010/",
			Name:        "doc_summarizer_agent",
			Description: "Summarizes documents from MCP resources via MCP tools.",
			Version:     "1.0.0",
			Skills: []Skill{{
				ID:          "docs.summarize",
				Name:        "Summarize Docs",
				Description: "Efficiently reads/searches docs via MCP and summarizes.",
				Tags:        []string{"docs", "summarize", "mcp"},
			}},
			Instructions: "You are DocSummarizer.\n" +
				"Use MCP tools to list/read/search documents.\n" +
				"Be efficient: search first, then read only necessary docs.\n" +
				"Return concise summaries and key bullet points.\n",
			MaxConcurrent:  8,
			TaskTimeout:    2 * time.Minute,
			ConnectTimeout: 30 * time.Second,
		},
		Discovery: Discovery{
			AgentURLs:    []string{"http://localhost:8010"},
			Retries:      2,
			RetryDelay:   500 * time.Millisecond,
			FetchTimeout: 5 * time.Second,
			TaskTimeout:  2 * time.Minute,
			MaxParallel:  8,
		},
		Orchestrator: Orchestrator{
			Instructions: "You are an orchestrator.\n" +
				"Only call doc_summarizer_agent when the user asks Python coding questions.\n" +
				"Otherwise, answer directly and do not call any tools.\n" +
				"Do not override the discovered agent URL; strictly use only discovered agents.\n",
			Prompt: "User> ",
		},
		LLM: LLM{
			Model:    "gpt-4o-mini",
			MaxSteps: 8,
			Timeout:  90 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "docmesh",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			MaxEntries: 10000,
			TTL:        10 * time.Minute,
		},
		NATS: NATS{
			Stream: "DOCMESH",
		},
		Telemetry: Telemetry{
			SampleRate: 1.0,
		},
	}
}
