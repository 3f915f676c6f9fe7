package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// CLIFlags holds command-line overrides. Nil fields were not given.
type CLIFlags struct {
	ConfigPath *string
	LogLevel   *string
	DocsAddr   *string
	DocsDir    *string
	AgentAddr  *string
	DocsMCPURL *string
	AgentURLs  *string
}

// ParseFlags parses args into CLIFlags. Only flags that appear in args are
// set, so they can be layered over YAML and ENV.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("docmesh", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		cfgPath, logLevel, docsAddr, docsDir string
		agentAddr, docsURL, agentURLs        string
	)
	fs.StringVar(&cfgPath, "config", "", "path to YAML config")
	fs.StringVar(&cfgPath, "c", "", "shorthand for --config")
	fs.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	fs.StringVar(&docsAddr, "docs-addr", "", "document server listen address")
	fs.StringVar(&docsDir, "docs-dir", "", "corpus directory")
	fs.StringVar(&agentAddr, "agent-addr", "", "agent server listen address")
	fs.StringVar(&docsURL, "docs-url", "", "document server SSE URL used by the agent")
	fs.StringVar(&agentURLs, "agents", "", "comma-separated agent base URLs")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var out CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			out.ConfigPath = &cfgPath
		case "log-level":
			out.LogLevel = &logLevel
		case "docs-addr":
			out.DocsAddr = &docsAddr
		case "docs-dir":
			out.DocsDir = &docsDir
		case "agent-addr":
			out.AgentAddr = &agentAddr
		case "docs-url":
			out.DocsMCPURL = &docsURL
		case "agents":
			out.AgentURLs = &agentURLs
		}
	})
	return out, nil
}

// applyCLI overlays the given flags onto cfg.
func applyCLI(cfg *Config, f CLIFlags) {
	if f.LogLevel != nil {
		cfg.Logging.Level = *f.LogLevel
	}
	if f.DocsAddr != nil {
		cfg.Docs.Addr = *f.DocsAddr
	}
	if f.DocsDir != nil {
		cfg.Docs.Dir = *f.DocsDir
	}
	if f.AgentAddr != nil {
		cfg.Agent.Addr = *f.AgentAddr
	}
	if f.DocsMCPURL != nil {
		cfg.Agent.DocsMCPURL = *f.DocsMCPURL
	}
	if f.AgentURLs != nil {
		var urls []string
		for _, u := range strings.Split(*f.AgentURLs, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.Discovery.AgentURLs = urls
	}
}

// LoadWithCLI loads defaults < YAML < ENV < CLI and returns the YAML path
// that was used.
func LoadWithCLI(f CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if f.ConfigPath != nil {
		path = *f.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, f)

	if err := validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}
