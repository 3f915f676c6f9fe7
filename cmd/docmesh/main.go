// Command docmesh runs the processes of a document-summarizing agent mesh:
// the MCP document server, the A2A agent server, and the orchestrator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	cfotel "github.com/Strob0t/docmesh/internal/adapter/otel"
	"github.com/Strob0t/docmesh/internal/config"
	"github.com/Strob0t/docmesh/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// run dispatches the docmesh subcommands.
func run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		printHelp()
		return nil
	}

	switch args[0] {
	case "docs":
		return runDocs(args[1:])
	case "agent":
		return runAgent(args[1:])
	case "chat":
		return runChat(args[1:])
	case "discover":
		return runDiscover(args[1:])
	case "events":
		return runEvents(args[1:])
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: docmesh <command> [options]

Commands:
  docs       Serve the document corpus over MCP (SSE and streamable HTTP)
  agent      Serve the document summarizer agent over A2A
  chat       Start the interactive orchestrator
  discover   Fetch agent cards and print the tools they bind
  events     Print task lifecycle events from NATS
  help       Show this help message

Options:
  -c, --config <path>   YAML config file (default: docmesh.yaml)
  --log-level <level>   debug|info|warn|error
  --docs-addr <addr>    document server listen address
  --docs-dir <dir>      corpus directory
  --agent-addr <addr>   agent server listen address
  --docs-url <url>      document server SSE URL used by the agent
  --agents <urls>       comma-separated agent base URLs

Examples:
  docmesh docs --docs-dir ./docs
  DOCS_MCP_URL=http://localhost:8000/sse docmesh agent
  docmesh chat --agents http://localhost:8010
`)
}

// role is the bootstrapped state every subcommand starts from.
type role struct {
	cfg      *config.Config
	shutdown cfotel.ShutdownFunc
}

// bootstrap loads configuration for a subcommand, validates the sections it
// needs, installs the default logger and sets up telemetry.
func bootstrap(name string, args []string, validate func(*config.Config) error) (*role, error) {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return nil, err
	}
	cfg, path, err := config.LoadWithCLI(flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validate != nil {
		if err := validate(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Logging.Service == config.Defaults().Logging.Service {
		cfg.Logging.Service = "docmesh-" + name
	}
	// The chat REPL owns stdout.
	if name == "chat" {
		slog.SetDefault(logger.NewWriter(os.Stderr, cfg.Logging))
	} else {
		slog.SetDefault(logger.New(cfg.Logging))
	}
	slog.Debug("config loaded", "path", path, "role", name)

	shutdown, err := cfotel.Setup(context.Background(), cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return &role{cfg: cfg, shutdown: shutdown}, nil
}

// close flushes telemetry within the configured shutdown timeout.
func (r *role) close() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := r.shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}
}
