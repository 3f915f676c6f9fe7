package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/docmesh/internal/adapter/a2aclient"
	"github.com/Strob0t/docmesh/internal/config"
	"github.com/Strob0t/docmesh/internal/service"
)

// newProvider discovers the configured agents.
func newProvider(ctx context.Context, cfg *config.Config) (*service.Provider, error) {
	client := a2aclient.New()
	var opts []service.ProviderOption
	if cfg.Discovery.UseSession {
		opts = append(opts, service.WithSessions(func(ctx context.Context, cardURL string) (service.TaskSender, error) {
			s, err := client.OpenSession(ctx, cardURL)
			if err != nil {
				return nil, err
			}
			return s, nil
		}))
	}
	p, err := service.NewProvider(ctx, cfg.Discovery, cfg.Breaker, client, opts...)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	return p, nil
}

// runChat runs the interactive orchestrator on stdin/stdout.
func runChat(args []string) error {
	r, err := bootstrap("chat", args, config.ValidateOrchestrator)
	if err != nil {
		return err
	}
	defer r.close()
	cfg := r.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			slog.Warn("closing agent sessions", "error", err)
		}
	}()

	model, err := newChatModel(cfg.LLM)
	if err != nil {
		return err
	}
	orch := service.NewOrchestrator(service.NewReasoner(model, cfg.LLM.MaxSteps), provider,
		cfg.Orchestrator.Instructions, cfg.Discovery.TaskTimeout)

	prompt := ""
	if term.IsTerminal(int(os.Stdin.Fd())) {
		prompt = cfg.Orchestrator.Prompt
		fmt.Fprintf(os.Stdout, "Discovered %d tool(s). Type /tools, /refresh or exit.\n", len(provider.Bindings()))
	}
	return repl(ctx, os.Stdin, os.Stdout, prompt, orch, provider)
}

// repl reads one question per line until EOF, "exit" or "quit".
func repl(ctx context.Context, in io.Reader, out io.Writer, prompt string, orch *service.Orchestrator, provider *service.Provider) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/tools":
			printBindings(out, provider.Bindings())
			continue
		case "/refresh":
			if err := provider.Refresh(ctx); err != nil {
				fmt.Fprintf(out, "refresh failed: %v\n", err)
			}
			printBindings(out, provider.Bindings())
			continue
		}

		fmt.Fprintln(out, orch.Answer(ctx, line))
		if ctx.Err() != nil {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// runDiscover fetches every configured card once and prints the bindings.
func runDiscover(args []string) error {
	r, err := bootstrap("discover", args, config.ValidateDiscovery)
	if err != nil {
		return err
	}
	defer r.close()

	provider, err := newProvider(context.Background(), r.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	printBindings(os.Stdout, provider.Bindings())
	return nil
}

func printBindings(out io.Writer, bindings []service.Binding) {
	if len(bindings) == 0 {
		fmt.Fprintln(out, "No agents discovered.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tAGENT\tSKILL\tENDPOINT")
	for _, b := range bindings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Tool, b.Agent, b.Skill.ID, b.Endpoint)
	}
	_ = w.Flush()
}
