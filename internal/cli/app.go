package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"mcpstudio/internal/config"
	"mcpstudio/internal/logging"
	"mcpstudio/internal/mcp"
	"mcpstudio/internal/ollama"
	"mcpstudio/internal/retry"
	"mcpstudio/internal/script"
	"mcpstudio/internal/stats"
)

// app holds the wired-up core shared by every command: config blob, loggers,
// counters, retry executor, connection registry and tool invoker.
type app struct {
	cfg      *config.File
	log      *zap.Logger
	counters *stats.Counters
	exec     *retry.Executor
	reg      *mcp.Registry
	inv      *mcp.Invoker
}

func newApp() (*app, error) {
	path := rf.Config
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if rf.Model != "" {
		cfg.Model = rf.Model
	}

	log, err := logging.New(rf.Verbose)
	if err != nil {
		return nil, err
	}

	errLogPath, err := config.ErrorLogPath()
	if err != nil {
		return nil, err
	}
	errLog, err := logging.NewErrorLog(errLogPath)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}

	counters := stats.New()
	exec := &retry.Executor{Log: errLog, Counters: counters}

	reg := mcp.NewRegistry(cfg, exec, counters, log)
	reg.RegisterDefaultFactories()
	reg.RegisterFactory(mcp.KindModule, ollama.NewConnectorFromConfig)

	return &app{
		cfg:      cfg,
		log:      log,
		counters: counters,
		exec:     exec,
		reg:      reg,
		inv:      mcp.NewInvoker(reg, exec, counters),
	}, nil
}

// close tears down every live connection and flushes logs.
func (a *app) close() {
	for _, info := range a.reg.List() {
		if info.State != mcp.StateDisconnected {
			_ = a.reg.Disconnect(info.Name)
		}
	}
	_ = a.log.Sync()
}

// ensureConnected connects a server on first use. Safe under concurrent
// batch execution: a lost connect race is not an error.
func (a *app) ensureConnected(ctx context.Context, name string) error {
	if a.reg.State(name) == mcp.StateConnected {
		return nil
	}
	err := a.reg.Connect(ctx, name)
	if errors.Is(err, mcp.ErrAlreadyConnected) {
		return nil
	}
	return err
}

// autoCaller is the CLI's tool entry point: servers referenced by scripts
// and batches are connected on demand, then the call goes through the
// invoker with its usual precondition and retry semantics.
type autoCaller struct{ a *app }

func (c autoCaller) Invoke(ctx context.Context, server, tool string, args map[string]any) (any, error) {
	if err := c.a.ensureConnected(ctx, server); err != nil {
		return nil, err
	}
	return c.a.inv.Invoke(ctx, server, tool, args)
}

// moduleServer returns the first configured in-process module server.
func (a *app) moduleServer() (string, config.Server, bool) {
	for name, srv := range a.cfg.Servers {
		if srv.Kind == mcp.KindModule {
			return name, srv, true
		}
	}
	return "", config.Server{}, false
}

// chatBackend connects the configured module server for direct chat use.
func (a *app) chatBackend(ctx context.Context) (*ollama.Connector, error) {
	name, srv, ok := a.moduleServer()
	if !ok {
		return nil, fmt.Errorf("no module server configured; add one with kind %q", mcp.KindModule)
	}
	c := ollama.NewConnector(srv.Config["base_url"], a.cfg.Model, 0)
	if _, err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return c, nil
}

// lazyChat defers connecting the chat backend until a script actually runs a
// chat step.
type lazyChat struct {
	a    *app
	mu   sync.Mutex
	conn *ollama.Connector
}

func (l *lazyChat) Chat(ctx context.Context, model, message string) (any, error) {
	l.mu.Lock()
	if l.conn == nil {
		c, err := l.a.chatBackend(ctx)
		if err != nil {
			l.mu.Unlock()
			return nil, err
		}
		l.conn = c
	}
	conn := l.conn
	l.mu.Unlock()

	reply, err := conn.Chat(ctx, model, []ollama.Message{{Role: "user", Content: message}})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// scriptRunner builds a fully wired script runner.
func (a *app) scriptRunner() *script.Runner {
	caller := autoCaller{a}
	return &script.Runner{
		Tools:    caller,
		Chat:     &lazyChat{a: a},
		Batch:    &script.BatchRunner{Tools: caller, Log: a.log},
		Log:      a.log,
		Counters: a.counters,
	}
}
