// Package convo provides a high-level façade over the conversational agent
// runtime: a turn loop alternating model reasoning and tool execution,
// per-conversation isolated history and state, streamed events, and
// conversation-scoped document retrieval. Most applications interact with
// this package by:
//  1. Creating a Convo via New() from a config.Config
//  2. Ingesting reference documents per conversation (Ingest)
//  3. Running turns asynchronously (StartTurn) or synchronously (StartTurnSync)
//
// All defaults are safe for local development: in-memory stores, keyword
// retrieval and no remote tool servers. Production deployments supply
// durable stores, an embedding provider and MCP server configs.
package convo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"convo/agent"
	"convo/config"
	"convo/core"
	"convo/document"
	"convo/knowledge"
	"convo/logging"
	"convo/mcp"
	"convo/model"
	"convo/model/anthropic"
	"convo/model/openai"
	"convo/runner"
	"convo/session"
	"convo/tool"
)

// Options holds dependency overrides passed to New(). Any unset store is
// initialized from the config with an in-memory implementation.
type Options struct {
	Conversations core.ConversationStore
	Documents     core.DocumentStore
	Knowledge     core.KnowledgeStore
	Model         model.Model
	Logger        logging.Logger
	// Chunker overrides the default tiktoken-backed chunker.
	Chunker *knowledge.Chunker
	// ExtraTools are registered alongside the built-ins before the registry
	// freezes.
	ExtraTools []tool.Tool
}

// Convo aggregates the runtime: one agent, one tool surface, one runner.
type Convo struct {
	cfg        *config.Config
	logger     logging.Logger
	runner     *runner.Runner
	agent      *agent.ChatAgent
	registry   *tool.Registry
	ingestor   *knowledge.Ingestor
	knowledge  core.KnowledgeStore
	documents  core.DocumentStore
	mcpClients []*mcp.Client
}

// New builds the runtime from config. MCP servers are started and their
// tools discovered before the registry freezes; a server that fails to start
// or discover is logged and skipped so local tools stay available.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Convo, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = newLogger(cfg.Logging)
	}

	conversations := opts.Conversations
	if conversations == nil {
		conversations = session.NewInMemoryStore()
	}
	documents := opts.Documents
	if documents == nil {
		documents = document.NewInMemoryStore()
	}

	knowledgeStore := opts.Knowledge
	if knowledgeStore == nil {
		var err error
		knowledgeStore, err = newKnowledgeStore(cfg.Knowledge)
		if err != nil {
			return nil, err
		}
	}

	llm := opts.Model
	if llm == nil {
		var err error
		llm, err = newModel(cfg.Model)
		if err != nil {
			return nil, err
		}
	}

	registry := tool.NewRegistry(logger)
	builtins := []tool.Tool{
		tool.NewCalculator(),
		tool.NewStockQuote(func(o *tool.StockQuoteOptions) {
			if cfg.Tools.AlphaVantageAPIKey != "" {
				o.APIKey = cfg.Tools.AlphaVantageAPIKey
			}
		}),
		tool.NewWebSearch(),
		tool.NewRetrieval(),
	}
	for _, t := range append(builtins, opts.ExtraTools...) {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}

	clients, providers := startMCPServers(ctx, cfg.MCPServers, logger)
	if len(providers) > 0 {
		if err := registry.DiscoverProviders(ctx, providers...); err != nil {
			stopClients(clients)
			return nil, fmt.Errorf("discover remote tools: %w", err)
		}
	}
	registry.Freeze()

	chatAgent := agent.NewChatAgent("assistant", llm, registry, func(o *agent.ChatAgentOptions) {
		o.EnableStreaming = cfg.Model.Streaming
		o.MaxHistoryMessages = cfg.Runtime.MaxHistoryMessages
		o.MaxParallelTools = cfg.Runtime.MaxParallelTools
		o.ToolTimeout = cfg.Runtime.ToolTimeout
		o.Logger = logger
	})

	run := runner.New(chatAgent, func(o *runner.Options) {
		o.MaxRounds = cfg.Runtime.MaxRounds
		o.Conversations = conversations
		o.Documents = documents
		o.Knowledge = knowledgeStore
		o.Logger = logger
	})

	chunker := opts.Chunker
	if chunker == nil {
		var err error
		chunker, err = knowledge.NewChunker(knowledge.ChunkerConfig{
			ChunkSize:    cfg.Knowledge.ChunkSize,
			ChunkOverlap: cfg.Knowledge.ChunkOverlap,
		})
		if err != nil {
			stopClients(clients)
			return nil, fmt.Errorf("create chunker: %w", err)
		}
	}

	return &Convo{
		cfg:        cfg,
		logger:     logger,
		runner:     run,
		agent:      chatAgent,
		registry:   registry,
		ingestor:   knowledge.NewIngestor(chunker, documents, knowledgeStore, logger),
		knowledge:  knowledgeStore,
		documents:  documents,
		mcpClients: clients,
	}, nil
}

// StartTurn starts an asynchronous turn, returning the turn id plus event and
// error channels. The events channel closes when the turn finishes.
func (c *Convo) StartTurn(ctx context.Context, conversationID, message string) (string, <-chan core.Event, <-chan error, error) {
	return c.runner.Run(ctx, conversationID, core.NewUserContent(message))
}

// StartTurnSync runs a turn to completion and returns the final assistant
// text plus every emitted event.
func (c *Convo) StartTurnSync(ctx context.Context, conversationID, message string) (string, []core.Event, error) {
	_, eventsCh, errorsCh, err := c.StartTurn(ctx, conversationID, message)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	var final string
	var turnErr error
	for eventsCh != nil || errorsCh != nil {
		select {
		case <-ctx.Done():
			return final, events, ctx.Err()
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)
			if ev.IsFinalAnswer() {
				final = ev.Content.Text()
			}
		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if turnErr == nil {
				turnErr = err
			}
		}
	}
	return final, events, turnErr
}

// CancelTurn aborts a running turn.
func (c *Convo) CancelTurn(turnID string) error { return c.runner.Cancel(turnID) }

// Ingest chunks and indexes a document under the conversation so
// retrieve_documents can surface it in later turns. It returns the number of
// indexed chunks.
func (c *Convo) Ingest(ctx context.Context, conversationID, filename string, data []byte) (int, error) {
	return c.ingestor.Ingest(ctx, conversationID, filename, data)
}

// Documents lists the document ids ingested under a conversation.
func (c *Convo) Documents(conversationID string) ([]string, error) {
	return c.documents.List(conversationID)
}

// ToolNames returns the frozen tool surface, local and remote.
func (c *Convo) ToolNames() []string { return c.registry.Names() }

// Close stops attached MCP servers. Turns still running keep their local
// tools but remote calls will fail as TOOL_UNAVAILABLE.
func (c *Convo) Close() error {
	stopClients(c.mcpClients)
	return nil
}

func newLogger(cfg config.LoggingConfig) logging.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return logging.New(&logging.Config{Level: level, Format: cfg.Format, Component: "convo"})
}

func newModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			if cfg.APIKey != "" {
				o.APIKey = cfg.APIKey
			}
		}), nil
	case "mock":
		return model.NewMockModel("mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func newKnowledgeStore(cfg config.KnowledgeConfig) (core.KnowledgeStore, error) {
	if !cfg.Embeddings {
		return knowledge.NewInMemoryStore(), nil
	}
	embedder, err := knowledge.NewOpenAIEmbedder(knowledge.EmbedderConfig{Model: cfg.EmbeddingModel})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	store, err := knowledge.NewChromemStore(knowledge.VectorStoreConfig{PersistPath: cfg.PersistPath}, embedder)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	return store, nil
}

// startMCPServers launches each configured server and wraps the initialized
// ones as providers. Startup failure disables that server only.
func startMCPServers(ctx context.Context, configs []config.MCPServerConfig, logger logging.Logger) ([]*mcp.Client, []tool.Provider) {
	var clients []*mcp.Client
	var providers []tool.Provider
	for _, sc := range configs {
		client := mcp.NewClient(mcp.ServerConfig{
			Name:    sc.Name,
			Command: sc.Command,
			Args:    sc.Args,
			Env:     sc.Env,
		}, logger)

		startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := client.Start(startCtx)
		cancel()
		if err != nil {
			logger.Warn("mcp.server.unavailable", "server", sc.Name, "error", err.Error())
			continue
		}
		clients = append(clients, client)
		providers = append(providers, mcp.NewProvider(client))
	}
	return clients, providers
}

func stopClients(clients []*mcp.Client) {
	for _, c := range clients {
		_ = c.Stop()
	}
}
