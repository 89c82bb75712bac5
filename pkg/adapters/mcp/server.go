// Package mcp exposes the essay workflow to MCP clients, so an agent can
// start sessions, submit essays and read the graph.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/essayflow"
	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/internal/presentation/graph"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the Mermaid resource of the live graph.
const GraphURI = "essayflow://graph"

// Engine is the part of the session controller driven over MCP.
type Engine interface {
	Start(ctx context.Context) error
	SubmitEssay(ctx context.Context, essay string) error
	Retry(ctx context.Context) error
	Snapshot() domain.Snapshot
	WaitIdle(ctx context.Context) error
}

// StatusResponse is returned by every tool.
type StatusResponse struct {
	Session domain.WorkflowSession `json:"session" jsonschema_description:"Macro state of the workflow session"`
	Nodes   []domain.NodeState     `json:"nodes" jsonschema_description:"Status and score of each graph node"`
}

// SubmitArgs are the arguments of submit_essay.
type SubmitArgs struct {
	Essay string `json:"essay"`
	Wait  bool   `json:"wait"`
}

// Server wraps an Engine as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server for engine.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine: engine,
		logger: logger,
		mcpServer: server.NewMCPServer("essayflow-mcp", strings.TrimSpace(essayflow.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a new essay session. Returns once the topic is known and an essay is expected."),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("submit_essay",
		mcp.WithDescription("Submit an essay for the current topic and start its evaluation."),
		mcp.WithString("essay", mcp.Required(), mcp.Description("Essay text")),
		mcp.WithBoolean("wait", mcp.Description("Wait for the evaluation to settle before returning")),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("retry",
		mcp.WithDescription("After feedback was produced, go back to essay collection for a new attempt."),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleRetry))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the current graph snapshot: session, nodes and edges."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(s.engine.Snapshot())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode snapshot: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, _ map[string]any) (StatusResponse, error) {
	if err := s.engine.Start(ctx); err != nil {
		s.logger.Warn("mcp start_session failed", "err", err)
		return StatusResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return s.status(), nil
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest, args SubmitArgs) (StatusResponse, error) {
	if err := s.engine.SubmitEssay(ctx, args.Essay); err != nil {
		s.logger.Warn("mcp submit_essay rejected", "err", err, "size", len(args.Essay))
		return StatusResponse{}, fmt.Errorf("submit failed: %w", err)
	}
	if args.Wait {
		if err := s.engine.WaitIdle(ctx); err != nil {
			return StatusResponse{}, fmt.Errorf("wait for evaluation: %w", err)
		}
	}
	return s.status(), nil
}

func (s *Server) handleRetry(ctx context.Context, request mcp.CallToolRequest, _ map[string]any) (StatusResponse, error) {
	if err := s.engine.Retry(ctx); err != nil {
		return StatusResponse{}, fmt.Errorf("retry failed: %w", err)
	}
	return s.status(), nil
}

func (s *Server) status() StatusResponse {
	snap := s.engine.Snapshot()
	return StatusResponse{Session: snap.Session, Nodes: snap.Nodes}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Workflow Graph",
		mcp.WithResourceDescription("Mermaid flowchart of the workflow with live node status"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		snap := s.engine.Snapshot()
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/plain",
				Text:     graph.GenerateMermaid(&snap),
			},
		}, nil
	})
}
