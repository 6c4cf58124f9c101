// Package mcp exposes orchestrator operations as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/internal/services"
	"huddle-admin/backend/pkg/models"
)

// Operator is the slice of the orchestrator the tools drive.
type Operator interface {
	QueueSnapshot(ctx context.Context, sess models.Session) (*services.QueueSnapshot, error)
	StartRun(ctx context.Context, sess models.Session, configID string) (*models.GenerationRun, error)
	ForceComplete(ctx context.Context, sess models.Session, configID string) (*services.ForceCompleteResult, error)
}

// operatorID is recorded as the actor of tool-triggered changes.
const operatorID = "mcp-operator"

type Server struct {
	mcpServer *server.MCPServer
	ops       Operator
	tenants   map[string]bool
	log       *logging.Logger
}

// NewServer creates the MCP server. Tools act only on the listed tenants;
// an empty list leaves every tool call refused.
func NewServer(ops Operator, tenants []string, logger *logging.Logger) *Server {
	allowed := make(map[string]bool, len(tenants))
	for _, id := range tenants {
		allowed[id] = true
	}
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Huddle Rating Console",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		ops:     ops,
		tenants: allowed,
		log:     logger.With("component", "mcp"),
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"queue_snapshot",
			mcp.WithDescription("Show generation run progress for a tenant"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("The tenant to inspect")),
		),
		s.handleQueueSnapshot,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"start_run",
			mcp.WithDescription("Queue a generation run over a configuration's pending instances"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("The tenant owning the configuration")),
			mcp.WithString("configuration_id", mcp.Required(), mcp.Description("The configuration to run")),
		),
		s.handleStartRun,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"force_complete",
			mcp.WithDescription("Mark a stalled configuration complete and seed rating brackets"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("The tenant owning the configuration")),
			mcp.WithString("configuration_id", mcp.Required(), mcp.Description("The configuration to complete")),
		),
		s.handleForceComplete,
	)
}

// operatorSession acts as a SUPER_ADMIN pinned to the requested tenant,
// which must be on the configured allow-list.
func (s *Server) operatorSession(request mcp.CallToolRequest) (models.Session, error) {
	tenantID, err := request.RequireString("tenant_id")
	if err != nil || tenantID == "" {
		return models.Session{}, errors.New("missing required parameter: tenant_id")
	}
	if !s.tenants[tenantID] {
		s.log.Warn("mcp call for tenant outside the allow-list", "tenant_id", tenantID, "tool", request.Params.Name)
		return models.Session{}, fmt.Errorf("tenant %s is not enabled for MCP operations", tenantID)
	}
	return models.Session{UserID: operatorID, Role: models.RoleSuperAdmin, TenantID: tenantID}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleQueueSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.operatorSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := s.ops.QueueSnapshot(ctx, sess)
	if err != nil {
		return s.toolError("queue snapshot", err), nil
	}
	return jsonResult(snap)
}

func (s *Server) handleStartRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.operatorSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	configID, err := request.RequireString("configuration_id")
	if err != nil || configID == "" {
		return mcp.NewToolResultError("Missing required parameter: configuration_id"), nil
	}

	run, err := s.ops.StartRun(ctx, sess, configID)
	if err != nil {
		return s.toolError("start run", err), nil
	}
	return jsonResult(run)
}

func (s *Server) handleForceComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.operatorSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	configID, err := request.RequireString("configuration_id")
	if err != nil || configID == "" {
		return mcp.NewToolResultError("Missing required parameter: configuration_id"), nil
	}

	res, err := s.ops.ForceComplete(ctx, sess, configID)
	if err != nil {
		return s.toolError("force complete", err), nil
	}
	return jsonResult(res)
}

// toolError reports domain failures to the caller and hides anything else.
func (s *Server) toolError(op string, err error) *mcp.CallToolResult {
	for _, known := range []error{
		services.ErrNotFound, services.ErrValidation, services.ErrConflict,
		services.ErrForbidden, services.ErrUnauthorized,
	} {
		if errors.Is(err, known) {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", op, err))
		}
	}
	s.log.Error("mcp tool failed", "operation", op, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: internal error", op))
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
