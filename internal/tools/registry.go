// Package tools implements the assistant's MCP tool surface: declarations,
// argument validation, and handlers over the loadout store and scorer.
//
// Validation failures are returned as handler errors so they surface as
// JSON-RPC invalid-params errors; failures during execution (missing
// records, store errors) come back as tool-level error results instead.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/RyanCardin15/counterplay/internal/instrumentation"
	"github.com/RyanCardin15/counterplay/internal/loadout"
	"github.com/RyanCardin15/counterplay/internal/oauth"
	"github.com/RyanCardin15/counterplay/internal/security"
)

// Registry wires tool handlers to their dependencies and registers them on
// an MCP server.
type Registry struct {
	store   loadout.Store
	scorer  loadout.Scorer
	auditor *security.Auditor
	instr   *instrumentation.Instrumentation
	logger  *slog.Logger
}

// New creates a tool registry.
func New(store loadout.Store, scorer loadout.Scorer, logger *slog.Logger) *Registry {
	if scorer == nil {
		scorer = loadout.NewHeuristicScorer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, scorer: scorer, logger: logger}
}

// SetAuditor sets the security auditor.
func (r *Registry) SetAuditor(aud *security.Auditor) { r.auditor = aud }

// SetInstrumentation sets the OpenTelemetry instrumentation.
func (r *Registry) SetInstrumentation(instr *instrumentation.Instrumentation) { r.instr = instr }

// Register declares every tool on the MCP server.
func (r *Registry) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("search_weapons",
		mcp.WithDescription("Search the weapon catalog by category, tier, or name. Read-only."),
		mcp.WithString("category",
			mcp.Description("Weapon category to filter by"),
			mcp.Enum(loadout.Categories...),
		),
		mcp.WithString("tier",
			mcp.Description("Meta tier to filter by"),
			mcp.Enum(loadout.Tiers...),
		),
		mcp.WithString("name",
			mcp.Description("Case-insensitive substring of the weapon name"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (1-25, default 10)"),
		),
	), r.wrap("search_weapons", r.handleSearchWeapons))

	s.AddTool(mcp.NewTool("get_loadout",
		mcp.WithDescription("Fetch a saved loadout with full weapon and attachment details. Read-only."),
		mcp.WithString("loadout_id",
			mcp.Required(),
			mcp.Description("ID of the loadout to fetch"),
		),
	), r.wrap("get_loadout", r.handleGetLoadout))

	s.AddTool(mcp.NewTool("counter_loadout",
		mcp.WithDescription("Suggest weapons that counter a given enemy weapon. Read-only."),
		mcp.WithString("weapon_id",
			mcp.Required(),
			mcp.Description("ID of the enemy weapon to counter"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of suggestions (1-10, default 3)"),
		),
	), r.wrap("counter_loadout", r.handleCounterLoadout))

	s.AddTool(mcp.NewTool("get_meta",
		mcp.WithDescription("Report the current meta: top picks overall or within a category. Read-only."),
		mcp.WithString("category",
			mcp.Description("Restrict the report to one category"),
			mcp.Enum(loadout.Categories...),
		),
	), r.wrap("get_meta", r.handleGetMeta))

	s.AddTool(mcp.NewTool("analyze_playstyle",
		mcp.WithDescription("Store playstyle weights for the current user and recommend matching weapons. Overwrites previous weights."),
		mcp.WithNumber("aggression",
			mcp.Description("How much the user favors close, fast fights (0-1)"),
		),
		mcp.WithNumber("range",
			mcp.Description("How much the user favors long-distance fights (0-1)"),
		),
		mcp.WithNumber("precision",
			mcp.Description("How much the user favors accuracy over volume (0-1)"),
		),
	), r.wrap("analyze_playstyle", r.handleAnalyzePlaystyle))

	s.AddTool(mcp.NewTool("save_loadout",
		mcp.WithDescription("Save a new loadout for the current user. Not idempotent: each call creates a new loadout."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Display name for the loadout"),
		),
		mcp.WithString("weapon_id",
			mcp.Required(),
			mcp.Description("ID of the primary weapon"),
		),
		mcp.WithArray("attachment_ids",
			mcp.Description("Attachment IDs to equip"),
		),
		mcp.WithString("notes",
			mcp.Description("Free-form notes"),
		),
		mcp.WithBoolean("favorite",
			mcp.Description("Also add the weapon to the user's favorites"),
		),
	), r.wrap("save_loadout", r.handleSaveLoadout))

	s.AddTool(mcp.NewTool("my_loadouts",
		mcp.WithDescription("List the current user's saved loadouts. Read-only."),
	), r.wrap("my_loadouts", r.handleMyLoadouts))
}

// handlerFunc is a tool handler that already has the caller's identity.
type handlerFunc func(ctx context.Context, args map[string]any, id *oauth.Identity) (*mcp.CallToolResult, error)

// wrap resolves the authenticated identity, normalizes arguments, and
// records audit and metrics around a handler.
func (r *Registry) wrap(name string, fn handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identity, ok := oauth.IdentityFromContext(ctx)
		if !ok {
			// The bearer middleware always installs an identity; reaching
			// this without one is a wiring bug, not a client error.
			r.logger.Error("Tool invoked without identity", "tool", name)
			return nil, fmt.Errorf("no authenticated identity")
		}

		args := map[string]any{}
		if raw, ok := request.Params.Arguments.(map[string]any); ok {
			args = raw
		}

		start := time.Now()
		result, err := fn(ctx, args, identity)
		success := err == nil && (result == nil || !result.IsError)

		r.auditor.LogToolInvoked(identity.UserID, identity.SessionID, name, success)
		if r.instr != nil {
			r.instr.Metrics().RecordToolInvocation(ctx, name, success, float64(time.Since(start).Milliseconds()))
			if err != nil {
				r.instr.Metrics().RecordSchemaViolation(ctx, name)
			}
		}
		if err != nil {
			r.logger.Debug("Tool rejected", "tool", name, "error", err)
		}
		return result, err
	}
}

// result builds a tool result carrying a human-readable summary followed by
// the machine-readable JSON payload.
func result(summary string, payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(summary),
			mcp.NewTextContent(string(data)),
		},
	}, nil
}
