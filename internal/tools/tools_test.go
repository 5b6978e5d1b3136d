package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanCardin15/counterplay/internal/loadout"
	"github.com/RyanCardin15/counterplay/internal/oauth"
)

func newTestRegistry(t *testing.T) (*Registry, *oauth.Identity) {
	t.Helper()
	reg := New(loadout.NewMemoryStore(), nil, nil)
	id := &oauth.Identity{
		UserID:    "operator",
		ClientID:  "test-client",
		SessionID: "session-1",
		Scope:     "loadouts:read loadouts:write",
	}
	return reg, id
}

// textContent returns the plain-text payloads of a result in order.
func textContent(t *testing.T, res *mcp.CallToolResult) []string {
	t.Helper()
	var out []string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out = append(out, tc.Text)
		}
	}
	require.NotEmpty(t, out, "result has no text content")
	return out
}

// payload decodes the JSON half of a result into target.
func payload(t *testing.T, res *mcp.CallToolResult, target any) {
	t.Helper()
	texts := textContent(t, res)
	require.Len(t, texts, 2, "expected summary plus JSON payload")
	require.NoError(t, json.Unmarshal([]byte(texts[1]), target))
}

func TestSearchWeaponsFiltersByCategory(t *testing.T) {
	reg, id := newTestRegistry(t)

	res, err := reg.handleSearchWeapons(context.Background(), map[string]any{"category": "AR"}, id)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out struct {
		Weapons []loadout.Weapon `json:"weapons"`
	}
	payload(t, res, &out)
	require.NotEmpty(t, out.Weapons)
	for _, w := range out.Weapons {
		assert.Equal(t, "AR", w.Category)
	}
}

func TestSearchWeaponsRejectsBadEnum(t *testing.T) {
	reg, id := newTestRegistry(t)

	_, err := reg.handleSearchWeapons(context.Background(), map[string]any{"category": "Crossbow"}, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category")
}

func TestSearchWeaponsRejectsOutOfRangeLimit(t *testing.T) {
	reg, id := newTestRegistry(t)

	_, err := reg.handleSearchWeapons(context.Background(), map[string]any{"limit": float64(100)}, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestSaveThenGetLoadout(t *testing.T) {
	reg, id := newTestRegistry(t)
	ctx := context.Background()

	res, err := reg.handleSaveLoadout(ctx, map[string]any{
		"name":           "Ranked RAM",
		"weapon_id":      "ram-7",
		"attachment_ids": []any{"vt7-spiritfire", "chewk-angled"},
		"notes":          "for small maps",
	}, id)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var saved struct {
		Loadout loadout.Loadout `json:"loadout"`
	}
	payload(t, res, &saved)
	require.NotEmpty(t, saved.Loadout.ID)
	assert.Equal(t, "operator", saved.Loadout.UserID)

	res, err = reg.handleGetLoadout(ctx, map[string]any{"loadout_id": saved.Loadout.ID}, id)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var got struct {
		Weapon      loadout.Weapon       `json:"weapon"`
		Attachments []loadout.Attachment `json:"attachments"`
	}
	payload(t, res, &got)
	assert.Equal(t, "RAM-7", got.Weapon.Name)
	assert.Len(t, got.Attachments, 2)
}

func TestSaveLoadoutIsNotIdempotent(t *testing.T) {
	reg, id := newTestRegistry(t)
	ctx := context.Background()
	args := map[string]any{"name": "Dup", "weapon_id": "ram-7"}

	for i := 0; i < 2; i++ {
		res, err := reg.handleSaveLoadout(ctx, args, id)
		require.NoError(t, err)
		require.False(t, res.IsError)
	}

	res, err := reg.handleMyLoadouts(ctx, nil, id)
	require.NoError(t, err)
	var out struct {
		Loadouts []loadout.Loadout `json:"loadouts"`
	}
	payload(t, res, &out)
	assert.Len(t, out.Loadouts, 2)
}

func TestSaveLoadoutUnknownWeaponIsToolError(t *testing.T) {
	reg, id := newTestRegistry(t)

	res, err := reg.handleSaveLoadout(context.Background(), map[string]any{
		"name":      "Ghost",
		"weapon_id": "water-gun",
	}, id)
	require.NoError(t, err, "missing records are tool-level errors, not RPC errors")
	assert.True(t, res.IsError)
}

func TestSaveLoadoutMissingNameIsRPCError(t *testing.T) {
	reg, id := newTestRegistry(t)

	_, err := reg.handleSaveLoadout(context.Background(), map[string]any{"weapon_id": "ram-7"}, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestCounterLoadout(t *testing.T) {
	reg, id := newTestRegistry(t)

	res, err := reg.handleCounterLoadout(context.Background(), map[string]any{"weapon_id": "xrk-stalker"}, id)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out struct {
		Enemy    loadout.Weapon   `json:"enemy"`
		Counters []loadout.Weapon `json:"counters"`
	}
	payload(t, res, &out)
	assert.Equal(t, "xrk-stalker", out.Enemy.ID)
	require.Len(t, out.Counters, 3)
	for _, c := range out.Counters {
		assert.NotEqual(t, out.Enemy.ID, c.ID)
	}
}

func TestGetMeta(t *testing.T) {
	reg, id := newTestRegistry(t)

	res, err := reg.handleGetMeta(context.Background(), map[string]any{"category": "SMG"}, id)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out struct {
		TopPicks []loadout.Weapon    `json:"topPicks"`
		ByTier   map[string][]string `json:"byTier"`
	}
	payload(t, res, &out)
	require.NotEmpty(t, out.TopPicks)
	assert.Equal(t, "Striker 9", out.TopPicks[0].Name, "meta leads with highest pick rate")
	for _, w := range out.TopPicks {
		assert.Equal(t, "SMG", w.Category)
	}
}

func TestAnalyzePlaystyleSavesProfileAndRecommends(t *testing.T) {
	reg, id := newTestRegistry(t)
	ctx := context.Background()

	res, err := reg.handleAnalyzePlaystyle(ctx, map[string]any{
		"aggression": float64(1),
	}, id)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out struct {
		Recommended []loadout.Weapon `json:"recommended"`
	}
	payload(t, res, &out)
	require.NotEmpty(t, out.Recommended)
	assert.Greater(t, out.Recommended[0].Stats.Mobility, 60,
		"aggressive profile should get a mobile weapon first, got %s", out.Recommended[0].Name)

	p, err := reg.store.GetProfile(ctx, id.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Playstyle[loadout.StyleAggression])
}

func TestAnalyzePlaystyleRejectsOutOfRangeWeight(t *testing.T) {
	reg, id := newTestRegistry(t)

	_, err := reg.handleAnalyzePlaystyle(context.Background(), map[string]any{"aggression": float64(2)}, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggression")
}

func TestSaveLoadoutWithFavorite(t *testing.T) {
	reg, id := newTestRegistry(t)
	ctx := context.Background()

	res, err := reg.handleSaveLoadout(ctx, map[string]any{
		"name":      "Fav build",
		"weapon_id": "striker-9",
		"favorite":  true,
	}, id)
	require.NoError(t, err)
	require.False(t, res.IsError)

	p, err := reg.store.GetProfile(ctx, id.UserID)
	require.NoError(t, err)
	assert.Contains(t, p.FavoriteIDs, "striker-9")
}

func TestWrapRequiresIdentity(t *testing.T) {
	reg, _ := newTestRegistry(t)

	handler := reg.wrap("my_loadouts", reg.handleMyLoadouts)
	req := mcp.CallToolRequest{}
	req.Params.Name = "my_loadouts"

	_, err := handler(context.Background(), req)
	require.Error(t, err)
}

func TestWrapInjectsIdentityFromContext(t *testing.T) {
	reg, id := newTestRegistry(t)

	handler := reg.wrap("my_loadouts", reg.handleMyLoadouts)
	req := mcp.CallToolRequest{}
	req.Params.Name = "my_loadouts"

	ctx := oauth.ContextWithIdentity(context.Background(), id)
	res, err := handler(ctx, req)
	require.NoError(t, err)
	require.False(t, res.IsError)
}
