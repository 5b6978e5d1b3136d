package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RyanCardin15/counterplay/internal/loadout"
	"github.com/RyanCardin15/counterplay/internal/oauth"
)

func (r *Registry) handleSearchWeapons(ctx context.Context, args map[string]any, id *oauth.Identity) (*mcp.CallToolResult, error) {
	category, err := enumArg(args, "category", loadout.Categories)
	if err != nil {
		return nil, err
	}
	tier, err := enumArg(args, "tier", loadout.Tiers)
	if err != nil {
		return nil, err
	}
	name, err := stringArg(args, "name", false)
	if err != nil {
		return nil, err
	}
	limit, err := numberArg(args, "limit", 1, 25, 10)
	if err != nil {
		return nil, err
	}

	weapons, err := r.store.ListWeapons(ctx, loadout.Filter{Category: category, Tier: tier, Name: name})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(weapons) > int(limit) {
		weapons = weapons[:int(limit)]
	}

	summary := fmt.Sprintf("Found %d weapons", len(weapons))
	if category != "" {
		summary += " in " + category
	}
	if len(weapons) > 0 {
		summary += ", led by " + weapons[0].Name
	}
	return result(summary+".", map[string]any{"weapons": weapons})
}

func (r *Registry) handleGetLoadout(ctx context.Context, args map[string]any, id *oauth.Identity) (*mcp.CallToolResult, error) {
	loadoutID, err := stringArg(args, "loadout_id", true)
	if err != nil {
		return nil, err
	}

	l, err := r.store.GetLoadout(ctx, loadoutID)
	if err != nil {
		if errors.Is(err, loadout.ErrLoadoutNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("loadout %s not found", loadoutID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}

	weapon, err := r.store.GetWeapon(ctx, l.WeaponID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loadout references unknown weapon %s", l.WeaponID)), nil
	}

	attachments := make([]loadout.Attachment, 0, len(l.AttachmentIDs))
	for _, aid := range l.AttachmentIDs {
		a, err := r.store.GetAttachment(ctx, aid)
		if err != nil {
			r.logger.Warn("Loadout references unknown attachment", "attachment_id", aid)
			continue
		}
		attachments = append(attachments, *a)
	}

	summary := fmt.Sprintf("%q runs the %s (%s, tier %s) with %d attachments.",
		l.Name, weapon.Name, weapon.Category, weapon.Tier, len(attachments))
	return result(summary, map[string]any{
		"loadout":     l,
		"weapon":      weapon,
		"attachments": attachments,
	})
}

func (r *Registry) handleCounterLoadout(ctx context.Context, args map[string]any, id *oauth.Identity) (*mcp.CallToolResult, error) {
	weaponID, err := stringArg(args, "weapon_id", true)
	if err != nil {
		return nil, err
	}
	limit, err := numberArg(args, "limit", 1, 10, 3)
	if err != nil {
		return nil, err
	}

	enemy, err := r.store.GetWeapon(ctx, weaponID)
	if err != nil {
		if errors.Is(err, loadout.ErrWeaponNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("weapon %s not found", weaponID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}

	candidates, err := r.store.ListWeapons(ctx, loadout.Filter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("catalog read failed: %v", err)), nil
	}

	counters := loadout.RankCounters(candidates, *enemy)
	if len(counters) > int(limit) {
		counters = counters[:int(limit)]
	}

	names := make([]string, 0, len(counters))
	for _, c := range counters {
		names = append(names, c.Name)
	}
	summary := fmt.Sprintf("Against the %s, try: %s.", enemy.Name, strings.Join(names, ", "))
	return result(summary, map[string]any{
		"enemy":    enemy,
		"counters": counters,
	})
}

func (r *Registry) handleGetMeta(ctx context.Context, args map[string]any, id *oauth.Identity) (*mcp.CallToolResult, error) {
	category, err := enumArg(args, "category", loadout.Categories)
	if err != nil {
		return nil, err
	}

	weapons, err := r.store.ListWeapons(ctx, loadout.Filter{Category: category})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("catalog read failed: %v", err)), nil
	}

	// ListWeapons is already pick-rate ordered; the meta report is the top
	// slice plus tier breakdown.
	top := weapons
	if len(top) > 5 {
		top = top[:5]
	}
	byTier := make(map[string][]string)
	for _, w := range weapons {
		byTier[w.Tier] = append(byTier[w.Tier], w.Name)
	}

	scope := "overall"
	if category != "" {
		scope = category
	}
	summary := fmt.Sprintf("Current %s meta has %d weapons", scope, len(weapons))
	if len(top) > 0 {
		summary += fmt.Sprintf("; %s leads at %.1f%% pick rate", top[0].Name, top[0].PickRate*100)
	}
	return result(summary+".", map[string]any{
		"topPicks": top,
		"byTier":   byTier,
	})
}

func (r *Registry) handleAnalyzePlaystyle(ctx context.Context, args map[string]any, id *oauth.Identity) (*mcp.CallToolResult, error) {
	aggression, err := numberArg(args, "aggression", 0, 1, 0)
	if err != nil {
		return nil, err
	}
	rangePref, err := numberArg(args, "range", 0, 1, 0)
	if err != nil {
		return nil, err
	}
	precision, err := numberArg(args, "precision", 0, 1, 0)
	if err != nil {
		return nil, err
	}

	profile, err := r.store.GetProfile(ctx, id.UserID)
	if err != nil {
		if !errors.Is(err, loadout.ErrProfileNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("profile read failed: %v", err)), nil
		}
		profile = &loadout.Profile{UserID: id.UserID}
	}
	profile.Playstyle = map[string]float64{
		loadout.StyleAggression: aggression,
		loadout.StyleRange:      rangePref,
		loadout.StylePrecision:  precision,
	}
	if err := r.store.SaveProfile(ctx, profile); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("profile save failed: %v", err)), nil
	}

	weapons, err := r.store.ListWeapons(ctx, loadout.Filter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("catalog read failed: %v", err)), nil
	}
	recommended := loadout.Rank(r.scorer, weapons, profile)
	if len(recommended) > 5 {
		recommended = recommended[:5]
	}

	summary := "Playstyle saved"
	if len(recommended) > 0 {
		summary += fmt.Sprintf("; top recommendation: %s (%s)", recommended[0].Name, recommended[0].Category)
	}
	return result(summary+".", map[string]any{
		"playstyle":   profile.Playstyle,
		"recommended": recommended,
	})
}

func (r *Registry) handleSaveLoadout(ctx context.Context, args map[string]any, id *oauth.Identity) (*mcp.CallToolResult, error) {
	name, err := stringArg(args, "name", true)
	if err != nil {
		return nil, err
	}
	weaponID, err := stringArg(args, "weapon_id", true)
	if err != nil {
		return nil, err
	}
	attachmentIDs, err := stringSliceArg(args, "attachment_ids")
	if err != nil {
		return nil, err
	}
	notes, err := stringArg(args, "notes", false)
	if err != nil {
		return nil, err
	}
	favorite, err := boolArg(args, "favorite")
	if err != nil {
		return nil, err
	}

	weapon, err := r.store.GetWeapon(ctx, weaponID)
	if err != nil {
		if errors.Is(err, loadout.ErrWeaponNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("weapon %s not found", weaponID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	for _, aid := range attachmentIDs {
		if _, err := r.store.GetAttachment(ctx, aid); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("attachment %s not found", aid)), nil
		}
	}

	l := &loadout.Loadout{
		UserID:        id.UserID,
		Name:          name,
		WeaponID:      weaponID,
		AttachmentIDs: attachmentIDs,
		Notes:         notes,
	}
	if err := r.store.SaveLoadout(ctx, l); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}

	if favorite {
		if err := r.store.AddFavorite(ctx, id.UserID, weaponID); err != nil {
			r.logger.Warn("Failed to add favorite after save", "error", err)
		}
	}

	summary := fmt.Sprintf("Saved %q with the %s (loadout ID %s).", name, weapon.Name, l.ID)
	return result(summary, map[string]any{"loadout": l})
}

func (r *Registry) handleMyLoadouts(ctx context.Context, args map[string]any, id *oauth.Identity) (*mcp.CallToolResult, error) {
	list, err := r.store.ListLoadoutsByUser(ctx, id.UserID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	summary := fmt.Sprintf("You have %d saved loadouts.", len(list))
	if len(list) == 0 {
		summary = "You have no saved loadouts yet. Use save_loadout to create one."
	}
	return result(summary, map[string]any{"loadouts": list})
}
