package loadout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	valkeygo "github.com/valkey-io/valkey-go"
)

// ValkeyStore is a Store backed by Valkey. Documents are JSON blobs;
// per-user loadout ordering uses a list and the favorites append runs as a
// Lua script so concurrent appends from multiple instances cannot lose
// writes.
type ValkeyStore struct {
	client    valkeygo.Client
	keyPrefix string
	logger    *slog.Logger
}

var _ Store = (*ValkeyStore)(nil)

// ValkeyConfig holds the connection settings for a ValkeyStore.
type ValkeyConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	Logger    *slog.Logger
}

// NewValkeyStore connects to Valkey and seeds the weapon catalog.
func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "counterplay:"
	}

	client, err := valkeygo.NewClient(valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	s := &ValkeyStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		logger:    cfg.Logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	if err := s.seed(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	cfg.Logger.Info("Connected loadout store to valkey", "address", cfg.Address)
	return s, nil
}

// Close releases the underlying client.
func (s *ValkeyStore) Close() {
	s.client.Close()
}

func (s *ValkeyStore) weaponKey(id string) string     { return s.keyPrefix + "weapon:" + id }
func (s *ValkeyStore) weaponIndexKey() string         { return s.keyPrefix + "weapons" }
func (s *ValkeyStore) attachmentKey(id string) string { return s.keyPrefix + "attachment:" + id }
func (s *ValkeyStore) loadoutKey(id string) string    { return s.keyPrefix + "loadout:" + id }
func (s *ValkeyStore) userLoadoutsKey(u string) string {
	return s.keyPrefix + "userloadouts:" + u
}
func (s *ValkeyStore) profileKey(u string) string { return s.keyPrefix + "profile:" + u }

// seed writes the default catalog. Existing entries are overwritten so
// catalog updates ship with the binary.
func (s *ValkeyStore) seed(ctx context.Context) error {
	for _, w := range DefaultCatalog() {
		data, err := json.Marshal(w)
		if err != nil {
			return err
		}
		if err := s.client.Do(ctx, s.client.B().Set().Key(s.weaponKey(w.ID)).Value(string(data)).Build()).Error(); err != nil {
			return err
		}
		if err := s.client.Do(ctx, s.client.B().Sadd().Key(s.weaponIndexKey()).Member(w.ID).Build()).Error(); err != nil {
			return err
		}
	}
	for _, a := range DefaultAttachments() {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if err := s.client.Do(ctx, s.client.B().Set().Key(s.attachmentKey(a.ID)).Value(string(data)).Build()).Error(); err != nil {
			return err
		}
	}
	return nil
}

// ListWeapons returns catalog entries matching the filter, sorted by pick
// rate descending.
func (s *ValkeyStore) ListWeapons(ctx context.Context, filter Filter) ([]Weapon, error) {
	ids, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.weaponIndexKey()).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to list weapons: %w", err)
	}

	var result []Weapon
	for _, id := range ids {
		w, err := s.GetWeapon(ctx, id)
		if err != nil {
			continue
		}
		if filter.Category != "" && w.Category != filter.Category {
			continue
		}
		if filter.Tier != "" && w.Tier != filter.Tier {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(w.Name), strings.ToLower(filter.Name)) {
			continue
		}
		result = append(result, *w)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PickRate > result[j].PickRate
	})
	return result, nil
}

// GetWeapon returns a weapon by ID.
func (s *ValkeyStore) GetWeapon(ctx context.Context, id string) (*Weapon, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.weaponKey(id)).Build()).ToString()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, fmt.Errorf("%w: %s", ErrWeaponNotFound, id)
		}
		return nil, fmt.Errorf("failed to get weapon: %w", err)
	}
	var w Weapon
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("failed to decode weapon: %w", err)
	}
	return &w, nil
}

// GetAttachment returns an attachment by ID.
func (s *ValkeyStore) GetAttachment(ctx context.Context, id string) (*Attachment, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.attachmentKey(id)).Build()).ToString()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	var a Attachment
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("failed to decode attachment: %w", err)
	}
	return &a, nil
}

// SaveLoadout stores a new loadout and appends it to the user's list.
func (s *ValkeyStore) SaveLoadout(ctx context.Context, l *Loadout) error {
	if l.UserID == "" {
		return fmt.Errorf("loadout user ID is required")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode loadout: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Set().Key(s.loadoutKey(l.ID)).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save loadout: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Rpush().Key(s.userLoadoutsKey(l.UserID)).Element(l.ID).Build()).Error(); err != nil {
		return fmt.Errorf("failed to index loadout: %w", err)
	}
	return nil
}

// GetLoadout returns a loadout by ID.
func (s *ValkeyStore) GetLoadout(ctx context.Context, id string) (*Loadout, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.loadoutKey(id)).Build()).ToString()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, fmt.Errorf("%w: %s", ErrLoadoutNotFound, id)
		}
		return nil, fmt.Errorf("failed to get loadout: %w", err)
	}
	var l Loadout
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return nil, fmt.Errorf("failed to decode loadout: %w", err)
	}
	return &l, nil
}

// ListLoadoutsByUser returns a user's loadouts in save order.
func (s *ValkeyStore) ListLoadoutsByUser(ctx context.Context, userID string) ([]Loadout, error) {
	ids, err := s.client.Do(ctx, s.client.B().Lrange().Key(s.userLoadoutsKey(userID)).Start(0).Stop(-1).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to list loadouts: %w", err)
	}

	result := make([]Loadout, 0, len(ids))
	for _, id := range ids {
		l, err := s.GetLoadout(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping unreadable loadout", "loadout_id", id, "error", err)
			continue
		}
		result = append(result, *l)
	}
	return result, nil
}

// GetProfile returns a user's profile.
func (s *ValkeyStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.profileKey(userID)).Build()).ToString()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}

// SaveProfile stores a user's profile, replacing any existing one.
func (s *ValkeyStore) SaveProfile(ctx context.Context, p *Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("profile user ID is required")
	}
	p.UpdatedAt = time.Now()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Set().Key(s.profileKey(p.UserID)).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// luaAddFavorite appends a weapon ID to the profile's favorites inside the
// server so concurrent appends from multiple instances cannot lose writes.
// KEYS[1] = profile key, ARGV[1] = weapon ID, ARGV[2] = user ID,
// ARGV[3] = updatedAt (RFC 3339).
var luaAddFavorite = valkeygo.NewLuaScript(`
local data = redis.call('GET', KEYS[1])
local profile
if data then
    profile = cjson.decode(data)
else
    profile = {userId = ARGV[2], playstyle = {}, favoriteIds = {}}
end
if profile.favoriteIds == nil then
    profile.favoriteIds = {}
end
for _, id in ipairs(profile.favoriteIds) do
    if id == ARGV[1] then
        return 'OK'
    end
end
table.insert(profile.favoriteIds, ARGV[1])
profile.updatedAt = ARGV[3]
redis.call('SET', KEYS[1], cjson.encode(profile))
return 'OK'
`)

// AddFavorite atomically appends a weapon to a user's favorites, creating
// the profile when absent.
func (s *ValkeyStore) AddFavorite(ctx context.Context, userID, weaponID string) error {
	if _, err := s.GetWeapon(ctx, weaponID); err != nil {
		return err
	}

	resp := luaAddFavorite.Exec(ctx, s.client,
		[]string{s.profileKey(userID)},
		[]string{weaponID, userID, time.Now().UTC().Format(time.RFC3339)})
	if err := resp.Error(); err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}
