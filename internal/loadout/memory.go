package loadout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. All methods copy on return so callers
// can never mutate shared state through a returned pointer.
type MemoryStore struct {
	mu          sync.RWMutex
	weapons     map[string]*Weapon
	attachments map[string]*Attachment
	loadouts    map[string]*Loadout
	byUser      map[string][]string // userID -> loadout IDs, insertion order
	profiles    map[string]*Profile
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store pre-seeded with the default catalog.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		weapons:     make(map[string]*Weapon),
		attachments: make(map[string]*Attachment),
		loadouts:    make(map[string]*Loadout),
		byUser:      make(map[string][]string),
		profiles:    make(map[string]*Profile),
	}
	for _, w := range DefaultCatalog() {
		weapon := w
		s.weapons[w.ID] = &weapon
	}
	for _, a := range DefaultAttachments() {
		attachment := a
		s.attachments[a.ID] = &attachment
	}
	return s
}

// ListWeapons returns catalog entries matching the filter, sorted by pick
// rate descending.
func (s *MemoryStore) ListWeapons(ctx context.Context, filter Filter) ([]Weapon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Weapon
	for _, w := range s.weapons {
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
func (s *MemoryStore) GetWeapon(ctx context.Context, id string) (*Weapon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.weapons[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWeaponNotFound, id)
	}
	weapon := *w
	return &weapon, nil
}

// GetAttachment returns an attachment by ID.
func (s *MemoryStore) GetAttachment(ctx context.Context, id string) (*Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attachments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, id)
	}
	attachment := *a
	attachment.Effects = make(map[string]int, len(a.Effects))
	for k, v := range a.Effects {
		attachment.Effects[k] = v
	}
	return &attachment, nil
}

// SaveLoadout stores a new loadout. A fresh ID is assigned when the caller
// did not set one; saving twice creates two records.
func (s *MemoryStore) SaveLoadout(ctx context.Context, l *Loadout) error {
	if l.UserID == "" {
		return fmt.Errorf("loadout user ID is required")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *l
	stored.AttachmentIDs = append([]string(nil), l.AttachmentIDs...)
	s.loadouts[l.ID] = &stored
	s.byUser[l.UserID] = append(s.byUser[l.UserID], l.ID)
	return nil
}

// GetLoadout returns a loadout by ID.
func (s *MemoryStore) GetLoadout(ctx context.Context, id string) (*Loadout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.loadouts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLoadoutNotFound, id)
	}
	out := *l
	out.AttachmentIDs = append([]string(nil), l.AttachmentIDs...)
	return &out, nil
}

// ListLoadoutsByUser returns a user's loadouts in save order.
func (s *MemoryStore) ListLoadoutsByUser(ctx context.Context, userID string) ([]Loadout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	result := make([]Loadout, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.loadouts[id]; ok {
			out := *l
			out.AttachmentIDs = append([]string(nil), l.AttachmentIDs...)
			result = append(result, out)
		}
	}
	return result, nil
}

// GetProfile returns a user's profile.
func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	return copyProfile(p), nil
}

// SaveProfile stores a user's profile, replacing any existing one.
func (s *MemoryStore) SaveProfile(ctx context.Context, p *Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("profile user ID is required")
	}
	p.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = copyProfile(p)
	return nil
}

// AddFavorite appends a weapon to a user's favorites under the write lock,
// creating the profile when absent. The append runs against current state,
// so concurrent favorites from the same user all land.
func (s *MemoryStore) AddFavorite(ctx context.Context, userID, weaponID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.weapons[weaponID]; !ok {
		return fmt.Errorf("%w: %s", ErrWeaponNotFound, weaponID)
	}

	p, ok := s.profiles[userID]
	if !ok {
		p = &Profile{UserID: userID, Playstyle: make(map[string]float64)}
		s.profiles[userID] = p
	}

	for _, fav := range p.FavoriteIDs {
		if fav == weaponID {
			return nil
		}
	}
	p.FavoriteIDs = append(p.FavoriteIDs, weaponID)
	p.UpdatedAt = time.Now()
	return nil
}

func copyProfile(p *Profile) *Profile {
	out := *p
	out.Playstyle = make(map[string]float64, len(p.Playstyle))
	for k, v := range p.Playstyle {
		out.Playstyle[k] = v
	}
	out.FavoriteIDs = append([]string(nil), p.FavoriteIDs...)
	return &out
}
