package loadout

import (
	"context"
	"errors"
)

// Sentinel errors returned by Store implementations.
var (
	ErrWeaponNotFound     = errors.New("weapon not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrLoadoutNotFound    = errors.New("loadout not found")
	ErrProfileNotFound    = errors.New("profile not found")
)

// Store is the document store behind the assistant's tools. Implementations
// must be safe for concurrent use; AddFavorite must be an atomic append so
// concurrent favorites from the same user never clobber each other.
type Store interface {
	// Catalog (read-only after seeding).
	ListWeapons(ctx context.Context, filter Filter) ([]Weapon, error)
	GetWeapon(ctx context.Context, id string) (*Weapon, error)
	GetAttachment(ctx context.Context, id string) (*Attachment, error)

	// Loadouts. SaveLoadout always creates a new record and is therefore
	// not idempotent: saving the same build twice yields two loadouts.
	SaveLoadout(ctx context.Context, l *Loadout) error
	GetLoadout(ctx context.Context, id string) (*Loadout, error)
	ListLoadoutsByUser(ctx context.Context, userID string) ([]Loadout, error)

	// Profiles.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	SaveProfile(ctx context.Context, p *Profile) error
	AddFavorite(ctx context.Context, userID, weaponID string) error
}
