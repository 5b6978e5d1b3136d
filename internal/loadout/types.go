// Package loadout holds the game domain: the weapon catalog, saved
// loadouts, user profiles, and the recommendation scoring that backs the
// assistant's tools.
package loadout

import "time"

// Weapon categories.
const (
	CategoryAR       = "AR"
	CategorySMG      = "SMG"
	CategoryLMG      = "LMG"
	CategorySniper   = "Sniper"
	CategoryMarksman = "Marksman"
	CategoryShotgun  = "Shotgun"
	CategoryPistol   = "Pistol"
)

// Categories lists all valid weapon categories.
var Categories = []string{
	CategoryAR, CategorySMG, CategoryLMG, CategorySniper,
	CategoryMarksman, CategoryShotgun, CategoryPistol,
}

// Tiers, strongest first.
var Tiers = []string{"S", "A", "B", "C", "D"}

// Stats are normalized 0-100 weapon attributes.
type Stats struct {
	Damage   int `json:"damage"`
	Range    int `json:"range"`
	Accuracy int `json:"accuracy"`
	Mobility int `json:"mobility"`
	Control  int `json:"control"`
	FireRate int `json:"fireRate"`
}

// Weapon is a catalog entry.
type Weapon struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Tier     string   `json:"tier"`
	Stats    Stats    `json:"stats"`
	PickRate float64  `json:"pickRate"` // fraction of the player base, 0-1
	Slots    []string `json:"slots"`    // attachment slots the weapon accepts
}

// Attachment modifies weapon stats when equipped.
type Attachment struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Slot    string         `json:"slot"`
	Effects map[string]int `json:"effects"` // stat name -> delta
}

// Loadout is a user-saved weapon build.
type Loadout struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	WeaponID      string    `json:"weaponId"`
	AttachmentIDs []string  `json:"attachmentIds"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Playstyle axes used by profiles and the scorer. Weights are 0-1.
const (
	StyleAggression = "aggression" // favors mobility and fire rate
	StyleRange      = "range"      // favors range and accuracy
	StylePrecision  = "precision"  // favors accuracy and control
)

// Profile captures a user's playstyle and favorites.
type Profile struct {
	UserID      string             `json:"userId"`
	Playstyle   map[string]float64 `json:"playstyle"`
	FavoriteIDs []string           `json:"favoriteIds"` // weapon IDs, append-only
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Filter narrows weapon catalog queries. Zero values match everything.
type Filter struct {
	Category string
	Tier     string
	Name     string // case-insensitive substring match
}

// ValidCategory reports whether c is a known weapon category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
