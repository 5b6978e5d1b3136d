package loadout

import "sort"

// Scorer rates how well a weapon suits a user profile. Higher is better.
// The default heuristic can be swapped for a learned model without touching
// the tool layer.
type Scorer interface {
	Score(w Weapon, p *Profile) float64
}

// HeuristicScorer weighs weapon stats by the profile's playstyle axes and
// nudges the result by tier and favorites.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the default scorer.
func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

// Score implements Scorer. With no profile it degrades to a tier-weighted
// stat average, which keeps recommendations sensible for new users.
func (s *HeuristicScorer) Score(w Weapon, p *Profile) float64 {
	base := float64(w.Stats.Damage+w.Stats.Range+w.Stats.Accuracy+
		w.Stats.Mobility+w.Stats.Control+w.Stats.FireRate) / 6.0

	score := base + tierBonus(w.Tier)

	if p == nil || len(p.Playstyle) == 0 {
		return score
	}

	if agg := p.Playstyle[StyleAggression]; agg > 0 {
		score += agg * float64(w.Stats.Mobility+w.Stats.FireRate) / 2.0 * 0.3
	}
	if rng := p.Playstyle[StyleRange]; rng > 0 {
		score += rng * float64(w.Stats.Range+w.Stats.Accuracy) / 2.0 * 0.3
	}
	if prec := p.Playstyle[StylePrecision]; prec > 0 {
		score += prec * float64(w.Stats.Accuracy+w.Stats.Control) / 2.0 * 0.3
	}

	for _, fav := range p.FavoriteIDs {
		if fav == w.ID {
			score += 5
			break
		}
	}
	return score
}

func tierBonus(tier string) float64 {
	switch tier {
	case "S":
		return 10
	case "A":
		return 6
	case "B":
		return 3
	case "C":
		return 1
	default:
		return 0
	}
}

// Rank sorts weapons by score descending, stably so catalog order breaks ties.
func Rank(scorer Scorer, weapons []Weapon, p *Profile) []Weapon {
	ranked := make([]Weapon, len(weapons))
	copy(ranked, weapons)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scorer.Score(ranked[i], p) > scorer.Score(ranked[j], p)
	})
	return ranked
}

// CounterScore rates candidate as a counter to enemy. The heuristic plays
// the opposite engagement envelope: against long-range precision weapons it
// favors mobility and fire rate to close the gap; against close-range
// weapons it favors range and accuracy to keep distance.
func CounterScore(candidate, enemy Weapon) float64 {
	var score float64

	enemyLongRange := float64(enemy.Stats.Range+enemy.Stats.Accuracy) / 2.0
	enemyCloseRange := float64(enemy.Stats.Mobility+enemy.Stats.FireRate) / 2.0

	if enemyLongRange > enemyCloseRange {
		// Enemy wins at distance: counter by forcing close fights.
		score = float64(candidate.Stats.Mobility)*0.4 +
			float64(candidate.Stats.FireRate)*0.3 +
			float64(candidate.Stats.Damage)*0.3
	} else {
		// Enemy wins up close: counter by holding range.
		score = float64(candidate.Stats.Range)*0.4 +
			float64(candidate.Stats.Accuracy)*0.3 +
			float64(candidate.Stats.Control)*0.3
	}

	// A mirror matchup is never a counter.
	if candidate.ID == enemy.ID {
		score = 0
	}
	return score + tierBonus(candidate.Tier)
}

// RankCounters sorts candidates by how well they counter enemy, best first.
func RankCounters(candidates []Weapon, enemy Weapon) []Weapon {
	ranked := make([]Weapon, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return CounterScore(ranked[i], enemy) > CounterScore(ranked[j], enemy)
	})
	return ranked
}
