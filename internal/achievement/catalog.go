// Package achievement holds the achievement catalog and its evaluator.
package achievement

import (
	"fmt"

	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/domain"
)

// CatalogVersion identifies the built-in catalog.
const CatalogVersion = 1

// ConditionKind selects how a definition is checked.
type ConditionKind string

const (
	// ConditionActivityCount holds when the user has at least Threshold
	// ledger rows of Activity.
	ConditionActivityCount ConditionKind = "activity_count"
	// ConditionOrganizedCompleted holds when the user organized at least
	// Threshold events that reached completed.
	ConditionOrganizedCompleted ConditionKind = "organized_completed"
	// ConditionNever is reserved for codes that are not yet unlockable.
	ConditionNever ConditionKind = "never"
)

// Condition is an unlock predicate.
type Condition struct {
	Kind      ConditionKind
	Activity  domain.ActivityType
	Threshold int64
}

// Definition is one catalog entry.
type Definition struct {
	Code        string
	Title       string
	Description string
	BonusPoints int64
	Condition   Condition
}

// Catalog is an ordered, versioned list of definitions.
type Catalog struct {
	Version     int
	Definitions []Definition
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Version: CatalogVersion,
		Definitions: []Definition{
			{
				Code:        "first_event",
				Title:       "🏃 First Event",
				Description: "Join your first event",
				BonusPoints: 5,
				Condition:   Condition{Kind: ConditionActivityCount, Activity: domain.ActivityEventJoin, Threshold: 1},
			},
			{
				Code:        "ten_events",
				Title:       "🎯 10 Events",
				Description: "Complete 10 events",
				BonusPoints: 20,
				Condition:   Condition{Kind: ConditionActivityCount, Activity: domain.ActivityEventComplete, Threshold: 10},
			},
			{
				Code:        "organizer",
				Title:       "👑 Organizer",
				Description: "Organize 5 events",
				BonusPoints: 30,
				Condition:   Condition{Kind: ConditionOrganizedCompleted, Threshold: 5},
			},
			{
				Code:        "highly_rated",
				Title:       "⭐ Highly Rated",
				Description: "Receive 10 five-star reviews",
				BonusPoints: 25,
				Condition:   Condition{Kind: ConditionActivityCount, Activity: domain.ActivityFiveStarReceived, Threshold: 10},
			},
			{
				Code:        "social_butterfly",
				Title:       "🦋 Social Butterfly",
				Description: "Make 20 connections",
				Condition:   Condition{Kind: ConditionNever},
			},
			{
				Code:        "early_bird",
				Title:       "🌅 Early Bird",
				Description: "Join 5 morning events",
				Condition:   Condition{Kind: ConditionNever},
			},
		},
	}
}

// CatalogFromConfig builds a catalog from configuration. An empty list
// yields the built-in catalog. The result is validated.
func CatalogFromConfig(defs []config.AchievementConfig) (Catalog, error) {
	if len(defs) == 0 {
		return DefaultCatalog(), nil
	}

	c := Catalog{Version: CatalogVersion + 1}
	for _, d := range defs {
		c.Definitions = append(c.Definitions, Definition{
			Code:        d.Code,
			Title:       d.Title,
			Description: d.Description,
			BonusPoints: d.BonusPoints,
			Condition: Condition{
				Kind:      ConditionKind(d.Condition),
				Activity:  domain.ActivityType(d.Activity),
				Threshold: d.Threshold,
			},
		})
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate rejects catalogs that could be ambiguous or self-triggering.
// No condition may count achievement_bonus rows, so a bonus write can never
// unlock anything by itself.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Definitions))
	for _, d := range c.Definitions {
		if d.Code == "" {
			return fmt.Errorf("%w: empty code", domain.ErrInvalidCatalog)
		}
		if seen[d.Code] {
			return fmt.Errorf("%w: duplicate code %q", domain.ErrInvalidCatalog, d.Code)
		}
		seen[d.Code] = true

		if d.BonusPoints < 0 {
			return fmt.Errorf("%w: %s has negative bonus", domain.ErrInvalidCatalog, d.Code)
		}

		switch d.Condition.Kind {
		case ConditionNever:
		case ConditionActivityCount:
			if !d.Condition.Activity.IsValid() {
				return fmt.Errorf("%w: %s counts unknown activity %q", domain.ErrInvalidCatalog, d.Code, d.Condition.Activity)
			}
			if d.Condition.Activity == domain.ActivityAchievementBonus {
				return fmt.Errorf("%w: %s counts achievement bonuses", domain.ErrInvalidCatalog, d.Code)
			}
			fallthrough
		case ConditionOrganizedCompleted:
			if d.Condition.Threshold <= 0 {
				return fmt.Errorf("%w: %s needs a positive threshold", domain.ErrInvalidCatalog, d.Code)
			}
		default:
			return fmt.Errorf("%w: %s has unknown condition %q", domain.ErrInvalidCatalog, d.Code, d.Condition.Kind)
		}
	}
	return nil
}

// Lookup finds a definition by code.
func (c Catalog) Lookup(code string) (Definition, bool) {
	for _, d := range c.Definitions {
		if d.Code == code {
			return d, true
		}
	}
	return Definition{}, false
}
