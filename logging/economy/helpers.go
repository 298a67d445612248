package economy

import (
	"context"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

const (
	// EventRewardGranted is emitted when a kill credits experience and gold.
	EventRewardGranted logging.EventType = "economy.reward_granted"
	// EventLevelUp is emitted whenever a class gains one or more levels.
	EventLevelUp logging.EventType = "economy.level_up"
	// EventExperienceLost is emitted when a death costs experience.
	EventExperienceLost logging.EventType = "economy.experience_lost"
	// EventExperienceTransferred is emitted when a PvP kill moves experience to the killer.
	EventExperienceTransferred logging.EventType = "economy.experience_transferred"
)

// RewardGrantedPayload describes a kill reward.
type RewardGrantedPayload struct {
	Class      string  `json:"class,omitempty"`
	XP         int     `json:"xp"`
	Gold       int     `json:"gold"`
	Multiplier float64 `json:"multiplier"`
	EnemyLevel int     `json:"enemyLevel"`
}

// LevelUpPayload describes the class level reached.
type LevelUpPayload struct {
	Class  string `json:"class"`
	Level  int    `json:"level"`
	Gained int    `json:"gained"`
	HPMax  int    `json:"hpMax"`
}

// ExperiencePayload describes an experience movement.
type ExperiencePayload struct {
	Class     string `json:"class"`
	Amount    int    `json:"amount"`
	Remaining int    `json:"remaining"`
}

// RewardGranted credits actor for defeating target.
func RewardGranted(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload RewardGrantedPayload, extra map[string]any) {
	publish(ctx, pub, EventRewardGranted, tick, actor, []logging.EntityRef{target}, payload, extra)
}

func LevelUp(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload LevelUpPayload, extra map[string]any) {
	publish(ctx, pub, EventLevelUp, tick, actor, nil, payload, extra)
}

// ExperienceLost is the death penalty applied to the victim's active class.
func ExperienceLost(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ExperiencePayload, extra map[string]any) {
	publish(ctx, pub, EventExperienceLost, tick, actor, nil, payload, extra)
}

// ExperienceTransferred moves a PvP victim's loss to actor.
func ExperienceTransferred(ctx context.Context, pub logging.Publisher, tick uint64, actor, victim logging.EntityRef, payload ExperiencePayload, extra map[string]any) {
	publish(ctx, pub, EventExperienceTransferred, tick, actor, []logging.EntityRef{victim}, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, kind logging.EventType, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload any, extra map[string]any) {
	logging.Emit(ctx, pub, logging.Event{
		Type:     kind,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityInfo,
		Category: "economy",
		Payload:  payload,
		Extra:    extra,
	})
}
