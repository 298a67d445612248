package simulation

import (
	"context"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/logging"
)

const (
	// EventTickBudgetOverrun is a single tick that took longer than its interval.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventTickBudgetAlarm marks an overrun streak long and severe enough to
	// page someone.
	EventTickBudgetAlarm logging.EventType = "simulation.tick_budget_alarm"
)

// TickBudgetPayload describes a slow tick together with the load it carried.
type TickBudgetPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
	Zones          int     `json:"zones"`
	Players        int     `json:"players"`
	Enemies        int     `json:"enemies"`
	Projectiles    int     `json:"projectiles"`
	Commands       int     `json:"commands"`
}

// TickBudgetOverrun publishes a warning for one slow tick. With alarm set it
// publishes the error-level alarm instead.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetPayload, alarm bool) {
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Actor:    logging.WorldRef,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
	}
	if alarm {
		event.Type = EventTickBudgetAlarm
		event.Severity = logging.SeverityError
	}
	logging.Emit(ctx, pub, event)
}
