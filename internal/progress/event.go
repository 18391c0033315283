// Package progress defines the lifecycle events emitted by preload sessions.
package progress

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported lifecycle stages.
const (
	StageTaskQueued   Stage = "TASK_QUEUED"
	StageTaskDone     Stage = "TASK_DONE"
	StageTaskFailed   Stage = "TASK_FAILED"
	StageSessionReset Stage = "SESSION_RESET"
	StageNavigated    Stage = "NAVIGATED"
)

// Event captures a single step of a preload session.
type Event struct {
	// SessionID identifies the session that owns the aggregator or navigation.
	SessionID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Task is the diagnostic task name; it may be empty.
	Task string
	// Weight is the task weight for task stages.
	Weight float64
	// Progress is the aggregator progress observed after the milestone.
	Progress float64
	// Step names the resolver step that produced a navigation.
	Step string
	// Target is the navigation URL.
	Target string
	// Dur captures task execution time.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == uuid.Nil {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageTaskQueued, StageTaskDone, StageTaskFailed:
		if e.Weight <= 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return errors.New("task events require a positive weight")
		}
	case StageSessionReset:
	case StageNavigated:
		if e.Target == "" {
			return errors.New("navigation requires target")
		}
		if e.Step == "" {
			return errors.New("navigation requires step")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Progress < 0 || e.Progress > 1 {
		return errors.New("progress must be within [0, 1]")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
