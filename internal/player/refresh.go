package player

import (
	"fmt"
	"time"
)

// RefreshPhase is the token sub-state of a session.
type RefreshPhase int

const (
	RefreshIdle RefreshPhase = iota
	RefreshInFlight
	RefreshCooldown
	RefreshExpired
)

func (p RefreshPhase) String() string {
	switch p {
	case RefreshIdle:
		return "idle"
	case RefreshInFlight:
		return "refreshing"
	case RefreshCooldown:
		return "cooldown"
	case RefreshExpired:
		return "expired"
	default:
		return fmt.Sprintf("RefreshPhase(%d)", int(p))
	}
}

// RefreshState is Idle, Refreshing, Cooldown(Until) or Expired. Until is only set for Cooldown.
type RefreshState struct {
	Phase RefreshPhase
	Until time.Time
}

func (s RefreshState) String() string {
	if s.Phase == RefreshCooldown {
		return fmt.Sprintf("cooldown until %s", s.Until.Format(time.TimeOnly))
	}
	return s.Phase.String()
}

// Suppression reasons reported when [refreshGuard.begin] refuses a refresh.
const (
	reasonInFlight = "in_flight"
	reasonCooldown = "cooldown"
	reasonExpired  = "expired"
)

// refreshGuard owns the refresh state of one session. It is not safe for concurrent use; the
// [Manager] mutex protects it.
//
// The cooldown window is measured from the start of the last attempt.
type refreshGuard struct {
	state    RefreshState
	cooldown time.Duration
	started  time.Time
}

func newRefreshGuard(cooldown time.Duration) *refreshGuard {
	return &refreshGuard{cooldown: cooldown}
}

// current returns the state at now, collapsing an elapsed cooldown into Idle.
func (g *refreshGuard) current(now time.Time) RefreshState {
	if g.state.Phase == RefreshCooldown && !now.Before(g.state.Until) {
		g.state = RefreshState{Phase: RefreshIdle}
	}
	return g.state
}

// begin moves to Refreshing. When a refresh is not allowed it returns false and the reason.
func (g *refreshGuard) begin(now time.Time) (string, bool) {
	switch g.current(now).Phase {
	case RefreshInFlight:
		return reasonInFlight, false
	case RefreshCooldown:
		return reasonCooldown, false
	case RefreshExpired:
		return reasonExpired, false
	}

	g.started = now
	g.state = RefreshState{Phase: RefreshInFlight}
	return "", true
}

// succeed ends an attempt and opens the cooldown window measured from its start.
func (g *refreshGuard) succeed() {
	if g.state.Phase != RefreshInFlight {
		return
	}
	g.state = RefreshState{Phase: RefreshCooldown, Until: g.started.Add(g.cooldown)}
}

// expire marks the session as unrecoverable. Only loading a track leaves Expired.
func (g *refreshGuard) expire() {
	g.state = RefreshState{Phase: RefreshExpired}
}
