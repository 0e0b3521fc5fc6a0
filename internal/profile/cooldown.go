package profile

import (
	"fmt"
	"time"
)

// DefaultCooldown is the minimum time between two handle changes.
const DefaultCooldown = 15 * 24 * time.Hour

const day = 24 * time.Hour

// CooldownActiveError rejects a handle change made too soon after the last
// one.
type CooldownActiveError struct {
	RemainingDays int
	Until         time.Time
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("handle can be changed again in %d day(s)", e.RemainingDays)
}

// CheckCooldown fails when less than cooldown has passed since last. A user
// who never changed their handle is always allowed. Remaining time is
// rounded up to whole days.
func CheckCooldown(last *time.Time, now time.Time, cooldown time.Duration) error {
	if last == nil {
		return nil
	}
	elapsed := now.Sub(*last)
	if elapsed >= cooldown {
		return nil
	}
	remaining := cooldown - elapsed
	days := int((remaining + day - 1) / day)
	return &CooldownActiveError{
		RemainingDays: days,
		Until:         last.Add(cooldown),
	}
}
