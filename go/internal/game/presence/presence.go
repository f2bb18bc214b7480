// Package presence derives whether a seat is in a room from how recently
// it reported. Nothing here is stored.
package presence

import (
	"time"

	"github.com/mcdev12/waiting/go/internal/models"
)

// IsPresent reports whether lastUpdate is within grace of now
func IsPresent(lastUpdate, now time.Time, grace time.Duration) bool {
	return now.Sub(lastUpdate) < grace
}

// Self is the entry shown for a viewer who has not reported in the room yet
func Self(name string) models.Player {
	return models.Player{
		Name:    name,
		Seconds: 0,
		Present: true,
		IsSelf:  true,
	}
}
