// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package ops

import (
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
)

// NewSupervisor returns a single-level supervisor for the ops listener.
// The failure parameters match suture's documented defaults: five failures
// with a 30-second decay before a 15-second backoff.
func NewSupervisor() *suture.Supervisor {
	return suture.New("ratedstats-ops", suture.Spec{
		EventHook:        logSupervisorEvent,
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}

// logSupervisorEvent routes suture events into the structured log. Panics
// and terminations are worth a warning; backoff and resume chatter stays
// at debug.
func logSupervisorEvent(event suture.Event) {
	switch event.Type() {
	case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate, suture.EventTypeStopTimeout:
		logging.Warn().Fields(event.Map()).Msg("[OPS] Supervised service failed")
	default:
		logging.Debug().Fields(event.Map()).Msg("[OPS] Supervisor event")
	}
}
