// Package audiocast implements the transmit-side media engine of a
// multicast audio endpoint.
//
// This file defines the source lifecycle state machine. States follow the
// setup sequence: announcement and capture binding are distinct states so
// a failed startup can be attributed to the step it died in, and teardown
// is only legal through stopping, which guarantees the scheduler is
// joined before shared buffers are released.
package audiocast

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

// Source lifecycle states.
const (
	StateCreated            = "created"
	StateConfiguring        = "configuring"
	StateAnnouncementActive = "announcement_active"
	StateMicActive          = "mic_active"
	StateRunning            = "running"
	StateStopping           = "stopping"
	StateStopped            = "stopped"
)

// Lifecycle events.
const (
	eventConfigure    = "configure"
	eventAnnouncement = "announcement"
	eventCapture      = "capture"
	eventStart        = "start"
	eventStop         = "stop"
	eventStopped      = "stopped"
)

// newLifecycleFSM builds the per-source state machine.
func newLifecycleFSM(sourceID string) *fsm.FSM {
	return fsm.NewFSM(
		StateCreated,
		fsm.Events{
			{Name: eventConfigure, Src: []string{StateCreated}, Dst: StateConfiguring},
			{Name: eventAnnouncement, Src: []string{StateConfiguring}, Dst: StateAnnouncementActive},
			{Name: eventCapture, Src: []string{StateConfiguring, StateAnnouncementActive}, Dst: StateMicActive},
			{Name: eventStart, Src: []string{StateMicActive}, Dst: StateRunning},
			{Name: eventStop, Src: []string{
				StateConfiguring, StateAnnouncementActive, StateMicActive, StateRunning,
			}, Dst: StateStopping},
			{Name: eventStopped, Src: []string{StateStopping}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logrus.WithFields(logrus.Fields{
					"function": "lifecycleFSM",
					"source":   sourceID,
					"event":    e.Event,
					"from":     e.Src,
					"to":       e.Dst,
				}).Debug("Source state transition")
			},
		},
	)
}

// transition fires a lifecycle event, logging unexpected refusals. The
// state machine is advisory on teardown paths (Stop may race EOF
// handling), so refusals are not fatal.
func (s *Source) transition(event string) {
	if err := s.lifecycle.Event(context.Background(), event); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Source.transition",
			"source":   s.id,
			"event":    event,
			"state":    s.lifecycle.Current(),
			"error":    err.Error(),
		}).Debug("Lifecycle event refused")
	}
}

// State returns the source's current lifecycle state.
func (s *Source) State() string {
	return s.lifecycle.Current()
}
