package main

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/trailhead/internal/composer"
	"github.com/kingrea/trailhead/internal/mapbridge"
	"github.com/kingrea/trailhead/internal/tui"
	"github.com/kingrea/trailhead/internal/validate"
	"github.com/kingrea/trailhead/internal/wizard"
)

// tapForwarder turns bridge taps into TUI messages. The bridge starts
// serving before the program exists, so the sender is attached later and
// read atomically from the bridge's goroutines.
type tapForwarder struct {
	ctrl *wizard.Controller
	comp *composer.Composer
	send atomic.Pointer[func(tea.Msg)]
}

func (f *tapForwarder) attach(send func(tea.Msg)) {
	f.send.Store(&send)
}

// HandleTap implements mapbridge.TapProcessor.
func (f *tapForwarder) HandleTap(tap mapbridge.Tap) error {
	if f.ctrl.State() != wizard.StateActive || f.ctrl.Step() != validate.StepItinerary {
		return wizard.ErrNotInteractive
	}
	if f.comp.LookupInFlight() {
		return composer.ErrLookupInFlight
	}
	send := f.send.Load()
	if send == nil {
		return wizard.ErrNotInteractive
	}
	(*send)(tui.TapMsg{Lat: tap.Lat, Lng: tap.Lng})
	return nil
}
