package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/trailhead/internal/validate"
	"github.com/kingrea/trailhead/internal/wizard"
)

// stepView is one wizard step's editor.
type stepView interface {
	// load refreshes the view from the draft when its step becomes active.
	load() tea.Cmd
	update(msg tea.KeyMsg) tea.Cmd
	// capturing reports whether an inline prompt owns the keyboard, in which
	// case Esc cancels the prompt instead of closing the wizard.
	capturing() bool
	view(width int) string
	hints() string
}

func (a *App) currentView() stepView {
	switch a.controller.Step() {
	case validate.StepItinerary:
		return a.itinerary
	case validate.StepGallery:
		return a.gallery
	default:
		return a.basic
	}
}

// enterStep prepares the active step's view after a transition lands.
func (a *App) enterStep() tea.Cmd {
	return a.currentView().load()
}

func (a *App) updateWizard(msg tea.KeyMsg) tea.Cmd {
	view := a.currentView()
	key := msg.String()
	if key == "esc" && view.capturing() {
		return view.update(msg)
	}
	switch key {
	case "esc":
		id := a.controller.Draft().ID
		a.returnToMainMenu(fmt.Sprintf("Draft %s saved locally; resume it from the menu", id))
		return nil
	}
	if state := a.controller.State(); state != wizard.StateActive {
		a.setStatus("Please wait: %v", wizard.ErrNotInteractive)
		return nil
	}
	switch key {
	case "ctrl+n":
		return a.advance()
	case "ctrl+b":
		return a.back()
	case "ctrl+s":
		if err := a.controller.Save(a.ctx); err != nil {
			a.setStatus("Autosave failed: %v", err)
		} else {
			a.statusMsg = "Draft saved"
		}
		return nil
	}
	return view.update(msg)
}

func (a *App) advance() tea.Cmd {
	if !a.controller.CanAdvance() {
		a.setStatus("Next is disabled: %s", strings.Join(a.controller.Missing(), "; "))
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg {
		return advancedMsg{err: a.controller.Advance(ctx)}
	}
}

func (a *App) back() tea.Cmd {
	if err := a.controller.Back(); err != nil {
		if errors.Is(err, wizard.ErrAtFirstStep) {
			a.statusMsg = "Already on the first step"
		} else {
			a.setStatus("Cannot go back: %v", err)
		}
		return nil
	}
	return a.transitionTick()
}

func (a *App) transitionTick() tea.Cmd {
	return tea.Tick(a.transitionDelay, func(time.Time) tea.Msg {
		return transitionDoneMsg{}
	})
}

func (a *App) handleAdvanced(msg advancedMsg) tea.Cmd {
	if msg.err != nil {
		a.setStatus("Cannot continue: %v", msg.err)
		return nil
	}
	switch a.controller.State() {
	case wizard.StateTransitioning:
		a.statusMsg = ""
		return a.transitionTick()
	case wizard.StateHandoff:
		a.search.Cancel()
		a.handoffID = a.controller.HandoffID()
		a.screen = screenHandoff
		a.logInfo("Handoff · %s ready for preview", a.handoffID)
		a.setStatus("Trip %s handed off", a.handoffID)
	}
	return nil
}

func (a *App) renderWizard() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	current := a.controller.StepIndex()
	var crumbs []string
	for i, step := range validate.Steps {
		label := fmt.Sprintf("%d %s", i+1, step.Title())
		switch {
		case i == current:
			crumbs = append(crumbs, activeStyle.Render(label))
		case i < current:
			crumbs = append(crumbs, readyStyle.Render(label))
		default:
			crumbs = append(crumbs, mutedStyle.Render(label))
		}
	}
	d := a.controller.Draft()
	heading := fmt.Sprintf("%s · %s trip %s", strings.Join(crumbs, " › "), d.Mode, d.ID)
	if a.controller.State() == wizard.StateTransitioning {
		heading += warnStyle.Render("  …")
	}
	view := a.currentView()
	return lipgloss.JoinVertical(lipgloss.Left,
		heading,
		"",
		view.view(width-6),
		"",
		a.renderNext(),
		hintStyle.Render(view.hints()),
		hintStyle.Render("ctrl+n → next    ctrl+b → back    ctrl+s → save    Esc → close"),
	)
}

func (a *App) renderNext() string {
	missing := a.controller.Missing()
	if len(missing) == 0 {
		if a.controller.StepIndex() == len(validate.Steps)-1 {
			return readyStyle.Render("Finish ▸ ready")
		}
		return readyStyle.Render("Next ▸ ready")
	}
	lines := []string{blockStyle.Render("Next ▸ disabled")}
	for _, reason := range missing {
		lines = append(lines, warnStyle.Render("  • "+reason))
	}
	return strings.Join(lines, "\n")
}
