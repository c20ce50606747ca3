// internal/tui/app.go
//
// This is the terminal front end for trailhead. It follows The Elm
// Architecture through bubbletea: the App holds all screen state, Update
// turns messages into new state and View renders it. Every call that may
// block (hydration, geocoding, routing, handoff) runs inside a tea.Cmd and
// reports back with a message.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/trailhead/internal/composer"
	"github.com/kingrea/trailhead/internal/draft"
	"github.com/kingrea/trailhead/internal/logbook"
	"github.com/kingrea/trailhead/internal/wizard"
)

// screen represents which top-level view is showing.
type screen int

const (
	screenMenu    screen = iota // main menu
	screenPrompt                // asking for a trip or snapshot id
	screenLoading               // hydrating an existing trip
	screenWizard                // one of the wizard steps
	screenHandoff               // draft handed off downstream
)

type promptKind int

const (
	promptEdit promptKind = iota
	promptResume
)

const (
	defaultTransitionDelay = 150 * time.Millisecond
	defaultDebounce        = 300 * time.Millisecond
	logPanelLines          = 6
)

const (
	menuNew    = "New trip"
	menuEdit   = "Edit trip"
	menuResume = "Resume autosave"
	menuExit   = "Exit"
)

// TapMsg is a coordinate picked on the browser map. The map bridge hands it
// to the running program with Program.Send.
type TapMsg struct {
	Lat float64
	Lng float64
}

type hydrationDoneMsg struct {
	id  string
	err error
}

type resumedMsg struct {
	id  string
	err error
}

type advancedMsg struct {
	err error
}

type transitionDoneMsg struct{}

// Deps are the collaborators the App drives.
type Deps struct {
	Controller *wizard.Controller
	Composer   *composer.Composer
	Search     *composer.SearchSession
	Logbook    *logbook.Logbook
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithContext sets the context handed to blocking calls.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// WithDebounce sets how long search input must settle before a lookup.
func WithDebounce(d time.Duration) AppOption {
	return func(a *App) {
		if d >= 0 {
			a.debounce = d
		}
	}
}

// WithTransitionDelay sets how long a step transition animates.
func WithTransitionDelay(d time.Duration) AppOption {
	return func(a *App) {
		if d >= 0 {
			a.transitionDelay = d
		}
	}
}

// WithStartupEdit opens the given trip for editing as soon as the program starts.
func WithStartupEdit(id string) AppOption {
	return func(a *App) {
		a.startupEdit = strings.TrimSpace(id)
	}
}

// WithStartupResume resumes the given autosave snapshot as soon as the program starts.
func WithStartupResume(id string) AppOption {
	return func(a *App) {
		a.startupResume = strings.TrimSpace(id)
	}
}

// WithBridgeURL shows where the browser map can reach the bridge.
func WithBridgeURL(url string) AppOption {
	return func(a *App) {
		a.bridgeURL = strings.TrimSpace(url)
	}
}

// WithDefaultCurrency pre-fills the currency of new trips.
func WithDefaultCurrency(code string) AppOption {
	return func(a *App) {
		a.defaultCurrency = strings.ToUpper(strings.TrimSpace(code))
	}
}

// App is the main application model.
type App struct {
	ctx        context.Context
	controller *wizard.Controller
	composer   *composer.Composer
	search     *composer.SearchSession
	logbook    *logbook.Logbook

	debounce        time.Duration
	transitionDelay time.Duration
	startupEdit     string
	startupResume   string
	bridgeURL       string
	defaultCurrency string

	screen     screen
	mainMenu   list.Model
	prompt     textinput.Model
	promptKind promptKind
	loadingID  string
	handoffID  string
	statusMsg  string

	basic     *basicForm
	itinerary *itineraryView
	gallery   *galleryView

	width  int
	height int
}

// menuItem implements list.Item for the main menu.
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// NewApp creates the App over an already wired controller and composer.
func NewApp(deps Deps, opts ...AppOption) (*App, error) {
	if deps.Controller == nil {
		return nil, errors.New("tui: wizard controller is required")
	}
	if deps.Composer == nil {
		return nil, errors.New("tui: route composer is required")
	}
	if deps.Search == nil {
		deps.Search = composer.NewSearchSession(nil, 0)
	}
	menu := list.New(buildMainMenu(), list.NewDefaultDelegate(), 60, 14)
	menu.Title = "⛰ TRAILHEAD"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	menu.DisableQuitKeybindings()

	app := &App{
		ctx:             context.Background(),
		controller:      deps.Controller,
		composer:        deps.Composer,
		search:          deps.Search,
		logbook:         deps.Logbook,
		debounce:        defaultDebounce,
		transitionDelay: defaultTransitionDelay,
		screen:          screenMenu,
		mainMenu:        menu,
		prompt:          newInput("", 64),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.basic = newBasicForm(app)
	app.itinerary = newItineraryView(app)
	app.gallery = newGalleryView(app)
	return app, nil
}

func buildMainMenu() []list.Item {
	return []list.Item{
		menuItem{title: menuNew, desc: "Start a trip from scratch"},
		menuItem{title: menuEdit, desc: "Load a published trip by id"},
		menuItem{title: menuResume, desc: "Continue a locally saved draft"},
		menuItem{title: menuExit, desc: "Quit trailhead"},
	}
}

// newInput builds a text input with a static cursor so idle inputs never
// schedule blink ticks.
func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 48
	in.Prompt = "> "
	in.Cursor.SetMode(cursor.CursorStatic)
	return in
}

func (a *App) logInfo(format string, args ...any) {
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	a.logbook.Warn(format, args...)
}

func (a *App) setStatus(format string, args ...any) {
	a.statusMsg = fmt.Sprintf(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	switch {
	case a.startupEdit != "":
		return a.beginEdit(a.startupEdit)
	case a.startupResume != "":
		return a.resume(a.startupResume)
	}
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(20, msg.Width-6), max(8, msg.Height-12))
		return a, nil

	case hydrationDoneMsg:
		return a, a.handleHydration(msg)

	case resumedMsg:
		if msg.err != nil {
			a.screen = screenMenu
			a.logWarn("Resume of %s failed: %v", msg.id, msg.err)
			a.setStatus("Resume failed: %v", msg.err)
			return a, nil
		}
		return a, a.enterWizard(fmt.Sprintf("Resumed %s", msg.id))

	case advancedMsg:
		return a, a.handleAdvanced(msg)

	case transitionDoneMsg:
		if err := a.controller.FinishTransition(a.ctx); err != nil {
			return a, nil
		}
		return a, a.enterStep()

	case TapMsg:
		return a, a.itinerary.handleTap(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.controller.Close(a.ctx)
			return a, tea.Quit
		}
		switch a.screen {
		case screenMenu:
			return a, a.updateMenu(msg)
		case screenPrompt:
			return a, a.updatePrompt(msg)
		case screenLoading:
			if msg.String() == "esc" {
				a.controller.Close(a.ctx)
				a.screen = screenMenu
				a.setStatus("Loading of %s cancelled", a.loadingID)
			}
			return a, nil
		case screenWizard:
			return a, a.updateWizard(msg)
		case screenHandoff:
			switch msg.String() {
			case "enter", "esc":
				a.screen = screenMenu
				a.statusMsg = ""
			case "q":
				return a, tea.Quit
			}
			return a, nil
		}
	}

	if a.screen == screenWizard {
		return a, a.itinerary.handleAsync(msg)
	}
	return a, nil
}

func (a *App) updateMenu(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "enter":
		return a.handleMainMenuSelection()
	}
	var cmd tea.Cmd
	a.mainMenu, cmd = a.mainMenu.Update(msg)
	return cmd
}

// handleMainMenuSelection processes menu item selection.
func (a *App) handleMainMenuSelection() tea.Cmd {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return nil
	}
	switch item.title {
	case menuNew:
		id, err := a.controller.StartNew(a.ctx)
		if err != nil {
			a.setStatus("Could not start a trip: %v", err)
			return nil
		}
		if a.defaultCurrency != "" {
			currency := a.defaultCurrency
			a.composer.Store().SetIdentity(draft.IdentityPatch{Currency: &currency})
		}
		return a.enterWizard(fmt.Sprintf("New trip %s", id))
	case menuEdit:
		a.openPrompt(promptEdit)
	case menuResume:
		a.openPrompt(promptResume)
	case menuExit:
		return tea.Quit
	}
	return nil
}

func (a *App) openPrompt(kind promptKind) {
	a.promptKind = kind
	a.prompt.SetValue("")
	if kind == promptEdit {
		a.prompt.Placeholder = "trip id"
	} else {
		a.prompt.Placeholder = "draft id"
	}
	a.prompt.Focus()
	a.screen = screenPrompt
	a.statusMsg = ""
}

func (a *App) updatePrompt(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.prompt.Blur()
		a.screen = screenMenu
		return nil
	case "enter":
		id := strings.TrimSpace(a.prompt.Value())
		if id == "" {
			a.statusMsg = "An id is required"
			return nil
		}
		a.prompt.Blur()
		if a.promptKind == promptEdit {
			return a.beginEdit(id)
		}
		return a.resume(id)
	}
	var cmd tea.Cmd
	a.prompt, cmd = a.prompt.Update(msg)
	return cmd
}

// beginEdit enters the loading screen and hydrates in the background.
func (a *App) beginEdit(id string) tea.Cmd {
	if err := a.controller.BeginEdit(id); err != nil {
		a.screen = screenMenu
		a.setStatus("Cannot edit %q: %v", id, err)
		return nil
	}
	a.screen = screenLoading
	a.loadingID = id
	a.statusMsg = ""
	ctx := a.ctx
	return func() tea.Msg {
		return hydrationDoneMsg{id: id, err: a.controller.Hydrate(ctx)}
	}
}

func (a *App) resume(id string) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		return resumedMsg{id: id, err: a.controller.Resume(ctx, id)}
	}
}

func (a *App) handleHydration(msg hydrationDoneMsg) tea.Cmd {
	if errors.Is(msg.err, wizard.ErrNoSession) {
		// The session was closed while loading; drop the late result.
		return nil
	}
	if msg.err != nil {
		a.screen = screenMenu
		a.setStatus("Could not load trip %s: %v", msg.id, msg.err)
		return nil
	}
	return a.enterWizard(fmt.Sprintf("Loaded trip %s", msg.id))
}

func (a *App) enterWizard(status string) tea.Cmd {
	a.screen = screenWizard
	a.statusMsg = status
	a.composer.Reset()
	a.search.Cancel()
	return a.enterStep()
}

// returnToMainMenu closes the session and shows the menu.
func (a *App) returnToMainMenu(status string) {
	a.search.Cancel()
	a.controller.Close(a.ctx)
	a.screen = screenMenu
	a.statusMsg = status
}

// View renders the current state to a string.
func (a *App) View() string {
	var content string
	switch a.screen {
	case screenMenu:
		content = a.mainMenu.View()
	case screenPrompt:
		content = a.renderPrompt()
	case screenLoading:
		content = lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(fmt.Sprintf("Loading trip %s…", a.loadingID)),
			hintStyle.Render("Esc → cancel"),
		)
	case screenWizard:
		content = a.renderWizard()
	case screenHandoff:
		content = a.renderHandoff()
	}
	sections := []string{headerStyle.Render("⛰ TRAILHEAD"), boxStyle.Render(content)}
	if panel := a.renderLogPanel(); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, footerStyle.Render(a.statusMsg))
	return strings.Join(sections, "\n")
}

func (a *App) renderPrompt() string {
	label := "Trip id to edit"
	if a.promptKind == promptResume {
		label = "Draft id to resume"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(label),
		a.prompt.View(),
		hintStyle.Render("Enter → continue    Esc → back"),
	)
}

func (a *App) renderHandoff() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		readyStyle.Render("Draft handed off"),
		fmt.Sprintf("Trip id: %s", a.handoffID),
		hintStyle.Render("The preview stage picks the draft up from here."),
		hintStyle.Render("Enter → main menu    q → quit"),
	)
}

func (a *App) renderLogPanel() string {
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := titleStyle.Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := hintStyle.Render(strings.Join(lines, "\n"))
	return boxStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}
