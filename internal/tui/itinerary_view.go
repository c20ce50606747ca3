package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/trailhead/internal/composer"
	"github.com/kingrea/trailhead/internal/draft"
	"github.com/kingrea/trailhead/internal/geo"
	"github.com/kingrea/trailhead/internal/validate"
	"github.com/kingrea/trailhead/internal/wizard"
)

type panelFocus int

const (
	focusSearch panelFocus = iota
	focusPoints
	focusDays
)

type editKind int

const (
	editNone editKind = iota
	editRenamePoint
	editRenameDay
	editAddActivity
)

type searchDebounceMsg struct {
	ticket composer.Ticket
}

type suggestionsMsg struct {
	ticket composer.Ticket
	items  []geo.Suggestion
}

type pointAddedMsg struct {
	point draft.RoutePoint
	err   error
}

type routeResolvedMsg struct {
	gen  uint64
	path geo.Path
}

// itineraryView hosts the route panel (search, pin drop, point list, route
// summary) and the day/activity editor.
type itineraryView struct {
	app *App

	focus       panelFocus
	search      textinput.Model
	suggestions []geo.Suggestion
	suggestion  int

	point    int
	day      int
	activity int

	edit       textinput.Model
	editing    editKind
	editTarget string

	routeGen uint64
	path     geo.Path
	resolved bool
}

func newItineraryView(app *App) *itineraryView {
	return &itineraryView{
		app:    app,
		search: newInput("search a place or type lat,lng", 128),
		edit:   newInput("", 256),
	}
}

func (v *itineraryView) store() *draft.Store {
	return v.app.composer.Store()
}

func (v *itineraryView) load() tea.Cmd {
	v.focus = focusSearch
	v.search.SetValue("")
	v.search.Focus()
	v.suggestions = nil
	v.suggestion = 0
	v.point, v.day, v.activity = 0, 0, 0
	v.cancelEdit()
	return v.resolveRoute()
}

func (v *itineraryView) capturing() bool {
	return v.editing != editNone
}

// resolveRoute recomputes the path in the background. Only the newest
// request's result is kept.
func (v *itineraryView) resolveRoute() tea.Cmd {
	v.routeGen++
	gen := v.routeGen
	ctx := v.app.ctx
	comp := v.app.composer
	return func() tea.Msg {
		return routeResolvedMsg{gen: gen, path: comp.ResolveCurrentRoute(ctx)}
	}
}

// handleAsync applies results of commands started by this view.
func (v *itineraryView) handleAsync(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case searchDebounceMsg:
		if !v.app.search.Current(msg.ticket) {
			return nil
		}
		session := v.app.search
		ctx := v.app.ctx
		return func() tea.Msg {
			return suggestionsMsg{ticket: msg.ticket, items: session.Lookup(ctx, msg.ticket)}
		}
	case suggestionsMsg:
		if !v.app.search.Current(msg.ticket) {
			return nil
		}
		v.suggestions = msg.items
		v.suggestion = 0
		return nil
	case pointAddedMsg:
		return v.handlePointAdded(msg)
	case routeResolvedMsg:
		if msg.gen == v.routeGen {
			v.path = msg.path
			v.resolved = true
		}
		return nil
	}
	return nil
}

// handleTap adds a map tap as a route point, labelled by reverse geocoding.
func (v *itineraryView) handleTap(msg TapMsg) tea.Cmd {
	if v.app.screen != screenWizard || v.app.controller.Step() != validate.StepItinerary {
		v.app.statusMsg = "Map tap ignored: open the route step first"
		return nil
	}
	if v.app.controller.State() != wizard.StateActive {
		v.app.setStatus("Map tap ignored: %v", wizard.ErrNotInteractive)
		return nil
	}
	return v.addTapped(msg.Lat, msg.Lng)
}

func (v *itineraryView) addTapped(lat, lng float64) tea.Cmd {
	if v.app.composer.LookupInFlight() {
		v.app.statusMsg = "Still labelling the previous point"
		return nil
	}
	v.app.setStatus("Looking up %.5f,%.5f…", lat, lng)
	comp := v.app.composer
	ctx := v.app.ctx
	return func() tea.Msg {
		point, err := comp.AddTappedPoint(ctx, lat, lng)
		return pointAddedMsg{point: point, err: err}
	}
}

func (v *itineraryView) handlePointAdded(msg pointAddedMsg) tea.Cmd {
	switch {
	case errors.Is(msg.err, composer.ErrDuplicatePoint):
		v.app.setStatus("%s is already on the route", msg.point.Name)
		return nil
	case errors.Is(msg.err, composer.ErrLookupInFlight):
		v.app.statusMsg = "Still labelling the previous point"
		return nil
	case msg.err != nil:
		v.app.setStatus("Could not add point: %v", msg.err)
		return nil
	}
	v.app.setStatus("Added %s", msg.point.Name)
	v.point = max(0, msg.point.Order-1)
	return v.resolveRoute()
}

func (v *itineraryView) update(msg tea.KeyMsg) tea.Cmd {
	if v.editing != editNone {
		return v.updateEdit(msg)
	}
	switch msg.String() {
	case "tab":
		v.setFocus((v.focus + 1) % 3)
		return nil
	case "shift+tab":
		v.setFocus((v.focus + 2) % 3)
		return nil
	}
	switch v.focus {
	case focusPoints:
		return v.updatePoints(msg)
	case focusDays:
		return v.updateDays(msg)
	default:
		return v.updateSearch(msg)
	}
}

func (v *itineraryView) setFocus(f panelFocus) {
	v.focus = f
	if f == focusSearch {
		v.search.Focus()
	} else {
		v.search.Blur()
	}
}

func (v *itineraryView) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up":
		if v.suggestion > 0 {
			v.suggestion--
		}
		return nil
	case "down":
		if v.suggestion < len(v.suggestions)-1 {
			v.suggestion++
		}
		return nil
	case "enter":
		return v.submitSearch()
	}
	before := v.search.Value()
	var cmd tea.Cmd
	v.search, cmd = v.search.Update(msg)
	if v.search.Value() == before {
		return cmd
	}
	v.suggestions = nil
	v.suggestion = 0
	ticket := v.app.search.Begin(v.search.Value())
	debounce := tea.Tick(v.app.debounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{ticket: ticket}
	})
	return tea.Batch(cmd, debounce)
}

func (v *itineraryView) submitSearch() tea.Cmd {
	if lat, lng, ok := parseLatLng(v.search.Value()); ok {
		v.app.search.Cancel()
		v.search.SetValue("")
		v.suggestions = nil
		return v.addTapped(lat, lng)
	}
	if len(v.suggestions) == 0 {
		v.app.statusMsg = "Pick a suggestion or type lat,lng"
		return nil
	}
	chosen := v.suggestions[v.suggestion]
	v.app.search.Cancel()
	v.search.SetValue("")
	v.suggestions = nil
	v.app.setStatus("Resolving %s…", chosen.Label)
	comp := v.app.composer
	ctx := v.app.ctx
	return func() tea.Msg {
		point, err := comp.AddSearchResult(ctx, chosen.PlaceRef)
		return pointAddedMsg{point: point, err: err}
	}
}

// parseLatLng reads a "lat,lng" pin drop.
func parseLatLng(text string) (float64, float64, bool) {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil || !geo.ValidCoordinate(lat, lng) {
		return 0, 0, false
	}
	return lat, lng, true
}

func (v *itineraryView) updatePoints(msg tea.KeyMsg) tea.Cmd {
	points := v.store().Get().RoutePoints
	if len(points) == 0 {
		return nil
	}
	v.point = clampIndex(v.point, len(points))
	selected := points[v.point]
	switch msg.String() {
	case "up", "k":
		v.point = clampIndex(v.point-1, len(points))
	case "down", "j":
		v.point = clampIndex(v.point+1, len(points))
	case "x", "delete":
		if err := v.app.composer.RemovePoint(selected.ID); err != nil {
			v.app.setStatus("Remove failed: %v", err)
			return nil
		}
		v.point = clampIndex(v.point, len(points)-1)
		v.app.setStatus("Removed %s", selected.Name)
		return v.resolveRoute()
	case "K", "shift+up":
		return v.movePoint(selected, v.point-1)
	case "J", "shift+down":
		return v.movePoint(selected, v.point+1)
	case "r":
		v.startEdit(editRenamePoint, selected.ID, selected.Name, "new name")
	case "a":
		return v.scheduleAtPoint(selected)
	}
	return nil
}

func (v *itineraryView) movePoint(p draft.RoutePoint, to int) tea.Cmd {
	if err := v.app.composer.MovePoint(p.ID, to); err != nil {
		return nil
	}
	v.point = to
	return v.resolveRoute()
}

func (v *itineraryView) scheduleAtPoint(p draft.RoutePoint) tea.Cmd {
	days := v.store().Get().Itinerary
	if len(days) == 0 {
		v.app.statusMsg = "Add a day first"
		return nil
	}
	day := clampIndex(v.day, len(days)) + 1
	if _, err := v.app.composer.AddActivityAtPoint(day, p.ID, draft.ActivityPOI); err != nil {
		v.app.setStatus("Could not schedule %s: %v", p.Name, err)
		return nil
	}
	v.app.setStatus("%s scheduled on day %d", p.Name, day)
	return nil
}

func (v *itineraryView) updateDays(msg tea.KeyMsg) tea.Cmd {
	comp := v.app.composer
	current := v.store().Get()
	switch msg.String() {
	case "n":
		day := comp.AddDay("", "")
		v.day = day.Day - 1
		v.activity = 0
		return nil
	case "e":
		added := comp.EnsureDays(current.DurationDays)
		v.app.setStatus("%d day(s) added to match a %d-day trip", added, current.DurationDays)
		return nil
	}
	days := current.Itinerary
	if len(days) == 0 {
		return nil
	}
	v.day = clampIndex(v.day, len(days))
	number := v.day + 1
	acts := days[v.day].Activities
	switch msg.String() {
	case "up", "k":
		v.day = clampIndex(v.day-1, len(days))
		v.activity = 0
	case "down", "j":
		v.day = clampIndex(v.day+1, len(days))
		v.activity = 0
	case "i":
		if _, err := comp.InsertDay(number, "", ""); err == nil {
			v.activity = 0
		}
	case "x", "delete":
		if err := comp.RemoveDay(number); err == nil {
			v.day = clampIndex(v.day, len(days)-1)
			v.activity = 0
		}
	case "K", "shift+up":
		if number > 1 && comp.MoveDay(number, number-1) == nil {
			v.day--
		}
	case "J", "shift+down":
		if number < len(days) && comp.MoveDay(number, number+1) == nil {
			v.day++
		}
	case "u":
		value := days[v.day].Title
		if days[v.day].Subtitle != "" {
			value += " | " + days[v.day].Subtitle
		}
		v.startEdit(editRenameDay, strconv.Itoa(number), value, "title | subtitle")
	case "t":
		v.startEdit(editAddActivity, strconv.Itoa(number), "", "type: title (e.g. meal: Lunch at the market)")
	case "]":
		v.activity = clampIndex(v.activity+1, len(acts))
	case "[":
		v.activity = clampIndex(v.activity-1, len(acts))
	case "-":
		if len(acts) > 0 && comp.RemoveActivity(number, clampIndex(v.activity, len(acts))+1) == nil {
			v.activity = clampIndex(v.activity, len(acts)-1)
		}
	case "{":
		if v.activity > 0 && comp.MoveActivity(number, v.activity+1, v.activity) == nil {
			v.activity--
		}
	case "}":
		if v.activity < len(acts)-1 && comp.MoveActivity(number, v.activity+1, v.activity+2) == nil {
			v.activity++
		}
	}
	return nil
}

func (v *itineraryView) startEdit(kind editKind, target, value, placeholder string) {
	v.editing = kind
	v.editTarget = target
	v.edit.SetValue(value)
	v.edit.Placeholder = placeholder
	v.edit.CursorEnd()
	v.edit.Focus()
	v.search.Blur()
}

func (v *itineraryView) cancelEdit() {
	v.editing = editNone
	v.editTarget = ""
	v.edit.Blur()
	v.edit.SetValue("")
	if v.focus == focusSearch {
		v.search.Focus()
	}
}

func (v *itineraryView) updateEdit(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.cancelEdit()
		return nil
	case "enter":
		return v.commitEdit()
	}
	var cmd tea.Cmd
	v.edit, cmd = v.edit.Update(msg)
	return cmd
}

func (v *itineraryView) commitEdit() tea.Cmd {
	comp := v.app.composer
	value := strings.TrimSpace(v.edit.Value())
	var (
		err  error
		cmd  tea.Cmd
		done string
	)
	switch v.editing {
	case editRenamePoint:
		err = comp.RenamePoint(v.editTarget, value)
		if err == nil {
			done = "Point renamed"
			cmd = v.resolveRoute()
		}
	case editRenameDay:
		number, _ := strconv.Atoi(v.editTarget)
		title, subtitle, _ := strings.Cut(value, "|")
		err = comp.UpdateDay(number, strings.TrimSpace(title), strings.TrimSpace(subtitle))
		done = "Day updated"
	case editAddActivity:
		number, _ := strconv.Atoi(v.editTarget)
		var act draft.Activity
		act, err = comp.AddActivity(number, parseActivity(value))
		if err == nil {
			v.activity = act.Order - 1
			done = fmt.Sprintf("%s added to day %d", act.Title, number)
		}
	}
	if err != nil {
		v.app.setStatus("Not saved: %v", err)
		return nil
	}
	v.app.statusMsg = done
	v.cancelEdit()
	return cmd
}

// parseActivity reads "type: title". Without a known type prefix the whole
// text is the title of a generic activity.
func parseActivity(text string) draft.Activity {
	if kind, title, ok := strings.Cut(text, ":"); ok {
		t := draft.NormalizeActivityType(kind)
		if t.Known() {
			return draft.Activity{Type: t, Title: strings.TrimSpace(title)}
		}
	}
	return draft.Activity{Type: draft.ActivityGeneric, Title: strings.TrimSpace(text)}
}

func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (v *itineraryView) view(width int) string {
	current := v.store().Get()
	colWidth := max(30, (width-2)/2)
	left := lipgloss.NewStyle().Width(colWidth).Render(v.renderRoutePanel(current))
	right := lipgloss.NewStyle().Width(colWidth).Render(v.renderDays(current))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	if v.editing != editNone {
		body += "\n\n" + titleStyle.Render(v.editTitle()) + "\n" + v.edit.View()
	}
	return body
}

func (v *itineraryView) editTitle() string {
	switch v.editing {
	case editRenamePoint:
		return "Rename point"
	case editRenameDay:
		return "Edit day " + v.editTarget
	case editAddActivity:
		return "New activity for day " + v.editTarget
	}
	return ""
}

func (v *itineraryView) panelTitle(label string, f panelFocus) string {
	if v.focus == f {
		return activeStyle.Render("▸ " + label)
	}
	return titleStyle.Render("  " + label)
}

func (v *itineraryView) renderRoutePanel(d draft.TripDraft) string {
	lines := []string{v.panelTitle("Search", focusSearch), v.search.View()}
	for i, s := range v.suggestions {
		lines = append(lines, cursorMark(i == v.suggestion)+" "+s.Label)
	}
	lines = append(lines, "", v.panelTitle(fmt.Sprintf("Route (%d points)", len(d.RoutePoints)), focusPoints))
	if len(d.RoutePoints) == 0 {
		lines = append(lines, mutedStyle.Render("  no points yet: search, type lat,lng or tap the map"))
	}
	for i, p := range d.RoutePoints {
		selected := v.focus == focusPoints && i == v.point
		lines = append(lines, fmt.Sprintf("%s %d. %s %s", cursorMark(selected), p.Order, p.Name,
			mutedStyle.Render(fmt.Sprintf("(%.4f, %.4f)", p.Lat, p.Lng))))
	}
	lines = append(lines, "", v.routeSummary(len(d.RoutePoints)))
	if url := v.app.bridgeURL; url != "" {
		lines = append(lines, mutedStyle.Render("map: "+url+"/route"))
	}
	return strings.Join(lines, "\n")
}

func (v *itineraryView) routeSummary(points int) string {
	if points < 2 {
		return mutedStyle.Render("Add two points to draw a route")
	}
	if !v.resolved || v.path.Empty() {
		return mutedStyle.Render("Resolving route…")
	}
	summary := fmt.Sprintf("%.1f km", v.path.DistanceKm)
	if v.path.DurationMinutes > 0 {
		summary += fmt.Sprintf(" · ~%s", formatMinutes(v.path.DurationMinutes))
	}
	if v.path.Source == geo.SourceStraightLine {
		return warnStyle.Render(summary + " · straight line (routing unavailable)")
	}
	return readyStyle.Render(summary + " · road route")
}

func formatMinutes(m float64) string {
	total := int(m + 0.5)
	if total < 60 {
		return fmt.Sprintf("%d min", total)
	}
	return fmt.Sprintf("%dh%02d", total/60, total%60)
}

func (v *itineraryView) renderDays(d draft.TripDraft) string {
	lines := []string{v.panelTitle(fmt.Sprintf("Itinerary (%d days)", len(d.Itinerary)), focusDays)}
	if len(d.Itinerary) == 0 {
		lines = append(lines, mutedStyle.Render("  no days yet: n adds one, e matches the trip length"))
	}
	for i, day := range d.Itinerary {
		selected := v.focus == focusDays && i == v.day
		head := fmt.Sprintf("%s Day %d · %s", cursorMark(selected), day.Day, day.Title)
		if day.Subtitle != "" {
			head += mutedStyle.Render(" · " + day.Subtitle)
		}
		if len(day.Activities) == 0 {
			head += " " + warnStyle.Render("(no activities)")
		}
		lines = append(lines, head)
		for j, act := range day.Activities {
			marker := "   "
			if selected && j == v.activity {
				marker = "  " + activeStyle.Render("•")
			}
			line := fmt.Sprintf("%s %d. [%s] %s", marker, act.Order, act.Type, act.Title)
			if act.Time != "" {
				line += mutedStyle.Render(" @ " + act.Time)
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (v *itineraryView) hints() string {
	switch v.focus {
	case focusPoints:
		return "Tab → panel    ↑/↓ select    x remove    r rename    K/J move    a schedule on selected day"
	case focusDays:
		return "Tab → panel    ↑/↓ day    n add    i insert    x remove    u edit    K/J move    e fill days    t activity    [ ] select    - remove    { } move"
	default:
		return "Tab → panel    type to search    ↑/↓ pick    Enter add suggestion or lat,lng pin"
	}
}
