package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/trailhead/internal/draft"
)

const dateLayout = "2006-01-02"

// formField binds one text input to one Identity field.
type formField struct {
	label       string
	placeholder string
	read        func(draft.TripDraft) string
	parse       func(string) (draft.IdentityPatch, error)
}

type basicForm struct {
	app    *App
	fields []formField
	inputs []textinput.Model
	errs   []string
	focus  int
}

func newBasicForm(app *App) *basicForm {
	f := &basicForm{app: app, fields: identityFields()}
	f.inputs = make([]textinput.Model, len(f.fields))
	f.errs = make([]string, len(f.fields))
	for i, field := range f.fields {
		f.inputs[i] = newInput(field.placeholder, 512)
	}
	return f
}

func identityFields() []formField {
	return []formField{
		{
			label: "Location id", placeholder: "backend location reference",
			read: func(d draft.TripDraft) string { return d.LocationID },
			parse: func(v string) (draft.IdentityPatch, error) {
				v = strings.TrimSpace(v)
				return draft.IdentityPatch{LocationID: &v}, nil
			},
		},
		{
			label: "Title", placeholder: "Caribbean coast in five days",
			read: func(d draft.TripDraft) string { return d.Title },
			parse: func(v string) (draft.IdentityPatch, error) {
				return draft.IdentityPatch{Title: &v}, nil
			},
		},
		{
			label: "Description", placeholder: "rich text allowed",
			read: func(d draft.TripDraft) string { return d.Description },
			parse: func(v string) (draft.IdentityPatch, error) {
				return draft.IdentityPatch{Description: &v}, nil
			},
		},
		{
			label: "Category", placeholder: joinCategories(),
			read: func(d draft.TripDraft) string { return string(d.Category) },
			parse: func(v string) (draft.IdentityPatch, error) {
				cat := draft.NormalizeCategory(v)
				if !cat.Known() {
					return draft.IdentityPatch{}, fmt.Errorf("pick one of %s", joinCategories())
				}
				return draft.IdentityPatch{Category: &cat}, nil
			},
		},
		{
			label: "Destination region", placeholder: "seeded by the first route point",
			read: func(d draft.TripDraft) string { return d.DestinationRegion },
			parse: func(v string) (draft.IdentityPatch, error) {
				v = strings.TrimSpace(v)
				return draft.IdentityPatch{DestinationRegion: &v}, nil
			},
		},
		{
			label: "Start date", placeholder: dateLayout,
			read:  func(d draft.TripDraft) string { return d.StartDate },
			parse: dateParser(func(p *draft.IdentityPatch, v *string) { p.StartDate = v }),
		},
		{
			label: "End date", placeholder: dateLayout,
			read:  func(d draft.TripDraft) string { return d.EndDate },
			parse: dateParser(func(p *draft.IdentityPatch, v *string) { p.EndDate = v }),
		},
		{
			label: "Days", placeholder: "5",
			read:  func(d draft.TripDraft) string { return intText(d.DurationDays) },
			parse: intParser(func(p *draft.IdentityPatch, v *int) { p.DurationDays = v }),
		},
		{
			label: "Nights", placeholder: "4",
			read:  func(d draft.TripDraft) string { return intText(d.DurationNights) },
			parse: intParser(func(p *draft.IdentityPatch, v *int) { p.DurationNights = v }),
		},
		{
			label: "Price", placeholder: "1500",
			read: func(d draft.TripDraft) string {
				if d.Price == 0 {
					return ""
				}
				return strconv.FormatFloat(d.Price, 'f', -1, 64)
			},
			parse: func(v string) (draft.IdentityPatch, error) {
				v = strings.TrimSpace(v)
				price := 0.0
				if v != "" {
					parsed, err := strconv.ParseFloat(v, 64)
					if err != nil {
						return draft.IdentityPatch{}, fmt.Errorf("not a number")
					}
					price = parsed
				}
				return draft.IdentityPatch{Price: &price}, nil
			},
		},
		{
			label: "Currency", placeholder: "COP",
			read: func(d draft.TripDraft) string { return d.Currency },
			parse: func(v string) (draft.IdentityPatch, error) {
				v = strings.ToUpper(strings.TrimSpace(v))
				return draft.IdentityPatch{Currency: &v}, nil
			},
		},
		{
			label: "Price type", placeholder: "adults | children | both",
			read: func(d draft.TripDraft) string { return string(d.PriceType) },
			parse: func(v string) (draft.IdentityPatch, error) {
				pt := draft.NormalizePriceType(v)
				if !pt.Known() {
					return draft.IdentityPatch{}, fmt.Errorf("pick adults, children or both")
				}
				return draft.IdentityPatch{PriceType: &pt}, nil
			},
		},
		{
			label: "Max persons", placeholder: "12",
			read:  func(d draft.TripDraft) string { return intText(d.MaxPersons) },
			parse: intParser(func(p *draft.IdentityPatch, v *int) { p.MaxPersons = v }),
		},
	}
}

func joinCategories() string {
	names := make([]string, len(draft.Categories))
	for i, c := range draft.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, " | ")
}

func intText(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func intParser(set func(*draft.IdentityPatch, *int)) func(string) (draft.IdentityPatch, error) {
	return func(v string) (draft.IdentityPatch, error) {
		v = strings.TrimSpace(v)
		n := 0
		if v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return draft.IdentityPatch{}, fmt.Errorf("not a whole number")
			}
			n = parsed
		}
		var patch draft.IdentityPatch
		set(&patch, &n)
		return patch, nil
	}
}

func dateParser(set func(*draft.IdentityPatch, *string)) func(string) (draft.IdentityPatch, error) {
	return func(v string) (draft.IdentityPatch, error) {
		v = strings.TrimSpace(v)
		if v != "" {
			if _, err := time.Parse(dateLayout, v); err != nil {
				return draft.IdentityPatch{}, fmt.Errorf("use %s", dateLayout)
			}
		}
		var patch draft.IdentityPatch
		set(&patch, &v)
		return patch, nil
	}
}

func (f *basicForm) load() tea.Cmd {
	current := f.app.controller.Draft()
	for i, field := range f.fields {
		f.inputs[i].SetValue(field.read(current))
		f.inputs[i].Blur()
		f.errs[i] = ""
	}
	f.focus = 0
	f.inputs[0].Focus()
	return nil
}

func (f *basicForm) capturing() bool { return false }

func (f *basicForm) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down", "enter":
		f.moveFocus(1)
		return nil
	case "shift+tab", "up":
		f.moveFocus(-1)
		return nil
	}
	before := f.inputs[f.focus].Value()
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	if f.inputs[f.focus].Value() != before {
		f.commit(f.focus)
	}
	return cmd
}

func (f *basicForm) moveFocus(delta int) {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// commit writes field i to the draft. Values that do not parse stay in the
// input with an error and leave the draft unchanged.
func (f *basicForm) commit(i int) {
	patch, err := f.fields[i].parse(f.inputs[i].Value())
	if err != nil {
		f.errs[i] = err.Error()
		return
	}
	f.errs[i] = ""
	f.app.composer.Store().SetIdentity(patch)
}

func (f *basicForm) view(int) string {
	var rows []string
	for i, field := range f.fields {
		label := fmt.Sprintf("%-19s", field.label)
		if i == f.focus {
			label = activeStyle.Render(label)
		} else {
			label = mutedStyle.Render(label)
		}
		row := cursorMark(i == f.focus) + " " + label + " " + f.inputs[i].View()
		if f.errs[i] != "" {
			row += " " + blockStyle.Render(f.errs[i])
		}
		rows = append(rows, row)
	}
	return titleStyle.Render("Basic information") + "\n" + strings.Join(rows, "\n")
}

func (f *basicForm) hints() string {
	return "Tab/↓ → next field    Shift+Tab/↑ → previous field"
}
