package composer

import (
	"errors"
	"testing"

	"github.com/kingrea/trailhead/internal/draft"
)

func assertContiguousDays(t *testing.T, days []draft.Day) {
	t.Helper()
	for i, d := range days {
		if d.Day != i+1 || d.Order != i+1 {
			t.Fatalf("day %d numbered day=%d order=%d", i, d.Day, d.Order)
		}
		for j, a := range d.Activities {
			if a.Order != j+1 {
				t.Fatalf("day %d activity %d has order %d", i+1, j, a.Order)
			}
		}
	}
}

func TestItineraryMutationsStayContiguous(t *testing.T) {
	c, store := newComposer(nil)
	c.AddDay("Arrival", "")
	c.AddDay("", "")
	c.AddDay("Departure", "")
	assertContiguousDays(t, store.Get().Itinerary)

	if _, err := c.InsertDay(2, "Excursion", "optional"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	assertContiguousDays(t, store.Get().Itinerary)

	for _, title := range []string{"Breakfast", "Hike", "Dinner"} {
		if _, err := c.AddActivity(2, draft.Activity{Title: title, Type: "MEAL"}); err != nil {
			t.Fatalf("add activity: %v", err)
		}
	}
	if err := c.MoveActivity(2, 3, 1); err != nil {
		t.Fatalf("move activity: %v", err)
	}
	if err := c.RemoveActivity(2, 2); err != nil {
		t.Fatalf("remove activity: %v", err)
	}
	assertContiguousDays(t, store.Get().Itinerary)

	if err := c.MoveDay(1, 4); err != nil {
		t.Fatalf("move day: %v", err)
	}
	if err := c.RemoveDay(2); err != nil {
		t.Fatalf("remove day: %v", err)
	}
	days := store.Get().Itinerary
	assertContiguousDays(t, days)
	if len(days) != 3 {
		t.Fatalf("days = %d, want 3", len(days))
	}
	titles := []string{days[0].Title, days[1].Title, days[2].Title}
	if titles[0] != "Excursion" || titles[1] != "Departure" || titles[2] != "Arrival" {
		t.Fatalf("titles = %v", titles)
	}
	acts := days[0].Activities
	if len(acts) != 2 || acts[0].Title != "Dinner" || acts[1].Title != "Hike" {
		t.Fatalf("activities = %+v", acts)
	}
	if acts[0].Type != draft.ActivityMeal {
		t.Fatalf("activity type not normalized: %q", acts[0].Type)
	}
}

func TestDefaultDayTitle(t *testing.T) {
	c, _ := newComposer(nil)
	c.AddDay("First", "")
	d := c.AddDay("  ", "")
	if d.Title != "Day 2" || d.Day != 2 {
		t.Fatalf("day = %+v", d)
	}
}

func TestEnsureDaysNeverRemoves(t *testing.T) {
	c, store := newComposer(nil)
	if added := c.EnsureDays(3); added != 3 {
		t.Fatalf("added = %d", added)
	}
	if added := c.EnsureDays(1); added != 0 {
		t.Fatalf("EnsureDays must not shrink, added = %d", added)
	}
	days := store.Get().Itinerary
	if len(days) != 3 || days[2].Title != "Day 3" {
		t.Fatalf("days = %+v", days)
	}
	assertContiguousDays(t, days)
}

func TestItineraryErrors(t *testing.T) {
	c, _ := newComposer(nil)
	if _, err := c.AddActivity(1, draft.Activity{Title: "x"}); !errors.Is(err, ErrDayNotFound) {
		t.Fatalf("expected ErrDayNotFound, got %v", err)
	}
	c.AddDay("One", "")
	if _, err := c.AddActivity(1, draft.Activity{Title: " "}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := c.RemoveActivity(1, 1); !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("expected ErrActivityNotFound, got %v", err)
	}
	if _, err := c.InsertDay(5, "far", ""); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := c.UpdateDay(2, "x", ""); !errors.Is(err, ErrDayNotFound) {
		t.Fatalf("expected ErrDayNotFound, got %v", err)
	}
}

func TestUpdateDayAndActivity(t *testing.T) {
	c, store := newComposer(nil)
	c.AddDay("One", "")
	if _, err := c.AddActivity(1, draft.Activity{Title: "Walk"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.UpdateDay(1, "Arrival", "Check-in"); err != nil {
		t.Fatalf("update day: %v", err)
	}
	if err := c.UpdateActivity(1, 1, draft.Activity{Title: "Hotel", Type: "Accommodation"}); err != nil {
		t.Fatalf("update activity: %v", err)
	}
	day := store.Get().Itinerary[0]
	if day.Title != "Arrival" || day.Subtitle != "Check-in" {
		t.Fatalf("day = %+v", day)
	}
	if day.Activities[0].Title != "Hotel" || day.Activities[0].Type != draft.ActivityAccommodation || day.Activities[0].Order != 1 {
		t.Fatalf("activity = %+v", day.Activities[0])
	}
}

func TestAddActivityAtPoint(t *testing.T) {
	c, _ := newComposer(nil)
	p, _ := c.AddPoint(6.25, -75.56, "Medellín")
	c.AddDay("", "")
	act, err := c.AddActivityAtPoint(1, p.ID, "")
	if err != nil {
		t.Fatalf("add at point: %v", err)
	}
	if act.Type != draft.ActivityPOI || act.Title != "Medellín" || act.POIID != p.ID {
		t.Fatalf("activity = %+v", act)
	}
	if act.Lat == nil || *act.Lat != 6.25 {
		t.Fatalf("coordinate not copied: %+v", act)
	}
	if _, err := c.AddActivityAtPoint(1, "nope", ""); !errors.Is(err, ErrPointNotFound) {
		t.Fatalf("expected ErrPointNotFound, got %v", err)
	}
}
