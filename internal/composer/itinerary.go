package composer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/trailhead/internal/draft"
)

var (
	ErrDayNotFound      = errors.New("composer: itinerary day not found")
	ErrActivityNotFound = errors.New("composer: activity not found")
)

// Days and activities are addressed by their 1-based day/order number. Every
// operation rewrites day, order and activity order contiguously from 1.

// AddDay appends a day. A blank title becomes "Day N".
func (c *Composer) AddDay(title, subtitle string) draft.Day {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	day := newDay(len(days)+1, title, subtitle)
	days = draft.RenumberDays(append(days, day))
	c.store.SetItinerary(days)
	return days[len(days)-1]
}

// InsertDay inserts a day so that it becomes day number at.
func (c *Composer) InsertDay(at int, title, subtitle string) (draft.Day, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if at < 1 || at > len(days)+1 {
		return draft.Day{}, ErrIndexOutOfRange
	}
	day := newDay(at, title, subtitle)
	days = append(days[:at-1], append([]draft.Day{day}, days[at-1:]...)...)
	days = draft.RenumberDays(days)
	c.store.SetItinerary(days)
	return days[at-1], nil
}

// RemoveDay deletes a day with its activities.
func (c *Composer) RemoveDay(day int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if day < 1 || day > len(days) {
		return ErrDayNotFound
	}
	days = append(days[:day-1], days[day:]...)
	if len(days) == 0 {
		days = nil
	}
	c.store.SetItinerary(draft.RenumberDays(days))
	return nil
}

// MoveDay moves day from to position to.
func (c *Composer) MoveDay(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if from < 1 || from > len(days) {
		return ErrDayNotFound
	}
	if to < 1 || to > len(days) {
		return ErrIndexOutOfRange
	}
	c.store.SetItinerary(draft.RenumberDays(move(days, from-1, to-1)))
	return nil
}

// UpdateDay replaces a day's title and subtitle.
func (c *Composer) UpdateDay(day int, title, subtitle string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if day < 1 || day > len(days) {
		return ErrDayNotFound
	}
	updated := newDay(day, title, subtitle)
	days[day-1].Title = updated.Title
	days[day-1].Subtitle = updated.Subtitle
	c.store.SetItinerary(draft.RenumberDays(days))
	return nil
}

// EnsureDays grows the itinerary to at least n days. It never removes days.
func (c *Composer) EnsureDays(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if len(days) >= n {
		return 0
	}
	added := 0
	for len(days) < n {
		days = append(days, newDay(len(days)+1, "", ""))
		added++
	}
	c.store.SetItinerary(draft.RenumberDays(days))
	return added
}

// AddActivity appends an activity to a day.
func (c *Composer) AddActivity(day int, act draft.Activity) (draft.Activity, error) {
	act = normalizeActivity(act)
	if act.Title == "" {
		return draft.Activity{}, ErrEmptyName
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if day < 1 || day > len(days) {
		return draft.Activity{}, ErrDayNotFound
	}
	acts := draft.RenumberActivities(append(days[day-1].Activities, act))
	days[day-1].Activities = acts
	c.store.SetItinerary(draft.RenumberDays(days))
	return acts[len(acts)-1], nil
}

// UpdateActivity replaces the activity at order index of a day.
func (c *Composer) UpdateActivity(day, index int, act draft.Activity) error {
	act = normalizeActivity(act)
	if act.Title == "" {
		return ErrEmptyName
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if day < 1 || day > len(days) {
		return ErrDayNotFound
	}
	acts := days[day-1].Activities
	if index < 1 || index > len(acts) {
		return ErrActivityNotFound
	}
	acts[index-1] = act
	days[day-1].Activities = draft.RenumberActivities(acts)
	c.store.SetItinerary(draft.RenumberDays(days))
	return nil
}

// RemoveActivity deletes the activity at order index of a day.
func (c *Composer) RemoveActivity(day, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if day < 1 || day > len(days) {
		return ErrDayNotFound
	}
	acts := days[day-1].Activities
	if index < 1 || index > len(acts) {
		return ErrActivityNotFound
	}
	acts = append(acts[:index-1], acts[index:]...)
	days[day-1].Activities = draft.RenumberActivities(acts)
	c.store.SetItinerary(draft.RenumberDays(days))
	return nil
}

// MoveActivity reorders activities within a day.
func (c *Composer) MoveActivity(day, from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.store.Get().Itinerary
	if day < 1 || day > len(days) {
		return ErrDayNotFound
	}
	acts := days[day-1].Activities
	if from < 1 || from > len(acts) {
		return ErrActivityNotFound
	}
	if to < 1 || to > len(acts) {
		return ErrIndexOutOfRange
	}
	days[day-1].Activities = draft.RenumberActivities(move(acts, from-1, to-1))
	c.store.SetItinerary(draft.RenumberDays(days))
	return nil
}

// AddActivityAtPoint schedules a visit to a route point on a day, copying its
// name and coordinate.
func (c *Composer) AddActivityAtPoint(day int, pointID string, kind draft.ActivityType) (draft.Activity, error) {
	points := c.store.Get().RoutePoints
	idx := indexOfPoint(points, pointID)
	if idx < 0 {
		return draft.Activity{}, ErrPointNotFound
	}
	if kind == "" {
		kind = draft.ActivityPOI
	}
	point := points[idx]
	lat, lng := point.Lat, point.Lng
	return c.AddActivity(day, draft.Activity{
		Type:  kind,
		Title: point.Name,
		Lat:   &lat,
		Lng:   &lng,
		POIID: point.ID,
	})
}

func newDay(number int, title, subtitle string) draft.Day {
	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf("Day %d", number)
	}
	return draft.Day{
		Day:        number,
		Title:      title,
		Subtitle:   strings.TrimSpace(subtitle),
		Order:      number,
		Activities: []draft.Activity{},
	}
}

func normalizeActivity(act draft.Activity) draft.Activity {
	act.Type = draft.NormalizeActivityType(string(act.Type))
	act.Title = strings.TrimSpace(act.Title)
	act.Time = strings.TrimSpace(act.Time)
	act.POIID = strings.TrimSpace(act.POIID)
	if act.Lat == nil || act.Lng == nil {
		act.Lat, act.Lng = nil, nil
	}
	return act
}
