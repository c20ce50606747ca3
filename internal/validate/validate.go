// Package validate decides whether a wizard step is complete enough to
// advance. Every check inspects only the in-memory draft.
package validate

import (
	"strconv"
	"strings"

	"github.com/kingrea/trailhead/internal/draft"
)

// Step names a wizard step.
type Step string

const (
	StepBasic     Step = "basic"
	StepItinerary Step = "itinerary"
	StepGallery   Step = "gallery"
)

// Steps is the wizard's fixed step sequence.
var Steps = []Step{StepBasic, StepItinerary, StepGallery}

// Title is the human label for a step.
func (s Step) Title() string {
	switch s {
	case StepBasic:
		return "Basic information"
	case StepItinerary:
		return "Route & itinerary"
	case StepGallery:
		return "Gallery"
	default:
		return string(s)
	}
}

// IsStepComplete reports whether step may be left forward. Unknown steps are
// never complete.
func IsStepComplete(step Step, d draft.TripDraft) bool {
	switch step {
	case StepBasic, StepItinerary, StepGallery:
		return len(Missing(step, d)) == 0
	default:
		return false
	}
}

// Missing lists what still blocks step, in display order. It is empty iff
// the step is complete.
func Missing(step Step, d draft.TripDraft) []string {
	switch step {
	case StepBasic:
		return missingBasic(d)
	case StepItinerary:
		return missingItinerary(d)
	case StepGallery:
		if len(d.GalleryImages) == 0 {
			return []string{"add at least one gallery image"}
		}
		return nil
	default:
		return []string{"unknown step " + string(step)}
	}
}

func missingBasic(d draft.TripDraft) []string {
	var out []string
	if strings.TrimSpace(d.LocationID) == "" {
		out = append(out, "location id is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		out = append(out, "title is required")
	}
	if StripMarkup(d.Description) == "" {
		out = append(out, "description is required")
	}
	if strings.TrimSpace(d.StartDate) == "" {
		out = append(out, "start date is required")
	}
	if strings.TrimSpace(d.EndDate) == "" {
		out = append(out, "end date is required")
	}
	if d.DurationDays <= 0 {
		out = append(out, "duration in days must be greater than 0")
	}
	if d.DurationNights < 0 {
		out = append(out, "duration in nights cannot be negative")
	}
	if d.Price <= 0 {
		out = append(out, "price must be greater than 0")
	}
	if d.MaxPersons <= 0 {
		out = append(out, "maximum persons must be greater than 0")
	}
	return out
}

func missingItinerary(d draft.TripDraft) []string {
	if len(d.Itinerary) == 0 {
		return []string{"add at least one itinerary day"}
	}
	var out []string
	for _, day := range d.Itinerary {
		if len(day.Activities) == 0 {
			out = append(out, "day "+strconv.Itoa(day.Day)+" has no activities")
		}
	}
	return out
}
