// Package draft holds the in-memory working document of a trip being
// authored and the store every wizard step reads and writes.
package draft

// Mode distinguishes a fresh authoring session from editing a persisted trip.
type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
)

// StatusDraft is the status assigned to drafts that have not been published.
const StatusDraft = "draft"

// Identity groups the scalar fields of a trip: identity, scheduling and
// commercial terms. Dates use the YYYY-MM-DD layout.
type Identity struct {
	LocationID        string    `json:"location_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Category          Category  `json:"category"`
	DestinationRegion string    `json:"destination_region"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	StartDate         string    `json:"start_date"`
	EndDate           string    `json:"end_date"`
	DurationDays      int       `json:"duration_days"`
	DurationNights    int       `json:"duration_nights"`
	Price             float64   `json:"price"`
	Currency          string    `json:"currency"`
	PriceType         PriceType `json:"price_type"`
	MaxPersons        int       `json:"max_persons"`
	Status            string    `json:"status"`
}

// RoutePoint is one ordered stop of the trip's geographic route.
type RoutePoint struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Order int     `json:"order"`
}

// Day is one entry of the day-by-day itinerary.
type Day struct {
	Day        int        `json:"day"`
	Title      string     `json:"title"`
	Subtitle   string     `json:"subtitle,omitempty"`
	Order      int        `json:"order"`
	Activities []Activity `json:"activities"`
}

// Activity is a scheduled item inside a day.
type Activity struct {
	Type        ActivityType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Time        string       `json:"time,omitempty"`
	Lat         *float64     `json:"lat,omitempty"`
	Lng         *float64     `json:"lng,omitempty"`
	POIID       string       `json:"poi_id,omitempty"`
	Order       int          `json:"order"`
}

// DiscountCode is an optional promotional code attached to the trip.
type DiscountCode struct {
	Code       string  `json:"code"`
	Percent    float64 `json:"percent"`
	ValidUntil string  `json:"valid_until,omitempty"`
}

// TripDraft is the root working document of a wizard session.
type TripDraft struct {
	ID   string `json:"id"`
	Mode Mode   `json:"mode"`
	Identity
	RoutePoints     []RoutePoint   `json:"route_points"`
	Itinerary       []Day          `json:"itinerary"`
	GalleryImages   []string       `json:"gallery_images"`
	CoverImageIndex *int           `json:"cover_image_index,omitempty"`
	DiscountCodes   []DiscountCode `json:"discount_codes,omitempty"`
	PromoterCode    string         `json:"promoter_code,omitempty"`
	PromoterName    string         `json:"promoter_name,omitempty"`
}

// New returns an empty draft with the defaults a fresh session starts from.
func New(id string, mode Mode) TripDraft {
	return TripDraft{
		ID:   id,
		Mode: mode,
		Identity: Identity{
			Category:  CategoryAdventure,
			PriceType: PriceAdults,
			Status:    StatusDraft,
		},
	}
}

// Clone returns a deep copy so callers never share slices with the store.
func (d TripDraft) Clone() TripDraft {
	out := d
	out.RoutePoints = ClonePoints(d.RoutePoints)
	out.Itinerary = CloneDays(d.Itinerary)
	if d.GalleryImages != nil {
		out.GalleryImages = append([]string(nil), d.GalleryImages...)
	}
	if d.CoverImageIndex != nil {
		idx := *d.CoverImageIndex
		out.CoverImageIndex = &idx
	}
	if d.DiscountCodes != nil {
		out.DiscountCodes = append([]DiscountCode(nil), d.DiscountCodes...)
	}
	return out
}

// ClonePoints copies a route point list.
func ClonePoints(points []RoutePoint) []RoutePoint {
	if points == nil {
		return nil
	}
	return append([]RoutePoint(nil), points...)
}

// CloneDays deep-copies an itinerary including each day's activities.
func CloneDays(days []Day) []Day {
	if days == nil {
		return nil
	}
	out := make([]Day, len(days))
	for i, day := range days {
		out[i] = day
		out[i].Activities = CloneActivities(day.Activities)
	}
	return out
}

// CloneActivities deep-copies an activity list.
func CloneActivities(activities []Activity) []Activity {
	if activities == nil {
		return nil
	}
	out := make([]Activity, len(activities))
	for i, act := range activities {
		out[i] = act
		if act.Lat != nil {
			lat := *act.Lat
			out[i].Lat = &lat
		}
		if act.Lng != nil {
			lng := *act.Lng
			out[i].Lng = &lng
		}
	}
	return out
}

// RenumberPoints rewrites Order so it matches list position starting at 1.
func RenumberPoints(points []RoutePoint) []RoutePoint {
	for i := range points {
		points[i].Order = i + 1
	}
	return points
}

// RenumberDays rewrites Day and Order contiguously from 1.
func RenumberDays(days []Day) []Day {
	for i := range days {
		days[i].Day = i + 1
		days[i].Order = i + 1
	}
	return days
}

// RenumberActivities rewrites activity Order contiguously from 1.
func RenumberActivities(activities []Activity) []Activity {
	for i := range activities {
		activities[i].Order = i + 1
	}
	return activities
}

// IntPtr is a small helper for optional int fields such as the cover index.
func IntPtr(v int) *int {
	return &v
}
