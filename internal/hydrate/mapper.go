package hydrate

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kingrea/trailhead/internal/draft"
)

// ErrInvalidRecordID is returned when the record carries no usable identifier.
var ErrInvalidRecordID = errors.New("hydrate: record id is missing or invalid")

// pointNamespace seeds deterministic ids for persisted points that have none,
// so mapping the same record twice yields identical drafts.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trailhead:route-point"))

// Map converts a persisted record into a fully populated edit-mode draft.
// It is total over optional fields and idempotent.
func Map(rec Record) (draft.TripDraft, error) {
	id := rec.RecordID()
	if id == "" {
		return draft.TripDraft{}, ErrInvalidRecordID
	}
	out := draft.New(id, draft.ModeEdit)
	out.Identity = draft.Identity{
		LocationID:        strings.TrimSpace(string(rec.LocationID)),
		Title:             strings.TrimSpace(string(rec.Title)),
		Description:       string(rec.Description),
		Category:          draft.NormalizeCategory(string(rec.Category)),
		DestinationRegion: strings.TrimSpace(string(rec.DestinationRegion)),
		Latitude:          rec.Latitude.Float(),
		Longitude:         rec.Longitude.Float(),
		StartDate:         normalizeDate(string(rec.StartDate)),
		EndDate:           normalizeDate(string(rec.EndDate)),
		DurationDays:      rec.DurationDays.Int(),
		DurationNights:    rec.DurationNights.Int(),
		Price:             rec.Price.Float(),
		Currency:          strings.ToUpper(strings.TrimSpace(string(rec.Currency))),
		PriceType:         draft.NormalizePriceType(string(rec.PriceType)),
		MaxPersons:        rec.MaxPersons.Int(),
		Status:            normalizeStatus(string(rec.Status)),
	}
	out.RoutePoints = mapPoints(id, rec.RoutePoints)
	out.Itinerary = mapDays(rec.ItineraryDays)
	out.GalleryImages = mapGallery(rec.GalleryImages)
	out.CoverImageIndex = coverIndex(rec.CoverImageIndex, len(out.GalleryImages))
	out.DiscountCodes = mapDiscounts(rec.DiscountCodes)
	out.PromoterCode = strings.TrimSpace(string(rec.PromoterCode))
	out.PromoterName = strings.TrimSpace(string(rec.PromoterName))
	return out, nil
}

func mapPoints(recordID string, points []RecordPoint) []draft.RoutePoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]draft.RoutePoint, 0, len(points))
	for i, p := range points {
		pointID := strings.TrimSpace(string(p.ID))
		if pointID == "" {
			pointID = uuid.NewSHA1(pointNamespace, []byte(recordID+"/"+strconv.Itoa(i))).String()
		}
		order := i + 1
		if p.Order != nil && p.Order.Int() > 0 {
			order = p.Order.Int()
		}
		out = append(out, draft.RoutePoint{
			ID:    pointID,
			Name:  strings.TrimSpace(string(p.Name)),
			Lat:   firstNumber(p.Latitude, p.Lat),
			Lng:   firstNumber(p.Longitude, p.Lng),
			Order: order,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return draft.RenumberPoints(out)
}

func mapDays(days []RecordDay) []draft.Day {
	if len(days) == 0 {
		return nil
	}
	out := make([]draft.Day, 0, len(days))
	for i, d := range days {
		order := i + 1
		switch {
		case d.Order != nil && d.Order.Int() > 0:
			order = d.Order.Int()
		case d.Day != nil && d.Day.Int() > 0:
			order = d.Day.Int()
		}
		out = append(out, draft.Day{
			Title:      strings.TrimSpace(string(d.Title)),
			Subtitle:   strings.TrimSpace(string(d.Subtitle)),
			Order:      order,
			Activities: mapActivities(d.Activities),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return draft.RenumberDays(out)
}

func mapActivities(acts []RecordActivity) []draft.Activity {
	out := make([]draft.Activity, 0, len(acts))
	for _, a := range acts {
		act := draft.Activity{
			Type:        draft.NormalizeActivityType(string(a.Type)),
			Title:       strings.TrimSpace(string(a.Title)),
			Description: string(a.Description),
			Time:        strings.TrimSpace(string(a.Time)),
			POIID:       strings.TrimSpace(string(a.POIID)),
		}
		if a.Latitude != nil && a.Longitude != nil {
			lat, lng := a.Latitude.Float(), a.Longitude.Float()
			act.Lat, act.Lng = &lat, &lng
		}
		if a.Order != nil {
			act.Order = a.Order.Int()
		}
		out = append(out, act)
	}
	return out
}

type galleryObject struct {
	ImageURL  *string `json:"imageUrl"`
	ImageURL2 *string `json:"image_url"`
	URL       *string `json:"url"`
}

func mapGallery(entries []json.RawMessage) []string {
	var out []string
	for _, raw := range entries {
		if url := galleryURL(raw); url != "" {
			out = append(out, url)
		}
	}
	return out
}

func galleryURL(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj galleryObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, candidate := range []*string{obj.ImageURL, obj.ImageURL2, obj.URL} {
		if candidate != nil {
			if trimmed := strings.TrimSpace(*candidate); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func coverIndex(raw *Number, images int) *int {
	if images == 0 {
		return nil
	}
	if raw != nil {
		idx := raw.Int()
		if idx >= 0 && idx < images {
			return draft.IntPtr(idx)
		}
	}
	return draft.IntPtr(0)
}

func mapDiscounts(codes []RecordDiscount) []draft.DiscountCode {
	var out []draft.DiscountCode
	for _, c := range codes {
		code := strings.TrimSpace(string(c.Code))
		if code == "" {
			continue
		}
		out = append(out, draft.DiscountCode{
			Code:       code,
			Percent:    c.Percent.Float(),
			ValidUntil: normalizeDate(string(c.ValidUntil)),
		})
	}
	return out
}

func firstNumber(values ...*Number) float64 {
	for _, v := range values {
		if v != nil {
			return v.Float()
		}
	}
	return 0
}

// normalizeDate keeps the calendar date of ISO timestamps.
func normalizeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) >= 10 && trimmed[4] == '-' && trimmed[7] == '-' {
		return trimmed[:10]
	}
	return trimmed
}

func normalizeStatus(raw string) string {
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" {
		return draft.StatusDraft
	}
	return status
}
