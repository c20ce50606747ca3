// Package hydrate translates a persisted trip record, in the backend's own
// field names and enum spellings, into the wizard's draft representation.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is the backend's shape of a trip. Scalar fields use snake_case,
// nested collections keep the backend's camelCase names.
type Record struct {
	ID                Text              `json:"id"`
	ObjectID          Text              `json:"_id"`
	LocationID        Text              `json:"location_id"`
	Title             Text              `json:"title"`
	Description       Text              `json:"description"`
	Category          Text              `json:"category"`
	DestinationRegion Text              `json:"destination_region"`
	Latitude          Number            `json:"latitude"`
	Longitude         Number            `json:"longitude"`
	StartDate         Text              `json:"start_date"`
	EndDate           Text              `json:"end_date"`
	DurationDays      Number            `json:"duration_days"`
	DurationNights    Number            `json:"duration_nights"`
	Price             Number            `json:"price"`
	Currency          Text              `json:"currency"`
	PriceType         Text              `json:"price_type"`
	MaxPersons        Number            `json:"max_persons"`
	Status            Text              `json:"status"`
	RoutePoints       []RecordPoint     `json:"routePoints"`
	ItineraryDays     []RecordDay       `json:"itineraryDays"`
	GalleryImages     []json.RawMessage `json:"galleryImages"`
	CoverImageIndex   *Number           `json:"cover_image_index"`
	DiscountCodes     []RecordDiscount  `json:"discount_codes"`
	PromoterCode      Text              `json:"promoter_code"`
	PromoterName      Text              `json:"promoter_name"`
}

// RecordPoint is a persisted route point. Both latitude/longitude and the
// short lat/lng spellings are accepted.
type RecordPoint struct {
	ID        Text    `json:"id"`
	Name      Text    `json:"name"`
	Latitude  *Number `json:"latitude"`
	Longitude *Number `json:"longitude"`
	Lat       *Number `json:"lat"`
	Lng       *Number `json:"lng"`
	Order     *Number `json:"order"`
}

// RecordDay is a persisted itinerary day.
type RecordDay struct {
	Day        *Number          `json:"day"`
	Title      Text             `json:"title"`
	Subtitle   Text             `json:"subtitle"`
	Order      *Number          `json:"order"`
	Activities []RecordActivity `json:"activities"`
}

// RecordActivity is a persisted itinerary activity.
type RecordActivity struct {
	Type        Text    `json:"type"`
	Title       Text    `json:"title"`
	Description Text    `json:"description"`
	Time        Text    `json:"time"`
	Latitude    *Number `json:"latitude"`
	Longitude   *Number `json:"longitude"`
	POIID       Text    `json:"poi_id"`
	Order       *Number `json:"order"`
}

// RecordDiscount is a persisted discount code.
type RecordDiscount struct {
	Code       Text   `json:"code"`
	Percent    Number `json:"percentage"`
	ValidUntil Text   `json:"valid_until"`
}

// RecordID returns the trip identifier, preferring id over a Mongo _id.
func (r Record) RecordID() string {
	if id := strings.TrimSpace(string(r.ID)); id != "" {
		return id
	}
	return strings.TrimSpace(string(r.ObjectID))
}

// DecodeRecord parses a JSON document into a Record. Only malformed JSON
// fails; unexpected value shapes decode to zero values.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("hydrate: decode record: %w", err)
	}
	return rec, nil
}

// Text is a lenient string. It accepts JSON strings, numbers, booleans and
// Mongo extended-JSON wrappers such as {"$oid": "..."} or {"$date": "..."}.
// Any other shape decodes to the empty string.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			*t = Text(s)
		}
	case '{':
		if inner, ok := unwrapExtended(trimmed); ok {
			return t.UnmarshalJSON(inner)
		}
	case '[':
	default:
		*t = Text(trimmed)
	}
	return nil
}

// Number is a lenient float. It accepts JSON numbers, numeric strings and
// extended-JSON number wrappers. Anything unparseable decodes to zero.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var raw string
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil
		}
	case '{':
		if inner, ok := unwrapExtended(trimmed); ok {
			return n.UnmarshalJSON(inner)
		}
		return nil
	case '[', 't', 'f':
		return nil
	default:
		raw = string(trimmed)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = Number(v)
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// Int returns the value truncated to int.
func (n Number) Int() int { return int(n) }

var extendedKeys = []string{"$oid", "$date", "$numberLong", "$numberInt", "$numberDouble", "$numberDecimal"}

func unwrapExtended(data []byte) (json.RawMessage, bool) {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, false
	}
	for _, key := range extendedKeys {
		if inner, ok := wrapped[key]; ok {
			return inner, true
		}
	}
	return nil, false
}
