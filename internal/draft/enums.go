package draft

import "strings"

// Category classifies the kind of trip.
type Category string

const (
	CategoryAdventure Category = "Adventure"
	CategoryLuxury    Category = "Luxury"
	CategoryCultural  Category = "Cultural"
	CategoryWellness  Category = "Wellness"
	CategoryWildlife  Category = "Wildlife"
)

// Categories lists the known categories in display order.
var Categories = []Category{
	CategoryAdventure,
	CategoryLuxury,
	CategoryCultural,
	CategoryWellness,
	CategoryWildlife,
}

var categoryAliases = map[string]Category{
	"adventure": CategoryAdventure,
	"luxury":    CategoryLuxury,
	"cultural":  CategoryCultural,
	"culture":   CategoryCultural,
	"wellness":  CategoryWellness,
	"wildlife":  CategoryWildlife,
}

// NormalizeCategory maps any external spelling onto a Category. Empty input
// yields Adventure; unknown spellings pass through unchanged.
func NormalizeCategory(raw string) Category {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CategoryAdventure
	}
	if cat, ok := categoryAliases[strings.ToLower(trimmed)]; ok {
		return cat
	}
	return Category(trimmed)
}

// Known reports whether the category is one of the closed set.
func (c Category) Known() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// PriceType says which travellers the price applies to.
type PriceType string

const (
	PriceAdults   PriceType = "adults"
	PriceChildren PriceType = "children"
	PriceBoth     PriceType = "both"
)

// PriceTypes lists the known price types in display order.
var PriceTypes = []PriceType{PriceAdults, PriceChildren, PriceBoth}

// NormalizePriceType lower-cases the external value; empty input yields adults.
func NormalizePriceType(raw string) PriceType {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return PriceAdults
	}
	return PriceType(trimmed)
}

// Known reports whether the price type is one of the closed set.
func (p PriceType) Known() bool {
	for _, known := range PriceTypes {
		if p == known {
			return true
		}
	}
	return false
}

// ActivityType classifies an itinerary activity.
type ActivityType string

const (
	ActivityGeneric       ActivityType = "activity"
	ActivityAccommodation ActivityType = "accommodation"
	ActivityTransport     ActivityType = "transport"
	ActivityMeal          ActivityType = "meal"
	ActivityPOI           ActivityType = "poi"
)

// ActivityTypes lists the known activity types in display order.
var ActivityTypes = []ActivityType{
	ActivityGeneric,
	ActivityAccommodation,
	ActivityTransport,
	ActivityMeal,
	ActivityPOI,
}

// NormalizeActivityType lower-cases the external value; empty input yields
// the generic activity type.
func NormalizeActivityType(raw string) ActivityType {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ActivityGeneric
	}
	return ActivityType(trimmed)
}

// Known reports whether the activity type is one of the closed set.
func (a ActivityType) Known() bool {
	for _, known := range ActivityTypes {
		if a == known {
			return true
		}
	}
	return false
}
