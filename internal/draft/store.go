package draft

import (
	"errors"
	"sync"
)

// ErrInvalidCoverIndex is returned when a cover index does not point into the gallery.
var ErrInvalidCoverIndex = errors.New("draft: cover image index out of range")

// IdentityPatch selectively updates Identity fields. Nil fields are left untouched.
type IdentityPatch struct {
	LocationID        *string
	Title             *string
	Description       *string
	Category          *Category
	DestinationRegion *string
	Latitude          *float64
	Longitude         *float64
	StartDate         *string
	EndDate           *string
	DurationDays      *int
	DurationNights    *int
	Price             *float64
	Currency          *string
	PriceType         *PriceType
	MaxPersons        *int
	Status            *string
}

// Listener receives a copy of the draft after every mutation.
type Listener func(TripDraft)

// Store is the single shared working document of a wizard session. Every
// setter replaces a whole slice of the draft; callers read, modify and write
// back complete lists.
type Store struct {
	mu        sync.RWMutex
	draft     TripDraft
	listeners map[int]Listener
	order     []int
	nextID    int
}

// NewStore creates a store holding an empty draft.
func NewStore() *Store {
	return &Store{
		draft:     New("", ModeNew),
		listeners: map[int]Listener{},
	}
}

// Get returns a deep copy of the current draft.
func (s *Store) Get() TripDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Clone()
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
		for i, candidate := range s.order {
			if candidate == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Reset discards the current draft and starts an empty one.
func (s *Store) Reset(id string, mode Mode) {
	s.mutate(func(d *TripDraft) {
		*d = New(id, mode)
	})
}

// Replace overwrites the whole draft. Hydration and autosave restore use it
// so no field of a previous session can survive.
func (s *Store) Replace(next TripDraft) {
	next = next.Clone()
	s.mutate(func(d *TripDraft) {
		*d = next
	})
}

// SetIdentity applies the non-nil fields of patch.
func (s *Store) SetIdentity(patch IdentityPatch) {
	s.mutate(func(d *TripDraft) {
		patch.apply(&d.Identity)
	})
}

// SetRoutePoints replaces the route point list.
func (s *Store) SetRoutePoints(points []RoutePoint) {
	points = ClonePoints(points)
	s.mutate(func(d *TripDraft) {
		d.RoutePoints = points
	})
}

// SetItinerary replaces the itinerary.
func (s *Store) SetItinerary(days []Day) {
	days = CloneDays(days)
	s.mutate(func(d *TripDraft) {
		d.Itinerary = days
	})
}

// SetGallery replaces the gallery and cover index together. A cover index
// that does not point into images is rejected and nothing changes.
func (s *Store) SetGallery(images []string, cover *int) error {
	if cover != nil && (*cover < 0 || *cover >= len(images)) {
		return ErrInvalidCoverIndex
	}
	var imgs []string
	if images != nil {
		imgs = append([]string(nil), images...)
	}
	var idx *int
	if cover != nil {
		idx = IntPtr(*cover)
	}
	s.mutate(func(d *TripDraft) {
		d.GalleryImages = imgs
		d.CoverImageIndex = idx
	})
	return nil
}

// SetDiscountCodes replaces the discount code list.
func (s *Store) SetDiscountCodes(codes []DiscountCode) {
	var list []DiscountCode
	if codes != nil {
		list = append([]DiscountCode(nil), codes...)
	}
	s.mutate(func(d *TripDraft) {
		d.DiscountCodes = list
	})
}

// SetPromoter replaces the promoter code and name. Nil clears the field.
func (s *Store) SetPromoter(code, name *string) {
	s.mutate(func(d *TripDraft) {
		d.PromoterCode = ""
		d.PromoterName = ""
		if code != nil {
			d.PromoterCode = *code
		}
		if name != nil {
			d.PromoterName = *name
		}
	})
}

func (s *Store) mutate(fn func(*TripDraft)) {
	s.mu.Lock()
	fn(&s.draft)
	snapshot := s.draft.Clone()
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot.Clone())
	}
}

func (p IdentityPatch) apply(id *Identity) {
	if p.LocationID != nil {
		id.LocationID = *p.LocationID
	}
	if p.Title != nil {
		id.Title = *p.Title
	}
	if p.Description != nil {
		id.Description = *p.Description
	}
	if p.Category != nil {
		id.Category = *p.Category
	}
	if p.DestinationRegion != nil {
		id.DestinationRegion = *p.DestinationRegion
	}
	if p.Latitude != nil {
		id.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		id.Longitude = *p.Longitude
	}
	if p.StartDate != nil {
		id.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		id.EndDate = *p.EndDate
	}
	if p.DurationDays != nil {
		id.DurationDays = *p.DurationDays
	}
	if p.DurationNights != nil {
		id.DurationNights = *p.DurationNights
	}
	if p.Price != nil {
		id.Price = *p.Price
	}
	if p.Currency != nil {
		id.Currency = *p.Currency
	}
	if p.PriceType != nil {
		id.PriceType = *p.PriceType
	}
	if p.MaxPersons != nil {
		id.MaxPersons = *p.MaxPersons
	}
	if p.Status != nil {
		id.Status = *p.Status
	}
}
