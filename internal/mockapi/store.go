package mockapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"ticketone/sync/internal/model"
)

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrNotFound        = errors.New("not found")
	ErrNotOwner        = errors.New("not owned by caller")
	ErrNotEnoughSeats  = errors.New("not enough seats available")
	ErrCapacityTooLow  = errors.New("capacity is below seats already booked")
	ErrInvalidQuantity = errors.New("seats must be positive")
)

const upcomingLimit = 6

type account struct {
	identity model.Identity
	hash     string
}

// Store is the whole mock backend state. Everything lives in memory and
// is lost on restart.
type Store struct {
	mu sync.RWMutex

	accounts    map[model.Channel]map[string]*account
	nextAccount map[model.Channel]int64

	events    map[int64]*model.Event
	nextEvent int64

	bookings    map[int64]*model.Booking
	nextBooking int64

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: map[model.Channel]map[string]*account{
			model.ChannelAttendee:  {},
			model.ChannelOrganizer: {},
		},
		nextAccount: map[model.Channel]int64{},
		events:      map[int64]*model.Event{},
		bookings:    map[int64]*model.Booking{},
		now:         time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) Register(channel model.Channel, req model.RegisterRequest, hash string) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(req.Email)
	if _, ok := s.accounts[channel][key]; ok {
		return model.Identity{}, ErrEmailTaken
	}

	s.nextAccount[channel]++
	identity := model.Identity{
		ID:    s.nextAccount[channel],
		Email: strings.TrimSpace(req.Email),
		Phone: req.Phone,
	}
	if channel == model.ChannelOrganizer {
		identity.Name = strings.TrimSpace(req.Name)
	} else {
		identity.FullName = strings.TrimSpace(req.FirstName + " " + req.LastName)
	}
	s.accounts[channel][key] = &account{identity: identity, hash: hash}
	return identity, nil
}

// Account returns the identity and password hash for email on channel.
func (s *Store) Account(channel model.Channel, email string) (model.Identity, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[channel][emailKey(email)]
	if !ok {
		return model.Identity{}, "", ErrNotFound
	}
	return acc.identity, acc.hash, nil
}

func (s *Store) AccountByID(channel model.Channel, id int64) (model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts[channel] {
		if acc.identity.ID == id {
			return acc.identity, nil
		}
	}
	return model.Identity{}, ErrNotFound
}

func (s *Store) CreateEvent(org model.Identity, in model.EventInput) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEvent++
	visible := in.Visible
	if visible == "" {
		visible = model.VisibilityPublic
	}
	event := &model.Event{
		ID:             s.nextEvent,
		Name:           strings.TrimSpace(in.Name),
		OrgID:          org.ID,
		OrganizedBy:    org.Name,
		Key:            in.Key,
		Visible:        visible,
		Capacity:       in.Capacity,
		SeatsAvailable: in.Capacity,
		Date:           in.Date,
		Address:        strings.TrimSpace(in.Address),
		City:           strings.TrimSpace(in.City),
		State:          strings.TrimSpace(in.State),
		Country:        strings.TrimSpace(in.Country),
		CreatedAt:      s.now(),
	}
	s.events[event.ID] = event
	return *event
}

func (s *Store) listable(e *model.Event, now time.Time) bool {
	return e.Visible != model.VisibilityPrivate && !e.Date.Before(now)
}

func (s *Store) sortedEvents() []*model.Event {
	out := make([]*model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListEvents returns up to limit+1 listable events with id > cursor in
// id order; the extra one tells the caller another page exists.
func (s *Store) ListEvents(cursor int64, limit int) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make([]model.Event, 0, limit+1)
	for _, e := range s.sortedEvents() {
		if e.ID <= cursor || !s.listable(e, now) {
			continue
		}
		out = append(out, *e)
		if len(out) == limit+1 {
			break
		}
	}
	return out
}

func (s *Store) Event(id int64) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return *e, nil
}

// Upcoming lists the soonest listable events in city, skipping exclude.
func (s *Store) Upcoming(city string, exclude int64) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := []model.Event{}
	for _, e := range s.events {
		if e.ID == exclude || !strings.EqualFold(e.City, city) || !s.listable(e, now) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > upcomingLimit {
		out = out[:upcomingLimit]
	}
	return out
}

func (s *Store) OrgEvents(orgID int64) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Event{}
	for _, e := range s.sortedEvents() {
		if e.OrgID == orgID {
			out = append(out, *e)
		}
	}
	return out
}

func (s *Store) UpdateEvent(orgID, id int64, update model.EventUpdate) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	if e.OrgID != orgID {
		return model.Event{}, ErrNotOwner
	}

	if update.Capacity > 0 && update.Capacity != e.Capacity {
		booked := e.SeatsBooked()
		if update.Capacity < booked {
			return model.Event{}, ErrCapacityTooLow
		}
		e.Capacity = update.Capacity
		e.SeatsAvailable = update.Capacity - booked
	}
	if v := strings.TrimSpace(update.Name); v != "" {
		e.Name = v
	}
	if !update.DateTime.IsZero() {
		e.Date = update.DateTime
	}
	if v := strings.TrimSpace(update.Address); v != "" {
		e.Address = v
	}
	if v := strings.TrimSpace(update.City); v != "" {
		e.City = v
	}
	if v := strings.TrimSpace(update.State); v != "" {
		e.State = v
	}
	if v := strings.TrimSpace(update.Country); v != "" {
		e.Country = v
	}
	switch model.Visibility(strings.ToUpper(update.Visible)) {
	case model.VisibilityPublic:
		e.Visible = model.VisibilityPublic
	case model.VisibilityPrivate:
		e.Visible = model.VisibilityPrivate
	}
	return *e, nil
}

func (s *Store) DeleteEvent(orgID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	if e.OrgID != orgID {
		return ErrNotOwner
	}
	delete(s.events, id)
	return nil
}

func (s *Store) Book(userID, eventID, seats int64) (model.BookSeatsResult, error) {
	if seats <= 0 {
		return model.BookSeatsResult{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return model.BookSeatsResult{}, ErrNotFound
	}
	if e.SeatsAvailable < seats {
		return model.BookSeatsResult{}, ErrNotEnoughSeats
	}
	e.SeatsAvailable -= seats

	s.nextBooking++
	b := &model.Booking{
		ID:        s.nextBooking,
		EventID:   e.ID,
		UserID:    userID,
		Seats:     seats,
		Status:    model.BookingActive,
		BookedAt:  s.now(),
		EventName: e.Name,
		EventDate: e.Date,
		City:      e.City,
	}
	s.bookings[b.ID] = b

	return model.BookSeatsResult{BookingID: b.ID, EventID: e.ID, UserID: userID, Seats: seats}, nil
}

func (s *Store) Bookings(userID int64) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Booking{}
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Booking(userID, id int64) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok || b.UserID != userID {
		return model.Booking{}, ErrNotFound
	}
	return *b, nil
}

// CancelBooking is idempotent: cancelling twice reports already=true and
// releases the seats only once.
func (s *Store) CancelBooking(userID, id int64) (already bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok || b.UserID != userID {
		return false, ErrNotFound
	}
	if b.Status == model.BookingCancelled {
		return true, nil
	}
	b.Status = model.BookingCancelled
	if e, ok := s.events[b.EventID]; ok {
		e.SeatsAvailable += b.Seats
	}
	return false, nil
}
