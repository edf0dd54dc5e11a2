package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/logger"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// memStore is an in-memory ride and event store with the same CAS contract
// as the postgres adapter.
type memStore struct {
	mu     sync.Mutex
	rides  map[uuid.UUID]*models.Ride
	events map[uuid.UUID][]*models.DispatchEvent
}

func newMemStore() *memStore {
	return &memStore{
		rides:  make(map[uuid.UUID]*models.Ride),
		events: make(map[uuid.UUID][]*models.DispatchEvent),
	}
}

func (s *memStore) Create(_ context.Context, ride *models.Ride) (*models.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rides {
		if r.RiderID == ride.RiderID && !r.Status.IsTerminal() {
			return nil, types.ErrActiveRideExists
		}
	}

	ride.CreatedAt = time.Now()
	s.rides[ride.ID] = copyRide(ride)
	return ride, nil
}

func (s *memStore) Get(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	return copyRide(ride), nil
}

func (s *memStore) ActiveFor(_ context.Context, userID uuid.UUID) (*models.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rides {
		if r.Status.IsTerminal() {
			continue
		}
		if r.RiderID == userID || (r.DriverID != nil && *r.DriverID == userID) {
			return copyRide(r), nil
		}
	}
	return nil, types.ErrRideNotFound
}

func (s *memStore) ListRequested(_ context.Context) ([]*models.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Ride
	for _, r := range s.rides {
		if r.Status == types.StatusRequested {
			out = append(out, copyRide(r))
		}
	}
	return out, nil
}

func (s *memStore) Transition(_ context.Context, rideID uuid.UUID, expected, next types.RideStatus, fields models.TransitionFields) (types.RideStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[rideID]
	if !ok {
		return "", types.ErrRideNotFound
	}
	if ride.Status != expected {
		return ride.Status, types.ErrStatusConflict
	}

	ride.Status = next
	if fields.DriverID != nil {
		ride.DriverID = fields.DriverID
	}
	if fields.Rating != nil {
		ride.Rating = fields.Rating
	}
	if fields.AcceptedAt != nil {
		ride.AcceptedAt = fields.AcceptedAt
	}
	if fields.StartedAt != nil {
		ride.StartedAt = fields.StartedAt
	}
	if fields.CompletedAt != nil {
		ride.CompletedAt = fields.CompletedAt
	}
	if fields.CancelledAt != nil {
		ride.CancelledAt = fields.CancelledAt
	}
	return next, nil
}

func (s *memStore) Append(_ context.Context, event *models.DispatchEvent) (*models.DispatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.Seq = int64(len(s.events[event.RideID])) + 1
	event.At = time.Now()
	s.events[event.RideID] = append(s.events[event.RideID], event)
	return event, nil
}

func (s *memStore) ListSince(_ context.Context, rideID uuid.UUID, since int64) ([]*models.DispatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.DispatchEvent
	for _, e := range s.events[rideID] {
		if e.Seq > since {
			out = append(out, e)
		}
	}
	return out, nil
}

func copyRide(r *models.Ride) *models.Ride {
	c := *r
	return &c
}

type fakePresence struct {
	mu      sync.Mutex
	online  map[uuid.UUID]bool
	drivers []models.OnlineDriver
}

func (p *fakePresence) IsOnline(_ context.Context, userID uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID], nil
}

func (p *fakePresence) OnlineDrivers(_ context.Context) ([]models.OnlineDriver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drivers, nil
}

type notification struct {
	recipients []uuid.UUID
	event      models.DispatchEvent
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(_ context.Context, recipients []uuid.UUID, event models.DispatchEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{recipients: recipients, event: event})
}

func (n *fakeNotifier) byType(t types.DispatchEventType) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, s := range n.sent {
		if s.event.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// noTx runs the function directly; the memStore is already atomic.
type noTx struct{}

func (noTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	store    *memStore
	presence *fakePresence
	notifier *fakeNotifier
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	presence := &fakePresence{online: make(map[uuid.UUID]bool)}
	notif := &fakeNotifier{}

	coord := NewCoordinator(store, store, presence, NewNearestSelector(), notif, noTx{}, Config{
		AcceptWindow:  time.Minute,
		SweepInterval: time.Second,
	}, logger.InitLogger("test", logger.LevelError))

	return &fixture{store: store, presence: presence, notifier: notif, coord: coord}
}

func newUser(t *testing.T, role types.UserRole) *models.User {
	t.Helper()
	id, err := uuid.New()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	return &models.User{ID: id, Name: "user-" + id.String()[:8], Role: role}
}

func (f *fixture) goOnline(t *testing.T, driver *models.User, lat, lon float64) {
	t.Helper()
	f.presence.mu.Lock()
	defer f.presence.mu.Unlock()
	f.presence.online[driver.ID] = true
	f.presence.drivers = append(f.presence.drivers, models.OnlineDriver{
		DriverID: driver.ID,
		Location: &models.Location{Latitude: lat, Longitude: lon},
	})
}

var (
	origin      = models.Location{Latitude: 43.238949, Longitude: 76.889709}
	destination = models.Location{Latitude: 43.25654, Longitude: 76.92848, Name: "Abay Ave 10"}
)

func TestCreateRequest_SecondActiveRideRejected(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)

	if _, err := f.coord.CreateRequest(context.Background(), rider, origin, destination); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if !errors.Is(err, types.ErrActiveRideExists) {
		t.Fatalf("expected ErrActiveRideExists, got %v", err)
	}
}

func TestCreateRequest_FansOutToOnlineDrivers(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	d1 := newUser(t, types.DriverRole)
	d2 := newUser(t, types.DriverRole)
	f.goOnline(t, d1, 43.24, 76.89)
	f.goOnline(t, d2, 43.30, 76.95)

	if _, err := f.coord.CreateRequest(context.Background(), rider, origin, destination); err != nil {
		t.Fatalf("create: %v", err)
	}

	offers := f.notifier.byType(types.EventNewRide)
	if len(offers) != 1 {
		t.Fatalf("expected one new_ride notification, got %d", len(offers))
	}
	if len(offers[0].recipients) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(offers[0].recipients))
	}
	if offers[0].event.Seq != 1 {
		t.Fatalf("expected first event seq 1, got %d", offers[0].event.Seq)
	}
}

func TestAccept_ExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)

	const n = 16
	drivers := make([]*models.User, n)
	for i := range drivers {
		drivers[i] = newUser(t, types.DriverRole)
		f.goOnline(t, drivers[i], 43.24, 76.89)
	}

	ride, err := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		losses  int
	)
	for _, d := range drivers {
		wg.Add(1)
		go func(d *models.User) {
			defer wg.Done()
			_, err := f.coord.Accept(context.Background(), d, ride.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, d.ID)
			case errors.Is(err, types.ErrAlreadyClaimed):
				losses++
			default:
				t.Errorf("unexpected accept error: %v", err)
			}
		}(d)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
	if losses != n-1 {
		t.Fatalf("expected %d losers, got %d", n-1, losses)
	}

	stored, err := f.store.Get(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != types.StatusAccepted {
		t.Fatalf("expected accepted, got %s", stored.Status)
	}
	if stored.DriverID == nil || *stored.DriverID != winners[0] {
		t.Fatalf("stored driver_id does not match the winner")
	}
}

func TestAccept_OfflineDriverRejected(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)

	ride, err := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.coord.Accept(context.Background(), driver, ride.ID)
	if !errors.Is(err, types.ErrDriverOffline) {
		t.Fatalf("expected ErrDriverOffline, got %v", err)
	}
}

func TestAccept_ExpiredRide(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	ride, err := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.store.Transition(context.Background(), ride.ID, types.StatusRequested, types.StatusExpired, models.TransitionFields{}); err != nil {
		t.Fatalf("force expire: %v", err)
	}

	_, err = f.coord.Accept(context.Background(), driver, ride.ID)
	if !errors.Is(err, types.ErrRideExpired) {
		t.Fatalf("expected ErrRideExpired, got %v", err)
	}
}

func TestAccept_UnknownRide(t *testing.T) {
	f := newFixture(t)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	rideID, _ := uuid.New()
	_, err := f.coord.Accept(context.Background(), driver, rideID)
	if !errors.Is(err, types.ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound, got %v", err)
	}
}

func TestStart_OnlyBoundDriver(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	winner := newUser(t, types.DriverRole)
	other := newUser(t, types.DriverRole)
	f.goOnline(t, winner, 43.24, 76.89)
	f.goOnline(t, other, 43.25, 76.90)

	ride, err := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.coord.Accept(context.Background(), winner, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := f.coord.Start(context.Background(), other, ride.ID); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-bound driver, got %v", err)
	}

	started, err := f.coord.Start(context.Background(), winner, ride.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != types.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", started.Status)
	}
}

func TestComplete_RequiresInProgress(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	ride, err := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.coord.Accept(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := f.coord.Complete(context.Background(), driver, ride.ID); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition before start, got %v", err)
	}

	if _, err := f.coord.Start(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := f.coord.Complete(context.Background(), driver, ride.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != types.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
}

func TestCancel_Guards(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	stranger := newUser(t, types.RiderRole)
	f.goOnline(t, driver, 43.24, 76.89)

	ride, err := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A stranger may not cancel.
	if _, err := f.coord.Cancel(context.Background(), stranger, ride.ID); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}

	// A driver cannot cancel a ride it is not bound to.
	if _, err := f.coord.Cancel(context.Background(), driver, ride.ID); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unbound driver, got %v", err)
	}

	if _, err := f.coord.Accept(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// The bound driver may cancel from accepted.
	cancelled, err := f.coord.Cancel(context.Background(), driver, ride.ID)
	if err != nil {
		t.Fatalf("driver cancel from accepted: %v", err)
	}
	if cancelled.Status != types.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestCancel_RiderCancelAfterAcceptNotifiesDriver(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	ride, _ := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if _, err := f.coord.Accept(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	cancelled, err := f.coord.Cancel(context.Background(), rider, ride.ID)
	if err != nil {
		t.Fatalf("rider cancel from accepted: %v", err)
	}
	if cancelled.Status != types.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	notes := f.notifier.byType(types.EventRideCancelled)
	if len(notes) != 1 {
		t.Fatalf("expected one ride_cancelled notification, got %d", len(notes))
	}
	if len(notes[0].recipients) != 1 || notes[0].recipients[0] != driver.ID {
		t.Fatalf("the bound driver must be told about the cancel, got %v", notes[0].recipients)
	}

	var payload models.RideCancelledPayload
	if err := json.Unmarshal(notes[0].event.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.CancelledBy != types.RiderRole {
		t.Fatalf("cancelled_by %q", payload.CancelledBy)
	}
}

func TestCancel_RejectedOnceInProgress(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	ride, _ := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if _, err := f.coord.Accept(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.coord.Start(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := f.coord.Cancel(context.Background(), rider, ride.ID); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition once in_progress, got %v", err)
	}
}

func TestRate_CompletedOnceOnly(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	ride, _ := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if _, err := f.coord.Accept(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := f.coord.Rate(context.Background(), rider, ride.ID, 5); !errors.Is(err, types.ErrRideNotRated) {
		t.Fatalf("expected ErrRideNotRated before completion, got %v", err)
	}

	if _, err := f.coord.Start(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.coord.Complete(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := f.coord.Rate(context.Background(), driver, ride.ID, 5); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for driver rating, got %v", err)
	}

	rated, err := f.coord.Rate(context.Background(), rider, ride.ID, 4)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rated.Rating == nil || *rated.Rating != 4 {
		t.Fatalf("rating not stored")
	}

	if _, err := f.coord.Rate(context.Background(), rider, ride.ID, 5); !errors.Is(err, types.ErrAlreadyRated) {
		t.Fatalf("expected ErrAlreadyRated, got %v", err)
	}
}

func TestSweep_ExpiresOnlyStaleRequested(t *testing.T) {
	f := newFixture(t)
	rider1 := newUser(t, types.RiderRole)
	rider2 := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	stale, _ := f.coord.CreateRequest(context.Background(), rider1, origin, destination)
	claimed, _ := f.coord.CreateRequest(context.Background(), rider2, origin, destination)
	if _, err := f.coord.Accept(context.Background(), driver, claimed.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Age the stale request past the accept window.
	f.store.mu.Lock()
	f.store.rides[stale.ID].CreatedAt = time.Now().Add(-2 * time.Minute)
	f.store.mu.Unlock()

	f.coord.sweep(context.Background())

	got, _ := f.store.Get(context.Background(), stale.ID)
	if got.Status != types.StatusExpired {
		t.Fatalf("expected stale ride expired, got %s", got.Status)
	}

	kept, _ := f.store.Get(context.Background(), claimed.ID)
	if kept.Status != types.StatusAccepted {
		t.Fatalf("sweep must never touch accepted rides, got %s", kept.Status)
	}

	expiredNotes := f.notifier.byType(types.EventRideExpired)
	if len(expiredNotes) != 1 || expiredNotes[0].recipients[0] != rider1.ID {
		t.Fatalf("rider was not told about the expiry")
	}
}

func TestEvents_SequencesStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	ride, _ := f.coord.CreateRequest(context.Background(), rider, origin, destination)
	if _, err := f.coord.Accept(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.coord.Start(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.coord.Complete(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	events, err := f.coord.EventsSince(context.Background(), rider, ride.ID, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Fatalf("sequence numbers must strictly increase: %d then %d", events[i-1].Seq, events[i].Seq)
		}
	}

	last := events[len(events)-1].Seq
	later, err := f.coord.EventsSince(context.Background(), rider, ride.ID, last-1)
	if err != nil {
		t.Fatalf("events since: %v", err)
	}
	if len(later) != 1 || later[0].Seq != last {
		t.Fatalf("replay since %d must return only the final event", last-1)
	}
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)
	otherRider := newUser(t, types.RiderRole)
	driver := newUser(t, types.DriverRole)
	f.goOnline(t, driver, 43.24, 76.89)

	ride, _ := f.coord.CreateRequest(context.Background(), rider, origin, destination)

	// Any driver can look at an unclaimed request.
	if _, err := f.coord.Get(context.Background(), driver, ride.ID); err != nil {
		t.Fatalf("driver get of requested ride: %v", err)
	}

	// An unrelated rider cannot.
	if _, err := f.coord.Get(context.Background(), otherRider, ride.ID); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestActiveFor_RoundTrip(t *testing.T) {
	f := newFixture(t)
	rider := newUser(t, types.RiderRole)

	if _, err := f.coord.ActiveFor(context.Background(), rider); !errors.Is(err, types.ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound with no rides, got %v", err)
	}

	created, _ := f.coord.CreateRequest(context.Background(), rider, origin, destination)

	active, err := f.coord.ActiveFor(context.Background(), rider)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != created.ID {
		t.Fatalf("wrong active ride")
	}
	if active.Origin != origin || active.Destination != destination {
		t.Fatalf("locations did not round-trip")
	}
}
