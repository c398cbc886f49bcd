// README: Order service tests (intake defaults, reservation, cancellation window).
package order

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"laundry/internal/civil"
	"laundry/internal/events"
	"laundry/internal/modules/slots"
)

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	orders    map[string]*Order
	events    []Event
	createErr error
	eventErr  error
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]*Order{}}
}

func (m *memStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, dup := m.orders[o.ID]; dup {
		return ErrConflict
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) MarkCancelled(_ context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || (o.UserID != "" && o.UserID != userID) {
		return false, nil
	}
	o.OrderStatus, o.Status = CancelledMarker, CancelledMarker
	return true, nil
}

func (m *memStore) ListByUser(_ context.Context, userID string, limit int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID && len(out) < limit {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventErr != nil {
		return m.eventErr
	}
	m.events = append(m.events, *e)
	return nil
}

type mockReservations struct {
	mock.Mock
}

func (m *mockReservations) Reserve(ctx context.Context, kind slots.Kind, date, slotID string) (bool, error) {
	args := m.Called(ctx, kind, date, slotID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReservations) Release(ctx context.Context, kind slots.Kind, date, slotID string) error {
	return m.Called(ctx, kind, date, slotID).Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

const (
	pickupSlotUUID   = "3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e"
	deliverySlotUUID = "a1b2c3d4-e5f6-1a2b-9c3d-4e5f6a7b8c9d"
)

// istAt returns the instant of hh:mm IST on date.
func istAt(t *testing.T, date string, hh, mm int) time.Time {
	t.Helper()
	at, err := civil.Instant(date, hh*60+mm)
	require.NoError(t, err)
	return at
}

func validRequest() PlaceRequest {
	return PlaceRequest{
		Pickup:      SlotChoice{Date: "2025-03-10", Label: "12:00 PM - 02:00 PM", SlotID: pickupSlotUUID},
		Delivery:    SlotChoice{Date: "2025-03-10", Label: "04:00 PM - 06:00 PM", SlotID: "5"},
		ServiceType: "standard",
		Total:       349.5,
	}
}

func newTestService(store Store, deps Deps) *Service {
	deps.Log = zerolog.Nop()
	return NewService(store, deps)
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"Placed":     StatusPending,
		" CONFIRMED": StatusConfirmed,
		"canceled":   StatusCancelled,
		"Cancelled":  StatusCancelled,
		"completed":  StatusDelivered,
		"on_hold":    Status("on_hold"),
		"":           Status(""),
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), in)
	}
}

func TestIsCancellable(t *testing.T) {
	for _, s := range []string{"pending", "Placed", "processing", "confirmed", "Confirmed"} {
		assert.True(t, IsCancellable(s), s)
	}
	for _, s := range []string{"Cancelled", "canceled", "delivered", "picked_up", "refunded", "failed", ""} {
		assert.False(t, IsCancellable(s), s)
	}
}

func TestIsSlotUUID(t *testing.T) {
	assert.True(t, isSlotUUID(pickupSlotUUID))
	assert.True(t, isSlotUUID(deliverySlotUUID))
	assert.True(t, isSlotUUID(" 3F2B8C1E-4D5A-4B6C-8D7E-9F0A1B2C3D4E "))
	assert.False(t, isSlotUUID("5"))
	assert.False(t, isSlotUUID(""))
	assert.False(t, isSlotUUID("3f2b8c1e-4d5a-6b6c-8d7e-9f0a1b2c3d4e"), "version 6")
	assert.False(t, isSlotUUID("3f2b8c1e-4d5a-4b6c-cd7e-9f0a1b2c3d4e"), "non-RFC variant")
	assert.False(t, isSlotUUID("{3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e}"))
}

func TestPlaceRequestValidate(t *testing.T) {
	mutate := func(f func(*PlaceRequest)) PlaceRequest {
		r := validRequest()
		f(&r)
		return r
	}
	bad := map[string]PlaceRequest{
		"missing pickup date":    mutate(func(r *PlaceRequest) { r.Pickup.Date = "" }),
		"bad delivery date":      mutate(func(r *PlaceRequest) { r.Delivery.Date = "10/03/2025" }),
		"missing pickup label":   mutate(func(r *PlaceRequest) { r.Pickup.Label = " " }),
		"delivery before pickup": mutate(func(r *PlaceRequest) { r.Delivery.Date = "2025-03-09" }),
		"unknown service type":   mutate(func(r *PlaceRequest) { r.ServiceType = "overnight" }),
		"negative total":         mutate(func(r *PlaceRequest) { r.Total = -1 }),
	}
	for name, req := range bad {
		assert.ErrorIs(t, req.Validate(), ErrBadRequest, name)
	}
	assert.NoError(t, validRequest().Validate())
}

func TestPlaceDerivesOrderRecord(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	now := istAt(t, "2025-03-09", 18, 0)
	svc := newTestService(store, Deps{Events: pub, Clock: civil.FixedClock{At: now}})

	id, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "user-1", Request: validRequest()})
	require.NoError(t, err)
	assert.Equal(t, syntheticID(now), id)

	o := store.orders[id]
	require.NotNil(t, o)
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, "confirmed", o.OrderStatus)
	assert.Equal(t, "confirmed", o.Status)
	assert.Equal(t, "cod", o.PaymentMethod)
	assert.Equal(t, "pending", o.PaymentStatus)
	assert.Equal(t, "standard", o.DeliveryType)
	assert.Equal(t, int64(34950), o.Total.Amount)
	require.NotNil(t, o.PickupSlotID)
	assert.Equal(t, pickupSlotUUID, *o.PickupSlotID)
	assert.Nil(t, o.DeliverySlotID, "non-UUID slot ids are not persisted")
	assert.Equal(t, "12:00:00", *o.PickupSlotStartTime)
	assert.Equal(t, "14:00:00", *o.PickupSlotEndTime)
	assert.Equal(t, "16:00:00", *o.DeliverySlotStartTime)
	assert.Equal(t, "18:00:00", *o.DeliverySlotEndTime)
	assert.Equal(t, "12:00 PM - 02:00 PM", *o.PickupSlotDisplayTime)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderPlaced, pub.events[0].Type)
	require.Len(t, store.events, 1)
	assert.Equal(t, "confirmed", store.events[0].ToStatus)
}

func TestPlaceHonoursClientFields(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Deps{})
	req := validRequest()
	req.OrderID = "ORD-client-42"
	req.PaymentMethod = "upi"
	req.PaymentID = "pay_123"
	req.ServiceType = "express"
	req.Status = "processing"
	req.Pickup.Label = "6:00PM – 8:00PM"

	id, err := svc.Place(context.Background(), PlaceCommand{Request: withUser(req, "body-user")})
	require.NoError(t, err)
	assert.Equal(t, "ORD-client-42", id)

	o := store.orders[id]
	assert.Equal(t, "body-user", o.UserID)
	assert.Equal(t, "paid", o.PaymentStatus)
	assert.Equal(t, "express", o.DeliveryType)
	assert.Equal(t, "processing", o.Status)
	assert.Equal(t, "confirmed", o.OrderStatus)
	assert.Equal(t, "18:00:00", *o.PickupSlotStartTime)

	_, err = svc.Place(context.Background(), PlaceCommand{Request: withUser(req, "body-user")})
	assert.ErrorIs(t, err, ErrConflict)
}

func withUser(r PlaceRequest, uid string) PlaceRequest {
	r.UserID = uid
	return r
}

func TestPlaceSessionWinsOverBodyUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Deps{})
	id, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "session-user", Request: withUser(validRequest(), "spoofed")})
	require.NoError(t, err)
	assert.Equal(t, "session-user", store.orders[id].UserID)
}

func TestPlaceRequiresIdentity(t *testing.T) {
	svc := newTestService(newMemStore(), Deps{})
	_, err := svc.Place(context.Background(), PlaceCommand{Request: validRequest()})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPlaceUnparsableLabelStoresNullTimes(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Deps{})
	req := validRequest()
	req.Delivery.Label = "evening"
	id, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "u", Request: req})
	require.NoError(t, err)
	assert.Nil(t, store.orders[id].DeliverySlotStartTime)
	assert.Nil(t, store.orders[id].DeliverySlotEndTime)
}

func TestPlaceReservesPersistedSlotsOnly(t *testing.T) {
	res := new(mockReservations)
	res.On("Reserve", mock.Anything, slots.KindPickup, "2025-03-10", pickupSlotUUID).Return(true, nil).Once()
	svc := newTestService(newMemStore(), Deps{Reservations: res})

	_, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "u", Request: validRequest()})
	require.NoError(t, err)
	res.AssertExpectations(t)
	res.AssertNotCalled(t, "Reserve", mock.Anything, slots.KindDelivery, mock.Anything, mock.Anything)
}

func TestPlaceSlotFullReleasesEarlierHold(t *testing.T) {
	req := validRequest()
	req.Delivery.SlotID = deliverySlotUUID

	res := new(mockReservations)
	res.On("Reserve", mock.Anything, slots.KindPickup, "2025-03-10", pickupSlotUUID).Return(true, nil).Once()
	res.On("Reserve", mock.Anything, slots.KindDelivery, "2025-03-10", deliverySlotUUID).Return(false, slots.ErrSlotFull).Once()
	res.On("Release", mock.Anything, slots.KindPickup, "2025-03-10", pickupSlotUUID).Return(nil).Once()

	store := newMemStore()
	svc := newTestService(store, Deps{Reservations: res})
	_, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "u", Request: req})
	assert.ErrorIs(t, err, ErrSlotFull)
	assert.Empty(t, store.orders)
	res.AssertExpectations(t)
}

func TestPlaceReservationOutageFailsOpen(t *testing.T) {
	res := new(mockReservations)
	res.On("Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	store := newMemStore()
	svc := newTestService(store, Deps{Reservations: res})

	_, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "u", Request: validRequest()})
	require.NoError(t, err)
	assert.Len(t, store.orders, 1)
}

func TestPlaceStoreFailureReleasesHolds(t *testing.T) {
	res := new(mockReservations)
	res.On("Reserve", mock.Anything, slots.KindPickup, "2025-03-10", pickupSlotUUID).Return(true, nil).Once()
	res.On("Release", mock.Anything, slots.KindPickup, "2025-03-10", pickupSlotUUID).Return(nil).Once()

	store := newMemStore()
	store.createErr = errors.New("insert failed")
	svc := newTestService(store, Deps{Reservations: res})

	_, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "u", Request: validRequest()})
	assert.EqualError(t, err, "insert failed")
	res.AssertExpectations(t)
}

func TestPlacePublishFailureIsNotFatal(t *testing.T) {
	svc := newTestService(newMemStore(), Deps{Events: &recordingPublisher{err: errors.New("broker down")}})
	_, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "u", Request: validRequest()})
	assert.NoError(t, err)
}

func seedOrder(store *memStore, o Order) {
	store.orders[o.ID] = &o
}

func strp(s string) *string { return &s }

func TestCancelCutoff(t *testing.T) {
	cases := []struct {
		name string
		o    Order
		want time.Time
		err  error
	}{
		{
			name: "standard leads by an hour",
			o:    Order{PickupDate: strp("2025-03-10"), PickupSlotDisplayTime: strp("12:00 PM - 02:00 PM")},
			want: istAt(t, "2025-03-10", 11, 0),
		},
		{
			name: "express locks at pickup start",
			o:    Order{PickupDate: strp("2025-03-10"), PickupSlotDisplayTime: strp("12:00 PM - 02:00 PM"), DeliveryType: "express"},
			want: istAt(t, "2025-03-10", 12, 0),
		},
		{
			name: "falls back to stored start time",
			o:    Order{PickupDate: strp("2025-03-10"), PickupSlotStartTime: strp("08:00:00")},
			want: istAt(t, "2025-03-10", 7, 0),
		},
		{
			name: "early pickup rolls cutoff to previous day",
			o:    Order{PickupDate: strp("2025-03-10"), PickupSlotDisplayTime: strp("12:30 AM - 02:00 AM")},
			want: istAt(t, "2025-03-09", 23, 30),
		},
		{
			name: "missing pickup date",
			o:    Order{PickupSlotDisplayTime: strp("08:00 AM - 10:00 AM")},
			err:  ErrScheduleUnknown,
		},
		{
			name: "no label or start time",
			o:    Order{PickupDate: strp("2025-03-10"), PickupSlotDisplayTime: strp("morning")},
			err:  ErrScheduleUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CancelCutoff(&tc.o, DefaultStandardCancelLead)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func cancellableOrder() Order {
	return Order{
		ID:                    "ORD1",
		UserID:                "owner",
		OrderStatus:           "confirmed",
		Status:                "confirmed",
		PickupDate:            strp("2025-03-10"),
		PickupSlotDisplayTime: strp("12:00 PM - 02:00 PM"),
		PickupSlotID:          strp(pickupSlotUUID),
		DeliveryDate:          strp("2025-03-11"),
		DeliveryType:          "standard",
	}
}

func TestCancel(t *testing.T) {
	cases := []struct {
		name  string
		order Order
		cmd   CancelCommand
		now   time.Time
		err   error
	}{
		{"no session", cancellableOrder(), CancelCommand{OrderID: "ORD1"}, istAt(t, "2025-03-10", 9, 0), ErrUnauthenticated},
		{"blank id", cancellableOrder(), CancelCommand{OrderID: " ", ActorID: "owner"}, istAt(t, "2025-03-10", 9, 0), ErrBadRequest},
		{"unknown order", cancellableOrder(), CancelCommand{OrderID: "ORD404", ActorID: "owner"}, istAt(t, "2025-03-10", 9, 0), ErrNotFound},
		{"not owner", cancellableOrder(), CancelCommand{OrderID: "ORD1", ActorID: "intruder"}, istAt(t, "2025-03-10", 9, 0), ErrForbidden},
		{"exactly at cutoff", cancellableOrder(), CancelCommand{OrderID: "ORD1", ActorID: "owner"}, istAt(t, "2025-03-10", 11, 0), nil},
		{"after cutoff", cancellableOrder(), CancelCommand{OrderID: "ORD1", ActorID: "owner"}, istAt(t, "2025-03-10", 11, 1), ErrCancelWindowPassed},
		{"already cancelled", func() Order { o := cancellableOrder(); o.Status = "Cancelled"; return o }(),
			CancelCommand{OrderID: "ORD1", ActorID: "owner"}, istAt(t, "2025-03-10", 9, 0), ErrNotCancellable},
		{"schedule unknown", func() Order { o := cancellableOrder(); o.PickupSlotDisplayTime = nil; return o }(),
			CancelCommand{OrderID: "ORD1", ActorID: "owner"}, istAt(t, "2025-03-10", 9, 0), ErrScheduleUnknown},
		{"ownerless order", func() Order { o := cancellableOrder(); o.UserID = ""; return o }(),
			CancelCommand{OrderID: "ORD1", ActorID: "anyone"}, istAt(t, "2025-03-10", 9, 0), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			seedOrder(store, tc.order)
			svc := newTestService(store, Deps{Clock: civil.FixedClock{At: tc.now}})

			err := svc.Cancel(context.Background(), tc.cmd)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Equal(t, tc.order.Status, store.orders["ORD1"].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, CancelledMarker, store.orders["ORD1"].Status)
			assert.Equal(t, CancelledMarker, store.orders["ORD1"].OrderStatus)
		})
	}
}

func TestCancelReleasesReservationAndPublishes(t *testing.T) {
	store := newMemStore()
	seedOrder(store, cancellableOrder())
	res := new(mockReservations)
	res.On("Release", mock.Anything, slots.KindPickup, "2025-03-10", pickupSlotUUID).Return(nil).Once()
	pub := &recordingPublisher{}
	svc := newTestService(store, Deps{Reservations: res, Events: pub, Clock: civil.FixedClock{At: istAt(t, "2025-03-10", 9, 0)}})

	require.NoError(t, svc.Cancel(context.Background(), CancelCommand{OrderID: "ORD1", ActorID: "owner"}))
	res.AssertExpectations(t)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderCancelled, pub.events[0].Type)
	require.Len(t, store.events, 1)
	assert.Equal(t, "confirmed", store.events[0].FromStatus)
	assert.Equal(t, CancelledMarker, store.events[0].ToStatus)
	assert.Equal(t, "customer", store.events[0].ActorType)
}

func TestAuditTrailRecordsSessionRole(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Deps{Clock: civil.FixedClock{At: istAt(t, "2025-03-09", 9, 0)}})

	_, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "ops-1", SessionRole: "admin", Request: validRequest()})
	require.NoError(t, err)
	second := withUser(validRequest(), "body-user")
	second.OrderID = "ORD-B"
	_, err = svc.Place(context.Background(), PlaceCommand{Request: second})
	require.NoError(t, err)

	require.Len(t, store.events, 2)
	assert.Equal(t, "admin", store.events[0].ActorType)
	assert.Equal(t, "customer", store.events[1].ActorType)
}

func TestAuditFailureIsLoggedNotReturned(t *testing.T) {
	store := newMemStore()
	store.eventErr = errors.New("audit table locked")
	var logs bytes.Buffer
	svc := NewService(store, Deps{Log: zerolog.New(&logs), Clock: civil.FixedClock{At: istAt(t, "2025-03-09", 9, 0)}})

	id, err := svc.Place(context.Background(), PlaceCommand{SessionUID: "u", Request: validRequest()})
	require.NoError(t, err)
	assert.Contains(t, store.orders, id)
	assert.Contains(t, logs.String(), "order audit event write failed")
	assert.Contains(t, logs.String(), "audit table locked")
}

func TestHistory(t *testing.T) {
	store := newMemStore()
	seedOrder(store, Order{ID: "a", UserID: "u1"})
	seedOrder(store, Order{ID: "b", UserID: "u2"})
	svc := newTestService(store, Deps{})

	got, err := svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	_, err = svc.History(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
