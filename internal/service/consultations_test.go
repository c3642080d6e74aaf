package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/store"
)

func slotAt(startIn, length time.Duration) SlotRequest {
	start := testNow.Add(startIn)
	end := start.Add(length)
	return SlotRequest{StartTime: &start, EndTime: &end}
}

func TestCreateSlotValidation(t *testing.T) {
	f := newFixture(t)
	ann := f.expert(t, "ann")

	_, err := f.svc.CreateSlot(ann, SlotRequest{})
	requireField(t, err, "start_time", "This field is required.")

	_, err = f.svc.CreateSlot(ann, slotAt(time.Hour, 0))
	requireField(t, err, "end_time", "End time must be after start time")

	_, err = f.svc.CreateSlot(ann, slotAt(-time.Hour, 2*time.Hour))
	requireField(t, err, "start_time", "Start time cannot be in the past")

	slot, err := f.svc.CreateSlot(ann, slotAt(time.Hour, time.Hour))
	require.NoError(t, err)
	assert.True(t, slot.IsActive)
	assert.Equal(t, "ann", slot.Expert.User.Username)

	_, err = f.svc.CreateSlot(ann, slotAt(90*time.Minute, time.Hour))
	requireField(t, err, accounts.NonFieldErrors, "Slot overlaps with an existing active slot")

	// Adjacent windows do not overlap.
	_, err = f.svc.CreateSlot(ann, slotAt(2*time.Hour, time.Hour))
	require.NoError(t, err)

	// Another expert may use the same window.
	bob := f.expert(t, "bob")
	_, err = f.svc.CreateSlot(bob, slotAt(time.Hour, time.Hour))
	require.NoError(t, err)

	own, err := f.svc.ExpertSlots(ann)
	require.NoError(t, err)
	assert.Len(t, own, 2)
}

func TestDeactivateSlot(t *testing.T) {
	f := newFixture(t)
	ann := f.expert(t, "ann")
	bob := f.expert(t, "bob")
	slot, err := f.svc.CreateSlot(ann, slotAt(time.Hour, time.Hour))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeactivateSlot(bob, slot.ID), accounts.ErrNotFound)
	require.NoError(t, f.svc.DeactivateSlot(ann, slot.ID))

	avail, err := f.svc.AvailableSlots()
	require.NoError(t, err)
	assert.Empty(t, avail)

	// An inactive slot no longer blocks the window.
	_, err = f.svc.CreateSlot(ann, slotAt(time.Hour, time.Hour))
	require.NoError(t, err)
}

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t)
	ann := f.expert(t, "ann")
	joe := f.farmer(t, "joe")
	sam := f.farmer(t, "sam")
	slot, err := f.svc.CreateSlot(ann, slotAt(time.Hour, time.Hour))
	require.NoError(t, err)

	avail, err := f.svc.AvailableSlots()
	require.NoError(t, err)
	require.Len(t, avail, 1)

	b, err := f.svc.CreateBooking(joe, BookingRequest{SlotID: slot.ID})
	require.NoError(t, err)
	assert.Equal(t, accounts.BookingPending, b.Status)
	assert.True(t, b.Slot.IsBooked)
	assert.Equal(t, []string{"New Consultation Booking"}, f.mail.subjects())
	assert.Equal(t, []string{"ann@example.com"}, f.mail.jobs[0].Message.To)

	f.mail.jobs[0].OnSent()
	mine, err := f.svc.FarmerBookings(joe)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].NotificationSent)

	_, err = f.svc.CreateBooking(sam, BookingRequest{SlotID: slot.ID})
	requireField(t, err, "slot_id", "Slot unavailable")
	_, err = f.svc.CreateBooking(sam, BookingRequest{SlotID: "missing"})
	requireField(t, err, "slot_id", "Slot unavailable")

	requireField(t, f.svc.DeactivateSlot(ann, slot.ID), accounts.NonFieldErrors, "Booked slots cannot be deactivated")

	theirs, err := f.svc.ExpertBookings(ann)
	require.NoError(t, err)
	require.Len(t, theirs, 1)

	_, err = f.svc.UpdateBooking(ann, b.ID, ActionComplete)
	requireField(t, err, "status", "Cannot complete a pending booking")
	_, err = f.svc.UpdateBooking(ann, b.ID, "reschedule")
	assert.ErrorIs(t, err, ErrInvalidAction)
	_, err = f.svc.UpdateBooking(ann, "missing", "reschedule")
	assert.ErrorIs(t, err, accounts.ErrNotFound)
	_, err = f.svc.UpdateBooking(sam, b.ID, "reschedule")
	assert.ErrorIs(t, err, accounts.ErrNotFound)
	_, err = f.svc.UpdateBooking(sam, b.ID, ActionCancel)
	assert.ErrorIs(t, err, accounts.ErrNotFound)

	b, err = f.svc.UpdateBooking(ann, b.ID, ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, accounts.BookingConfirmed, b.Status)

	_, err = f.svc.UpdateBooking(joe, b.ID, ActionCancel)
	requireField(t, err, "status", "Only pending bookings can be cancelled")

	b, err = f.svc.UpdateBooking(ann, b.ID, ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, accounts.BookingCompleted, b.Status)
}

func TestFarmerCancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	ann := f.expert(t, "ann")
	joe := f.farmer(t, "joe")
	slot, err := f.svc.CreateSlot(ann, slotAt(time.Hour, time.Hour))
	require.NoError(t, err)
	b, err := f.svc.CreateBooking(joe, BookingRequest{SlotID: slot.ID})
	require.NoError(t, err)

	_, err = f.svc.UpdateBooking(joe, b.ID, ActionConfirm)
	assert.ErrorIs(t, err, accounts.ErrPermission)

	b, err = f.svc.UpdateBooking(joe, b.ID, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, accounts.BookingCancelled, b.Status)
	assert.False(t, b.Slot.IsBooked)

	avail, err := f.svc.AvailableSlots()
	require.NoError(t, err)
	assert.Len(t, avail, 1)
}

func TestExpiredSlotCannotBeBooked(t *testing.T) {
	f := newFixture(t)
	ann := f.expert(t, "ann")
	joe := f.farmer(t, "joe")
	slot, err := f.svc.CreateSlot(ann, slotAt(time.Hour, time.Hour))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	avail, err := f.svc.AvailableSlots()
	require.NoError(t, err)
	assert.Empty(t, avail)

	_, err = f.svc.CreateBooking(joe, BookingRequest{SlotID: slot.ID})
	requireField(t, err, "slot_id", "This slot has expired")

	require.NoError(t, f.db.Accounts.View(func(tx store.Tx) error {
		sl, err := store.Slots(tx).Get(slot.ID)
		assert.False(t, sl.IsBooked)
		return err
	}))
}

func TestConcurrentBookingsTakeSlotOnce(t *testing.T) {
	f := newFixture(t)
	ann := f.expert(t, "ann")
	slot, err := f.svc.CreateSlot(ann, slotAt(time.Hour, time.Hour))
	require.NoError(t, err)

	farmers := make([]*accounts.User, 10)
	for i := range farmers {
		farmers[i] = f.farmer(t, fmt.Sprintf("farmer%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(farmers))
	for i, u := range farmers {
		wg.Add(1)
		go func(i int, u *accounts.User) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateBooking(u, BookingRequest{SlotID: slot.ID})
		}(i, u)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireField(t, err, "slot_id", "Slot unavailable")
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, f.mail.subjects(), 1)
	booked, err := f.svc.ExpertBookings(ann)
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.True(t, booked[0].Slot.IsBooked)
}
