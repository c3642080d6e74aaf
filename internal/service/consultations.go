package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/logger"
	"github.com/agrilink/usermgmt/internal/notify"
	"github.com/agrilink/usermgmt/internal/store"
)

// ExpertSlots lists the expert's active, unbooked slots by start time.
func (s *Service) ExpertSlots(expert *accounts.User) ([]SlotView, error) {
	return s.listSlots(func(sl *accounts.AvailabilitySlot) bool {
		return sl.ExpertID == expert.ID && sl.IsActive && !sl.IsBooked
	})
}

// AvailableSlots lists every slot a farmer can book right now.
func (s *Service) AvailableSlots() ([]SlotView, error) {
	now := s.clock()
	return s.listSlots(func(sl *accounts.AvailabilitySlot) bool {
		return sl.IsActive && !sl.IsBooked && !sl.Expired(now)
	})
}

func (s *Service) listSlots(keep func(*accounts.AvailabilitySlot) bool) ([]SlotView, error) {
	var out []SlotView
	err := s.db.Accounts.View(func(tx store.Tx) error {
		list, err := store.Slots(tx).List(keep)
		if err != nil {
			return err
		}
		sortByTime(list, func(sl accounts.AvailabilitySlot) time.Time { return sl.StartTime }, false)
		v := newViewer(tx)
		out = make([]SlotView, 0, len(list))
		for i := range list {
			out = append(out, v.slot(&list[i]))
		}
		return nil
	})
	return out, err
}

type SlotRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// CreateSlot adds an availability window. It must end after it starts,
// start in the future and not overlap another active slot of the expert.
func (s *Service) CreateSlot(expert *accounts.User, req SlotRequest) (*SlotView, error) {
	ve := &accounts.ValidationError{}
	if req.StartTime == nil {
		ve.Add("start_time", "This field is required.")
	}
	if req.EndTime == nil {
		ve.Add("end_time", "This field is required.")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	if !start.Before(end) {
		return nil, accounts.NewValidationError("end_time", "End time must be after start time")
	}
	if start.Before(s.clock()) {
		return nil, accounts.NewValidationError("start_time", "Start time cannot be in the past")
	}

	slot := &accounts.AvailabilitySlot{
		ID:        s.newID(),
		ExpertID:  expert.ID,
		StartTime: start,
		EndTime:   end,
		IsActive:  true,
	}
	var out *SlotView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		repo := store.Slots(tx)
		clash, err := repo.Count(func(o *accounts.AvailabilitySlot) bool {
			return o.ExpertID == expert.ID && o.IsActive && o.Overlaps(start, end)
		})
		if err != nil {
			return err
		}
		if clash > 0 {
			return accounts.NewValidationError(accounts.NonFieldErrors, "Slot overlaps with an existing active slot")
		}
		if err := repo.Put(slot); err != nil {
			return err
		}
		v := newViewer(tx).slot(slot)
		out = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeactivateSlot hides one of the expert's unbooked slots.
func (s *Service) DeactivateSlot(expert *accounts.User, id string) error {
	return s.db.Accounts.Update(func(tx store.Tx) error {
		repo := store.Slots(tx)
		sl, err := repo.Get(id)
		if err != nil {
			return notFound(err, "Slot")
		}
		if sl.ExpertID != expert.ID {
			return accounts.NotFound("Slot")
		}
		if sl.IsBooked {
			return accounts.NewValidationError(accounts.NonFieldErrors, "Booked slots cannot be deactivated")
		}
		sl.IsActive = false
		return repo.Put(sl)
	})
}

// FarmerBookings lists the farmer's bookings, newest first.
func (s *Service) FarmerBookings(farmer *accounts.User) ([]BookingView, error) {
	return s.listBookings(func(tx store.Tx, b *accounts.ConsultationBooking) bool {
		return b.FarmerID == farmer.ID
	})
}

// ExpertBookings lists bookings made on the expert's slots, newest first.
func (s *Service) ExpertBookings(expert *accounts.User) ([]BookingView, error) {
	return s.listBookings(func(tx store.Tx, b *accounts.ConsultationBooking) bool {
		sl, err := store.Slots(tx).Get(b.SlotID)
		return err == nil && sl.ExpertID == expert.ID
	})
}

func (s *Service) listBookings(keep func(store.Tx, *accounts.ConsultationBooking) bool) ([]BookingView, error) {
	var out []BookingView
	err := s.db.Accounts.View(func(tx store.Tx) error {
		list, err := store.Bookings(tx).List(func(b *accounts.ConsultationBooking) bool { return keep(tx, b) })
		if err != nil {
			return err
		}
		sortByTime(list, func(b accounts.ConsultationBooking) time.Time { return b.CreatedAt }, true)
		v := newViewer(tx)
		out = make([]BookingView, 0, len(list))
		for i := range list {
			out = append(out, v.booking(&list[i]))
		}
		return nil
	})
	return out, err
}

type BookingRequest struct {
	SlotID       string     `json:"slot_id"`
	SelectedDate *time.Time `json:"selected_date"`
}

// CreateBooking books a slot for the farmer. The slot flag and the booking
// are written in one transaction, so a slot is never booked twice.
func (s *Service) CreateBooking(farmer *accounts.User, req BookingRequest) (*BookingView, error) {
	if req.SlotID == "" {
		return nil, accounts.NewValidationError("slot_id", "This field is required.")
	}
	now := s.clock()
	booking := &accounts.ConsultationBooking{
		ID:           s.newID(),
		FarmerID:     farmer.ID,
		SlotID:       req.SlotID,
		Status:       accounts.BookingPending,
		SelectedDate: req.SelectedDate,
		CreatedAt:    now,
	}
	var (
		out    *BookingView
		expert *accounts.User
		slot   *accounts.AvailabilitySlot
	)
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		slots := store.Slots(tx)
		sl, err := slots.Get(req.SlotID)
		if errors.Is(err, store.ErrNotFound) {
			return accounts.NewValidationError("slot_id", "Slot unavailable")
		}
		if err != nil {
			return err
		}
		if !sl.IsActive || sl.IsBooked {
			return accounts.NewValidationError("slot_id", "Slot unavailable")
		}
		if sl.Expired(now) {
			return accounts.NewValidationError("slot_id", "This slot has expired")
		}
		sl.IsBooked = true
		if err := slots.Put(sl); err != nil {
			return err
		}
		if err := store.Bookings(tx).Put(booking); err != nil {
			return err
		}
		slot = sl
		expert, _ = store.Users(tx).Get(sl.ExpertID)
		bv := newViewer(tx).booking(booking)
		out = &bv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.rec.Booked()
	if expert != nil {
		s.notifyBooking(expert, farmer, slot, booking.ID)
	}
	return out, nil
}

func (s *Service) notifyBooking(expert, farmer *accounts.User, slot *accounts.AvailabilitySlot, bookingID string) {
	s.enqueue(notify.Job{
		Message: notify.Message{
			To:      []string{expert.Email},
			Subject: "New Consultation Booking",
			Body: fmt.Sprintf("%s booked your consultation slot from %s to %s.",
				farmer.Username,
				slot.StartTime.Format("2006-01-02 15:04 MST"),
				slot.EndTime.Format("2006-01-02 15:04 MST")),
		},
		OnSent: func() { s.markNotified(bookingID) },
	})
}

func (s *Service) markNotified(bookingID string) {
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		repo := store.Bookings(tx)
		b, err := repo.Get(bookingID)
		if err != nil {
			return err
		}
		b.NotificationSent = true
		return repo.Put(b)
	})
	if err != nil {
		logger.Warn("booking %s: mark notification sent: %v", bookingID, err)
	}
}

const (
	ActionConfirm  = "confirm"
	ActionCancel   = "cancel"
	ActionComplete = "complete"
)

// UpdateBooking moves a booking through its lifecycle. Farmers may cancel
// their own pending bookings; the slot's expert may confirm, cancel or
// complete. Cancelling frees the slot.
func (s *Service) UpdateBooking(actor *accounts.User, id, action string) (*BookingView, error) {
	var out *BookingView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		bookings := store.Bookings(tx)
		b, err := bookings.Get(id)
		if err != nil {
			return notFound(err, "Booking")
		}
		slots := store.Slots(tx)
		sl, err := slots.Get(b.SlotID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		switch actor.Role {
		case accounts.RoleFarmer:
			if b.FarmerID != actor.ID {
				return accounts.NotFound("Booking")
			}
		case accounts.RoleExpert:
			if sl == nil || sl.ExpertID != actor.ID {
				return accounts.NotFound("Booking")
			}
		default:
			return accounts.ErrPermission
		}

		switch action {
		case ActionConfirm, ActionCancel, ActionComplete:
		default:
			return ErrInvalidAction
		}
		if actor.Role == accounts.RoleFarmer {
			if action != ActionCancel {
				return accounts.ErrPermission
			}
			if b.Status != accounts.BookingPending {
				return accounts.NewValidationError("status", "Only pending bookings can be cancelled")
			}
		}

		next, ok := transition(b.Status, action)
		if !ok {
			return accounts.NewValidationError("status", fmt.Sprintf("Cannot %s a %s booking", action, b.Status))
		}
		b.Status = next
		if next == accounts.BookingCancelled && sl != nil {
			sl.IsBooked = false
			if err := slots.Put(sl); err != nil {
				return err
			}
		}
		if err := bookings.Put(b); err != nil {
			return err
		}
		bv := newViewer(tx).booking(b)
		out = &bv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func transition(from accounts.BookingStatus, action string) (accounts.BookingStatus, bool) {
	switch action {
	case ActionConfirm:
		if from == accounts.BookingPending {
			return accounts.BookingConfirmed, true
		}
	case ActionCancel:
		if from == accounts.BookingPending || from == accounts.BookingConfirmed {
			return accounts.BookingCancelled, true
		}
	case ActionComplete:
		if from == accounts.BookingConfirmed {
			return accounts.BookingCompleted, true
		}
	}
	return from, false
}
