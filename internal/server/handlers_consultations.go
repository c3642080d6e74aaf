package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrilink/usermgmt/internal/service"
)

func (a *App) handleExpertSlots(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ExpertSlots(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req service.SlotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	slot, err := a.svc.CreateSlot(userFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (a *App) handleDeactivateSlot(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeactivateSlot(userFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.AvailableSlots()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleFarmerBookings(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.FarmerBookings(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := a.svc.CreateBooking(userFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (a *App) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := a.svc.UpdateBooking(userFrom(r), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *App) handleExpertBookings(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ExpertBookings(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
