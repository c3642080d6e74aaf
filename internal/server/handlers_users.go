package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/service"
)

func (a *App) handleFarmerProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.FarmerProfile(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) handleUpdateFarmerProfile(w http.ResponseWriter, r *http.Request) {
	var req service.FarmerProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.svc.UpdateFarmerProfile(userFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) handleExpertProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.ExpertProfile(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) handleUpdateExpertProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ExpertProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.svc.UpdateExpertProfile(userFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) handlePointHistory(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.PointHistory(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleListUsers(w http.ResponseWriter, r *http.Request) {
	role := accounts.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		writeError(w, r, accounts.NewValidationError("role", `"`+string(role)+`" is not a valid choice.`))
		return
	}
	list, err := a.svc.ListUsers(role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req service.AdminUserUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.svc.UpdateUser(chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
