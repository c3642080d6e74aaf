package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrilink/usermgmt/internal/service"
)

type actionRequest struct {
	Action string `json:"action"`
}

type validateRequest struct {
	ExpertComment string `json:"expert_comment"`
}

type approvalRequest struct {
	IsApproved bool `json:"is_approved"`
}

func (a *App) handlePosts(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.Posts()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req service.PostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.svc.CreatePost(userFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *App) handleCreateResponse(w http.ResponseWriter, r *http.Request) {
	var req service.ResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.svc.CreateResponse(userFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *App) handleValidateResponse(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.svc.ValidateResponse(userFrom(r), chi.URLParam(r, "id"), req.ExpertComment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handlePendingPosts(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.PendingPosts()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleModeratePost(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.svc.ModeratePost(chi.URLParam(r, "id"), req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) handleFarmerPostCounts(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.FarmerPostCounts()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleContentApprovalList(w http.ResponseWriter, r *http.Request) {
	a.handlePendingPosts(w, r)
}

func (a *App) handleContentApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.svc.SetPostApproval(chi.URLParam(r, "id"), req.IsApproved)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
