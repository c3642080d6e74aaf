package server

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agrilink/usermgmt/internal/integrations"
	"github.com/agrilink/usermgmt/internal/service"
)

type pagedDetections struct {
	Count    int                      `json:"count"`
	Next     *string                  `json:"next"`
	Previous *string                  `json:"previous"`
	Results  []integrations.Detection `json:"results"`
}

type feedbackRequest struct {
	Content string `json:"content"`
}

func (a *App) handleDiseaseHistory(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, service.ErrInvalidPage)
			return
		}
		page = n
	}
	res, err := a.svc.DiseaseHistory(r.Context(), tokenFrom(r), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := pagedDetections{Count: res.Count, Results: res.Results}
	if res.HasNext {
		out.Next = pageURL(r, res.Page+1)
	}
	if res.HasPrev {
		out.Previous = pageURL(r, res.Page-1)
	}
	writeJSON(w, http.StatusOK, out)
}

// pageURL rebuilds the absolute request URL pointing at another page.
// The first page is addressed without a page parameter.
func pageURL(r *http.Request, page int) *string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	switch p := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); p {
	case "http", "https":
		scheme = p
	}
	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	s := u.String()
	return &s
}

func (a *App) handleAlerts(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.CheckAlerts(r.Context(), userFrom(r), tokenFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handleRetrain(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.RetrainModel(r.Context(), tokenFrom(r), body, r.Header.Get("Content-Type")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Retraining triggered"})
}

func (a *App) handleEducationalContent(w http.ResponseWriter, r *http.Request) {
	var req integrations.Resource
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := a.svc.SubmitEducationalContent(r.Context(), tokenFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(raw)
}

func (a *App) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.SystemHealth(r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fb, err := a.svc.SubmitFeedback(userFrom(r), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

func (a *App) handleFeedbackAnalysis(w http.ResponseWriter, r *http.Request) {
	sum, err := a.svc.FeedbackAnalysis()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *App) handleSettings(w http.ResponseWriter, r *http.Request) {
	s, err := a.svc.Settings()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *App) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.SettingsUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := a.svc.UpdateSettings(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *App) handleCropTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.CropTypes())
}
