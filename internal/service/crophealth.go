package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/integrations"
	"github.com/agrilink/usermgmt/internal/logger"
	"github.com/agrilink/usermgmt/internal/notify"
)

var ErrNoUpstream = errors.New("upstream service not configured")

// DetectionPage is one page of the caller's detection history.
type DetectionPage struct {
	Count   int                      `json:"count"`
	Page    int                      `json:"-"`
	HasNext bool                     `json:"-"`
	HasPrev bool                     `json:"-"`
	Results []integrations.Detection `json:"results"`
}

// DiseaseHistory fetches detections from the image-analysis service and
// returns the requested page (1-based).
func (s *Service) DiseaseHistory(ctx context.Context, bearer string, page int) (*DetectionPage, error) {
	if s.images == nil {
		return nil, ErrNoUpstream
	}
	if page < 1 {
		return nil, ErrInvalidPage
	}
	list, err := s.images.ListDetections(ctx, bearer)
	if err != nil {
		return nil, err
	}
	size := s.opts.PageSize
	pages := (len(list) + size - 1) / size
	if page != 1 && page > pages {
		return nil, ErrInvalidPage
	}
	start := (page - 1) * size
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	results := list[start:end]
	if results == nil {
		results = []integrations.Detection{}
	}
	return &DetectionPage{
		Count:   len(list),
		Page:    page,
		HasNext: end < len(list),
		HasPrev: page > 1,
		Results: results,
	}, nil
}

type AlertResult struct {
	Status string         `json:"status"`
	Counts map[string]int `json:"counts"`
}

// CheckAlerts counts detections per disease class and queues one alert email
// for every class that reached the configured threshold.
func (s *Service) CheckAlerts(ctx context.Context, actor *accounts.User, bearer string) (*AlertResult, error) {
	if s.images == nil {
		return nil, ErrNoUpstream
	}
	list, err := s.images.ListDetections(ctx, bearer)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, d := range list {
		if c := d.RustClass(); c != "" {
			counts[c]++
		}
	}
	classes := make([]string, 0, len(counts))
	for c, n := range counts {
		if n >= s.opts.AlertThreshold {
			classes = append(classes, c)
		}
	}
	sort.Strings(classes)
	for _, c := range classes {
		logger.Info("disease alert for %s: %s x%d", actor.Email, c, counts[c])
		s.enqueue(notify.Job{Message: notify.AlertMessage(actor.Email, c)})
	}
	return &AlertResult{Status: "Checked for alerts", Counts: counts}, nil
}

// RetrainModel forwards a training upload to the image-analysis service.
func (s *Service) RetrainModel(ctx context.Context, bearer string, body []byte, contentType string) error {
	if s.images == nil {
		return ErrNoUpstream
	}
	return s.images.TriggerRetraining(ctx, bearer, body, contentType)
}

// SubmitEducationalContent forwards an expert's resource to the education service.
func (s *Service) SubmitEducationalContent(ctx context.Context, bearer string, r integrations.Resource) (json.RawMessage, error) {
	if s.edu == nil {
		return nil, ErrNoUpstream
	}
	return s.edu.SubmitResource(ctx, bearer, r)
}
