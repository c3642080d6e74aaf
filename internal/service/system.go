package service

import (
	"strings"
	"time"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/store"
)

const recentFeedbackWindow = 30 * 24 * time.Hour

// SystemHealth lists recorded metrics, newest first, optionally filtered by name.
func (s *Service) SystemHealth(name string) ([]accounts.SystemMetric, error) {
	var out []accounts.SystemMetric
	err := s.db.System.View(func(tx store.Tx) error {
		var err error
		out, err = store.Metrics(tx).List(func(m *accounts.SystemMetric) bool {
			return name == "" || m.MetricName == name
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sortByTime(out, func(m accounts.SystemMetric) time.Time { return m.RecordedAt }, true)
	return out, nil
}

func (s *Service) SubmitFeedback(farmer *accounts.User, content string) (*FeedbackView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, accounts.NewValidationError("content", "This field is required.")
	}
	fb := &accounts.Feedback{
		ID:        s.newID(),
		FarmerID:  farmer.ID,
		Content:   content,
		CreatedAt: s.clock(),
	}
	var out *FeedbackView
	err := s.db.Accounts.Update(func(tx store.Tx) error {
		if err := store.FeedbackItems(tx).Put(fb); err != nil {
			return err
		}
		out = &FeedbackView{
			ID:        fb.ID,
			Farmer:    newViewer(tx).user(farmer.ID),
			Content:   fb.Content,
			CreatedAt: fb.CreatedAt,
		}
		return nil
	})
	return out, err
}

type FeedbackSummary struct {
	Total  int `json:"total_feedback"`
	Recent int `json:"recent_feedback"`
}

// FeedbackAnalysis counts all feedback and the feedback of the last 30 days.
func (s *Service) FeedbackAnalysis() (*FeedbackSummary, error) {
	cutoff := s.clock().Add(-recentFeedbackWindow)
	out := &FeedbackSummary{}
	err := s.db.Accounts.View(func(tx store.Tx) error {
		_, err := store.FeedbackItems(tx).List(func(f *accounts.Feedback) bool {
			out.Total++
			if !f.CreatedAt.Before(cutoff) {
				out.Recent++
			}
			return false
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Settings() (accounts.Settings, error) {
	return s.settings()
}

type SettingsUpdate struct {
	FarmerRegistrationOpen *bool   `json:"farmer_registration_open"`
	ExpertRegistrationOpen *bool   `json:"expert_registration_open"`
	ExpertAutoApprove      *bool   `json:"expert_auto_approve"`
	Notice                 *string `json:"notice"`
}

func (s *Service) UpdateSettings(req SettingsUpdate) (accounts.Settings, error) {
	var out accounts.Settings
	err := s.db.System.Update(func(tx store.Tx) error {
		cur, err := store.GetSettings(tx, accounts.DefaultSettings(s.opts.ExpertAutoApprove))
		if err != nil {
			return err
		}
		if req.FarmerRegistrationOpen != nil {
			cur.FarmerRegistrationOpen = *req.FarmerRegistrationOpen
		}
		if req.ExpertRegistrationOpen != nil {
			cur.ExpertRegistrationOpen = *req.ExpertRegistrationOpen
		}
		if req.ExpertAutoApprove != nil {
			cur.ExpertAutoApprove = *req.ExpertAutoApprove
		}
		if req.Notice != nil {
			cur.Notice = *req.Notice
		}
		if err := store.PutSettings(tx, cur); err != nil {
			return err
		}
		out, err = store.GetSettings(tx, cur)
		return err
	})
	return out, err
}

type CropTypeView struct {
	Value accounts.CropType `json:"value"`
	Label string            `json:"label"`
}

func CropTypes() []CropTypeView {
	list := accounts.CropTypes()
	out := make([]CropTypeView, 0, len(list))
	for _, c := range list {
		out = append(out, CropTypeView{Value: c, Label: c.Label()})
	}
	return out
}
