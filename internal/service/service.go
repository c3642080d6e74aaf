// Package service implements the user-management operations on top of the
// store. Handlers decode requests, call one method and encode the result;
// every rule about who may do what to which record lives here.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/auth"
	"github.com/agrilink/usermgmt/internal/integrations"
	"github.com/agrilink/usermgmt/internal/notify"
	"github.com/agrilink/usermgmt/internal/store"
)

var (
	// ErrInvalidAction is returned for an unknown moderation or booking action.
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidPage   = errors.New("invalid page")
)

// ImageAnalysis is the subset of the image-analysis client the service uses.
type ImageAnalysis interface {
	ListDetections(ctx context.Context, bearer string) ([]integrations.Detection, error)
	TriggerRetraining(ctx context.Context, bearer string, body []byte, contentType string) error
}

type Education interface {
	SubmitResource(ctx context.Context, bearer string, r integrations.Resource) (json.RawMessage, error)
}

// Mailer queues outgoing mail; *notify.Dispatcher implements it.
type Mailer interface {
	Enqueue(job notify.Job) bool
}

// Recorder receives domain events for metrics; *metrics.Registry implements it.
type Recorder interface {
	Registered(role string)
	Booked()
	PointsAwarded(reason string, n int)
}

type Options struct {
	ResetTokenTTL     time.Duration
	AlertThreshold    int
	PageSize          int
	ExpertAutoApprove bool
}

type Deps struct {
	DB        *store.DB
	Tokens    *auth.Issuer
	Mail      Mailer
	Images    ImageAnalysis
	Education Education
	Metrics   Recorder
	Options   Options
}

type Service struct {
	db     *store.DB
	tokens *auth.Issuer
	mail   Mailer
	images ImageAnalysis
	edu    Education
	rec    Recorder
	opts   Options
	now    func() time.Time
	newID  func() string
}

func New(d Deps) *Service {
	o := d.Options
	if o.ResetTokenTTL <= 0 {
		o.ResetTokenTTL = time.Hour
	}
	if o.AlertThreshold <= 0 {
		o.AlertThreshold = 3
	}
	if o.PageSize <= 0 {
		o.PageSize = 10
	}
	rec := d.Metrics
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{
		db:     d.DB,
		tokens: d.Tokens,
		mail:   d.Mail,
		images: d.Images,
		edu:    d.Education,
		rec:    rec,
		opts:   o,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

type nopRecorder struct{}

func (nopRecorder) Registered(string)         {}
func (nopRecorder) Booked()                   {}
func (nopRecorder) PointsAwarded(string, int) {}

func (s *Service) clock() time.Time { return s.now().UTC() }

func (s *Service) enqueue(job notify.Job) {
	if s.mail == nil {
		return
	}
	s.mail.Enqueue(job)
}

// notFound translates store.ErrNotFound into the domain error for kind.
func notFound(err error, kind string) error {
	if errors.Is(err, store.ErrNotFound) {
		return accounts.NotFound(kind)
	}
	return err
}

// duplicate turns a unique-index clash into a field validation error.
func duplicate(err error) error {
	var de *store.DuplicateError
	if !errors.As(err, &de) {
		return err
	}
	switch de.Field {
	case "email":
		return accounts.NewValidationError("email", "user with this email already exists.")
	case "username":
		return accounts.NewValidationError("username", "A user with that username already exists.")
	}
	return accounts.NewValidationError(de.Field, "already exists")
}

// settings reads the runtime settings, falling back to configured defaults.
func (s *Service) settings() (accounts.Settings, error) {
	var out accounts.Settings
	err := s.db.System.View(func(tx store.Tx) error {
		var err error
		out, err = store.GetSettings(tx, accounts.DefaultSettings(s.opts.ExpertAutoApprove))
		return err
	})
	return out, err
}

// award adds points to u and records the transaction inside tx.
func (s *Service) award(tx store.Tx, u *accounts.User, points int, reason string) error {
	u.Points += points
	if err := store.Users(tx).Update(u); err != nil {
		return err
	}
	return store.PointTxns(tx).Put(&accounts.PointTransaction{
		ID:        s.newID(),
		UserID:    u.ID,
		Points:    points,
		Reason:    reason,
		CreatedAt: s.clock(),
	})
}

func sortByTime[T any](list []T, at func(T) time.Time, newestFirst bool) {
	sort.SliceStable(list, func(i, j int) bool {
		if newestFirst {
			return at(list[i]).After(at(list[j]))
		}
		return at(list[i]).Before(at(list[j]))
	})
}
