package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/auth"
	"github.com/agrilink/usermgmt/internal/integrations"
	"github.com/agrilink/usermgmt/internal/notify"
	"github.com/agrilink/usermgmt/internal/store"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeMail struct {
	mu   sync.Mutex
	jobs []notify.Job
}

func (f *fakeMail) Enqueue(job notify.Job) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return true
}

func (f *fakeMail) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j.Message.Subject)
	}
	return out
}

type fakeImages struct {
	detections []integrations.Detection
	err        error
	retrained  []byte
}

func (f *fakeImages) ListDetections(ctx context.Context, bearer string) ([]integrations.Detection, error) {
	return f.detections, f.err
}

func (f *fakeImages) TriggerRetraining(ctx context.Context, bearer string, body []byte, contentType string) error {
	f.retrained = body
	return f.err
}

type fakeEdu struct {
	got integrations.Resource
	err error
}

func (f *fakeEdu) SubmitResource(ctx context.Context, bearer string, r integrations.Resource) (json.RawMessage, error) {
	f.got = r
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"id":1}`), nil
}

type fixture struct {
	svc    *Service
	db     *store.DB
	mail   *fakeMail
	images *fakeImages
	edu    *fakeEdu
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.OpenMemoryDB()
	t.Cleanup(func() { _ = db.Close() })
	f := &fixture{db: db, mail: &fakeMail{}, images: &fakeImages{}, edu: &fakeEdu{}}
	f.svc = New(Deps{
		DB:        db,
		Tokens:    auth.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), 5*time.Minute, 24*time.Hour),
		Mail:      f.mail,
		Images:    f.images,
		Education: f.edu,
		Options:   Options{PageSize: 2, AlertThreshold: 3, ExpertAutoApprove: true},
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) farmer(t *testing.T, name string) *accounts.User {
	t.Helper()
	_, err := f.svc.RegisterFarmer(RegisterFarmerRequest{
		Email:           name + "@example.com",
		Username:        name,
		Password:        "s3cret-pass",
		ConfirmPassword: "s3cret-pass",
		FarmLocation:    "Nakuru",
		FarmSize:        ptr(2.5),
		CropTypes:       []string{"MAIZE", "BEANS"},
	})
	require.NoError(t, err)
	return f.user(t, name+"@example.com")
}

func (f *fixture) expert(t *testing.T, name string) *accounts.User {
	t.Helper()
	_, err := f.svc.RegisterExpert(RegisterExpertRequest{
		Email:            name + "@example.com",
		Username:         name,
		Password:         "s3cret-pass",
		AreasOfExpertise: "Rust diseases",
	})
	require.NoError(t, err)
	return f.user(t, name+"@example.com")
}

func (f *fixture) admin(t *testing.T) *accounts.User {
	t.Helper()
	_, err := f.svc.CreateAdmin("root@example.com", "root", "s3cret-pass")
	require.NoError(t, err)
	return f.user(t, "root@example.com")
}

func (f *fixture) user(t *testing.T, email string) *accounts.User {
	t.Helper()
	var u *accounts.User
	require.NoError(t, f.db.Accounts.View(func(tx store.Tx) error {
		var err error
		u, err = store.Users(tx).ByEmail(email)
		return err
	}))
	return u
}

func requireField(t *testing.T, err error, field, msg string) {
	t.Helper()
	ve, ok := accounts.IsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	require.Equal(t, msg, ve.Fields[field], "fields: %v", ve.Fields)
}
