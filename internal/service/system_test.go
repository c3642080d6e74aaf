package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/integrations"
	"github.com/agrilink/usermgmt/internal/store"
)

func detections(classes ...string) []integrations.Detection {
	out := make([]integrations.Detection, 0, len(classes))
	for i, c := range classes {
		out = append(out, integrations.Detection{"id": float64(i + 1), "rust_class": c})
	}
	return out
}

func TestDiseaseHistoryPagination(t *testing.T) {
	f := newFixture(t)
	f.images.detections = detections("a", "b", "c")

	page, err := f.svc.DiseaseHistory(context.Background(), "tok", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	assert.Len(t, page.Results, 2)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)

	page, err = f.svc.DiseaseHistory(context.Background(), "tok", 2)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "c", page.Results[0].RustClass())
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)

	_, err = f.svc.DiseaseHistory(context.Background(), "tok", 3)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = f.svc.DiseaseHistory(context.Background(), "tok", 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = f.svc.DiseaseHistory(context.Background(), "tok", 1<<62+1)
	assert.ErrorIs(t, err, ErrInvalidPage)

	f.images.detections = nil
	page, err = f.svc.DiseaseHistory(context.Background(), "tok", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Count)
	assert.NotNil(t, page.Results)
}

func TestCheckAlertsOncePerClass(t *testing.T) {
	f := newFixture(t)
	joe := f.farmer(t, "joe")
	f.images.detections = detections("common_rust", "common_rust", "leaf_blast", "common_rust", "common_rust", "")

	res, err := f.svc.CheckAlerts(context.Background(), joe, "tok")
	require.NoError(t, err)
	assert.Equal(t, "Checked for alerts", res.Status)
	assert.Equal(t, map[string]int{"common_rust": 4, "leaf_blast": 1}, res.Counts)
	assert.Equal(t, []string{"Disease Alert: common_rust Detected"}, f.mail.subjects())
	assert.Equal(t, []string{"joe@example.com"}, f.mail.jobs[0].Message.To)
}

func TestUpstreamErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	joe := f.farmer(t, "joe")
	f.images.err = errors.Join(integrations.ErrUpstream, errors.New("boom"))

	_, err := f.svc.CheckAlerts(context.Background(), joe, "tok")
	assert.ErrorIs(t, err, integrations.ErrUpstream)
	assert.ErrorIs(t, f.svc.RetrainModel(context.Background(), "tok", []byte("x"), "text/plain"), integrations.ErrUpstream)
	assert.Empty(t, f.mail.subjects())
}

func TestRetrainAndEducationalContent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RetrainModel(context.Background(), "tok", []byte(`{"a":1}`), "application/json"))
	assert.Equal(t, []byte(`{"a":1}`), f.images.retrained)

	title := "Managing rust"
	out, err := f.svc.SubmitEducationalContent(context.Background(), "tok", integrations.Resource{Title: &title})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(out))
	assert.Equal(t, "Managing rust", *f.edu.got.Title)
}

func TestFeedbackAnalysis(t *testing.T) {
	f := newFixture(t)
	joe := f.farmer(t, "joe")

	_, err := f.svc.SubmitFeedback(joe, "  ")
	requireField(t, err, "content", "This field is required.")

	fb, err := f.svc.SubmitFeedback(joe, "Great app")
	require.NoError(t, err)
	assert.Equal(t, "joe", fb.Farmer.Username)

	require.NoError(t, f.db.Accounts.Update(func(tx store.Tx) error {
		return store.FeedbackItems(tx).Put(&accounts.Feedback{ID: "old", FarmerID: joe.ID, Content: "x", CreatedAt: testNow.Add(-40 * 24 * time.Hour)})
	}))

	sum, err := f.svc.FeedbackAnalysis()
	require.NoError(t, err)
	assert.Equal(t, &FeedbackSummary{Total: 2, Recent: 1}, sum)
}

func TestSystemHealth(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.System.Update(func(tx store.Tx) error {
		m := store.Metrics(tx)
		for i, name := range []string{"goroutines", "users_total", "goroutines"} {
			err := m.Put(&accounts.SystemMetric{ID: string(rune('a' + i)), MetricName: name, Value: float64(i), RecordedAt: testNow.Add(time.Duration(i) * time.Minute)})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := f.svc.SystemHealth("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	g, err := f.svc.SystemHealth("goroutines")
	require.NoError(t, err)
	assert.Len(t, g, 2)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)
	s, err := f.svc.Settings()
	require.NoError(t, err)
	assert.True(t, s.FarmerRegistrationOpen)
	assert.True(t, s.ExpertAutoApprove)

	s, err = f.svc.UpdateSettings(SettingsUpdate{Notice: ptr("**Maintenance** on Friday")})
	require.NoError(t, err)
	assert.Equal(t, "**Maintenance** on Friday", s.Notice)
	assert.True(t, s.ExpertRegistrationOpen)
	assert.False(t, s.UpdatedAt.IsZero())
}

func TestCropTypes(t *testing.T) {
	list := CropTypes()
	require.Len(t, list, 5)
	assert.Equal(t, CropTypeView{Value: accounts.CropMaize, Label: "Maize"}, list[0])
	assert.Equal(t, "Potatoes", list[4].Label)
}
