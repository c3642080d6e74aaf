package integrations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = Options{Timeout: 2 * time.Second, Retries: 0}

func TestListDetectionsForwardsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rust-detection/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":1,"rust_class":"common_rust"},{"id":2,"rust_class":"none"}]`))
	}))
	defer srv.Close()

	c := NewImageAnalysisClient(srv.URL+"/", testOpts)
	list, err := c.ListDetections(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "common_rust", list[0].RustClass())
	assert.Equal(t, float64(1), list[0]["id"])
}

func TestListDetectionsPaginatedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":1,"results":[{"rust_class":"leaf_blast"}]}`))
	}))
	defer srv.Close()

	list, err := NewImageAnalysisClient(srv.URL, testOpts).ListDetections(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "leaf_blast", list[0].RustClass())
}

func TestUpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewImageAnalysisClient(srv.URL, testOpts).ListDetections(context.Background(), "t")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
}

func TestUpstreamRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	list, err := NewImageAnalysisClient(srv.URL, Options{Timeout: time.Second, Retries: 2}).ListDetections(context.Background(), "t")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSubmitResourceIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	title := "Rust 101"
	_, err := NewEducationClient(srv.URL, Options{Timeout: time.Second, Retries: 3}).SubmitResource(context.Background(), "t", Resource{Title: &title})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewImageAnalysisClient(url, testOpts).TriggerRetraining(context.Background(), "t", nil, "")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestTriggerRetrainingForwardsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upload-training-images/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"dataset":"v2"}`, string(b))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewImageAnalysisClient(srv.URL, testOpts).TriggerRetraining(context.Background(), "t", []byte(`{"dataset":"v2"}`), "application/json")
	assert.NoError(t, err)
}

func TestSubmitResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/resources/", r.URL.Path)
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Rust 101", got["title"])
		assert.Nil(t, got["url"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7,"title":"Rust 101"}`))
	}))
	defer srv.Close()

	title := "Rust 101"
	out, err := NewEducationClient(srv.URL, testOpts).SubmitResource(context.Background(), "t", Resource{Title: &title})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"title":"Rust 101"}`, string(out))
}
