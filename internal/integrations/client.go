// Package integrations talks to the image-analysis and education services.
//
// Both clients forward the caller's bearer token unchanged. Transport errors
// and non-2xx answers are reported as ErrUpstream.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/agrilink/usermgmt/internal/logger"
)

var ErrUpstream = errors.New("upstream request failed")

// StatusError carries the status of a non-2xx upstream answer.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d Client Error for url: %s", e.Status, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

type Options struct {
	Timeout time.Duration
	Retries int
}

type base struct {
	baseURL string
	http    *retryablehttp.Client
	log     zerolog.Logger
}

func newBase(baseURL, component string, opts Options) base {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.Retries
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.CheckRetry = retryIdempotent
	// Hand the last response back so callers see the upstream status.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	l := logger.With(component)
	c.Logger = retryLogger{l}
	return base{baseURL: strings.TrimRight(baseURL, "/"), http: c, log: l}
}

type sendOnceKey struct{}

// retryIdempotent applies the default policy to GET requests only; other
// methods are sent once.
func retryIdempotent(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if once, _ := ctx.Value(sendOnceKey{}).(bool); once {
		return false, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (b base) do(ctx context.Context, method, path, bearer, contentType string, body []byte) ([]byte, error) {
	url := b.baseURL + path
	if method != http.MethodGet {
		ctx = context.WithValue(ctx, sendOnceKey{}, true)
	}
	var payload any
	if body != nil {
		payload = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.log.Warn().Str("method", method).Str("url", url).Int("status", resp.StatusCode).Msg("upstream returned error")
		return nil, &StatusError{URL: url, Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// retryLogger adapts zerolog to retryablehttp.LeveledLogger.
type retryLogger struct{ l zerolog.Logger }

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Error().Fields(kv).Msg(msg) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debug().Fields(kv).Msg(msg) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Debug().Fields(kv).Msg(msg) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warn().Fields(kv).Msg(msg) }

// Detection is one rust-detection record. Fields other than RustClass are
// passed through untouched.
type Detection map[string]any

// RustClass returns the detected disease class, or "" when absent.
func (d Detection) RustClass() string {
	s, _ := d["rust_class"].(string)
	return s
}

type ImageAnalysisClient struct{ base }

func NewImageAnalysisClient(baseURL string, opts Options) *ImageAnalysisClient {
	return &ImageAnalysisClient{newBase(baseURL, "image-analysis", opts)}
}

// ListDetections returns the caller's detection history. Both a bare JSON
// array and a paginated {"results": [...]} envelope are accepted.
func (c *ImageAnalysisClient) ListDetections(ctx context.Context, bearer string) ([]Detection, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/rust-detection/", bearer, "", nil)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	var list []Detection
	if len(data) > 0 && data[0] == '{' {
		var env struct {
			Results []Detection `json:"results"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: decode detections: %v", ErrUpstream, err)
		}
		list = env.Results
	} else if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: decode detections: %v", ErrUpstream, err)
	}
	if list == nil {
		list = []Detection{}
	}
	return list, nil
}

// TriggerRetraining forwards body to the training-image upload endpoint.
func (c *ImageAnalysisClient) TriggerRetraining(ctx context.Context, bearer string, body []byte, contentType string) error {
	if body == nil {
		body = []byte{}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/upload-training-images/", bearer, contentType, body)
	return err
}

// Resource is an educational resource submission.
type Resource struct {
	Title        *string `json:"title"`
	URL          *string `json:"url"`
	Description  *string `json:"description"`
	Disease      *string `json:"disease"`
	ResourceType *string `json:"resource_type"`
}

type EducationClient struct{ base }

func NewEducationClient(baseURL string, opts Options) *EducationClient {
	return &EducationClient{newBase(baseURL, "education", opts)}
}

// SubmitResource creates a resource and returns the upstream JSON document.
func (c *EducationClient) SubmitResource(ctx context.Context, bearer string, r Resource) (json.RawMessage, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodPost, "/api/resources/", bearer, "application/json", body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: education service returned invalid JSON", ErrUpstream)
	}
	return json.RawMessage(data), nil
}
