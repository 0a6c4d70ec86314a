// Package client calls a running prediction API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"callquality/internal/api"
)

// ErrServiceUnavailable is returned when the API answers 503, usually
// because no model is loaded.
var ErrServiceUnavailable = errors.New("prediction service unavailable")

// APIError is a non-2xx answer other than 503.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict posts one call record and returns the rating response.
func (c *Client) Predict(ctx context.Context, req api.PredictRequest) (*api.PredictResponse, error) {
	out := &api.PredictResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(out).
		SetError(&api.ErrorResponse{}).
		Post(c.base + "/predict")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Health returns the health report. A 503 still decodes the body and is
// returned together with ErrServiceUnavailable.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	out := &api.HealthResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(out).
		Get(c.base + "/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusServiceUnavailable {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return nil, ErrServiceUnavailable
		}
		return out, ErrServiceUnavailable
	}
	if err := check(resp, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ModelInfo(ctx context.Context) (*api.ModelInfoResponse, error) {
	out := &api.ModelInfoResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&api.ErrorResponse{}).
		Get(c.base + "/model-info")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	if resp.StatusCode() == http.StatusServiceUnavailable {
		return ErrServiceUnavailable
	}
	detail := strings.TrimSpace(resp.String())
	if e, ok := resp.Error().(*api.ErrorResponse); ok && e.Detail != "" {
		detail = e.Detail
	}
	return &APIError{Status: resp.StatusCode(), Detail: detail}
}
