// Package downstream is the HTTP adapter replaying approved operations
// against the internal API that originally would have served them.
package downstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/modules/approvals/services"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *Client) Do(ctx context.Context, req *services.ReplayRequest) (*services.ReplayResponse, error) {
	target, err := c.resolve(req.URL)
	if err != nil {
		return nil, err
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "build downstream request")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", req.Authorization)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "downstream request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read downstream response")
	}

	c.log.WithFields(logrus.Fields{
		"method":      req.Method,
		"path":        req.URL,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("downstream replay completed")

	return &services.ReplayResponse{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) resolve(path string) (*url.URL, error) {
	raw := path
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse downstream url")
	}
	return target, nil
}
