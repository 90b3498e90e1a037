package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"vacancy-report/internal/report"
	"vacancy-report/internal/service"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const sessionHeader = "X-Session-ID"

var ErrNoSession = errors.New("client has no session")

// envelope response wrapper of the vacancy-report API
type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// APIError server answered with code != 2000
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vacancy-report API error: %s (status: %d)", e.Message, e.Status)
}

// Client vacancy-report API client used by the CLI
type Client struct {
	httpClient *resty.Client
	sessionID  string
	logger     *zap.Logger
}

func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")
	return &Client{httpClient: hc, logger: logger}
}

// WithSession reuses an existing session id.
func (c *Client) WithSession(id string) *Client {
	c.sessionID = id
	return c
}

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) StartSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/sessions", nil, &out); err != nil {
		return "", err
	}
	c.sessionID = out.SessionID
	return out.SessionID, nil
}

func (c *Client) EndSession(ctx context.Context) error {
	if c.sessionID == "" {
		return ErrNoSession
	}
	return c.call(ctx, http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(c.sessionID), nil, nil)
}

// Upload sends a raw export; a session is opened first when the client has none.
func (c *Client) Upload(ctx context.Context, path string) (*service.UploadResponse, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if c.sessionID == "" {
		if _, err := c.StartSession(ctx); err != nil {
			return nil, err
		}
	}
	var out struct {
		Dataset service.UploadResponse `json:"dataset"`
	}
	req := c.request(ctx).SetFile("arquivo", path)
	if err := c.do(req, http.MethodPost, "/api/v1/upload", &out); err != nil {
		return nil, err
	}
	c.logger.Info("dataset uploaded",
		zap.String("session_id", c.sessionID),
		zap.String("name", out.Dataset.Name),
		zap.Int("cases", out.Dataset.Cases),
	)
	return &out.Dataset, nil
}

func (c *Client) Views(ctx context.Context) ([]report.ViewInfo, error) {
	var out []report.ViewInfo
	if err := c.call(ctx, http.MethodGet, "/api/v1/reports", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) View(ctx context.Context, view string, q report.Query) (*report.Result, error) {
	var out report.Result
	if err := c.call(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(view), queryValues(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export downloads a view's detail table as xlsx bytes.
func (c *Client) Export(ctx context.Context, view string, q report.Query) ([]byte, error) {
	resp, err := c.request(ctx).
		SetQueryParamsFromValues(queryValues(q)).
		Get("/api/v1/reports/" + url.PathEscape(view) + "/export")
	if err != nil {
		return nil, fmt.Errorf("failed to call vacancy-report API: %w", err)
	}
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		var env envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return nil, &APIError{Status: resp.StatusCode(), Message: env.Message}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	}
	return resp.Body(), nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.httpClient.R().SetContext(ctx)
	if c.sessionID != "" {
		req.SetHeader(sessionHeader, c.sessionID)
	}
	return req
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, out any) error {
	req := c.request(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	return c.do(req, method, path, out)
}

func (c *Client) do(req *resty.Request, method, path string, out any) error {
	var env envelope
	resp, err := req.SetResult(&env).SetError(&env).Execute(method, path)
	if err != nil {
		c.logger.Error("vacancy-report API call failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to call vacancy-report API: %w", err)
	}
	if env.Code != 2000 {
		msg := env.Message
		if msg == "" {
			msg = resp.Status()
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

func queryValues(q report.Query) url.Values {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("filter", q.Filter)
	}
	for _, m := range q.Months {
		v.Add("month", m)
	}
	if q.Phase != "" {
		v.Set("phase", q.Phase)
	}
	for _, g := range q.Groups {
		v.Add("group", g)
	}
	if q.Series != "" {
		v.Set("series", q.Series)
	}
	return v
}
