package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/syncerr"
)

// APIClient is the HTTP half of the sync client. Every transport
// failure is wrapped as a transient taxonomy error at this boundary,
// so retry logic above never inspects error text.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type SessionInfo struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

type AppendResult struct {
	StrokeID  string `json:"strokeId"`
	Sequence  int64  `json:"sequence"`
	Duplicate bool   `json:"duplicate"`
}

type PublishResult struct {
	EventID  string `json:"eventId"`
	Sequence int64  `json:"sequence"`
}

type clearResponse struct {
	Success bool   `json:"success"`
	Scope   string `json:"scope"`
}

type strokeListResponse struct {
	Strokes []model.Stroke `json:"strokes"`
}

type participantListResponse struct {
	Participants []model.Participant `json:"participants"`
}

type eventListResponse struct {
	Events []model.Event `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *APIClient) CreateSession(ctx context.Context, teacherName string) (*SessionInfo, error) {
	var info SessionInfo
	err := c.do(ctx, http.MethodPost, "/api/sessions",
		map[string]string{"teacherName": teacherName}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *APIClient) EndSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/end", nil, nil)
}

func (c *APIClient) LookupByCode(ctx context.Context, code string) (*model.Session, error) {
	var session model.Session
	if err := c.do(ctx, http.MethodGet, "/api/join/"+code, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *APIClient) AppendStroke(ctx context.Context, args AppendArgs) (*AppendResult, error) {
	var result AppendResult
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+args.SessionID+"/strokes",
		map[string]interface{}{
			"stroke":         args.Stroke,
			"authorRole":     args.AuthorRole,
			"authorName":     args.AuthorName,
			"idempotencyKey": args.IdempotencyKey,
		}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) ListStrokes(ctx context.Context, sessionID string) ([]model.Stroke, error) {
	var resp strokeListResponse
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/strokes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Strokes, nil
}

func (c *APIClient) Undo(ctx context.Context, args AuthorArgs) error {
	return c.author(ctx, "/undo", args)
}

func (c *APIClient) Redo(ctx context.Context, args AuthorArgs) error {
	return c.author(ctx, "/redo", args)
}

func (c *APIClient) Clear(ctx context.Context, args AuthorArgs) (string, error) {
	var resp clearResponse
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+args.SessionID+"/clear",
		map[string]string{"authorRole": args.AuthorRole, "authorName": args.AuthorName}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Scope, nil
}

func (c *APIClient) author(ctx context.Context, op string, args AuthorArgs) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+args.SessionID+op,
		map[string]string{"authorRole": args.AuthorRole, "authorName": args.AuthorName}, nil)
}

func (c *APIClient) Heartbeat(ctx context.Context, sessionID, name, role string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/heartbeat",
		map[string]string{"name": name, "role": role}, nil)
}

func (c *APIClient) ListParticipants(ctx context.Context, sessionID string) ([]model.Participant, error) {
	var resp participantListResponse
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/participants", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

func (c *APIClient) MarkOffline(ctx context.Context, participantID string) error {
	return c.do(ctx, http.MethodPost, "/api/participants/"+participantID+"/offline", nil, nil)
}

func (c *APIClient) PublishEvent(ctx context.Context, channel, event string, payload json.RawMessage) (*PublishResult, error) {
	var result PublishResult
	err := c.do(ctx, http.MethodPost, "/api/channels/"+channel+"/events",
		map[string]interface{}{"event": event, "payload": payload}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) StreamEvents(ctx context.Context, channel string, after int64) ([]model.Event, error) {
	path := "/api/channels/" + channel + "/events"
	if after > 0 {
		path = fmt.Sprintf("%s?after=%d", path, after)
	}
	var resp eventListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: all retryable.
		return syncerr.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	raw, _ := io.ReadAll(resp.Body)
	var apiErr errorResponse
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != "" {
		return syncerr.New(syncerr.Code(apiErr.Code), apiErr.Error)
	}
	if resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout {
		return syncerr.Transient(fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
}
