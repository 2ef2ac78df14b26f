// Package client is the consumption side of the pond: an HTTP API
// client, a server-sent event reader, the reconciliation loop that
// keeps a local view fresh, and the bite-detection state machine that
// decides when a simulated angler attempts a claim.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
	"github.com/lcroft/pond/internal/pond/domain"
	"github.com/lcroft/pond/internal/pond/storage"
)

// Client calls the pond HTTP API with a fixed session token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for a server base URL. A nil httpClient gets a
// default with a request timeout; the stream opens its own untimed
// requests.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// CatchResult is a successful claim response.
type CatchResult struct {
	Catch domain.Catch `json:"catch"`
	Event domain.Event `json:"event"`
}

// Snapshot fetches the full pond state.
func (c *Client) Snapshot(ctx context.Context) ([]storage.ObjectView, error) {
	var body struct {
		Objects []storage.ObjectView `json:"objects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/pond", nil, &body); err != nil {
		return nil, err
	}
	return body.Objects, nil
}

// Catch attempts to claim an object. Losing the race surfaces a domain
// error with CodeObjectAlreadyCaught.
func (c *Client) Catch(ctx context.Context, objectID string) (CatchResult, error) {
	var result CatchResult
	err := c.doJSON(ctx, http.MethodPost, "/api/fish/"+objectID+"/catch", nil, &result)
	return result, err
}

// Release returns a held object to the pond.
func (c *Client) Release(ctx context.Context, objectID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/fish/"+objectID+"/release", nil, nil)
}

// Delete removes an object the caller created.
func (c *Client) Delete(ctx context.Context, objectID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/fish/"+objectID, nil, nil)
}

// Vote toggles the caller's reaction and returns the updated tally.
func (c *Client) Vote(ctx context.Context, objectID string, value int) (storage.VoteTally, error) {
	payload, err := json.Marshal(map[string]int{"value": value})
	if err != nil {
		return storage.VoteTally{}, err
	}
	var tally storage.VoteTally
	err = c.doJSON(ctx, http.MethodPost, "/api/fish/"+objectID+"/vote", bytes.NewReader(payload), &tally)
	return tally, err
}

// AddFish uploads a PNG and returns the created object.
func (c *Client) AddFish(ctx context.Context, name string, png []byte) (domain.Object, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("name", name); err != nil {
		return domain.Object{}, err
	}
	part, err := form.CreateFormFile("image", "fish.png")
	if err != nil {
		return domain.Object{}, err
	}
	if _, err := part.Write(png); err != nil {
		return domain.Object{}, err
	}
	if err := form.Close(); err != nil {
		return domain.Object{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/fish", &body)
	if err != nil {
		return domain.Object{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var obj domain.Object
	err = c.send(req, &obj)
	return obj, err
}

// RecentEvents fetches the newest feed entries.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	path := "/api/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var body struct {
		Events []domain.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Events, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, into any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, into)
}

func (c *Client) send(req *http.Request, into any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if into == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// decodeAPIError turns a JSON error body back into a domain error so
// callers can match on codes with errors.Is/As.
func decodeAPIError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && json.Unmarshal(raw, &body) == nil && body.Code != "" {
		return apperrors.New(apperrors.Code(body.Code), body.Message)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
