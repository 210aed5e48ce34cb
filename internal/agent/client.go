package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pulse/internal/relay"
)

// Client — тонкий клиент API релея. Все вызовы идут через переданный
// RoundTripper (в бою — trust.Transport с пиннингом).
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, secret string, rt http.RoundTripper) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: rt,
		},
	}
}

// Push отправляет снапшот телеметрии.
func (c *Client) Push(ctx context.Context, t relay.Telemetry) error {
	return c.postJSON(ctx, "/api/push/"+c.secret, t, nil)
}

// Msg перезаписывает status сырым текстом (внеполосные уведомления).
func (c *Client) Msg(ctx context.Context, text string) error {
	body := struct {
		Text string `json:"text"`
	}{Text: text}
	return c.postJSON(ctx, "/api/msg/"+c.secret, body, nil)
}

// Pull забирает очередь команд (сервер её при этом очищает).
func (c *Client) Pull(ctx context.Context) ([]string, error) {
	var resp struct {
		Commands []string `json:"commands"`
	}
	if err := c.getJSON(ctx, "/api/pull/"+c.secret, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return statusError(res)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return statusError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func statusError(res *http.Response) error {
	body, _ := io.ReadAll(res.Body)
	msg := strings.TrimSpace(string(body))
	if msg != "" {
		return fmt.Errorf("request failed: %s: %s", res.Status, msg)
	}
	return fmt.Errorf("request failed: %s", res.Status)
}
