package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIClient calls the order endpoints on behalf of the board's user
type APIClient struct {
	httpClient *http.Client
	BaseURL    string
	Token      string
}

// NewAPIClient creates a client for the API at baseURL
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
	}
}

// LiveURL is the websocket address of a live view path
func (c *APIClient) LiveURL(path string) string {
	switch {
	case strings.HasPrefix(c.BaseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.BaseURL, "https://") + path
	case strings.HasPrefix(c.BaseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.BaseURL, "http://") + path
	}
	return c.BaseURL + path
}

// Header carries the bearer token for the websocket handshake
func (c *APIClient) Header() http.Header {
	h := http.Header{}
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	return h
}

func (c *APIClient) post(path string, body interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.Header() {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("request failed with status %s", resp.Status)
	}
	return nil
}

// Transition moves an order to status
func (c *APIClient) Transition(id uint, status string) error {
	return c.post(fmt.Sprintf("/api/v1/orders/%d/transition", id), map[string]string{"status": status})
}

// SendBack returns a delivering order to the kitchen
func (c *APIClient) SendBack(id uint) error {
	return c.post(fmt.Sprintf("/api/v1/orders/%d/send-back", id), nil)
}

// Archive hides a finished order
func (c *APIClient) Archive(id uint) error {
	return c.post(fmt.Sprintf("/api/v1/orders/%d/archive", id), nil)
}

// DriverStatus reports en_route or delivered for an assigned order
func (c *APIClient) DriverStatus(id uint, status string) error {
	return c.post(fmt.Sprintf("/api/v1/drivers/me/orders/%d/status", id), map[string]string{"status": status})
}

// CancelReservation voids a booking
func (c *APIClient) CancelReservation(id uint) error {
	return c.post(fmt.Sprintf("/api/v1/reservations/%d/cancel", id), nil)
}
