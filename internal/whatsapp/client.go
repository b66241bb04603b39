// Package whatsapp is a client for the Green API WhatsApp gateway.
package whatsapp

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

	"github.com/foxzi/ofertabot/internal/models"
)

// DefaultBaseURL is the public Green API host
const DefaultBaseURL = "https://api.green-api.com"

// ErrNotConfigured is returned when credentials are missing or incomplete
var ErrNotConfigured = errors.New("whatsapp integration not configured")

// Endpoint addresses one gateway instance
type Endpoint struct {
	// Base is the instance-scoped URL, e.g. https://api.green-api.com/waInstance1101000001
	Base  string
	Token string
}

// EndpointFor builds the endpoint of the user's instance
func EndpointFor(creds *models.MessagingCredentials, defaultBaseURL string) Endpoint {
	return Endpoint{Base: creds.EndpointBase(defaultBaseURL), Token: creds.Token}
}

// SendRequest is the body of sendMessage
type SendRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// SendResponse is returned by sendMessage on success
type SendResponse struct {
	IDMessage string `json:"idMessage"`
}

// ErrorResponse is the gateway's error body
type ErrorResponse struct {
	Message string `json:"message"`
}

// DeliveryError is a non-success answer from the gateway
type DeliveryError struct {
	StatusCode int
	Message    string
}

func (e *DeliveryError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway error: HTTP %d", e.StatusCode)
}

// Client sends messages through the gateway
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose calls time out after timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send delivers text to chatID and returns the gateway's message id
func (c *Client) Send(ctx context.Context, ep Endpoint, chatID, text string) (string, error) {
	if ep.Base == "" || ep.Token == "" {
		return "", ErrNotConfigured
	}

	url := strings.TrimRight(ep.Base, "/") + "/sendMessage/" + ep.Token

	var resp SendResponse
	if err := c.request(ctx, http.MethodPost, url, &SendRequest{ChatID: chatID, Message: text}, &resp); err != nil {
		return "", err
	}
	if resp.IDMessage == "" {
		return "", errors.New("gateway response without idMessage")
	}
	return resp.IDMessage, nil
}

func (c *Client) request(ctx context.Context, method, url string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		derr := &DeliveryError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			derr.Message = errResp.Message
		}
		return derr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
