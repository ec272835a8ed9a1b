package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arealhq/arealbot/internal/log"
)

const requestTimeout = 15 * time.Second

// HTTPClient talks to the CRM REST API (v4 contact/lead endpoints).
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     log.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a CRM client. baseURL is the CRM account root
// without a trailing slash, token is the long-lived API token.
func NewHTTPClient(baseURL, token string, logger log.Logger) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("crm base URL is required")
	}
	if token == "" {
		return nil, fmt.Errorf("crm token is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}, nil
}

type contactResponse struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	LeadCount int         `json:"leads_count"`
	CreatedAt int64       `json:"created_at"`
}

// Contact fetches a customer record by CRM ID.
func (c *HTTPClient) Contact(ctx context.Context, id string) (*Contact, error) {
	url := fmt.Sprintf("%s/api/v4/contacts/%s", c.baseURL, id)

	var resp contactResponse
	if err := c.makeRequest(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}

	return &Contact{
		ID:        resp.ID.String(),
		Name:      resp.Name,
		Email:     resp.Email,
		Phone:     resp.Phone,
		LeadCount: resp.LeadCount,
		CreatedAt: time.Unix(resp.CreatedAt, 0).UTC(),
	}, nil
}

type createLeadRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Note  string `json:"note,omitempty"`
}

type createLeadResponse struct {
	ID json.Number `json:"id"`
}

// CreateLead creates a sales lead and returns the CRM-assigned ID.
func (c *HTTPClient) CreateLead(ctx context.Context, lead Lead) (string, error) {
	url := c.baseURL + "/api/v4/leads"

	req := createLeadRequest{
		Name:  lead.Name,
		Phone: lead.Phone,
		Email: lead.Email,
		Note:  lead.Note,
	}

	var resp createLeadResponse
	if err := c.makeRequest(ctx, http.MethodPost, url, req, &resp); err != nil {
		return "", fmt.Errorf("create lead: %w", err)
	}

	c.logger.Info("crm lead created", "lead_id", resp.ID.String())
	return resp.ID.String(), nil
}

// makeRequest performs one authenticated JSON round trip. Status 404 maps
// to ErrNotFound and 4xx validation failures to ErrRejected so callers can
// branch with errors.Is.
func (c *HTTPClient) makeRequest(ctx context.Context, method, url string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrRejected, string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("crm API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
