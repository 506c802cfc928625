// Package directory holds the HTTP clients for the marketplace services
// the inquiry core depends on: agency membership and property listings.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = 5 * time.Second

// AgencyClient answers agency-membership questions against the agency
// service.
type AgencyClient struct {
	baseURL string
	client  *http.Client
}

func NewAgencyClient(baseURL string) *AgencyClient {
	return &AgencyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// SameAgency reports whether both users belong to the same agency. Any
// transport failure surfaces as an error so callers can refuse rather
// than guess.
func (c *AgencyClient) SameAgency(ctx context.Context, adminID, agentID string) (bool, error) {
	adminAgency, err := c.agencyOf(ctx, adminID)
	if err != nil {
		return false, err
	}
	agentAgency, err := c.agencyOf(ctx, agentID)
	if err != nil {
		return false, err
	}
	return adminAgency != "" && adminAgency == agentAgency, nil
}

func (c *AgencyClient) agencyOf(ctx context.Context, userID string) (string, error) {
	endpoint := fmt.Sprintf("%s/users/%s/agency", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("agency directory: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("agency directory: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil
	default:
		return "", fmt.Errorf("agency directory: unexpected status %d for user %s", resp.StatusCode, userID)
	}

	var payload struct {
		AgencyID string `json:"agencyId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("agency directory: decode response: %w", err)
	}
	return payload.AgencyID, nil
}

// PropertyClient resolves listing titles from the property service.
type PropertyClient struct {
	baseURL string
	client  *http.Client
}

func NewPropertyClient(baseURL string) *PropertyClient {
	return &PropertyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// PropertyTitle returns the listing title, or empty without error when the
// property no longer exists (delisted properties degrade to a generic
// label, they do not break the inbox).
func (c *PropertyClient) PropertyTitle(ctx context.Context, propertyID string) (string, error) {
	endpoint := fmt.Sprintf("%s/properties/%s", c.baseURL, url.PathEscape(propertyID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("property directory: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("property directory: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil
	default:
		return "", fmt.Errorf("property directory: unexpected status %d for property %s", resp.StatusCode, propertyID)
	}

	var payload struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("property directory: decode response: %w", err)
	}
	return payload.Title, nil
}
