package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/outreach-orchestrator/config"
)

// ErrScraperUnavailable means the scraping worker cannot be reached at all.
// Per-lead failures are reported with other errors.
var ErrScraperUnavailable = errors.New("contact scraper unavailable")

// ScrapedContact holds the contact fields a scrape found
type ScrapedContact struct {
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Found reports whether any contact field was found
func (c ScrapedContact) Found() bool {
	return (c.Email != nil && *c.Email != "") || (c.Phone != nil && *c.Phone != "")
}

// ContactScraper looks up contact info for a single lead
type ContactScraper interface {
	Scrape(ctx context.Context, target Target) (ScrapedContact, error)
}

// HTTPScraper calls the scraping worker over HTTP
type HTTPScraper struct {
	cfg    config.ScraperConfig
	client *http.Client
}

// NewHTTPScraper creates a scraper client
func NewHTTPScraper(cfg config.ScraperConfig) *HTTPScraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPScraper{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPScraper) Scrape(ctx context.Context, target Target) (ScrapedContact, error) {
	payload := map[string]any{
		"profileUrl": target.LinkedInURL,
		"name":       target.Name,
		"company":    target.Company,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.BaseURL, "/")+"/scrape", bytes.NewReader(b))
	if err != nil {
		return ScrapedContact{}, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ScrapedContact{}, ctx.Err()
		}
		return ScrapedContact{}, fmt.Errorf("%w: %v", ErrScraperUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ScrapedContact{}, nil
	case resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable:
		return ScrapedContact{}, fmt.Errorf("%w: http status %d", ErrScraperUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ScrapedContact{}, fmt.Errorf("scrape http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ScrapedContact
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ScrapedContact{}, fmt.Errorf("decode scrape response: %w", err)
	}
	return out, nil
}

// MockScraper derives a deterministic address from the lead's name and company.
// Leads without a LinkedIn URL are not found.
type MockScraper struct {
	Delay time.Duration

	mu    sync.Mutex
	calls int
}

func (m *MockScraper) Scrape(ctx context.Context, target Target) (ScrapedContact, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return ScrapedContact{}, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if target.LinkedInURL == "" {
		return ScrapedContact{}, nil
	}
	first := strings.ToLower(strings.TrimSpace(target.FirstName))
	if first == "" {
		first = "contact"
	}
	domain := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(target.Company), " ", ""))
	if domain == "" {
		domain = "example"
	}
	email := fmt.Sprintf("%s@%s.com", first, domain)
	return ScrapedContact{Email: &email}, nil
}

// Calls returns how many scrapes were requested
func (m *MockScraper) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
