package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPScraper(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		found       bool
		unavailable bool
		wantErr     bool
	}{
		{
			name: "found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/scrape", r.URL.Path)
				assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(`{"email":"jane@acme.com"}`))
			},
			found: true,
		},
		{
			name:    "not found",
			handler: http.NotFound,
		},
		{
			name: "worker down",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			unavailable: true,
			wantErr:     true,
		},
		{
			name: "per-lead failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			s := NewHTTPScraper(config.ScraperConfig{BaseURL: srv.URL + "/", APIKey: "k"})
			got, err := s.Scrape(context.Background(), Target{LinkedInURL: "https://www.linkedin.com/in/jane"})
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.unavailable, errors.Is(err, ErrScraperUnavailable))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.found, got.Found())
		})
	}
}

func TestHTTPScraper_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPScraper(config.ScraperConfig{BaseURL: url}).Scrape(context.Background(), Target{})
	assert.ErrorIs(t, err, ErrScraperUnavailable)
}

func TestMockScraper(t *testing.T) {
	m := &MockScraper{}
	got, err := m.Scrape(context.Background(), Target{FirstName: "Jane", Company: "Acme Corp", LinkedInURL: "https://www.linkedin.com/in/jane"})
	require.NoError(t, err)
	require.True(t, got.Found())
	assert.Equal(t, "jane@acmecorp.com", *got.Email)

	got, err = m.Scrape(context.Background(), Target{FirstName: "Bob"})
	require.NoError(t, err)
	assert.False(t, got.Found())
	assert.Equal(t, 2, m.Calls())
}
