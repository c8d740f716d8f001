package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/models"
)

// LinkedInClient drives a Phantombuster-style automation API: an agent launch
// returns a container id whose status is fetched until it finishes.
type LinkedInClient struct {
	cfg    config.LinkedInConfig
	client *http.Client
}

type linkedInLaunchResponse struct {
	ContainerID string `json:"containerId"`
}

type linkedInContainerResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	ExitCode *int   `json:"exitCode"`
	EndType  string `json:"endType"`
	Output   string `json:"output"`
}

// NewLinkedInClient creates a LinkedIn automation adapter
func NewLinkedInClient(cfg config.LinkedInConfig) *LinkedInClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 1 << 20
	}
	return &LinkedInClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *LinkedInClient) Channel() models.Channel { return models.ChannelLinkedIn }

// Submit launches the connect or message agent for the target profile
func (c *LinkedInClient) Submit(ctx context.Context, target Target, content string, args ChannelArgs) (string, error) {
	if err := ValidateArgs(models.ChannelLinkedIn, args); err != nil {
		return "", err
	}
	a := args.(LinkedInArgs)

	agentID := c.cfg.MessageAgentID
	if a.Action == LinkedInActionConnect {
		agentID = c.cfg.ConnectAgentID
	}

	payload := map[string]any{
		"id": agentID,
		"argument": map[string]any{
			"sessionCookie": a.SessionCookie,
			"profileUrl":    a.ProfileURL,
			"message":       content,
			"action":        a.Action,
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", Permanent(CodeInvalidArgument, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/v2/agents/launch"), bytes.NewReader(b))
	if err != nil {
		return "", Permanent(CodeInvalidArgument, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Phantombuster-Key-1", c.cfg.APIKey)

	var out linkedInLaunchResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ContainerID == "" {
		return "", Transient(CodeProviderError, errors.New("launch returned empty containerId"))
	}
	return out.ContainerID, nil
}

// Poll fetches the container state
func (c *LinkedInClient) Poll(ctx context.Context, jobID string) (PollResult, error) {
	u, err := url.Parse(c.endpoint("/api/v2/containers/fetch"))
	if err != nil {
		return PollResult{}, Permanent(CodeInvalidArgument, err)
	}
	q := u.Query()
	q.Set("id", jobID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return PollResult{}, Permanent(CodeInvalidArgument, err)
	}
	req.Header.Set("X-Phantombuster-Key-1", c.cfg.APIKey)

	var out linkedInContainerResponse
	if err := c.do(req, &out); err != nil {
		return PollResult{}, err
	}
	return containerToPollResult(out), nil
}

func containerToPollResult(out linkedInContainerResponse) PollResult {
	switch strings.ToLower(out.Status) {
	case "finished":
		if out.ExitCode != nil && *out.ExitCode == 0 {
			return PollResult{Status: PollStatusSuccess, Output: out.Output}
		}
		code := strings.ToUpper(out.EndType)
		if code == "" {
			code = CodeJobFailed
		}
		// Agent-side timeouts and global limits clear up on a later run
		retryable := out.EndType == "timeout" || out.EndType == "globalTimeout" || out.EndType == "killed"
		return PollResult{Status: PollStatusFailure, Output: out.Output, ErrorCode: code, Retryable: retryable}
	default:
		return PollResult{Status: PollStatusPending, Output: out.Output}
	}
}

func (c *LinkedInClient) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *LinkedInClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return Classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes))
	if err != nil {
		return Transient(CodeNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ClassifyHTTPStatus(resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return Transient(CodeProviderError, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
