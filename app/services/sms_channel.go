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

type smsSendResponse struct {
	MessageID string  `json:"messageId"`
	ErrorCode *string `json:"errorCode"`
	Desc      *string `json:"description"`
}

type smsStatusResponse struct {
	MessageID string `json:"messageId"`
	// queued, sent, delivered, undelivered, failed
	Status    string  `json:"status"`
	ErrorCode *string `json:"errorCode"`
}

// SMSClient is an HTTP SMS gateway adapter
type SMSClient struct {
	cfg    config.SMSConfig
	client *http.Client
}

// NewSMSClient creates an SMS gateway adapter
func NewSMSClient(cfg config.SMSConfig) *SMSClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMSClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *SMSClient) Channel() models.Channel { return models.ChannelSMS }

func (c *SMSClient) Submit(ctx context.Context, target Target, content string, args ChannelArgs) (string, error) {
	if err := ValidateArgs(models.ChannelSMS, args); err != nil {
		return "", err
	}
	a := args.(SMSArgs)

	sender := a.Sender
	if sender == "" {
		sender = c.cfg.SourceNumber
	}
	payload := map[string]any{
		"source":      sender,
		"destination": a.To,
		"body":        content,
		"customerId":  fmt.Sprintf("lead-%d", target.LeadID),
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/send"), bytes.NewReader(b))
	if err != nil {
		return "", Permanent(CodeInvalidArgument, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	var out smsSendResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ErrorCode != nil && *out.ErrorCode != "" {
		desc := ""
		if out.Desc != nil {
			desc = *out.Desc
		}
		return "", Permanent(strings.ToUpper(*out.ErrorCode), errors.New(desc))
	}
	if out.MessageID == "" {
		return "", Transient(CodeProviderError, errors.New("send returned empty messageId"))
	}
	return out.MessageID, nil
}

func (c *SMSClient) Poll(ctx context.Context, jobID string) (PollResult, error) {
	u, err := url.Parse(c.endpoint("/status"))
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
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	var out smsStatusResponse
	if err := c.do(req, &out); err != nil {
		return PollResult{}, err
	}

	switch strings.ToLower(out.Status) {
	case "sent", "delivered":
		return PollResult{Status: PollStatusSuccess, Output: out.Status}, nil
	case "undelivered", "failed":
		code := CodeJobFailed
		if out.ErrorCode != nil && *out.ErrorCode != "" {
			code = strings.ToUpper(*out.ErrorCode)
		}
		return PollResult{Status: PollStatusFailure, Output: out.Status, ErrorCode: code}, nil
	default:
		return PollResult{Status: PollStatusPending, Output: out.Status}, nil
	}
}

func (c *SMSClient) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *SMSClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ClassifyHTTPStatus(resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Transient(CodeProviderError, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
