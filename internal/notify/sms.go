package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"matchwell/internal/config"
	"matchwell/internal/models"
)

// SMSSender posts messages to a JSON SMS gateway. The gateway contract is
// deliberately generic: {"to": ..., "from": ..., "body": ...} with a bearer key.
type SMSSender struct {
	cfg    config.SMSGatewayConfig
	client *http.Client
}

func NewSMSSender(cfg config.SMSGatewayConfig) *SMSSender {
	return &SMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

func (s *SMSSender) Send(ctx context.Context, task *models.DeliveryTask) error {
	if s.cfg.URL == "" {
		return fmt.Errorf("sms gateway url is not configured")
	}

	payload, err := json.Marshal(smsRequest{
		To:   task.Recipient,
		From: s.cfg.Sender,
		Body: task.Body,
	})
	if err != nil {
		return fmt.Errorf("encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
