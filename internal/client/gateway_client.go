package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/model"
)

// GatewayClient talks to the SMS gateway's HTTP send endpoint. The gateway
// answers 202 with a message id on acceptance; anything else is a provider
// failure.
type GatewayClient struct {
	url    string
	client *http.Client
}

func NewGatewayClient(url string) *GatewayClient {
	return &GatewayClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendRequest struct {
	To          string   `json:"to"`
	From        string   `json:"from"`
	Content     string   `json:"content"`
	Channel     string   `json:"channel"`
	Attachments []string `json:"attachments,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	ErrorCode string `json:"errorCode"`
	Error     string `json:"error"`
}

// Send delivers one rendered message and returns the provider's message id.
// Non-2xx answers and malformed bodies come back as *apperr.ProviderError.
func (c *GatewayClient) Send(ctx context.Context, to, from, content string, channel model.Channel, attachments []string) (string, error) {
	reqBody, err := json.Marshal(sendRequest{
		To:          to,
		From:        from,
		Content:     content,
		Channel:     string(channel),
		Attachments: attachments,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperr.NewProvider("", err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		var sr sendResponse
		if json.Unmarshal(body, &sr) == nil && sr.Error != "" {
			return "", apperr.NewProvider(sr.ErrorCode, sr.Error)
		}
		return "", apperr.NewProvider("", fmt.Sprintf("unexpected status code: %d body=%q", resp.StatusCode, string(body)))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", apperr.NewProvider("", fmt.Sprintf("failed to decode response: %v body=%q", err, string(body)))
	}
	if sr.MessageID == "" {
		return "", apperr.NewProvider("", fmt.Sprintf("missing messageId in response body=%q", string(body)))
	}

	return sr.MessageID, nil
}
