package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Sender delivers a text message to a platform user.
type Sender interface {
	Send(ctx context.Context, recipientID, text string) error
}

// Messenger sends messages through the Graph API /me/messages call.
type Messenger struct {
	baseURL     string
	accessToken string
	client      *http.Client
	logger      *zap.Logger
}

// NewMessenger builds a Graph API messenger client. baseURL includes
// the API version, e.g. https://graph.facebook.com/v23.0.
func NewMessenger(baseURL, accessToken string, timeout time.Duration, logger *zap.Logger) *Messenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Messenger{
		baseURL:     baseURL,
		accessToken: accessToken,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type sendRequest struct {
	Recipient Party    `json:"recipient"`
	Message   sendText `json:"message"`
}

type sendText struct {
	Text string `json:"text"`
}

// Send posts one text message to the recipient.
func (m *Messenger) Send(ctx context.Context, recipientID, text string) error {
	body, err := json.Marshal(sendRequest{
		Recipient: Party{ID: recipientID},
		Message:   sendText{Text: text},
	})
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", m.baseURL, url.QueryEscape(m.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		m.logger.Warn("message send rejected",
			zap.String("recipient_id", recipientID),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode, snippet)
	}

	m.logger.Debug("message sent", zap.String("recipient_id", recipientID))
	return nil
}
