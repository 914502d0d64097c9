package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"web3mail/internal/email"
	"web3mail/internal/types"
)

const mailjetAPIBase = "https://api.mailjet.com"

// MailjetClientConfig holds the configuration for creating a MailjetClient.
type MailjetClientConfig struct {
	APIKeyPublic  types.SecretString
	APIKeyPrivate types.SecretString
	BaseURL       string // defaults to mailjetAPIBase
	Logger        *slog.Logger
}

// MailjetClient implements EmailProvider with the Mailjet v3.1 Send API.
type MailjetClient struct {
	base       *BaseClient
	publicKey  types.SecretString
	privateKey types.SecretString
	baseURL    string
	logger     *slog.Logger
}

// NewMailjetClient creates a MailjetClient that performs a single attempt per
// message.
func NewMailjetClient(httpClient *http.Client, cfg MailjetClientConfig, userAgent string) *MailjetClient {
	base := NewBaseClient(httpClient, "mailjet", NoRetryPolicy(), userAgent)
	return NewMailjetClientWithBase(base, cfg)
}

// NewMailjetClientWithBase creates a MailjetClient on a pre-configured
// BaseClient.
func NewMailjetClientWithBase(base *BaseClient, cfg MailjetClientConfig) *MailjetClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = mailjetAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MailjetClient{
		base:       base,
		publicKey:  cfg.APIKeyPublic,
		privateKey: cfg.APIKeyPrivate,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

type mailjetAddress struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type mailjetMessage struct {
	From     mailjetAddress   `json:"From"`
	To       []mailjetAddress `json:"To"`
	Subject  string           `json:"Subject"`
	TextPart string           `json:"TextPart,omitempty"`
	HTMLPart string           `json:"HTMLPart,omitempty"`
	CustomID string           `json:"CustomID,omitempty"`
}

type mailjetSendRequest struct {
	Messages []mailjetMessage `json:"Messages"`
}

type mailjetSendResponse struct {
	Messages []struct {
		Status string `json:"Status"`
		To     []struct {
			Email       string `json:"Email"`
			MessageUUID string `json:"MessageUUID"`
			MessageID   int64  `json:"MessageID"`
		} `json:"To"`
	} `json:"Messages"`
}

// Send delivers input. Mailjet answers 200 on success; every other outcome is
// reported as ErrCodeUpstreamEmailProvider.
func (c *MailjetClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	msg := mailjetMessage{
		From:     mailjetAddress{Email: input.From.Address, Name: input.From.Name},
		To:       []mailjetAddress{{Email: input.To}},
		Subject:  input.Subject,
		CustomID: input.ReferenceID,
	}
	if input.ContentType == types.ContentTypeHTML {
		msg.HTMLPart = input.Body
	} else {
		msg.TextPart = input.Body
	}

	body, err := json.Marshal(mailjetSendRequest{Messages: []mailjetMessage{msg}})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal Mailjet payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3.1/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Mailjet request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.publicKey.Unmask(), c.privateKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider, "Failed to send email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WarnContext(ctx, "mailjet rejected message",
			"status", resp.StatusCode,
			"to", email.RedactEmail(input.To),
		)
		return "", types.NewAppError(
			types.ErrCodeUpstreamEmailProvider,
			"Failed to send email",
			fmt.Errorf("mailjet returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		)
	}

	var out mailjetSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// The message was accepted; the id is only used for correlation.
		c.logger.WarnContext(ctx, "mailjet response unreadable", "error", err)
		return "", nil
	}
	if len(out.Messages) > 0 && len(out.Messages[0].To) > 0 {
		to := out.Messages[0].To[0]
		if to.MessageUUID != "" {
			return to.MessageUUID, nil
		}
		return fmt.Sprint(to.MessageID), nil
	}
	return "", nil
}

var _ EmailProvider = (*MailjetClient)(nil)
