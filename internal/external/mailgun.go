package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"web3mail/internal/types"
)

const mailgunAPIBase = "https://api.mailgun.net"

// MailgunClientConfig holds the configuration for creating a MailgunClient.
type MailgunClientConfig struct {
	APIKey  types.SecretString
	BaseURL string // defaults to mailgunAPIBase
	Logger  *slog.Logger
}

// MailgunClient implements EmailValidator with the Mailgun v4 address
// validation API.
type MailgunClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	logger  *slog.Logger
}

// NewMailgunClient creates a Mailgun validation client. Requests are not retried.
func NewMailgunClient(httpClient *http.Client, cfg MailgunClientConfig, userAgent string) *MailgunClient {
	base := NewBaseClient(httpClient, "mailgun", NoRetryPolicy(), userAgent)
	return NewMailgunClientWithBase(base, cfg)
}

// NewMailgunClientWithBase creates a Mailgun client on an existing BaseClient.
func NewMailgunClientWithBase(base *BaseClient, cfg MailgunClientConfig) *MailgunClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = mailgunAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MailgunClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type mailgunValidationResponse struct {
	Result string `json:"result"`
}

// CheckDeliverability asks Mailgun whether address is deliverable. Only an
// explicit "deliverable" verdict counts as Deliverable; any other verdict is
// Undeliverable. Transport failures, non-2xx answers and unreadable bodies
// return DeliverabilityUnknown with the cause.
func (c *MailgunClient) CheckDeliverability(ctx context.Context, address string) (Deliverability, error) {
	reqURL := fmt.Sprintf("%s/v4/address/validate?address=%s", c.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return DeliverabilityUnknown, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Mailgun request", err)
	}
	req.SetBasicAuth("api", c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return DeliverabilityUnknown, wrapTransportError(types.ErrCodeUpstreamEmailValidator, "CheckDeliverability", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DeliverabilityUnknown, types.NewAppError(
			types.ErrCodeUpstreamEmailValidator,
			fmt.Sprintf("Mailgun returned status %d", resp.StatusCode),
			nil,
		)
	}

	var out mailgunValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Result == "" {
		return DeliverabilityUnknown, types.NewAppError(
			types.ErrCodeUpstreamEmailValidator,
			"Mailgun response has no result",
			err,
		)
	}

	if out.Result == "deliverable" {
		return Deliverable, nil
	}
	return Undeliverable, nil
}

var _ EmailValidator = (*MailgunClient)(nil)
