package external

import (
	"log/slog"
	"net/http"
	"time"

	"web3mail/internal/types"
)

// RegistryConfig carries what the worker knows once its environment and
// developer secret are parsed.
type RegistryConfig struct {
	StubMode  bool
	UserAgent string

	MailjetAPIKeyPublic  types.SecretString
	MailjetAPIKeyPrivate types.SecretString
	MailjetURL           string
	MailgunAPIKey        types.SecretString
	MailgunURL           string

	IPFSGateway     string
	MaxContentBytes int64
	SubgraphURL     string
}

// ClientRegistry holds the external collaborators of the worker pipeline.
type ClientRegistry struct {
	Email     EmailProvider
	Validator EmailValidator
	Content   ContentStore
	Subgraph  GraphQuerier
}

// NewClientRegistry builds the worker's clients. In stub mode the email
// provider and the validator are replaced by logging stubs so the pipeline can
// run without provider credentials; storage and the subgraph stay real.
func NewClientRegistry(cfg RegistryConfig, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	reg := &ClientRegistry{
		Content: NewIPFSClient(httpClient, IPFSClientConfig{
			GatewayURL:      cfg.IPFSGateway,
			MaxContentBytes: cfg.MaxContentBytes,
			Logger:          logger.With("client", "ipfs"),
		}, NoRetryPolicy(), cfg.UserAgent),
		Subgraph: NewSubgraphClient(httpClient, cfg.SubgraphURL, cfg.UserAgent, logger.With("client", "subgraph")),
	}

	if cfg.StubMode {
		stubLogger := logger.With("mode", "stub")
		logger.Info("initializing email clients in STUB mode")
		reg.Email = NewStubEmailProvider(stubLogger)
		reg.Validator = NewStubEmailValidator(stubLogger)
		return reg
	}

	// Timeouts: Mailjet 10s, Mailgun 5s.
	reg.Email = NewMailjetClient(&http.Client{Timeout: 10 * time.Second}, MailjetClientConfig{
		APIKeyPublic:  cfg.MailjetAPIKeyPublic,
		APIKeyPrivate: cfg.MailjetAPIKeyPrivate,
		BaseURL:       cfg.MailjetURL,
		Logger:        logger.With("client", "mailjet"),
	}, cfg.UserAgent)
	reg.Validator = NewMailgunClient(&http.Client{Timeout: 5 * time.Second}, MailgunClientConfig{
		APIKey:  cfg.MailgunAPIKey,
		BaseURL: cfg.MailgunURL,
		Logger:  logger.With("client", "mailgun"),
	}, cfg.UserAgent)
	return reg
}
