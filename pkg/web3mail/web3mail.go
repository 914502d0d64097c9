// Package web3mail is the client SDK for sending email to the owner of a
// protected email address without learning the address.
//
// A Client negotiates orders on the marketplace for a confidential task that
// decrypts the recipient address inside an enclave and sends the message
// there. Contacts are the protected emails whose owners granted the
// application access; SendEmail targets one of them, and campaigns target many
// at once.
package web3mail

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"web3mail/internal/config"
	"web3mail/internal/external"
	"web3mail/internal/marketplace"
	"web3mail/internal/types"
	"web3mail/internal/validation"
)

// DefaultContactsBatchSize is the page size used when cross-checking contacts
// against the protected data index.
const DefaultContactsBatchSize = 1000

// Client sends web3mail on behalf of the connected wallet. It holds no state
// between calls besides its resolved configuration and collaborators.
type Client struct {
	cfg       config.SDKConfig
	mp        marketplace.Marketplace
	storage   external.ContentUploader
	graph     external.GraphQuerier
	validate  *validation.Validator
	logger    *slog.Logger
	batchSize int
	pick      func(n int) int
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the Client and its HTTP collaborators.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithContentUploader replaces the IPFS uploader built from the configuration.
func WithContentUploader(u external.ContentUploader) Option {
	return func(c *Client) { c.storage = u }
}

// WithGraphQuerier replaces the protected data subgraph client built from the
// configuration.
func WithGraphQuerier(g external.GraphQuerier) Option {
	return func(c *Client) { c.graph = g }
}

// WithContactsBatchSize sets the page size of contact queries. Values below 1
// keep DefaultContactsBatchSize.
func WithContactsBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func (c *Client) contactsPageSize() int {
	if c.batchSize <= 0 {
		return DefaultContactsBatchSize
	}
	return c.batchSize
}

// New creates a Client. cfg must come from config.ResolveSDKConfig.
func New(cfg *config.SDKConfig, mp marketplace.Marketplace, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("web3mail: nil configuration")
	}
	if mp == nil {
		return nil, fmt.Errorf("web3mail: nil marketplace")
	}

	c := &Client{
		cfg:       *cfg,
		mp:        mp,
		logger:    slog.Default(),
		batchSize: DefaultContactsBatchSize,
		pick:      rand.IntN,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.validate = validation.New(c.logger)

	userAgent := config.NewBuildInfo().UserAgent()
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if c.storage == nil {
		c.storage = external.NewIPFSClient(httpClient, external.IPFSClientConfig{
			GatewayURL: cfg.IPFSGateway,
			NodeURL:    cfg.IPFSNode,
			Logger:     c.logger.With("client", "ipfs"),
		}, external.DefaultRetryPolicy(), userAgent)
	}
	if c.graph == nil {
		c.graph = external.NewSubgraphClient(httpClient, cfg.DataProtectorSubgraph, userAgent, c.logger.With("client", "dataprotector-subgraph"))
	}
	return c, nil
}

// begin attaches a request id to ctx and returns a logger carrying it.
func (c *Client) begin(ctx context.Context, op string) (context.Context, *slog.Logger) {
	id := types.GetRequestID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = types.WithRequestID(ctx, id)
	}
	return ctx, c.logger.With("op", op, "request_id", id)
}

// resolveAddress returns the lower-cased address behind an address or ENS name.
func (c *Client) resolveAddress(ctx context.Context, addressOrENS string) (string, error) {
	v := validation.NormalizeAddressOrENS(addressOrENS)
	if !validation.IsENS(v) {
		return v, nil
	}
	resolved, err := c.mp.ResolveName(ctx, v)
	if err != nil {
		return "", err
	}
	if resolved == "" {
		return "", types.NewValidationError(
			types.ErrCodeValidationInvalidAddress,
			fmt.Sprintf("%s does not resolve to an address", v),
			nil,
		)
	}
	return strings.ToLower(resolved), nil
}
