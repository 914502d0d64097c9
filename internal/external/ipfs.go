package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"web3mail/internal/types"
)

const (
	// DefaultIPFSGateway serves protected content for the bellecour chain.
	DefaultIPFSGateway = "https://ipfs-gateway.v8-bellecour.iex.ec"
	// DefaultIPFSNode accepts uploads for the bellecour chain.
	DefaultIPFSNode = "https://ipfs-upload.v8-bellecour.iex.ec"

	defaultMaxContentBytes = 32 << 20
)

// IPFSClientConfig holds the configuration for creating an IPFSClient.
type IPFSClientConfig struct {
	GatewayURL      string
	NodeURL         string
	MaxContentBytes int64 // defaults to 32 MiB
	Logger          *slog.Logger
}

// IPFSClient reads content through an HTTP gateway and uploads it through the
// node RPC API. Uploads are confirmed by reading the content back.
type IPFSClient struct {
	gateway    *BaseClient
	node       *BaseClient
	gatewayURL string
	nodeURL    string
	maxBytes   int64
	logger     *slog.Logger
}

// NewIPFSClient builds an IPFSClient. gatewayRetry applies to gateway reads
// only; uploads are attempted once.
func NewIPFSClient(httpClient *http.Client, cfg IPFSClientConfig, gatewayRetry RetryPolicy, userAgent string) *IPFSClient {
	return NewIPFSClientWithBase(
		NewBaseClient(httpClient, "ipfs-gateway", gatewayRetry, userAgent),
		NewBaseClient(httpClient, "ipfs-node", NoRetryPolicy(), userAgent),
		cfg,
	)
}

// NewIPFSClientWithBase builds an IPFSClient on pre-configured BaseClients.
func NewIPFSClientWithBase(gateway, node *BaseClient, cfg IPFSClientConfig) *IPFSClient {
	gatewayURL := cfg.GatewayURL
	if gatewayURL == "" {
		gatewayURL = DefaultIPFSGateway
	}
	nodeURL := cfg.NodeURL
	if nodeURL == "" {
		nodeURL = DefaultIPFSNode
	}
	maxBytes := cfg.MaxContentBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxContentBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IPFSClient{
		gateway:    gateway,
		node:       node,
		gatewayURL: strings.TrimRight(strings.TrimSpace(gatewayURL), "/"),
		nodeURL:    strings.TrimRight(strings.TrimSpace(nodeURL), "/"),
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// Get downloads the content at multiaddr through the gateway. /p2p/ addresses
// are served from the gateway's /ipfs/ namespace.
func (c *IPFSClient) Get(ctx context.Context, multiaddr string) ([]byte, error) {
	path := multiaddr
	if strings.HasPrefix(path, "/p2p/") {
		path = "/ipfs/" + strings.TrimPrefix(path, "/p2p/")
	}
	if !strings.HasPrefix(path, "/ipfs/") {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, fmt.Sprintf("invalid multiaddr %q", multiaddr), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL+path, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create gateway request", err)
	}

	resp, err := c.gateway.Do(req)
	if err != nil {
		return nil, wrapTransportError(types.ErrCodeUpstreamStorage, "Get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStorage,
			fmt.Sprintf("gateway returned %s for %s", resp.Status, path),
			fmt.Errorf("%s", strings.TrimSpace(string(payload))),
		)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStorage, fmt.Sprintf("failed to read %s", path), err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStorage,
			fmt.Sprintf("content larger than %d bytes", c.maxBytes),
			nil,
		)
	}

	c.logger.DebugContext(ctx, "downloaded content", "path", path, "bytes", len(data))
	return data, nil
}

type ipfsAddResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Upload adds content to the node and returns /ipfs/<cid> once the gateway
// serves it.
func (c *IPFSClient) Upload(ctx context.Context, content []byte) (string, error) {
	cid, err := c.add(ctx, content)
	if err != nil {
		return "", err
	}

	multiaddr := "/ipfs/" + cid
	if _, err := c.Get(ctx, multiaddr); err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamStorage,
			fmt.Sprintf("uploaded content %s is not reachable through the gateway", cid),
			err,
		)
	}
	return multiaddr, nil
}

func (c *IPFSClient) add(ctx context.Context, content []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "content")
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build upload form", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build upload form", err)
	}
	if err := mw.Close(); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build upload form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+"/api/v0/add?pin=true", &buf)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create upload request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.node.Do(req)
	if err != nil {
		return "", wrapTransportError(types.ErrCodeUpstreamStorage, "Upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(
			types.ErrCodeUpstreamStorage,
			fmt.Sprintf("ipfs node returned %s", resp.Status),
			nil,
		)
	}

	var out ipfsAddResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Hash == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamStorage, "ipfs node returned no content id", err)
	}

	c.logger.DebugContext(ctx, "uploaded content", "cid", out.Hash, "bytes", len(content))
	return out.Hash, nil
}

var (
	_ ContentStore    = (*IPFSClient)(nil)
	_ ContentUploader = (*IPFSClient)(nil)
)
