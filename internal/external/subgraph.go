package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"web3mail/internal/types"
)

// SubgraphClient runs GraphQL queries against a subgraph endpoint.
type SubgraphClient struct {
	base   *BaseClient
	url    string
	logger *slog.Logger
}

// NewSubgraphClient creates a GraphQL client for the subgraph at url.
func NewSubgraphClient(httpClient *http.Client, url string, userAgent string, logger *slog.Logger) *SubgraphClient {
	return NewSubgraphClientWithBase(NewBaseClient(httpClient, "subgraph", NoRetryPolicy(), userAgent), url, logger)
}

// NewSubgraphClientWithBase creates a subgraph client on an existing BaseClient.
func NewSubgraphClientWithBase(base *BaseClient, url string, logger *slog.Logger) *SubgraphClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubgraphClient{base: base, url: url, logger: logger}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query posts query with variables and decodes the response data into out.
// GraphQL errors are reported as ErrCodeUpstreamSubgraph.
func (c *SubgraphClient) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal GraphQL request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create GraphQL request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return wrapTransportError(types.ErrCodeUpstreamSubgraph, "Query", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.NewAppError(types.ErrCodeUpstreamSubgraph, fmt.Sprintf("subgraph returned %s", resp.Status), nil)
	}

	var gr graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamSubgraph, "subgraph response is not valid JSON", err)
	}
	if len(gr.Errors) > 0 {
		return types.NewAppError(types.ErrCodeUpstreamSubgraph, gr.Errors[0].Message, nil)
	}
	if out == nil || len(gr.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamSubgraph, "unexpected subgraph data shape", err)
	}
	return nil
}

var _ GraphQuerier = (*SubgraphClient)(nil)
