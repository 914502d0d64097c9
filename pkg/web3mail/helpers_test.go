package web3mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"web3mail/internal/config"
	"web3mail/internal/marketplace"
	"web3mail/internal/marketplace/marketplacetest"
	"web3mail/internal/types"
)

const (
	testDapp       = "0x1111111111111111111111111111111111111111"
	testWhitelist  = "0x2222222222222222222222222222222222222222"
	testWorkerpool = "0x3333333333333333333333333333333333333333"
	testWallet     = "0x4444444444444444444444444444444444444444"
	testData       = "0x5555555555555555555555555555555555555555"
	otherPool      = "0x6666666666666666666666666666666666666666"
)

type fakeUploader struct {
	mu      sync.Mutex
	uploads [][]byte
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, content)
	return "/ipfs/QmTestContent" + strings.Repeat("x", len(f.uploads)), nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// fakeGraph answers the protected data query from a fixed set of ids.
type fakeGraph struct {
	known map[string]bool
	err   error
	calls int
}

func newFakeGraph(ids ...string) *fakeGraph {
	g := &fakeGraph{known: make(map[string]bool)}
	for _, id := range ids {
		g.known[strings.ToLower(id)] = true
	}
	return g
}

func (g *fakeGraph) Query(_ context.Context, _ string, vars map[string]any, out any) error {
	g.calls++
	if g.err != nil {
		return g.err
	}
	ids, _ := vars["id"].([]string)
	start, _ := vars["start"].(int)
	size, _ := vars["range"].(int)

	type row struct {
		ID string `json:"id"`
	}
	var rows []row
	for _, id := range ids {
		if g.known[strings.ToLower(id)] {
			rows = append(rows, row{ID: id})
		}
	}
	end := min(start+size, len(rows))
	if start > len(rows) {
		start = len(rows)
	}
	data, err := json.Marshal(map[string]any{"protectedDatas": append([]row{}, rows[start:end]...)})
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type fixture struct {
	client   *Client
	mp       *marketplacetest.Memory
	uploader *fakeUploader
	graph    *fakeGraph
}

func newFixture(t *testing.T, cfgMut ...func(*config.SDKConfig)) *fixture {
	t.Helper()
	cfg := &config.SDKConfig{
		ChainID:                134,
		DappAddress:            testDapp,
		WhitelistSmartContract: testWhitelist,
		ProdWorkerpoolAddress:  testWorkerpool,
		DataProtectorSubgraph:  "http://subgraph.invalid",
		IPFSGateway:            "http://gateway.invalid",
		IPFSNode:               "http://node.invalid",
	}
	for _, m := range cfgMut {
		m(cfg)
	}
	f := &fixture{
		mp:       marketplacetest.NewMemory(testWallet),
		uploader: &fakeUploader{},
		graph:    newFakeGraph(testData),
	}
	client, err := New(cfg, f.mp,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithContentUploader(f.uploader),
		WithGraphQuerier(f.graph),
	)
	require.NoError(t, err)
	client.pick = func(int) int { return 0 }
	f.client = client
	return f
}

// publishMarket publishes one order of each kind able to serve testData.
func (f *fixture) publishMarket(datasetPrice, appPrice, workerpoolPrice uint64) {
	f.mp.PublishDatasetOrder(marketplace.DatasetOrder{
		Dataset:      testData,
		DatasetPrice: datasetPrice,
		Volume:       1,
		AppRestrict:  testDapp,
		Sign:         "0xdataset",
	})
	f.mp.PublishAppOrder(marketplace.AppOrder{
		App:      testDapp,
		AppPrice: appPrice,
		Volume:   100,
		Tag:      marketplace.TEETag,
		Sign:     "0xapp",
	})
	f.mp.PublishWorkerpoolOrder(marketplace.WorkerpoolOrder{
		Workerpool:      testWorkerpool,
		WorkerpoolPrice: workerpoolPrice,
		Volume:          100,
		Tag:             marketplace.TEETag,
		Sign:            "0xworkerpool",
	})
}

func validSend() SendEmailParams {
	return SendEmailParams{
		ProtectedData: testData,
		EmailSubject:  "Hello",
		EmailContent:  "<p>Hi there</p>",
	}
}

func grantedAccesses(n int) []marketplace.DatasetOrder {
	out := make([]marketplace.DatasetOrder, n)
	for i := range out {
		out[i] = marketplace.DatasetOrder{
			Dataset:     "0x" + strings.Repeat(string("789abcdef"[i%9]), 40),
			Volume:      1,
			AppRestrict: testDapp,
			Sign:        "0xgrant",
		}
	}
	return out
}

// requireAppError asserts err is an AppError with code and returns it.
func requireAppError(t *testing.T, err error, code types.ErrorCode) *types.AppError {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	return appErr
}

// causeMessage returns the message of the AppError wrapped by err.
func causeMessage(t *testing.T, err *types.AppError) string {
	t.Helper()
	var cause *types.AppError
	require.True(t, errors.As(err.Err, &cause), "expected wrapped AppError, got %v", err.Err)
	return cause.Message
}
