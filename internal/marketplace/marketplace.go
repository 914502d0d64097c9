// Package marketplace defines the boundary between web3mail and the
// confidential-computing marketplace: the order book, order settlement,
// requester storage tokens, vouchers and the bulk request processor.
//
// Implementations report failures of the marketplace infrastructure itself as
// *CallError so callers can classify them without inspecting messages.
package marketplace

import (
	"context"
	"time"
)

// ZeroAddress is the "no restriction" value of every *restrict order field.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// AnyDataset asks the dataset order book for orders on any dataset.
const AnyDataset = "any"

// TEETag restricts matching to Scone TEE capable resources.
var TEETag = Tag{"tee", "scone"}

// Tag is the set of capabilities an order requires or provides.
type Tag []string

// Contains reports whether t carries every capability in other.
func (t Tag) Contains(other Tag) bool {
	for _, want := range other {
		found := false
		for _, have := range t {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DatasetOrder grants an application access to a protected data. Prices are
// expressed in nRLC.
type DatasetOrder struct {
	Dataset            string `json:"dataset"`
	DatasetPrice       uint64 `json:"datasetprice"`
	Volume             uint64 `json:"volume"`
	Tag                Tag    `json:"tag"`
	AppRestrict        string `json:"apprestrict"`
	WorkerpoolRestrict string `json:"workerpoolrestrict"`
	RequesterRestrict  string `json:"requesterrestrict"`
	Salt               string `json:"salt"`
	Sign               string `json:"sign"`
}

// AppOrder offers executions of an application.
type AppOrder struct {
	App                string `json:"app"`
	AppPrice           uint64 `json:"appprice"`
	Volume             uint64 `json:"volume"`
	Tag                Tag    `json:"tag"`
	DatasetRestrict    string `json:"datasetrestrict"`
	WorkerpoolRestrict string `json:"workerpoolrestrict"`
	RequesterRestrict  string `json:"requesterrestrict"`
	Salt               string `json:"salt"`
	Sign               string `json:"sign"`
}

// WorkerpoolOrder offers compute capacity.
type WorkerpoolOrder struct {
	Workerpool        string `json:"workerpool"`
	WorkerpoolPrice   uint64 `json:"workerpoolprice"`
	Volume            uint64 `json:"volume"`
	Tag               Tag    `json:"tag"`
	Category          uint64 `json:"category"`
	TrustLevel        uint64 `json:"trust"`
	AppRestrict       string `json:"apprestrict"`
	DatasetRestrict   string `json:"datasetrestrict"`
	RequesterRestrict string `json:"requesterrestrict"`
	Salt              string `json:"salt"`
	Sign              string `json:"sign"`
}

// RequestOrder is the requester side of a deal.
type RequestOrder struct {
	App                string `json:"app"`
	AppMaxPrice        uint64 `json:"appmaxprice"`
	Dataset            string `json:"dataset"`
	DatasetMaxPrice    uint64 `json:"datasetmaxprice"`
	Workerpool         string `json:"workerpool"`
	WorkerpoolMaxPrice uint64 `json:"workerpoolmaxprice"`
	Requester          string `json:"requester"`
	Volume             uint64 `json:"volume"`
	Tag                Tag    `json:"tag"`
	Category           uint64 `json:"category"`
	Beneficiary        string `json:"beneficiary"`
	Callback           string `json:"callback"`
	Params             string `json:"params"`
	Salt               string `json:"salt"`
	Sign               string `json:"sign"`
}

// Published wraps an order as returned by the order book.
type Published[T any] struct {
	Order                T
	OrderHash            string
	Signer               string
	PublicationTimestamp time.Time
	Remaining            uint64
}

type (
	PublishedDatasetOrder    = Published[DatasetOrder]
	PublishedAppOrder        = Published[AppOrder]
	PublishedWorkerpoolOrder = Published[WorkerpoolOrder]
)

// Page is one page of an order book query. More is nil on the last page.
type Page[T any] struct {
	Orders []T
	Count  int
	More   func(ctx context.Context) (Page[T], error)
}

// DatasetOrderbookQuery selects dataset orders. Dataset may be AnyDataset.
type DatasetOrderbookQuery struct {
	Dataset           string
	App               string
	Requester         string
	IsAppStrict       bool
	IsRequesterStrict bool
	PageSize          int
}

// AppOrderbookQuery selects app orders whose tag lies between MinTag and MaxTag.
type AppOrderbookQuery struct {
	App        string
	MinTag     Tag
	MaxTag     Tag
	Workerpool string
}

// WorkerpoolOrderbookQuery selects workerpool orders. Empty fields match any.
type WorkerpoolOrderbookQuery struct {
	Workerpool string
	App        string
	Dataset    string
	MinTag     Tag
	Category   uint64
}

// Orderbook is the read-only view of published orders.
type Orderbook interface {
	FetchDatasetOrderbook(ctx context.Context, q DatasetOrderbookQuery) (Page[PublishedDatasetOrder], error)
	FetchAppOrderbook(ctx context.Context, q AppOrderbookQuery) (Page[PublishedAppOrder], error)
	FetchWorkerpoolOrderbook(ctx context.Context, q WorkerpoolOrderbookQuery) (Page[PublishedWorkerpoolOrder], error)
}

// RequestOrderParams are the inputs of CreateRequestOrder.
type RequestOrderParams struct {
	App                string
	AppMaxPrice        uint64
	Dataset            string
	DatasetMaxPrice    uint64
	Workerpool         string
	WorkerpoolMaxPrice uint64
	Requester          string
	Tag                Tag
	Category           uint64
	Callback           string
	Params             string
}

// MatchParams is the 4-tuple submitted to MatchOrders.
type MatchParams struct {
	AppOrder        AppOrder
	DatasetOrder    DatasetOrder
	WorkerpoolOrder WorkerpoolOrder
	RequestOrder    RequestOrder
	UseVoucher      bool
}

// MatchResult identifies the deal created by MatchOrders.
type MatchResult struct {
	DealID string
	TxHash string
}

// Settlement publishes secrets, builds request orders and settles deals.
type Settlement interface {
	// PushRequesterSecret stores value under slot for the connected wallet.
	PushRequesterSecret(ctx context.Context, slot uint64, value string) (bool, error)
	CreateRequestOrder(ctx context.Context, params RequestOrderParams) (RequestOrder, error)
	SignRequestOrder(ctx context.Context, order RequestOrder) (RequestOrder, error)
	MatchOrders(ctx context.Context, params MatchParams) (MatchResult, error)
}

// StorageTokens manages the requester's token on the result storage backend.
type StorageTokens interface {
	CheckStorageTokenExists(ctx context.Context, address string) (bool, error)
	DefaultStorageLogin(ctx context.Context) (string, error)
	PushStorageToken(ctx context.Context, token string) error
}

// Voucher is a snapshot of a sponsorship voucher.
type Voucher struct {
	Balance              uint64
	ExpirationTimestamp  time.Time
	SponsoredWorkerpools []string
}

// Vouchers looks up vouchers. GetUserVoucher returns (nil, nil) when the user
// has none.
type Vouchers interface {
	GetUserVoucher(ctx context.Context, user string) (*Voucher, error)
}

// BulkRequestParams are the inputs of PrepareBulkRequest.
type BulkRequestParams struct {
	App                     string
	AppMaxPrice             uint64
	DataMaxPrice            uint64
	Workerpool              string
	WorkerpoolMaxPrice      uint64
	Args                    string
	InputFiles              []string
	Secrets                 map[int]string
	BulkAccesses            []DatasetOrder
	MaxProtectedDataPerTask int
}

// BulkRequest is the unsubmitted campaign descriptor returned by
// PrepareBulkRequest. Slices groups the granted accesses per task.
type BulkRequest struct {
	Request                 RequestOrder
	Slices                  [][]DatasetOrder
	MaxProtectedDataPerTask int
}

// ProcessBulkParams are the inputs of ProcessBulkRequest.
type ProcessBulkParams struct {
	BulkRequest BulkRequest
	Workerpool  string
	UseVoucher  bool
}

// BulkTask is one task created for a campaign.
type BulkTask struct {
	TaskID    string `json:"taskId"`
	DealID    string `json:"dealId"`
	BulkIndex int    `json:"bulkIndex"`
}

// BulkProcessor prepares and submits bulk requests. The marketplace owns the
// grouping of accesses into tasks.
type BulkProcessor interface {
	PrepareBulkRequest(ctx context.Context, params BulkRequestParams) (BulkRequest, error)
	ProcessBulkRequest(ctx context.Context, params ProcessBulkParams) ([]BulkTask, error)
}

// NameResolver resolves ENS names. It returns "" when the name has no address.
type NameResolver interface {
	ResolveName(ctx context.Context, name string) (string, error)
}

// Wallet exposes the connected requester.
type Wallet interface {
	Address(ctx context.Context) (string, error)
}

// Marketplace is the full set of capabilities web3mail consumes.
type Marketplace interface {
	Orderbook
	Settlement
	StorageTokens
	Vouchers
	BulkProcessor
	NameResolver
	Wallet
}
