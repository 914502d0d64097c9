// Package marketplacetest provides an in-memory marketplace for tests of code
// that negotiates orders.
package marketplacetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"web3mail/internal/marketplace"
)

var _ marketplace.Marketplace = (*Memory)(nil)

const defaultMemoryPageSize = 20

// Memory is an in-process marketplace.Marketplace backed by slices. It
// enforces the same restrictions as the real order book and settles deals
// locally.
type Memory struct {
	mu       sync.Mutex
	wallet   string
	pageSize int
	now      func() time.Time

	datasetOrders    []marketplace.PublishedDatasetOrder
	appOrders        []marketplace.PublishedAppOrder
	workerpoolOrders []marketplace.PublishedWorkerpoolOrder
	vouchers         map[string]*marketplace.Voucher
	names            map[string]string

	secrets       map[uint64]string
	storageTokens map[string]string
	deals         []marketplace.MatchParams
	bulkRequests  []marketplace.BulkRequest
	nonce         uint64

	failures map[string]error
	calls    map[string]int
}

// NewMemory creates an empty marketplace whose connected wallet is wallet.
func NewMemory(wallet string) *Memory {
	return &Memory{
		wallet:        strings.ToLower(wallet),
		pageSize:      defaultMemoryPageSize,
		now:           time.Now,
		vouchers:      make(map[string]*marketplace.Voucher),
		names:         make(map[string]string),
		secrets:       make(map[uint64]string),
		storageTokens: make(map[string]string),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
	}
}

// SetPageSize sets the default number of orders per order book page.
func (m *Memory) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// FailOn makes every subsequent call to op return err. Infrastructure failures
// should be passed as *marketplace.CallError.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// Calls returns how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// PublishDatasetOrder adds a signed dataset order to the order book.
func (m *Memory) PublishDatasetOrder(o marketplace.DatasetOrder) marketplace.PublishedDatasetOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := marketplace.PublishedDatasetOrder{
		Order:                o,
		OrderHash:            m.hash(o),
		Signer:               o.Dataset,
		PublicationTimestamp: m.now().UTC(),
		Remaining:            o.Volume,
	}
	m.datasetOrders = append(m.datasetOrders, p)
	return p
}

// PublishAppOrder adds a signed app order to the order book.
func (m *Memory) PublishAppOrder(o marketplace.AppOrder) marketplace.PublishedAppOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := marketplace.PublishedAppOrder{
		Order:                o,
		OrderHash:            m.hash(o),
		Signer:               o.App,
		PublicationTimestamp: m.now().UTC(),
		Remaining:            o.Volume,
	}
	m.appOrders = append(m.appOrders, p)
	return p
}

// PublishWorkerpoolOrder adds a signed workerpool order to the order book.
func (m *Memory) PublishWorkerpoolOrder(o marketplace.WorkerpoolOrder) marketplace.PublishedWorkerpoolOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := marketplace.PublishedWorkerpoolOrder{
		Order:                o,
		OrderHash:            m.hash(o),
		Signer:               o.Workerpool,
		PublicationTimestamp: m.now().UTC(),
		Remaining:            o.Volume,
	}
	m.workerpoolOrders = append(m.workerpoolOrders, p)
	return p
}

// SetVoucher registers v as the voucher of user.
func (m *Memory) SetVoucher(user string, v *marketplace.Voucher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers[strings.ToLower(user)] = v
}

// RegisterName maps an ENS name to an address.
func (m *Memory) RegisterName(name, address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[strings.ToLower(name)] = strings.ToLower(address)
}

// Secrets returns a copy of the pushed requester secrets.
func (m *Memory) Secrets() map[uint64]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64]string, len(m.secrets))
	for k, v := range m.secrets {
		out[k] = v
	}
	return out
}

// Deals returns the matched order tuples in settlement order.
func (m *Memory) Deals() []marketplace.MatchParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]marketplace.MatchParams(nil), m.deals...)
}

// BulkRequests returns the processed bulk requests.
func (m *Memory) BulkRequests() []marketplace.BulkRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]marketplace.BulkRequest(nil), m.bulkRequests...)
}

func (m *Memory) FetchDatasetOrderbook(ctx context.Context, q marketplace.DatasetOrderbookQuery) (marketplace.Page[marketplace.PublishedDatasetOrder], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FetchDatasetOrderbook"); err != nil {
		return marketplace.Page[marketplace.PublishedDatasetOrder]{}, err
	}

	var matches []marketplace.PublishedDatasetOrder
	for _, p := range m.datasetOrders {
		o := p.Order
		if p.Remaining == 0 {
			continue
		}
		if q.Dataset != marketplace.AnyDataset && !sameAddress(o.Dataset, q.Dataset) {
			continue
		}
		if !restrictionMatches(o.AppRestrict, q.App, q.IsAppStrict) {
			continue
		}
		if !restrictionMatches(o.RequesterRestrict, q.Requester, q.IsRequesterStrict) {
			continue
		}
		matches = append(matches, p)
	}

	size := q.PageSize
	if size <= 0 {
		size = m.pageSize
	}
	return paged(matches, size, 0), nil
}

func (m *Memory) FetchAppOrderbook(ctx context.Context, q marketplace.AppOrderbookQuery) (marketplace.Page[marketplace.PublishedAppOrder], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FetchAppOrderbook"); err != nil {
		return marketplace.Page[marketplace.PublishedAppOrder]{}, err
	}

	var matches []marketplace.PublishedAppOrder
	for _, p := range m.appOrders {
		o := p.Order
		if p.Remaining == 0 || !sameAddress(o.App, q.App) {
			continue
		}
		if !o.Tag.Contains(q.MinTag) {
			continue
		}
		if q.MaxTag != nil && !q.MaxTag.Contains(o.Tag) {
			continue
		}
		if q.Workerpool != "" && !restrictionMatches(o.WorkerpoolRestrict, q.Workerpool, false) {
			continue
		}
		matches = append(matches, p)
	}
	return paged(matches, m.pageSize, 0), nil
}

func (m *Memory) FetchWorkerpoolOrderbook(ctx context.Context, q marketplace.WorkerpoolOrderbookQuery) (marketplace.Page[marketplace.PublishedWorkerpoolOrder], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FetchWorkerpoolOrderbook"); err != nil {
		return marketplace.Page[marketplace.PublishedWorkerpoolOrder]{}, err
	}

	var matches []marketplace.PublishedWorkerpoolOrder
	for _, p := range m.workerpoolOrders {
		o := p.Order
		if p.Remaining == 0 || o.Category != q.Category {
			continue
		}
		if q.Workerpool != "" && !sameAddress(o.Workerpool, q.Workerpool) {
			continue
		}
		if !o.Tag.Contains(q.MinTag) {
			continue
		}
		if q.App != "" && !restrictionMatches(o.AppRestrict, q.App, false) {
			continue
		}
		if q.Dataset != "" && !restrictionMatches(o.DatasetRestrict, q.Dataset, false) {
			continue
		}
		matches = append(matches, p)
	}
	return paged(matches, m.pageSize, 0), nil
}

func (m *Memory) PushRequesterSecret(ctx context.Context, slot uint64, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PushRequesterSecret"); err != nil {
		return false, err
	}
	if _, exists := m.secrets[slot]; exists {
		return false, fmt.Errorf("secret %d already exists", slot)
	}
	m.secrets[slot] = value
	return true, nil
}

func (m *Memory) CreateRequestOrder(ctx context.Context, p marketplace.RequestOrderParams) (marketplace.RequestOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateRequestOrder"); err != nil {
		return marketplace.RequestOrder{}, err
	}

	requester := p.Requester
	if requester == "" {
		requester = m.wallet
	}
	return marketplace.RequestOrder{
		App:                p.App,
		AppMaxPrice:        p.AppMaxPrice,
		Dataset:            orZero(p.Dataset),
		DatasetMaxPrice:    p.DatasetMaxPrice,
		Workerpool:         orZero(p.Workerpool),
		WorkerpoolMaxPrice: p.WorkerpoolMaxPrice,
		Requester:          requester,
		Volume:             1,
		Tag:                p.Tag,
		Category:           p.Category,
		Beneficiary:        requester,
		Callback:           orZero(p.Callback),
		Params:             p.Params,
	}, nil
}

func (m *Memory) SignRequestOrder(ctx context.Context, order marketplace.RequestOrder) (marketplace.RequestOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SignRequestOrder"); err != nil {
		return marketplace.RequestOrder{}, err
	}
	return m.sign(order), nil
}

func (m *Memory) MatchOrders(ctx context.Context, p marketplace.MatchParams) (marketplace.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("MatchOrders"); err != nil {
		return marketplace.MatchResult{}, err
	}

	req := p.RequestOrder
	switch {
	case req.Sign == "":
		return marketplace.MatchResult{}, errors.New("request order is not signed")
	case p.AppOrder.AppPrice > req.AppMaxPrice:
		return marketplace.MatchResult{}, errors.New("app price exceeds request max price")
	case p.DatasetOrder.DatasetPrice > req.DatasetMaxPrice:
		return marketplace.MatchResult{}, errors.New("dataset price exceeds request max price")
	case p.WorkerpoolOrder.WorkerpoolPrice > req.WorkerpoolMaxPrice:
		return marketplace.MatchResult{}, errors.New("workerpool price exceeds request max price")
	case !sameAddress(req.Workerpool, marketplace.ZeroAddress) && !sameAddress(req.Workerpool, p.WorkerpoolOrder.Workerpool):
		return marketplace.MatchResult{}, errors.New("workerpool does not match request order")
	}
	if p.UseVoucher && m.vouchers[req.Requester] == nil {
		return marketplace.MatchResult{}, errors.New("requester has no voucher")
	}

	m.consumeDataset(p.DatasetOrder)
	m.deals = append(m.deals, p)
	m.nonce++
	dealID := m.hash(struct {
		Params marketplace.MatchParams
		Nonce  uint64
	}{p, m.nonce})
	return marketplace.MatchResult{DealID: dealID, TxHash: m.hash(dealID)}, nil
}

func (m *Memory) CheckStorageTokenExists(ctx context.Context, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CheckStorageTokenExists"); err != nil {
		return false, err
	}
	_, ok := m.storageTokens[strings.ToLower(address)]
	return ok, nil
}

func (m *Memory) DefaultStorageLogin(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DefaultStorageLogin"); err != nil {
		return "", err
	}
	return m.hash("storage-token:" + m.wallet), nil
}

func (m *Memory) PushStorageToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PushStorageToken"); err != nil {
		return err
	}
	m.storageTokens[m.wallet] = token
	return nil
}

func (m *Memory) GetUserVoucher(ctx context.Context, user string) (*marketplace.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetUserVoucher"); err != nil {
		return nil, err
	}
	v, ok := m.vouchers[strings.ToLower(user)]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m *Memory) PrepareBulkRequest(ctx context.Context, p marketplace.BulkRequestParams) (marketplace.BulkRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PrepareBulkRequest"); err != nil {
		return marketplace.BulkRequest{}, err
	}
	if p.MaxProtectedDataPerTask <= 0 {
		return marketplace.BulkRequest{}, errors.New("maxProtectedDataPerTask must be positive")
	}
	if len(p.BulkAccesses) == 0 {
		return marketplace.BulkRequest{}, errors.New("no bulk access provided")
	}

	var slices [][]marketplace.DatasetOrder
	for start := 0; start < len(p.BulkAccesses); start += p.MaxProtectedDataPerTask {
		end := min(start+p.MaxProtectedDataPerTask, len(p.BulkAccesses))
		slices = append(slices, append([]marketplace.DatasetOrder(nil), p.BulkAccesses[start:end]...))
	}

	secretSlots := make(map[string]uint64, len(p.Secrets))
	for idx, value := range p.Secrets {
		m.nonce++
		m.secrets[m.nonce] = value
		secretSlots[fmt.Sprint(idx)] = m.nonce
	}
	params, err := json.Marshal(map[string]any{
		"iexec_secrets":     secretSlots,
		"iexec_args":        p.Args,
		"iexec_input_files": p.InputFiles,
	})
	if err != nil {
		return marketplace.BulkRequest{}, err
	}

	req := m.sign(marketplace.RequestOrder{
		App:                p.App,
		AppMaxPrice:        p.AppMaxPrice,
		Dataset:            marketplace.ZeroAddress,
		DatasetMaxPrice:    p.DataMaxPrice,
		Workerpool:         orZero(p.Workerpool),
		WorkerpoolMaxPrice: p.WorkerpoolMaxPrice,
		Requester:          m.wallet,
		Volume:             uint64(len(slices)),
		Tag:                marketplace.TEETag,
		Beneficiary:        m.wallet,
		Callback:           marketplace.ZeroAddress,
		Params:             string(params),
	})

	return marketplace.BulkRequest{
		Request:                 req,
		Slices:                  slices,
		MaxProtectedDataPerTask: p.MaxProtectedDataPerTask,
	}, nil
}

func (m *Memory) ProcessBulkRequest(ctx context.Context, p marketplace.ProcessBulkParams) ([]marketplace.BulkTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ProcessBulkRequest"); err != nil {
		return nil, err
	}

	req := p.BulkRequest.Request
	if req.Sign == "" {
		return nil, errors.New("bulk request is not signed")
	}
	if !sameAddress(req.Workerpool, marketplace.ZeroAddress) && !sameAddress(req.Workerpool, p.Workerpool) {
		return nil, errors.New("workerpool does not match bulk request")
	}
	if p.UseVoucher && m.vouchers[m.wallet] == nil {
		return nil, errors.New("requester has no voucher")
	}

	tasks := make([]marketplace.BulkTask, 0, len(p.BulkRequest.Slices))
	for i := range p.BulkRequest.Slices {
		m.nonce++
		dealID := m.hash(struct {
			Request marketplace.RequestOrder
			Index   int
			Nonce   uint64
		}{req, i, m.nonce})
		taskID, err := marketplace.ComputeTaskID(dealID, 0)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, marketplace.BulkTask{TaskID: taskID, DealID: dealID, BulkIndex: i})
	}
	m.bulkRequests = append(m.bulkRequests, p.BulkRequest)
	return tasks, nil
}

func (m *Memory) ResolveName(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ResolveName"); err != nil {
		return "", err
	}
	return m.names[strings.ToLower(name)], nil
}

func (m *Memory) Address(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Address"); err != nil {
		return "", err
	}
	return m.wallet, nil
}

// enter records the call and returns the injected failure for op, if any.
// Callers hold m.mu.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	return m.failures[op]
}

func (m *Memory) consumeDataset(o marketplace.DatasetOrder) {
	for i := range m.datasetOrders {
		if m.datasetOrders[i].Order.Sign == o.Sign && sameAddress(m.datasetOrders[i].Order.Dataset, o.Dataset) {
			if m.datasetOrders[i].Remaining > 0 {
				m.datasetOrders[i].Remaining--
			}
			return
		}
	}
}

func (m *Memory) sign(order marketplace.RequestOrder) marketplace.RequestOrder {
	m.nonce++
	if order.Salt == "" {
		order.Salt = m.hash(m.nonce)
	}
	order.Sign = m.hash(order)
	return order
}

func (m *Memory) hash(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprint(v))
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return common.BytesToHash(h.Sum(nil)).Hex()
}

func paged[T any](all []T, size, offset int) marketplace.Page[T] {
	end := min(offset+size, len(all))
	page := marketplace.Page[T]{
		Orders: all[offset:end],
		Count:  len(all),
	}
	if end < len(all) {
		page.More = func(ctx context.Context) (marketplace.Page[T], error) {
			return paged(all, size, end), nil
		}
	}
	return page
}

// restrictionMatches applies an order's *restrict field to a query value. A
// zero restriction matches everything unless the query is strict.
func restrictionMatches(restrict, value string, strict bool) bool {
	if value == "" {
		return true
	}
	if restrict == "" || sameAddress(restrict, marketplace.ZeroAddress) {
		return !strict
	}
	return sameAddress(restrict, value)
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

func orZero(addr string) string {
	if addr == "" {
		return marketplace.ZeroAddress
	}
	return addr
}
