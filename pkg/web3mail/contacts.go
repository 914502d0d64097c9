package web3mail

import (
	"context"
	"strings"

	"web3mail/internal/marketplace"
	"web3mail/internal/types"
	"web3mail/internal/validation"
)

const protectedDataQuery = `query ($requiredSchema: [String!]!, $id: [String!]!, $start: Int!, $range: Int!) {
  protectedDatas(
    where: { transactionHash_not: "0x", schema_contains: $requiredSchema, id_in: $id }
    skip: $start
    first: $range
    orderBy: creationTimestamp
    orderDirection: desc
  ) {
    id
  }
}`

// emailSchema is the schema entry a protected data must carry to be a contact.
var emailSchema = []string{"email:string"}

// FetchMyContacts lists the contacts of the connected wallet.
func (c *Client) FetchMyContacts(ctx context.Context, params FetchMyContactsParams) ([]Contact, error) {
	ctx, logger := c.begin(ctx, "FetchMyContacts")

	user, err := c.mp.Address(ctx)
	if err != nil {
		return nil, classify(err, types.ErrCodeWorkflowFetchContacts, "Failed to fetch my contacts")
	}
	contacts, err := c.fetchContacts(ctx, user, params.IsUserStrict)
	if err != nil {
		logger.Warn("fetch contacts failed", "error", err)
		return nil, classify(err, types.ErrCodeWorkflowFetchContacts, "Failed to fetch my contacts")
	}
	return contacts, nil
}

// FetchUserContacts lists the contacts reachable by userAddress.
func (c *Client) FetchUserContacts(ctx context.Context, params FetchUserContactsParams) ([]Contact, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	ctx, logger := c.begin(ctx, "FetchUserContacts")

	user, err := c.resolveAddress(ctx, params.UserAddress)
	if err != nil {
		return nil, classify(err, types.ErrCodeWorkflowFetchContacts, "Failed to fetch user contacts")
	}
	contacts, err := c.fetchContacts(ctx, user, params.IsUserStrict)
	if err != nil {
		logger.Warn("fetch contacts failed", "error", err)
		return nil, classify(err, types.ErrCodeWorkflowFetchContacts, "Failed to fetch user contacts")
	}
	return contacts, nil
}

func (c *Client) fetchContacts(ctx context.Context, user string, isUserStrict bool) ([]Contact, error) {
	dapp, err := c.resolveAddress(ctx, c.cfg.DappAddress)
	if err != nil {
		return nil, err
	}
	apps := []string{dapp}
	if wl := strings.ToLower(c.cfg.WhitelistSmartContract); wl != "" && !validation.IsZeroAddress(wl) {
		apps = append(apps, wl)
	}

	var orders []marketplace.PublishedDatasetOrder
	for _, app := range apps {
		first, err := c.mp.FetchDatasetOrderbook(ctx, marketplace.DatasetOrderbookQuery{
			Dataset:           marketplace.AnyDataset,
			App:               app,
			Requester:         user,
			IsAppStrict:       true,
			IsRequesterStrict: isUserStrict,
			PageSize:          c.contactsPageSize(),
		})
		if err != nil {
			return nil, err
		}
		all, err := marketplace.AutoPaginate(ctx, first)
		if err != nil {
			return nil, err
		}
		orders = append(orders, all.Orders...)
	}

	candidates := make([]Contact, 0, len(orders))
	for _, p := range orders {
		if !restrictedToAny(p.Order.AppRestrict, apps) {
			continue
		}
		candidates = append(candidates, Contact{
			Address:              strings.ToLower(p.Order.Dataset),
			Owner:                strings.ToLower(p.Signer),
			AccessGrantTimestamp: p.PublicationTimestamp,
			IsUserStrict:         !validation.IsZeroAddress(p.Order.RequesterRestrict),
			RemainingAccess:      p.Remaining,
			AccessPrice:          p.Order.DatasetPrice,
			GrantedAccess:        p.Order,
		})
	}

	valid, err := c.indexedEmailData(ctx, candidates)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(candidates))
	contacts := make([]Contact, 0, len(candidates))
	for _, contact := range candidates {
		if !valid[contact.Address] || seen[contact.Address] {
			continue
		}
		seen[contact.Address] = true
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// indexedEmailData returns the set of candidate addresses that the protected
// data index knows with an email schema.
func (c *Client) indexedEmailData(ctx context.Context, candidates []Contact) (map[string]bool, error) {
	valid := make(map[string]bool)
	if len(candidates) == 0 {
		return valid, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, contact := range candidates {
		ids = append(ids, contact.Address)
	}

	pageSize := c.contactsPageSize()
	for start := 0; ; start += pageSize {
		var out struct {
			ProtectedDatas []struct {
				ID string `json:"id"`
			} `json:"protectedDatas"`
		}
		err := c.graph.Query(ctx, protectedDataQuery, map[string]any{
			"requiredSchema": emailSchema,
			"id":             ids,
			"start":          start,
			"range":          pageSize,
		}, &out)
		if err != nil {
			return nil, types.NewWorkflowError(types.ErrCodeWorkflowSubgraph, "Failed to fetch subgraph", err)
		}
		for _, pd := range out.ProtectedDatas {
			valid[strings.ToLower(pd.ID)] = true
		}
		if len(out.ProtectedDatas) < pageSize {
			return valid, nil
		}
	}
}

func restrictedToAny(restrict string, apps []string) bool {
	for _, app := range apps {
		if strings.EqualFold(restrict, app) {
			return true
		}
	}
	return false
}
