package web3mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"web3mail/internal/marketplace"
	"web3mail/internal/types"
)

// SendEmail sends one email. With ProtectedData set it negotiates and matches
// a single task and returns its TaskID; with GrantedAccess set it prepares and
// submits a campaign and returns its Tasks.
func (c *Client) SendEmail(ctx context.Context, params SendEmailParams) (*SendEmailResponse, error) {
	switch {
	case params.ProtectedData != "" && len(params.GrantedAccess) > 0:
		return nil, types.NewValidationError(types.ErrCodeValidationConflictingFields,
			"protectedData and grantedAccess cannot be used together", nil)
	case params.ProtectedData == "" && len(params.GrantedAccess) == 0:
		return nil, types.NewValidationError(types.ErrCodeValidationMissingField,
			"protectedData or grantedAccess is required", nil)
	}
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}

	if len(params.GrantedAccess) > 0 {
		return c.sendBulk(ctx, params)
	}

	ctx, logger := c.begin(ctx, "SendEmail")
	taskID, err := c.sendSingle(ctx, logger, params)
	if err != nil {
		logger.Warn("send email failed", "error", err)
		return nil, classify(err, types.ErrCodeWorkflowSendEmail, "Failed to sendEmail")
	}
	logger.Info("email task created", "task_id", taskID)
	return &SendEmailResponse{TaskID: taskID}, nil
}

func (c *Client) sendBulk(ctx context.Context, params SendEmailParams) (*SendEmailResponse, error) {
	campaign, err := c.PrepareEmailCampaign(ctx, PrepareEmailCampaignParams{
		GrantedAccesses:         params.GrantedAccess,
		EmailSubject:            params.EmailSubject,
		EmailContent:            params.EmailContent,
		ContentType:             params.ContentType,
		SenderName:              params.SenderName,
		Label:                   params.Label,
		WorkerpoolAddressOrENS:  params.WorkerpoolAddressOrENS,
		DataMaxPrice:            params.DataMaxPrice,
		AppMaxPrice:             params.AppMaxPrice,
		WorkerpoolMaxPrice:      params.WorkerpoolMaxPrice,
		MaxProtectedDataPerTask: params.MaxProtectedDataPerTask,
	})
	if err != nil {
		return nil, err
	}
	res, err := c.SendEmailCampaign(ctx, SendEmailCampaignParams{
		CampaignRequest:        campaign,
		WorkerpoolAddressOrENS: params.WorkerpoolAddressOrENS,
		UseVoucher:             params.UseVoucher,
	})
	if err != nil {
		return nil, err
	}
	return &SendEmailResponse{Tasks: res.Tasks}, nil
}

// matchedOrders holds the three provider orders selected for a single send.
type matchedOrders struct {
	dataset    marketplace.DatasetOrder
	app        marketplace.AppOrder
	workerpool marketplace.WorkerpoolOrder
}

func (c *Client) sendSingle(ctx context.Context, logger *slog.Logger, params SendEmailParams) (string, error) {
	protectedData, err := c.resolveAddress(ctx, params.ProtectedData)
	if err != nil {
		return "", err
	}
	dapp, err := c.resolveAddress(ctx, c.cfg.DappAddress)
	if err != nil {
		return "", err
	}
	workerpoolRef := params.WorkerpoolAddressOrENS
	if workerpoolRef == "" {
		workerpoolRef = c.cfg.ProdWorkerpoolAddress
	}
	workerpool, err := c.resolveAddress(ctx, workerpoolRef)
	if err != nil {
		return "", err
	}
	requester, err := c.mp.Address(ctx)
	if err != nil {
		return "", err
	}

	indexed, err := c.indexedEmailData(ctx, []Contact{{Address: protectedData}})
	if err != nil {
		return "", err
	}
	if !indexed[protectedData] {
		return "", types.NewValidationError(types.ErrCodeValidationInvalidInput,
			`This protected data does not contain "email:string" in its schema.`, nil)
	}

	if err := c.ensureStorageToken(ctx, requester); err != nil {
		return "", err
	}

	orders, err := c.fetchOrders(ctx, params, protectedData, dapp, workerpool, requester)
	if err != nil {
		return "", err
	}
	logger.Debug("orders selected",
		"dataset_price", orders.dataset.DatasetPrice,
		"app_price", orders.app.AppPrice,
		"workerpool", orders.workerpool.Workerpool,
		"workerpool_price", orders.workerpool.WorkerpoolPrice,
	)

	secret, err := c.uploadContent(ctx, emailContent{
		subject:     params.EmailSubject,
		body:        params.EmailContent,
		contentType: params.ContentType,
		senderName:  params.SenderName,
	})
	if err != nil {
		return "", err
	}
	bundle, err := json.Marshal(secret)
	if err != nil {
		return "", err
	}

	// Subject, content address and key travel together as one JSON bundle in
	// requester secret 1, which the worker reads as IEXEC_REQUESTER_SECRET_1.
	slots, err := secretSlots(1)
	if err != nil {
		return "", err
	}
	pushed, err := c.mp.PushRequesterSecret(ctx, slots[0], string(bundle))
	if err != nil {
		return "", err
	}
	if !pushed {
		return "", errors.New("requester secret was not pushed")
	}

	requestParams, err := marshalRequestParams(map[string]uint64{"1": slots[0]}, params.Label)
	if err != nil {
		return "", err
	}
	request, err := c.mp.CreateRequestOrder(ctx, marketplace.RequestOrderParams{
		App:                dapp,
		AppMaxPrice:        orders.app.AppPrice,
		Dataset:            protectedData,
		DatasetMaxPrice:    orders.dataset.DatasetPrice,
		Workerpool:         orders.workerpool.Workerpool,
		WorkerpoolMaxPrice: orders.workerpool.WorkerpoolPrice,
		Requester:          requester,
		Tag:                marketplace.TEETag,
		Category:           orders.workerpool.Category,
		Callback:           c.cfg.CallbackContract,
		Params:             requestParams,
	})
	if err != nil {
		return "", err
	}
	request, err = c.mp.SignRequestOrder(ctx, request)
	if err != nil {
		return "", err
	}

	match, err := c.mp.MatchOrders(ctx, marketplace.MatchParams{
		AppOrder:        orders.app,
		DatasetOrder:    orders.dataset,
		WorkerpoolOrder: orders.workerpool,
		RequestOrder:    request,
		UseVoucher:      params.UseVoucher,
	})
	if err != nil {
		return "", err
	}
	logger.Info("deal created", "deal_id", match.DealID, "tx_hash", match.TxHash)
	return marketplace.ComputeTaskID(match.DealID, 0)
}

// ensureStorageToken logs the requester into the result storage the first
// time it sends.
func (c *Client) ensureStorageToken(ctx context.Context, requester string) error {
	exists, err := c.mp.CheckStorageTokenExists(ctx, requester)
	if err != nil || exists {
		return err
	}
	token, err := c.mp.DefaultStorageLogin(ctx)
	if err != nil {
		return err
	}
	return c.mp.PushStorageToken(ctx, token)
}

// fetchOrders queries the three order books concurrently and selects one order
// from each.
func (c *Client) fetchOrders(
	ctx context.Context,
	params SendEmailParams,
	protectedData, dapp, workerpool, requester string,
) (matchedOrders, error) {
	var out matchedOrders
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		apps := []string{dapp}
		if wl := c.cfg.WhitelistSmartContract; wl != "" {
			apps = append(apps, wl)
		}
		var found []marketplace.PublishedDatasetOrder
		for _, app := range apps {
			page, err := c.mp.FetchDatasetOrderbook(gctx, marketplace.DatasetOrderbookQuery{
				Dataset:   protectedData,
				App:       app,
				Requester: requester,
			})
			if err != nil {
				return err
			}
			found = append(found, page.Orders...)
		}
		if len(found) == 0 {
			return orderNotFound("Dataset")
		}
		for _, p := range found {
			if p.Order.DatasetPrice <= params.DataMaxPrice {
				out.dataset = p.Order
				return nil
			}
		}
		return orderTooExpensive("Dataset")
	})

	g.Go(func() error {
		page, err := c.mp.FetchAppOrderbook(gctx, marketplace.AppOrderbookQuery{
			App:        dapp,
			MinTag:     marketplace.TEETag,
			MaxTag:     marketplace.TEETag,
			Workerpool: workerpool,
		})
		if err != nil {
			return err
		}
		if len(page.Orders) == 0 {
			return orderNotFound("App")
		}
		for _, p := range page.Orders {
			if p.Order.AppPrice <= params.AppMaxPrice {
				out.app = p.Order
				return nil
			}
		}
		return orderTooExpensive("App")
	})

	g.Go(func() error {
		var voucher *marketplace.Voucher
		if params.UseVoucher {
			v, err := c.mp.GetUserVoucher(gctx, requester)
			if err != nil {
				return err
			}
			voucher = v
		}
		first, err := c.mp.FetchWorkerpoolOrderbook(gctx, marketplace.WorkerpoolOrderbookQuery{
			Workerpool: workerpool,
			App:        dapp,
			Dataset:    protectedData,
			MinTag:     marketplace.TEETag,
		})
		if err != nil {
			return err
		}
		all, err := marketplace.AutoPaginate(gctx, first)
		if err != nil {
			return err
		}
		if len(all.Orders) == 0 {
			return orderNotFound("Workerpool")
		}
		chosen, err := filterWorkerpoolOrders(all.Orders, params.WorkerpoolMaxPrice, params.UseVoucher, voucher, c.now(), c.pick)
		if err != nil {
			return err
		}
		if chosen == nil {
			return orderTooExpensive("Workerpool")
		}
		out.workerpool = chosen.Order
		return nil
	})

	if err := g.Wait(); err != nil {
		return matchedOrders{}, err
	}
	return out, nil
}

func orderNotFound(kind string) error {
	return types.NewWorkflowError(types.ErrCodeWorkflowOrderNotFound, kind+" order not found", nil)
}

func orderTooExpensive(kind string) error {
	return types.NewWorkflowError(types.ErrCodeWorkflowOrderNotFound,
		fmt.Sprintf("No %s order found for the desired price", kind), nil)
}
