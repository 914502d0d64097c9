package web3mail

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"web3mail/internal/marketplace"
	"web3mail/internal/types"
	"web3mail/internal/validation"
)

// DefaultMaxProtectedDataPerTask is the campaign slice size used when the
// caller does not set one.
const DefaultMaxProtectedDataPerTask = types.DefaultMaxProtectedDataPerTask

// PrepareEmailCampaign uploads the email content and builds an unsubmitted
// bulk request over params.GrantedAccesses. Nothing is spent until the
// result is passed to SendEmailCampaign.
func (c *Client) PrepareEmailCampaign(ctx context.Context, params PrepareEmailCampaignParams) (*CampaignRequest, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	ctx, logger := c.begin(ctx, "PrepareEmailCampaign")

	req, err := c.prepareCampaign(ctx, params)
	if err != nil {
		logger.Warn("prepare campaign failed", "error", err)
		return nil, classify(err, types.ErrCodeWorkflowPrepareCampaign, "Failed to prepareEmailCampaign")
	}
	logger.Info("campaign prepared",
		"accesses", len(params.GrantedAccesses),
		"tasks", len(req.BulkRequest.Slices),
	)
	return req, nil
}

func (c *Client) prepareCampaign(ctx context.Context, params PrepareEmailCampaignParams) (*CampaignRequest, error) {
	dapp, err := c.resolveAddress(ctx, c.cfg.DappAddress)
	if err != nil {
		return nil, err
	}
	// An unset workerpool leaves the request open to any workerpool.
	var workerpool string
	if params.WorkerpoolAddressOrENS != "" {
		if workerpool, err = c.resolveAddress(ctx, params.WorkerpoolAddressOrENS); err != nil {
			return nil, err
		}
	}
	requester, err := c.mp.Address(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.ensureStorageToken(ctx, requester); err != nil {
		return nil, err
	}

	secret, err := c.uploadContent(ctx, emailContent{
		subject:     params.EmailSubject,
		body:        params.EmailContent,
		contentType: params.ContentType,
		senderName:  params.SenderName,
	})
	if err != nil {
		return nil, err
	}
	// Campaign tasks never report per-recipient callbacks.
	secret.UseCallback = false
	bundle, err := json.Marshal(secret)
	if err != nil {
		return nil, err
	}

	perTask := params.MaxProtectedDataPerTask
	if perTask == 0 {
		perTask = DefaultMaxProtectedDataPerTask
	}
	bulk, err := c.mp.PrepareBulkRequest(ctx, marketplace.BulkRequestParams{
		App:                     dapp,
		AppMaxPrice:             params.AppMaxPrice,
		DataMaxPrice:            params.DataMaxPrice,
		Workerpool:              workerpool,
		WorkerpoolMaxPrice:      params.WorkerpoolMaxPrice,
		Args:                    params.Label,
		Secrets:                 map[int]string{1: string(bundle)},
		BulkAccesses:            params.GrantedAccesses,
		MaxProtectedDataPerTask: perTask,
	})
	if err != nil {
		return nil, err
	}
	return &CampaignRequest{BulkRequest: bulk}, nil
}

// SendEmailCampaign submits a prepared campaign and returns one task per
// slice. The workerpool defaults to the production workerpool and must agree
// with the one embedded at preparation time, if any.
func (c *Client) SendEmailCampaign(ctx context.Context, params SendEmailCampaignParams) (*SendEmailCampaignResponse, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	ctx, logger := c.begin(ctx, "SendEmailCampaign")

	tasks, err := c.sendCampaign(ctx, params)
	if err != nil {
		logger.Warn("send campaign failed", "error", err)
		return nil, classify(err, types.ErrCodeWorkflowSendCampaign, "Failed to sendEmailCampaign")
	}
	logger.Info("campaign submitted", "tasks", len(tasks))
	return &SendEmailCampaignResponse{Tasks: tasks}, nil
}

func (c *Client) sendCampaign(ctx context.Context, params SendEmailCampaignParams) ([]marketplace.BulkTask, error) {
	ref := params.WorkerpoolAddressOrENS
	if ref == "" {
		ref = c.cfg.ProdWorkerpoolAddress
	}
	workerpool, err := c.resolveAddress(ctx, ref)
	if err != nil {
		return nil, err
	}

	bulk := params.CampaignRequest.BulkRequest
	embedded := bulk.Request.Workerpool
	if !validation.IsZeroAddress(embedded) && !strings.EqualFold(embedded, workerpool) {
		return nil, types.NewValidationError(types.ErrCodeValidationWorkerpoolMismatch,
			fmt.Sprintf("workerpoolAddressOrEns %s does not match the campaign request workerpool %s", workerpool, embedded), nil)
	}

	tasks, err := c.mp.ProcessBulkRequest(ctx, marketplace.ProcessBulkParams{
		BulkRequest: bulk,
		Workerpool:  workerpool,
		UseVoucher:  params.UseVoucher,
	})
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.TaskID == "" || t.DealID == "" {
			return nil, types.NewWorkflowError(types.ErrCodeWorkflowUnexpectedResults,
				"Unexpected results from the bulk request processor", nil)
		}
	}
	return tasks, nil
}
