package web3mail

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web3mail/internal/marketplace"
	"web3mail/internal/types"
)

func validCampaign(n int) PrepareEmailCampaignParams {
	return PrepareEmailCampaignParams{
		GrantedAccesses: grantedAccesses(n),
		EmailSubject:    "Newsletter",
		EmailContent:    "Monthly news",
		ContentType:     types.ContentTypeText,
	}
}

func TestPrepareEmailCampaign(t *testing.T) {
	f := newFixture(t)
	params := validCampaign(7)
	params.MaxProtectedDataPerTask = 3
	params.Label = "news"

	req, err := f.client.PrepareEmailCampaign(context.Background(), params)
	require.NoError(t, err)

	bulk := req.BulkRequest
	require.Len(t, bulk.Slices, 3)
	assert.Len(t, bulk.Slices[0], 3)
	assert.Len(t, bulk.Slices[2], 1)
	assert.Equal(t, testDapp, bulk.Request.App)
	assert.Equal(t, marketplace.ZeroAddress, bulk.Request.Workerpool)
	assert.NotEmpty(t, bulk.Request.Sign)

	var reqParams struct {
		Secrets map[string]uint64 `json:"iexec_secrets"`
		Args    string            `json:"iexec_args"`
	}
	require.NoError(t, json.Unmarshal([]byte(bulk.Request.Params), &reqParams))
	assert.Equal(t, "news", reqParams.Args)
	var secret types.RequesterSecret
	require.NoError(t, json.Unmarshal([]byte(f.mp.Secrets()[reqParams.Secrets["1"]]), &secret))
	assert.Equal(t, "Newsletter", secret.EmailSubject)
	assert.Equal(t, types.ContentTypeText, secret.ContentType)
	assert.False(t, secret.UseCallback)
	assert.Equal(t, 1, f.uploader.count())
	assert.Zero(t, f.mp.Calls("ProcessBulkRequest"))
}

func TestPrepareEmailCampaign_DefaultSliceSize(t *testing.T) {
	f := newFixture(t)
	req, err := f.client.PrepareEmailCampaign(context.Background(), validCampaign(5))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxProtectedDataPerTask, req.BulkRequest.MaxProtectedDataPerTask)
	assert.Len(t, req.BulkRequest.Slices, 1)
}

func TestPrepareEmailCampaign_Validation(t *testing.T) {
	f := newFixture(t)

	params := validCampaign(0)
	_, err := f.client.PrepareEmailCampaign(context.Background(), params)
	assert.True(t, types.IsValidationError(err))

	params = validCampaign(2)
	params.MaxProtectedDataPerTask = 101
	_, err = f.client.PrepareEmailCampaign(context.Background(), params)
	assert.True(t, types.IsValidationError(err))

	assert.Zero(t, f.mp.Calls("PrepareBulkRequest"))
	assert.Zero(t, f.uploader.count())
}

func TestSendEmailCampaign(t *testing.T) {
	f := newFixture(t)
	params := validCampaign(3)
	params.MaxProtectedDataPerTask = 3
	req, err := f.client.PrepareEmailCampaign(context.Background(), params)
	require.NoError(t, err)

	res, err := f.client.SendEmailCampaign(context.Background(), SendEmailCampaignParams{CampaignRequest: req})
	require.NoError(t, err)
	require.NotEmpty(t, res.Tasks)
	for i, task := range res.Tasks {
		assert.Len(t, task.TaskID, 66)
		assert.NotEmpty(t, task.DealID)
		assert.Equal(t, i, task.BulkIndex)
	}
	assert.Len(t, f.mp.BulkRequests(), 1)
}

func TestSendEmail_GrantedAccessRunsCampaign(t *testing.T) {
	f := newFixture(t)
	res, err := f.client.SendEmail(context.Background(), SendEmailParams{
		GrantedAccess:           grantedAccesses(7),
		EmailSubject:            "Hi",
		EmailContent:            "Body",
		MaxProtectedDataPerTask: 3,
	})
	require.NoError(t, err)
	assert.Empty(t, res.TaskID)
	require.Len(t, res.Tasks, 3)
	assert.Equal(t, 2, res.Tasks[2].BulkIndex)
}

func TestSendEmailCampaign_WorkerpoolMismatch(t *testing.T) {
	f := newFixture(t)
	params := validCampaign(2)
	params.WorkerpoolAddressOrENS = testWorkerpool
	req, err := f.client.PrepareEmailCampaign(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, testWorkerpool, req.BulkRequest.Request.Workerpool)

	_, err = f.client.SendEmailCampaign(context.Background(), SendEmailCampaignParams{
		CampaignRequest:        req,
		WorkerpoolAddressOrENS: otherPool,
	})
	requireAppError(t, err, types.ErrCodeValidationWorkerpoolMismatch)
	assert.Zero(t, f.mp.Calls("ProcessBulkRequest"))

	res, err := f.client.SendEmailCampaign(context.Background(), SendEmailCampaignParams{CampaignRequest: req})
	require.NoError(t, err)
	assert.Len(t, res.Tasks, 1)
}

func TestSendEmailCampaign_Errors(t *testing.T) {
	t.Run("missing request", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.client.SendEmailCampaign(context.Background(), SendEmailCampaignParams{})
		requireAppError(t, err, types.ErrCodeValidationMissingField)
	})

	t.Run("voucher required", func(t *testing.T) {
		f := newFixture(t)
		req, err := f.client.PrepareEmailCampaign(context.Background(), validCampaign(1))
		require.NoError(t, err)

		_, err = f.client.SendEmailCampaign(context.Background(), SendEmailCampaignParams{CampaignRequest: req, UseVoucher: true})
		requireAppError(t, err, types.ErrCodeWorkflowSendCampaign)
	})

	t.Run("processor unavailable", func(t *testing.T) {
		f := newFixture(t)
		req, err := f.client.PrepareEmailCampaign(context.Background(), validCampaign(1))
		require.NoError(t, err)
		f.mp.FailOn("ProcessBulkRequest", &marketplace.CallError{Op: "ProcessBulkRequest", Err: context.DeadlineExceeded})

		_, err = f.client.SendEmailCampaign(context.Background(), SendEmailCampaignParams{CampaignRequest: req})
		appErr := requireAppError(t, err, types.ErrCodeProtocolUnavailable)
		assert.ErrorIs(t, appErr, context.DeadlineExceeded)
	})
}
