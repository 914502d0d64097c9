package web3mail

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web3mail/internal/config"
	"web3mail/internal/encryption"
	"web3mail/internal/marketplace"
	"web3mail/internal/types"
)

func TestSendEmail_SingleSend(t *testing.T) {
	f := newFixture(t)
	f.publishMarket(0, 0, 0)

	params := validSend()
	params.SenderName = "Alice"
	params.Label = "welcome"
	res, err := f.client.SendEmail(context.Background(), params)
	require.NoError(t, err)
	assert.Len(t, res.TaskID, 66)
	assert.Empty(t, res.Tasks)

	deals := f.mp.Deals()
	require.Len(t, deals, 1)
	req := deals[0].RequestOrder
	assert.Equal(t, testDapp, req.App)
	assert.Equal(t, testData, req.Dataset)
	assert.Equal(t, testWorkerpool, req.Workerpool)
	assert.Equal(t, marketplace.TEETag, req.Tag)
	assert.Equal(t, marketplace.ZeroAddress, req.Callback)
	assert.NotEmpty(t, req.Sign)

	var reqParams struct {
		Secrets         map[string]uint64 `json:"iexec_secrets"`
		DeveloperLogger bool              `json:"iexec_developer_logger"`
		Args            string            `json:"iexec_args"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.Params), &reqParams))
	assert.True(t, reqParams.DeveloperLogger)
	assert.Equal(t, "welcome", reqParams.Args)
	slot, ok := reqParams.Secrets["1"]
	require.True(t, ok)
	assert.Positive(t, slot)

	bundle, ok := f.mp.Secrets()[slot]
	require.True(t, ok)
	var secret types.RequesterSecret
	require.NoError(t, json.Unmarshal([]byte(bundle), &secret))
	assert.Equal(t, "Hello", secret.EmailSubject)
	assert.Equal(t, types.ContentTypeHTML, secret.ContentType)
	assert.Equal(t, "Alice", secret.SenderName)
	assert.False(t, secret.UseCallback)
	assert.True(t, strings.HasPrefix(secret.EmailContentMultiAddr, "/ipfs/"))

	require.Equal(t, 1, f.uploader.count())
	plain, err := encryption.Decrypt(f.uploader.uploads[0], secret.EmailContentEncryptionKey)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi there</p>", string(plain))

	assert.Equal(t, 1, f.mp.Calls("PushStorageToken"))
}

func TestSendEmail_StorageTokenPushedOnce(t *testing.T) {
	f := newFixture(t)
	f.publishMarket(0, 0, 0)
	f.mp.PublishDatasetOrder(marketplace.DatasetOrder{Dataset: testData, Volume: 1, AppRestrict: testDapp, Sign: "0xsecond"})

	for range 2 {
		_, err := f.client.SendEmail(context.Background(), validSend())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.mp.Calls("PushStorageToken"))
	assert.Equal(t, 2, f.mp.Calls("CheckStorageTokenExists"))
}

func TestSendEmail_CallbackContract(t *testing.T) {
	const callback = "0x7777777777777777777777777777777777777777"
	f := newFixture(t, func(c *config.SDKConfig) { c.CallbackContract = callback })
	f.publishMarket(0, 0, 0)

	_, err := f.client.SendEmail(context.Background(), validSend())
	require.NoError(t, err)

	req := f.mp.Deals()[0].RequestOrder
	assert.Equal(t, callback, req.Callback)
	var reqParams struct {
		Secrets map[string]uint64 `json:"iexec_secrets"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.Params), &reqParams))
	var secret types.RequesterSecret
	require.NoError(t, json.Unmarshal([]byte(f.mp.Secrets()[reqParams.Secrets["1"]]), &secret))
	assert.True(t, secret.UseCallback)
}

func TestSendEmail_OrderNotFound(t *testing.T) {
	tests := []struct {
		name    string
		publish func(f *fixture)
		params  func(p *SendEmailParams)
		want    string
	}{
		{
			name: "no dataset order",
			publish: func(f *fixture) {
				f.mp.PublishAppOrder(marketplace.AppOrder{App: testDapp, Volume: 1, Tag: marketplace.TEETag})
				f.mp.PublishWorkerpoolOrder(marketplace.WorkerpoolOrder{Workerpool: testWorkerpool, Volume: 1, Tag: marketplace.TEETag})
			},
			want: "Dataset order not found",
		},
		{
			name:    "dataset too expensive",
			publish: func(f *fixture) { f.publishMarket(10, 0, 0) },
			want:    "No Dataset order found for the desired price",
		},
		{
			name:    "app too expensive",
			publish: func(f *fixture) { f.publishMarket(0, 5, 0) },
			want:    "No App order found for the desired price",
		},
		{
			name:    "workerpool too expensive",
			publish: func(f *fixture) { f.publishMarket(0, 0, 5) },
			want:    "No Workerpool order found for the desired price",
		},
		{
			name:    "prices within max",
			publish: func(f *fixture) { f.publishMarket(10, 5, 5) },
			params: func(p *SendEmailParams) {
				p.DataMaxPrice = 10
				p.AppMaxPrice = 5
				p.WorkerpoolMaxPrice = 4
			},
			want: "No Workerpool order found for the desired price",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.publish(f)
			params := validSend()
			if tt.params != nil {
				tt.params(&params)
			}

			_, err := f.client.SendEmail(context.Background(), params)
			appErr := requireAppError(t, err, types.ErrCodeWorkflowSendEmail)
			assert.Equal(t, "Failed to sendEmail", appErr.Message)
			assert.False(t, appErr.IsProtocolError())
			assert.Equal(t, tt.want, causeMessage(t, appErr))

			assert.Empty(t, f.mp.Secrets())
			assert.Zero(t, f.mp.Calls("MatchOrders"))
			assert.Zero(t, f.uploader.count())
		})
	}
}

func TestSendEmail_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *SendEmailParams)
		code   types.ErrorCode
	}{
		{"subject too long", func(p *SendEmailParams) { p.EmailSubject = strings.Repeat("s", 79) }, types.ErrCodeValidationInvalidSubject},
		{"missing content", func(p *SendEmailParams) { p.EmailContent = "" }, types.ErrCodeValidationMissingField},
		{"bad content type", func(p *SendEmailParams) { p.ContentType = "application/pdf" }, types.ErrCodeValidationInvalidContentType},
		{"sender name too short", func(p *SendEmailParams) { p.SenderName = "AB" }, types.ErrCodeValidationInvalidSenderName},
		{"bad protected data", func(p *SendEmailParams) { p.ProtectedData = "not-an-address" }, types.ErrCodeValidationInvalidAddress},
		{"bad workerpool", func(p *SendEmailParams) { p.WorkerpoolAddressOrENS = "0x123" }, types.ErrCodeValidationInvalidAddress},
		{"no target", func(p *SendEmailParams) { p.ProtectedData = "" }, types.ErrCodeValidationMissingField},
		{"both targets", func(p *SendEmailParams) { p.GrantedAccess = grantedAccesses(1) }, types.ErrCodeValidationConflictingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.publishMarket(0, 0, 0)
			params := validSend()
			tt.mutate(&params)

			_, err := f.client.SendEmail(context.Background(), params)
			requireAppError(t, err, tt.code)
			assert.True(t, types.IsValidationError(err))

			assert.Zero(t, f.mp.Calls("Address"))
			assert.Zero(t, f.mp.Calls("FetchDatasetOrderbook"))
			assert.Zero(t, f.graph.calls)
			assert.Zero(t, f.uploader.count())
		})
	}
}

func TestSendEmail_ProtocolError(t *testing.T) {
	f := newFixture(t)
	f.publishMarket(0, 0, 0)
	f.mp.FailOn("FetchAppOrderbook", &marketplace.CallError{Op: "FetchAppOrderbook", Err: errors.New("502 bad gateway")})

	_, err := f.client.SendEmail(context.Background(), validSend())
	appErr := requireAppError(t, err, types.ErrCodeProtocolUnavailable)
	assert.True(t, appErr.IsProtocolError())
	assert.Equal(t, types.ProtocolErrorMessage, appErr.Message)
	assert.True(t, marketplace.IsCallError(err))
	assert.Zero(t, f.mp.Calls("MatchOrders"))
}

func TestSendEmail_StorageFailureIsWorkflow(t *testing.T) {
	f := newFixture(t)
	f.publishMarket(0, 0, 0)
	f.uploader.err = types.NewAppError(types.ErrCodeUpstreamStorage, "upload failed", nil)

	_, err := f.client.SendEmail(context.Background(), validSend())
	appErr := requireAppError(t, err, types.ErrCodeWorkflowSendEmail)
	assert.False(t, appErr.IsProtocolError())
	assert.Empty(t, f.mp.Secrets())
}

func TestSendEmail_ProtectedDataWithoutEmailSchema(t *testing.T) {
	f := newFixture(t)
	f.publishMarket(0, 0, 0)
	f.graph.known = map[string]bool{}

	_, err := f.client.SendEmail(context.Background(), validSend())
	requireAppError(t, err, types.ErrCodeValidationInvalidInput)
	assert.Zero(t, f.mp.Calls("FetchDatasetOrderbook"))
}

func TestSendEmail_ResolvesENS(t *testing.T) {
	f := newFixture(t)
	f.publishMarket(0, 0, 0)
	f.mp.RegisterName("mydata.users.eth", testData)
	f.mp.RegisterName("mypool.pools.eth", testWorkerpool)

	params := validSend()
	params.ProtectedData = "MyData.users.eth"
	params.WorkerpoolAddressOrENS = "mypool.pools.eth"
	_, err := f.client.SendEmail(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, testData, f.mp.Deals()[0].RequestOrder.Dataset)

	params.ProtectedData = "unknown.users.eth"
	_, err = f.client.SendEmail(context.Background(), params)
	requireAppError(t, err, types.ErrCodeValidationInvalidAddress)
}

func TestSendEmail_UpperCaseENS(t *testing.T) {
	f := newFixture(t)
	f.publishMarket(0, 0, 0)
	f.mp.RegisterName("mydata.eth", testData)

	params := validSend()
	params.ProtectedData = "MyData.ETH"
	_, err := f.client.SendEmail(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, f.mp.Deals(), 1)
	assert.Equal(t, testData, f.mp.Deals()[0].RequestOrder.Dataset)
}

func TestSendEmail_Voucher(t *testing.T) {
	t.Run("no voucher", func(t *testing.T) {
		f := newFixture(t)
		f.publishMarket(0, 0, 0)
		params := validSend()
		params.UseVoucher = true

		_, err := f.client.SendEmail(context.Background(), params)
		appErr := requireAppError(t, err, types.ErrCodeWorkflowSendEmail)
		assert.Contains(t, causeMessage(t, appErr), "not associated with any voucher")
	})

	t.Run("sponsored workerpool", func(t *testing.T) {
		f := newFixture(t)
		f.publishMarket(0, 0, 100)
		f.mp.SetVoucher(testWallet, &marketplace.Voucher{
			Balance:              100,
			ExpirationTimestamp:  time.Now().Add(time.Hour),
			SponsoredWorkerpools: []string{testWorkerpool},
		})
		params := validSend()
		params.UseVoucher = true

		_, err := f.client.SendEmail(context.Background(), params)
		require.NoError(t, err)
		deals := f.mp.Deals()
		require.Len(t, deals, 1)
		assert.True(t, deals[0].UseVoucher)
		assert.Equal(t, uint64(100), deals[0].RequestOrder.WorkerpoolMaxPrice)
	})
}
