package web3mail

import (
	"time"

	"web3mail/internal/marketplace"
	"web3mail/internal/types"
)

// Contact is a protected email whose owner granted this application access.
type Contact struct {
	Address              string                   `json:"address"`
	Owner                string                   `json:"owner"`
	AccessGrantTimestamp time.Time                `json:"accessGrantTimestamp"`
	IsUserStrict         bool                     `json:"isUserStrict"`
	RemainingAccess      uint64                   `json:"remainingAccess"`
	AccessPrice          uint64                   `json:"accessPrice"`
	GrantedAccess        marketplace.DatasetOrder `json:"grantedAccess"`
}

// FetchMyContactsParams are the inputs of FetchMyContacts.
type FetchMyContactsParams struct {
	// IsUserStrict keeps only accesses granted to the caller explicitly,
	// excluding accesses open to any requester.
	IsUserStrict bool
}

// FetchUserContactsParams are the inputs of FetchUserContacts. UserAddress
// may be an ENS name.
type FetchUserContactsParams struct {
	UserAddress  string `json:"userAddress" validate:"required,address_or_ens"`
	IsUserStrict bool   `json:"isUserStrict"`
}

// SendEmailParams describes one email. Exactly one of ProtectedData and
// GrantedAccess must be set: ProtectedData sends a single task, GrantedAccess
// runs a campaign over the given accesses.
type SendEmailParams struct {
	ProtectedData string                     `json:"protectedData" validate:"omitempty,address_or_ens"`
	GrantedAccess []marketplace.DatasetOrder `json:"grantedAccess"`

	EmailSubject string            `json:"emailSubject" validate:"required,max=78"`
	EmailContent string            `json:"emailContent" validate:"required,max=512000"`
	ContentType  types.ContentType `json:"contentType" validate:"omitempty,content_type"`
	SenderName   string            `json:"senderName" validate:"omitempty,min=3,max=20"`
	Label        string            `json:"label" validate:"omitempty,max=10"`

	WorkerpoolAddressOrENS string `json:"workerpoolAddressOrEns" validate:"omitempty,address_or_ens"`
	DataMaxPrice           uint64 `json:"dataMaxPrice"`
	AppMaxPrice            uint64 `json:"appMaxPrice"`
	WorkerpoolMaxPrice     uint64 `json:"workerpoolMaxPrice"`
	UseVoucher             bool   `json:"useVoucher"`

	// MaxProtectedDataPerTask only applies to GrantedAccess sends.
	MaxProtectedDataPerTask int `json:"maxProtectedDataPerTask" validate:"omitempty,gte=1,lte=100"`
}

// SendEmailResponse carries TaskID for a single send and Tasks for a campaign.
type SendEmailResponse struct {
	TaskID string                 `json:"taskId,omitempty"`
	Tasks  []marketplace.BulkTask `json:"tasks,omitempty"`
}

// PrepareEmailCampaignParams describes a campaign over GrantedAccesses, split
// into tasks of at most MaxProtectedDataPerTask protected data each.
type PrepareEmailCampaignParams struct {
	GrantedAccesses []marketplace.DatasetOrder `json:"grantedAccesses" validate:"required,min=1"`

	EmailSubject string            `json:"emailSubject" validate:"required,max=78"`
	EmailContent string            `json:"emailContent" validate:"required,max=512000"`
	ContentType  types.ContentType `json:"contentType" validate:"omitempty,content_type"`
	SenderName   string            `json:"senderName" validate:"omitempty,min=3,max=20"`
	Label        string            `json:"label" validate:"omitempty,max=10"`

	WorkerpoolAddressOrENS  string `json:"workerpoolAddressOrEns" validate:"omitempty,address_or_ens"`
	DataMaxPrice            uint64 `json:"dataMaxPrice"`
	AppMaxPrice             uint64 `json:"appMaxPrice"`
	WorkerpoolMaxPrice      uint64 `json:"workerpoolMaxPrice"`
	MaxProtectedDataPerTask int    `json:"maxProtectedDataPerTask" validate:"omitempty,gte=1,lte=100"`
}

// CampaignRequest is a prepared, unsubmitted campaign. It can be reviewed and
// then passed to SendEmailCampaign.
type CampaignRequest struct {
	BulkRequest marketplace.BulkRequest `json:"campaignRequest"`
}

// SendEmailCampaignParams submits a prepared campaign. WorkerpoolAddressOrENS
// defaults to the production workerpool and must match the one the campaign
// was prepared for, if any.
type SendEmailCampaignParams struct {
	CampaignRequest        *CampaignRequest `json:"campaignRequest" validate:"required"`
	WorkerpoolAddressOrENS string           `json:"workerpoolAddressOrEns" validate:"omitempty,address_or_ens"`
	UseVoucher             bool             `json:"useVoucher"`
}

// SendEmailCampaignResponse lists one task per campaign slice.
type SendEmailCampaignResponse struct {
	Tasks []marketplace.BulkTask `json:"tasks"`
}
