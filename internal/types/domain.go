package types

// ContentType is the MIME type of an email body.
type ContentType string

const (
	ContentTypeText ContentType = "text/plain"
	ContentTypeHTML ContentType = "text/html"
)

// AllowedContentTypes lists every accepted email body type.
var AllowedContentTypes = []ContentType{ContentTypeText, ContentTypeHTML}

// Valid reports whether c is one of the accepted content types.
func (c ContentType) Valid() bool {
	for _, allowed := range AllowedContentTypes {
		if c == allowed {
			return true
		}
	}
	return false
}

// SendInput defines the contract for email transmission.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	Body        string
	ContentType ContentType
	ReferenceID string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}

// RequesterSecret is the per-send bundle pushed by the requester and read by
// the worker inside the enclave. It is bound to exactly one request order.
type RequesterSecret struct {
	EmailSubject              string      `json:"emailSubject" validate:"required"`
	EmailContentMultiAddr     string      `json:"emailContentMultiAddr" validate:"required,multiaddr"`
	ContentType               ContentType `json:"contentType,omitempty" validate:"omitempty,content_type"`
	SenderName                string      `json:"senderName,omitempty" validate:"omitempty,min=3,max=20"`
	EmailContentEncryptionKey string      `json:"emailContentEncryptionKey,omitempty" validate:"omitempty,base64"`
	UseCallback               bool        `json:"useCallback"`
}

// AppDeveloperSecret is provisioned once when the application is deployed.
// Every field must be present and well-formed or the worker refuses to run.
type AppDeveloperSecret struct {
	MailjetAPIKeyPublic  SecretString `json:"MJ_APIKEY_PUBLIC" validate:"required"`
	MailjetAPIKeyPrivate SecretString `json:"MJ_APIKEY_PRIVATE" validate:"required"`
	MailjetSender        string       `json:"MJ_SENDER" validate:"required,email"`
	MailgunAPIKey        SecretString `json:"MAILGUN_APIKEY" validate:"required"`
	WhitelistedApps      []string     `json:"WEB3MAIL_WHITELISTED_APPS" validate:"required,dive,address"`
}

// ProtectedEmail is the content of a protected data record holding an email.
type ProtectedEmail struct {
	Email string `validate:"required,email"`
}

// TaskResult is the deterministic output of a single-data task.
type TaskResult struct {
	Success       bool   `json:"success"`
	ProtectedData string `json:"protectedData,omitempty"`
	IsEmailValid  *bool  `json:"isEmailValid,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BulkItemResult is the outcome of one protected data in a bulk slice.
type BulkItemResult struct {
	Index int `json:"index"`
	TaskResult
}

// BulkTaskResult is the deterministic output of a bulk slice task.
type BulkTaskResult struct {
	Success      bool             `json:"success"`
	TotalCount   int              `json:"totalCount"`
	SuccessCount int              `json:"successCount"`
	ErrorCount   int              `json:"errorCount"`
	Results      []BulkItemResult `json:"results"`
}

// ComputedDescriptor is written to computed.json next to the result document.
type ComputedDescriptor struct {
	DeterministicOutputPath string `json:"deterministic-output-path"`
	CallbackData            string `json:"callback-data,omitempty"`
}
