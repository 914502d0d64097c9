package external

import (
	"context"

	"web3mail/internal/types"
)

// EmailProvider delivers a rendered email. It returns the provider message id.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

// Deliverability is the verdict of the fallback email validator.
type Deliverability int

const (
	// DeliverabilityUnknown means the validator could not give an answer.
	DeliverabilityUnknown Deliverability = iota
	Deliverable
	Undeliverable
)

func (d Deliverability) String() string {
	switch d {
	case Deliverable:
		return "deliverable"
	case Undeliverable:
		return "undeliverable"
	default:
		return "unknown"
	}
}

// EmailValidator checks whether an address can receive mail. A non-nil error
// always comes with DeliverabilityUnknown.
type EmailValidator interface {
	CheckDeliverability(ctx context.Context, address string) (Deliverability, error)
}

// ContentStore reads content-addressed blobs by multiaddr (/ipfs/<cid> or
// /p2p/<cid>).
type ContentStore interface {
	Get(ctx context.Context, multiaddr string) ([]byte, error)
}

// ContentUploader stores a blob and returns its multiaddr once it can be read
// back.
type ContentUploader interface {
	Upload(ctx context.Context, content []byte) (multiaddr string, err error)
}

// GraphQuerier runs a GraphQL query and decodes the data member into out.
type GraphQuerier interface {
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}
