// Package email builds the outgoing message from a requester's secret and
// keeps recipient addresses out of the logs.
package email

import (
	"strings"

	"web3mail/internal/types"
)

// DefaultSenderName is shown when the requester did not choose a name.
const DefaultSenderName = "Web3mail"

// DefaultContentType applies when the requester did not set one.
const DefaultContentType = types.ContentTypeHTML

// SenderDisplayName renders the From name: "<name> via Web3mail", or
// "Web3mail" when name is blank.
func SenderDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultSenderName
	}
	return name + " via " + DefaultSenderName
}

// Compose builds the message sent to recipient on behalf of the requester.
func Compose(secret types.RequesterSecret, senderAddress, recipient, body, referenceID string) types.SendInput {
	contentType := secret.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	return types.SendInput{
		To: recipient,
		From: types.SenderIdentity{
			Name:    SenderDisplayName(secret.SenderName),
			Address: senderAddress,
		},
		Subject:     secret.EmailSubject,
		Body:        body,
		ContentType: contentType,
		ReferenceID: referenceID,
	}
}
