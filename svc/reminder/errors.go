package reminder

import "errors"

var (
	ErrRecipientNotFound = errors.New("reminder: recipient not found")
	ErrNoEmail           = errors.New("reminder: recipient has no email address")
	ErrUnknownCurrency   = errors.New("reminder: unknown currency")
	ErrRenderFailed      = errors.New("reminder: failed to render message")
	ErrSendFailed        = errors.New("reminder: failed to send message")
)
