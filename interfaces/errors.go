package interfaces

import "errors"

var (
	// ErrInvalidName is returned for names that are empty or lack the registry suffix.
	// Rejected before any state change or fee spend.
	ErrInvalidName = errors.New("invalid name")

	// ErrUnauthorized is returned when a caller lacks the rights for an operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadySet is returned by one-time binding operations called a second time.
	ErrAlreadySet = errors.New("already set")

	// ErrChainNotEnabled is returned when no ChainConfig exists for a destination.
	ErrChainNotEnabled = errors.New("chain not enabled")

	// ErrInsufficientFee is returned when the fee reserve or the attached fee
	// does not cover a message.
	ErrInsufficientFee = errors.New("insufficient fee")

	// ErrTransferFailed is returned when a native transfer cannot be credited
	// to its destination.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrInsufficientFunds is returned when an account cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSendFailed is returned when the bridge rejects a message of a strict chain
	// after it was quoted.
	ErrSendFailed = errors.New("send failed")

	// ErrUntrustedSource is returned for deliveries from an unexpected source chain.
	ErrUntrustedSource = errors.New("untrusted source chain")

	// ErrUntrustedSender is returned for deliveries from an unexpected sender.
	ErrUntrustedSender = errors.New("untrusted sender")

	// ErrSourceNotConfigured is returned for every delivery until the trusted sender is bound.
	ErrSourceNotConfigured = errors.New("source not configured")

	// ErrMalformedPayload is returned when a message payload cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidAddress is returned for malformed or zero addresses where one is required.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidAmount is returned for non-positive or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnsupportedDestination is returned by a bridge with no lane to the destination chain.
	ErrUnsupportedDestination = errors.New("unsupported destination chain")

	// ErrUnsupportedFeeToken is returned by a bridge that cannot take the requested fee token.
	ErrUnsupportedFeeToken = errors.New("unsupported fee token")
)
