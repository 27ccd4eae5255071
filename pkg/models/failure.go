package models

// FailureKind classifies a failure so that handlers can decide how to report
// it to the counterparty and whether a retry could ever succeed.
type FailureKind string

const (
	// FailureValidation is a malformed trade request or out-of-range
	// parameter. Surfaced to the counterparty immediately, never retried.
	FailureValidation FailureKind = "VALIDATION_ERROR"
	// FailureUnknownToken is an unresolvable token symbol.
	FailureUnknownToken FailureKind = "UNKNOWN_TOKEN"
	// FailureProvider is an error or malformed response from the quote/build
	// provider.
	FailureProvider FailureKind = "PROVIDER_ERROR"
	// FailureChain is an RPC outage, reverted transaction, or confirmation
	// timeout. Recorded as failed and never blindly retried: a re-broadcast
	// without confirming the first attempt did not land risks a double spend.
	FailureChain FailureKind = "CHAIN_ERROR"
	// FailureMissingData means an expected memo (trade data, evaluation
	// target, designated wallet) is absent from the job history.
	FailureMissingData FailureKind = "MISSING_COUNTERPARTY_DATA"
)

// Failure is an error with a protocol-visible classification.
type Failure struct {
	Kind    FailureKind `json:"error"`
	Message string      `json:"message"`
}

func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// AsFailure normalizes any error into a Failure, defaulting unclassified
// errors to the given kind.
func AsFailure(err error, defaultKind FailureKind) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Failure); ok {
		return f
	}
	return NewFailure(defaultKind, err.Error())
}
