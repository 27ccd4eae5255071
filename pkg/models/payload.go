package models

import (
	"encoding/json"
	"fmt"
)

// PayloadKind is the discriminant for memo payloads. Payloads are decoded once
// at the transport boundary into one of the typed variants below instead of
// being inspected field-by-field downstream.
type PayloadKind string

const (
	PayloadNegotiation PayloadKind = "negotiation"
	PayloadFundRequest PayloadKind = "fund_request"
	PayloadSettlement  PayloadKind = "settlement"
	PayloadDelivery    PayloadKind = "delivery"
)

// NegotiationPayload carries a free-text service requirement or reason.
type NegotiationPayload struct {
	ServiceRequirement string `json:"service_requirement"`
}

// FundRequestPayload instructs the buyer to transfer trade capital to the
// seller's designated wallet. The reporting endpoint is optional and lets the
// buyer poll swap progress out of band.
type FundRequestPayload struct {
	WalletAddress     string `json:"walletAddress"`
	ReportingEndpoint string `json:"reporting_api_endpoint,omitempty"`
}

// SettlementPayload is the transport's confirmation that the buyer's side of
// a job has been funded: the service fee paid in direct mode, or the trade
// capital transferred in escrow mode. Its presence in the memo history is what
// makes buyer settlement idempotent across restarts.
type SettlementPayload struct {
	Kind          string `json:"kind"` // "payment" or "transfer"
	Amount        string `json:"amount,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// DeliveryPayload is the seller's terminal report for a job. A successful
// delivery carries Status "SUCCESS" and a transaction hash; a failed delivery
// carries either Status "FAILURE" or an error code. Absence of an explicit
// success marker must evaluate to failure.
type DeliveryPayload struct {
	Status          string            `json:"status,omitempty"`
	Message         string            `json:"message,omitempty"`
	TransactionHash string            `json:"transaction_hash,omitempty"`
	Error           string            `json:"error,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Success reports whether the delivery explicitly indicates a completed swap.
func (d *DeliveryPayload) Success() bool {
	return d.Status == "SUCCESS" && d.TransactionHash != ""
}

// Envelope is the wire form of a typed payload.
type Envelope struct {
	Kind PayloadKind     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WrapPayload encodes a typed payload into an envelope.
func WrapPayload(kind PayloadKind, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %v", kind, err)
	}
	return &Envelope{Kind: kind, Data: raw}, nil
}

// DecodePayload decodes an envelope into its typed variant. Unknown kinds and
// malformed data are errors; callers at the handler boundary convert them into
// MissingCounterpartyData failures rather than crashing.
func DecodePayload(raw []byte) (interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed payload envelope: %v", err)
	}

	switch env.Kind {
	case PayloadNegotiation:
		var p NegotiationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed negotiation payload: %v", err)
		}
		return &p, nil
	case PayloadFundRequest:
		var p FundRequestPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed fund request payload: %v", err)
		}
		return &p, nil
	case PayloadSettlement:
		var p SettlementPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed settlement payload: %v", err)
		}
		return &p, nil
	case PayloadDelivery:
		var p DeliveryPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed delivery payload: %v", err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown payload kind: %q", env.Kind)
	}
}
