package models

import "encoding/json"

// JobPhase represents the lifecycle phase of a negotiation job.
type JobPhase int

const (
	PhaseRequest JobPhase = iota
	PhaseNegotiation
	PhaseTransaction
	PhaseEvaluation
	PhaseCompleted
	PhaseRejected
)

var phaseNames = map[JobPhase]string{
	PhaseRequest:     "REQUEST",
	PhaseNegotiation: "NEGOTIATION",
	PhaseTransaction: "TRANSACTION",
	PhaseEvaluation:  "EVALUATION",
	PhaseCompleted:   "COMPLETED",
	PhaseRejected:    "REJECTED",
}

func (p JobPhase) String() string {
	name, exists := phaseNames[p]
	if !exists {
		return "UNKNOWN"
	}
	return name
}

// IsTerminal reports whether the phase is one of the two terminal phases.
// A job reaches a terminal phase exactly once and is never reopened.
func (p JobPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseRejected
}

// Memo is a single message exchanged within a job. NextPhase is the phase the
// sender proposes to transition to; a party acts on a memo only if NextPhase
// matches the transition it is willing to perform next.
type Memo struct {
	ID        int             `json:"id"`
	Content   string          `json:"content"`
	NextPhase JobPhase        `json:"next_phase"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Job is the unit of negotiation between buyer and seller, as delivered by the
// negotiation transport on every phase change.
type Job struct {
	ID    string   `json:"id"`
	Phase JobPhase `json:"phase"`
	// Price is the agreed service fee in the settlement asset.
	Price float64 `json:"price"`
	// Memos is the append-only message history, oldest first.
	Memos []Memo `json:"memos"`
}

// FirstMemoWithNextPhase returns the earliest memo proposing the given phase,
// or nil if none exists.
func (j *Job) FirstMemoWithNextPhase(phase JobPhase) *Memo {
	for i := range j.Memos {
		if j.Memos[i].NextPhase == phase {
			return &j.Memos[i]
		}
	}
	return nil
}

// TradeRequestMemo scans the memo history for the original structured trade
// request. Payment confirmations and fund-transfer memos also appear in the
// history, so the scan keys on the first memo whose content parses as a trade
// request rather than on position.
func (j *Job) TradeRequestMemo() *Memo {
	for i := range j.Memos {
		if _, err := ParseTradeRequest([]byte(j.Memos[i].Content)); err == nil {
			return &j.Memos[i]
		}
	}
	return nil
}
