package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxKind string

const (
	TxKindClassic  TxKind = "classic"
	TxKindContract TxKind = "contract"
)

func (k TxKind) Valid() bool {
	return k == TxKindClassic || k == TxKindContract
}

type TxDirection string

const (
	DirectionDeposit  TxDirection = "deposit"
	DirectionWithdraw TxDirection = "withdraw"
)

func (d TxDirection) Valid() bool {
	return d == DirectionDeposit || d == DirectionWithdraw
}

// TxPhase is ordered: signing < submitted < confirmed.
type TxPhase string

const (
	PhaseSigning   TxPhase = "signing"
	PhaseSubmitted TxPhase = "submitted"
	PhaseConfirmed TxPhase = "confirmed"
)

// Rank orders phases; unknown or empty phases rank 0.
func (p TxPhase) Rank() int {
	switch p {
	case PhaseSigning:
		return 1
	case PhaseSubmitted:
		return 2
	case PhaseConfirmed:
		return 3
	}
	return 0
}

type TxStatus string

const (
	StatusPending TxStatus = "pending"
	StatusSuccess TxStatus = "success"
	StatusFailed  TxStatus = "failed"
)

func (s TxStatus) Valid() bool {
	return s == StatusPending || s == StatusSuccess || s == StatusFailed
}

// TxMeta is supplied by the caller when tracking starts and never changes.
type TxMeta struct {
	Kind      TxKind          `json:"kind"`
	Direction TxDirection     `json:"direction"`
	Asset     AssetCode       `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
}

// ToastItem is the in-memory feedback entry for one tracked operation.
type ToastItem struct {
	TxMeta
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      TxStatus  `json:"status"`
	Phase       TxPhase   `json:"phase,omitempty"`
	Hash        string    `json:"hash,omitempty"`
	ExplorerURL string    `json:"explorerUrl,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// TxHistoryItem is the persisted terminal record of a tracked operation.
type TxHistoryItem struct {
	TxMeta
	ID          string    `json:"id"`
	Status      TxStatus  `json:"status"`
	Phase       TxPhase   `json:"phase,omitempty"`
	Hash        string    `json:"hash,omitempty"`
	ExplorerURL string    `json:"explorerUrl,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
