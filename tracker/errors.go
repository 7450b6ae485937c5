package tracker

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/celerfi/stellar-wallet-sync/confirm"
)

var ErrNoHash = errors.New("no transaction hash returned")

// TxError is returned by Track on every failure path. Error() is the
// sanitized reason that was also recorded in the toast and history.
type TxError struct {
	Reason string
	Hash   string
	Err    error
}

func (e *TxError) Error() string { return e.Reason }

func (e *TxError) Unwrap() error { return e.Err }

// UserMessenger is implemented by errors that already carry a message safe
// to show (signer adapters, for instance).
type UserMessenger interface {
	UserMessage() string
}

const maxReasonLen = 120

const (
	reasonNoHash    = "No transaction hash was returned"
	reasonTimeout   = "Transaction confirmation timed out"
	reasonOnChain   = "Transaction failed on the network"
	reasonCancelled = "Transaction was cancelled"
	reasonRejected  = "Transaction was rejected in the wallet"
	reasonFunds     = "Insufficient balance for this transaction"
	reasonGeneric   = "Transaction failed"
)

// SanitizeError reduces err to a short reason that carries no raw error
// text, hashes or stack traces.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	var um UserMessenger
	if errors.As(err, &um) {
		if msg := clip(um.UserMessage()); msg != "" {
			return msg
		}
	}

	switch {
	case errors.Is(err, ErrNoHash), errors.Is(err, confirm.ErrMissingHash):
		return reasonNoHash
	case errors.Is(err, confirm.ErrConfirmationTimeout), errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, confirm.ErrTransactionFailed):
		return reasonOnChain
	case errors.Is(err, context.Canceled):
		return reasonCancelled
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "reject", "declined", "denied", "user cancel"):
		return reasonRejected
	case containsAny(msg, "insufficient", "underfunded"):
		return reasonFunds
	case containsAny(msg, "timeout", "timed out"):
		return reasonTimeout
	}
	return reasonGeneric
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// clip keeps the first line, at most maxReasonLen bytes, cut on a rune boundary.
func clip(msg string) string {
	msg = strings.TrimSpace(strings.ToValidUTF8(msg, ""))
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	if len(msg) > maxReasonLen {
		cut := maxReasonLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = strings.TrimSpace(msg[:cut])
	}
	return msg
}
