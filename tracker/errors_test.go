package tracker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/celerfi/stellar-wallet-sync/confirm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type signerError struct{ msg string }

func (e signerError) Error() string       { return "freighter: internal " + e.msg }
func (e signerError) UserMessage() string { return e.msg }

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"no hash", ErrNoHash, reasonNoHash},
		{"missing hash from waiter", confirm.ErrMissingHash, reasonNoHash},
		{"confirmation timeout", fmt.Errorf("tx abcd: %w", confirm.ErrConfirmationTimeout), reasonTimeout},
		{"deadline", context.DeadlineExceeded, reasonTimeout},
		{"failed on chain", errors.Wrap(confirm.ErrTransactionFailed, "tx_bad_seq"), reasonOnChain},
		{"cancelled", context.Canceled, reasonCancelled},
		{"wallet rejection", errors.New("User rejected the request"), reasonRejected},
		{"underfunded", errors.New("op_underfunded at index 0"), reasonFunds},
		{"raw rpc text", errors.New("rpc error: code 500 at /soroban/rpc stack: goroutine 1"), reasonGeneric},
		{"user message", signerError{"Freighter is locked"}, "Freighter is locked"},
		{"wrapped user message", errors.Wrap(signerError{"Albedo popup closed"}, "sign"), "Albedo popup closed"},
		{"empty user message", signerError{""}, reasonGeneric},
		{"multiline user message", signerError{"Wallet error\nat line 3"}, "Wallet error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeError(tt.err))
		})
	}
}

func TestSanitizeErrorClipsLongMessages(t *testing.T) {
	got := SanitizeError(signerError{strings.Repeat("x", 500)})
	assert.Len(t, got, maxReasonLen)
}

func TestTxErrorUnwraps(t *testing.T) {
	err := &TxError{Reason: reasonOnChain, Hash: "abcd", Err: confirm.ErrTransactionFailed}
	assert.EqualError(t, err, reasonOnChain)
	assert.ErrorIs(t, err, confirm.ErrTransactionFailed)
}

func TestSanitizeErrorClipsOnRuneBoundary(t *testing.T) {
	got := SanitizeError(signerError{strings.Repeat("a", maxReasonLen-1) + "€€"})
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxReasonLen-1), got)

	got = SanitizeError(signerError{"Wallet \xff locked"})
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Wallet  locked", got)
}
