package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// SorobanConfig points read-only contract calls at an RPC node.
type SorobanConfig struct {
	RPCURL  string
	Timeout time.Duration
	HTTP    *http.Client
}

func (c SorobanConfig) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: c.Timeout}
}

// ContractTokenBalance simulates balance(holder) on a token contract and scales the result by decimals.
func ContractTokenBalance(ctx context.Context, cfg SorobanConfig, contractID, holder string, decimals uint32) (decimal.Decimal, error) {
	contract, err := ScAddress(contractID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid contract address: %w", err)
	}
	holderAddr, err := ScAddress(holder)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid holder address: %w", err)
	}

	args := xdr.ScVec{{Type: xdr.ScValTypeScvAddress, Address: &holderAddr}}
	scVal, err := callReadOnlyFunction(ctx, contract, "balance", args, cfg)
	if err != nil {
		return decimal.Zero, err
	}
	if scVal.Type != xdr.ScValTypeScvI128 {
		return decimal.Zero, fmt.Errorf("unexpected result type %s", scVal.Type)
	}
	return Int128ToDecimal(scVal.MustI128(), decimals), nil
}

// ContractTokenDecimals reads decimals() from a token contract.
func ContractTokenDecimals(ctx context.Context, cfg SorobanConfig, contractID string) (uint32, error) {
	contract, err := ScAddress(contractID)
	if err != nil {
		return 0, fmt.Errorf("invalid contract address: %w", err)
	}
	scVal, err := callReadOnlyFunction(ctx, contract, "decimals", xdr.ScVec{}, cfg)
	if err != nil {
		return 0, err
	}
	if scVal.Type != xdr.ScValTypeScvU32 {
		return 0, fmt.Errorf("unexpected result type %s", scVal.Type)
	}
	return uint32(*scVal.U32), nil
}

// ScAddress converts a G (account) or C (contract) strkey into an ScAddress.
func ScAddress(address string) (xdr.ScAddress, error) {
	version, err := strkey.Version(address)
	if err != nil {
		return xdr.ScAddress{}, fmt.Errorf("malformed address: %w", err)
	}
	raw, err := strkey.Decode(version, address)
	if err != nil {
		return xdr.ScAddress{}, fmt.Errorf("malformed address: %w", err)
	}

	switch version {
	case strkey.VersionByteAccountID:
		var key xdr.Uint256
		copy(key[:], raw)
		return xdr.ScAddress{
			Type: xdr.ScAddressTypeScAddressTypeAccount,
			AccountId: &xdr.AccountId{
				Type:    xdr.PublicKeyTypePublicKeyTypeEd25519,
				Ed25519: &key,
			},
		}, nil
	case strkey.VersionByteContract:
		var id xdr.ContractId
		copy(id[:], raw)
		return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &id}, nil
	}
	return xdr.ScAddress{}, fmt.Errorf("address must be an account (G...) or contract (C...)")
}

// Simulations never reach the ledger, so any well-formed source account works.
const simulationSource = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

type simulateRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  struct {
		Transaction string `json:"transaction"`
	} `json:"params"`
}

type simulateResponse struct {
	Result struct {
		Error   string `json:"error,omitempty"`
		Results []struct {
			XDR string `json:"xdr"`
		} `json:"results"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// simulationEnvelope wraps a single contract invocation in an unsigned transaction envelope.
func simulationEnvelope(contract xdr.ScAddress, fn string, args xdr.ScVec) (string, error) {
	source := txnbuild.NewSimpleAccount(simulationSource, 0)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
		Operations: []txnbuild.Operation{&txnbuild.InvokeHostFunction{
			SourceAccount: source.AccountID,
			HostFunction: xdr.HostFunction{
				Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
				InvokeContract: &xdr.InvokeContractArgs{
					ContractAddress: contract,
					FunctionName:    xdr.ScSymbol(fn),
					Args:            args,
				},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("build %s invocation: %w", fn, err)
	}
	return xdr.MarshalBase64(tx.ToXDR())
}

// callReadOnlyFunction simulates fn on the RPC node and returns its first result.
func callReadOnlyFunction(ctx context.Context, contract xdr.ScAddress, fn string, args xdr.ScVec, cfg SorobanConfig) (xdr.ScVal, error) {
	envelope, err := simulationEnvelope(contract, fn, args)
	if err != nil {
		return xdr.ScVal{}, err
	}

	rpcReq := simulateRequest{JSONRPC: "2.0", ID: 1, Method: "simulateTransaction"}
	rpcReq.Params.Transaction = envelope
	payload, err := json.Marshal(rpcReq)
	if err != nil {
		return xdr.ScVal{}, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.RPCURL, bytes.NewReader(payload))
	if err != nil {
		return xdr.ScVal{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cfg.client().Do(req)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("simulate %s: %w", fn, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("simulate %s: read body: %w", fn, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return xdr.ScVal{}, &HTTPError{StatusCode: resp.StatusCode, Method: req.Method, URL: cfg.RPCURL, Body: string(body)}
	}

	var out simulateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return xdr.ScVal{}, fmt.Errorf("simulate %s: decode response: %w", fn, err)
	}
	switch {
	case out.Error != nil:
		return xdr.ScVal{}, fmt.Errorf("simulate %s: rpc error %d: %s", fn, out.Error.Code, out.Error.Message)
	case out.Result.Error != "":
		return xdr.ScVal{}, fmt.Errorf("simulate %s: %s", fn, out.Result.Error)
	case len(out.Result.Results) == 0:
		return xdr.ScVal{}, fmt.Errorf("simulate %s: no results", fn)
	}

	var val xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(out.Result.Results[0].XDR, &val); err != nil {
		return xdr.ScVal{}, fmt.Errorf("simulate %s: decode result: %w", fn, err)
	}
	return val, nil
}
