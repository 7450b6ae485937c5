package balances

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/utils"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon"
)

// AccountFetcher is the native ledger account lookup. *horizonclient.Client satisfies it.
type AccountFetcher interface {
	AccountDetail(request horizonclient.AccountRequest) (horizon.Account, error)
}

// LockedSource reports escrowed amounts per asset code for an identity.
type LockedSource interface {
	LockedBalances(ctx context.Context, identity string) (map[models.AssetCode]decimal.Decimal, error)
}

// ContractSource reads the balance of a contract-held asset.
type ContractSource interface {
	ContractBalance(ctx context.Context, asset models.AssetConfig, identity string) (decimal.Decimal, error)
}

// EscrowClient reads locked balances from the platform escrow API:
// GET {base}/locked-balances?address={identity}.
type EscrowClient struct {
	http *utils.HTTPClient
}

func NewEscrowClient(baseURL string, opts ...utils.ClientOption) *EscrowClient {
	opts = append([]utils.ClientOption{utils.WithBaseURL(baseURL)}, opts...)
	return &EscrowClient{http: utils.NewHTTPClient(opts...)}
}

func (c *EscrowClient) LockedBalances(ctx context.Context, identity string) (map[models.AssetCode]decimal.Decimal, error) {
	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, "/locked-balances", &raw, utils.WithQueryParam("address", identity)); err != nil {
		return nil, err
	}
	return decodeLocked(raw)
}

// decodeLocked accepts {"ARENAX": 5} or {"locked": {"ARENAX": "5"}}. Unknown codes are dropped.
func decodeLocked(raw json.RawMessage) (map[models.AssetCode]decimal.Decimal, error) {
	var wrapped struct {
		Locked map[string]decimal.Decimal `json:"locked"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Locked != nil {
		return filterCodes(wrapped.Locked), nil
	}

	var flat map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("unexpected locked balance payload: %w", err)
	}
	return filterCodes(flat), nil
}

func filterCodes(in map[string]decimal.Decimal) map[models.AssetCode]decimal.Decimal {
	out := make(map[models.AssetCode]decimal.Decimal, len(models.AllAssetCodes))
	for k, v := range in {
		if code := models.AssetCode(k); code.Valid() {
			out[code] = v
		}
	}
	return out
}

// HTTPContractSource reads contract balances from an indexer endpoint:
// GET {url}?address={identity}&contract={contractId} -> {"balance": n}.
type HTTPContractSource struct {
	http *utils.HTTPClient
	url  string
}

func NewHTTPContractSource(url string, opts ...utils.ClientOption) *HTTPContractSource {
	return &HTTPContractSource{http: utils.NewHTTPClient(opts...), url: url}
}

func (s *HTTPContractSource) ContractBalance(ctx context.Context, asset models.AssetConfig, identity string) (decimal.Decimal, error) {
	var resp struct {
		Balance *decimal.Decimal `json:"balance"`
	}
	err := s.http.GetJSON(ctx, s.url, &resp,
		utils.WithQueryParam("address", identity),
		utils.WithQueryParam("contract", asset.ContractID))
	if err != nil {
		return decimal.Zero, err
	}
	if resp.Balance == nil {
		return decimal.Zero, fmt.Errorf("contract balance response for %s has no balance", asset.Code)
	}
	return *resp.Balance, nil
}

// SorobanContractSource simulates the token contract's balance() on an RPC node.
type SorobanContractSource struct {
	cfg      utils.SorobanConfig
	decimals sync.Map // contract id -> uint32
}

func NewSorobanContractSource(cfg utils.SorobanConfig) *SorobanContractSource {
	return &SorobanContractSource{cfg: cfg}
}

func (s *SorobanContractSource) ContractBalance(ctx context.Context, asset models.AssetConfig, identity string) (decimal.Decimal, error) {
	decimals, err := s.tokenDecimals(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return utils.ContractTokenBalance(ctx, s.cfg, asset.ContractID, identity, decimals)
}

func (s *SorobanContractSource) tokenDecimals(ctx context.Context, asset models.AssetConfig) (uint32, error) {
	if asset.Decimals > 0 {
		return asset.Decimals, nil
	}
	if v, ok := s.decimals.Load(asset.ContractID); ok {
		return v.(uint32), nil
	}
	d, err := utils.ContractTokenDecimals(ctx, s.cfg, asset.ContractID)
	if err != nil {
		return 0, fmt.Errorf("failed to get decimals: %w", err)
	}
	s.decimals.Store(asset.ContractID, d)
	return d, nil
}
