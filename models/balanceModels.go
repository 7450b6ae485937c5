package models

import "github.com/shopspring/decimal"

// AssetBalance is one derived line of a wallet snapshot. Total is always Available+Locked.
type AssetBalance struct {
	Asset        AssetCode       `json:"asset"`
	Available    decimal.Decimal `json:"available"`
	Locked       decimal.Decimal `json:"locked"`
	Total        decimal.Decimal `json:"total"`
	HasTrustline bool            `json:"hasTrustline"`
	Source       BalanceSource   `json:"source"`
	Issuer       string          `json:"issuer,omitempty"`
	ContractID   string          `json:"contractId,omitempty"`
}

// WalletBalances covers exactly the codes in AllAssetCodes.
type WalletBalances map[AssetCode]AssetBalance

// NewAssetBalance builds a balance line from a config entry. Negative inputs clamp to zero.
func NewAssetBalance(cfg AssetConfig, available, locked decimal.Decimal, hasTrustline bool) AssetBalance {
	if available.IsNegative() {
		available = decimal.Zero
	}
	if locked.IsNegative() {
		locked = decimal.Zero
	}
	return AssetBalance{
		Asset:        cfg.Code,
		Available:    available,
		Locked:       locked,
		Total:        available.Add(locked),
		HasTrustline: hasTrustline,
		Source:       cfg.Source,
		Issuer:       cfg.Issuer,
		ContractID:   cfg.ContractID,
	}
}
