package models

// AssetCode identifies one of the three assets a wallet snapshot always covers.
type AssetCode string

const (
	AssetXLM    AssetCode = "XLM"
	AssetUSDC   AssetCode = "USDC"
	AssetARENAX AssetCode = "ARENAX"
)

// AllAssetCodes is the closed set of codes every balance structure is keyed by.
var AllAssetCodes = []AssetCode{AssetXLM, AssetUSDC, AssetARENAX}

func (c AssetCode) Valid() bool {
	switch c {
	case AssetXLM, AssetUSDC, AssetARENAX:
		return true
	}
	return false
}

// BalanceSource says where an asset's available balance is read from.
type BalanceSource string

const (
	SourceNative   BalanceSource = "native"
	SourceClassic  BalanceSource = "classic"
	SourceContract BalanceSource = "contract"
)

// AssetConfig is the static description of an asset
type AssetConfig struct {
	Code       AssetCode     `json:"code"`
	Issuer     string        `json:"issuer,omitempty"`      // classic issuer, G-address
	ContractID string        `json:"contract_id,omitempty"` // token contract, C-address
	Source     BalanceSource `json:"source"`
	Decimals   uint32        `json:"decimals"`
}
