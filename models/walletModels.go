package models

import "time"

type SignerKind string

const (
	SignerFreighter SignerKind = "freighter"
	SignerAlbedo    SignerKind = "albedo"
)

func (k SignerKind) Valid() bool {
	return k == SignerFreighter || k == SignerAlbedo
}

type Network string

const (
	NetworkTestnet Network = "testnet"
	NetworkMainnet Network = "mainnet"
)

func (n Network) Valid() bool {
	return n == NetworkTestnet || n == NetworkMainnet
}

// WalletSession records which external signer is connected.
type WalletSession struct {
	PublicIdentity string     `json:"publicIdentity"`
	SignerKind     SignerKind `json:"signerKind"`
	Network        Network    `json:"network"`
	ConnectedAt    time.Time  `json:"connectedAt"`
}
