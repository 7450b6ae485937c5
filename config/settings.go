package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/stellar/go/strkey"
)

// Settings is the resolved configuration handed to the services at startup.
type Settings struct {
	HorizonURL string
	RPCURL     string
	Network    models.Network

	EscrowURL           string
	ContractBalanceURL  string
	ContractBalanceMode string

	Assets []models.AssetConfig

	ExplorerClassicURL  string
	ExplorerContractURL string

	ConfirmTimeout         time.Duration
	ConfirmInitialInterval time.Duration
	ConfirmMaxInterval     time.Duration
	BalanceTimeout         time.Duration

	HTTPAddr       string
	TrustProxy     bool
	StorageBackend string
	StorageDir     string
	DatabaseURL    string
	Environment    string
}

// Load builds Settings from the environment variables of this package.
func Load() Settings {
	s := Settings{
		HorizonURL:             HORIZON_URL,
		RPCURL:                 RPC_URL,
		Network:                models.Network(NETWORK),
		EscrowURL:              ESCROW_API_URL,
		ContractBalanceURL:     CONTRACT_BALANCE_URL,
		ContractBalanceMode:    CONTRACT_BALANCE_MODE,
		ExplorerClassicURL:     EXPLORER_CLASSIC_URL,
		ExplorerContractURL:    EXPLORER_CONTRACT_URL,
		ConfirmTimeout:         parseDuration(CONFIRM_TIMEOUT, 60*time.Second),
		ConfirmInitialInterval: parseDuration(CONFIRM_INITIAL_INTERVAL, time.Second),
		ConfirmMaxInterval:     parseDuration(CONFIRM_MAX_INTERVAL, 8*time.Second),
		BalanceTimeout:         parseDuration(BALANCE_TIMEOUT, 15*time.Second),
		HTTPAddr:               HTTP_ADDR,
		TrustProxy:             strings.EqualFold(TRUST_PROXY, "true"),
		StorageBackend:         STORAGE_BACKEND,
		StorageDir:             STORAGE_DIR,
		Environment:            DEPLOYMENT_ENVIRONMENT,
	}
	if DB_HOST != "" {
		s.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:5432/%s", DB_USER, DB_PASSWORD, DB_HOST, DB_NAME)
	}

	arenax := models.AssetConfig{
		Code:     models.AssetARENAX,
		Issuer:   ARENAX_ISSUER,
		Source:   models.BalanceSource(ARENAX_SOURCE),
		Decimals: 7,
	}
	if arenax.Source == models.SourceContract {
		arenax.ContractID = ARENAX_CONTRACT_ID
	}
	s.Assets = []models.AssetConfig{
		{Code: models.AssetXLM, Source: models.SourceNative, Decimals: 7},
		{Code: models.AssetUSDC, Issuer: USDC_ISSUER, Source: models.SourceClassic, Decimals: 7},
		arenax,
	}
	return s
}

// Validate reports configuration that would make the services unusable.
// It is meant to run once at startup.
func (s Settings) Validate() error {
	if !s.Network.Valid() {
		return fmt.Errorf("invalid NETWORK %q: options (testnet, mainnet)", s.Network)
	}
	for name, raw := range map[string]string{"HORIZON_URL": s.HorizonURL, "RPC_URL": s.RPCURL} {
		if err := checkURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if s.EscrowURL != "" {
		if err := checkURL(s.EscrowURL); err != nil {
			return fmt.Errorf("invalid ESCROW_API_URL: %w", err)
		}
	}
	for _, a := range s.Assets {
		switch a.Source {
		case models.SourceNative, models.SourceClassic:
		case models.SourceContract:
			if _, err := strkey.Decode(strkey.VersionByteContract, a.ContractID); err != nil {
				return fmt.Errorf("asset %s is contract-sourced but has no valid contract id", a.Code)
			}
			if s.ContractBalanceMode == "http" && s.ContractBalanceURL == "" {
				return fmt.Errorf("asset %s is contract-sourced but CONTRACT_BALANCE_URL is empty", a.Code)
			}
		default:
			return fmt.Errorf("asset %s has unknown source %q", a.Code, a.Source)
		}
		if a.Issuer != "" && !strkey.IsValidEd25519PublicKey(a.Issuer) {
			return fmt.Errorf("asset %s has an invalid issuer", a.Code)
		}
	}
	switch s.StorageBackend {
	case "memory", "file":
	case "postgres":
		if s.DatabaseURL == "" {
			return errors.New("postgres storage requires DB_HOST")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: options (memory, file, postgres)", s.StorageBackend)
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) url", raw)
	}
	return nil
}
