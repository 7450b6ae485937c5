package utils

import (
	"context"
	"net/http"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	client "github.com/stellar/go/clients/rpcclient"
)

// NewHorizonClient builds a Horizon client whose requests cannot outlive timeout.
func NewHorizonClient(horizonURL string, timeout time.Duration) *horizonclient.Client {
	return &horizonclient.Client{
		HorizonURL: horizonURL,
		HTTP:       &http.Client{Timeout: timeout},
	}
}

func NewRPCClient(rpcURL string, timeout time.Duration) *client.Client {
	return client.NewClient(rpcURL, &http.Client{Timeout: timeout})
}

// NodeLatestLedger asks the RPC node for its health and returns the latest ledger it has seen.
func NodeLatestLedger(ctx context.Context, rpcClient *client.Client) (uint32, error) {
	health, err := rpcClient.GetHealth(ctx)
	if err != nil {
		return 0, err
	}
	return health.LatestLedger, nil
}
