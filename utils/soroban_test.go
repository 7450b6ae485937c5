package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScAddress(t *testing.T) {
	account := keypair.MustRandom().Address()
	addr, err := ScAddress(account)
	require.NoError(t, err)
	assert.Equal(t, xdr.ScAddressTypeScAddressTypeAccount, addr.Type)
	require.NotNil(t, addr.AccountId)
	assert.Equal(t, account, addr.AccountId.Address())

	raw := make([]byte, 32)
	raw[31] = 7
	contract, err := strkey.Encode(strkey.VersionByteContract, raw)
	require.NoError(t, err)
	addr, err = ScAddress(contract)
	require.NoError(t, err)
	assert.Equal(t, xdr.ScAddressTypeScAddressTypeContract, addr.Type)
	require.NotNil(t, addr.ContractId)
	assert.Equal(t, byte(7), addr.ContractId[31])

	for _, bad := range []string{"", "GNOTANADDRESS", "SBZVMB74Z76QZ3ZOY7UTDFYKMEGKW5XFJEB6PFKBF4UYSSWHG4EDH7PY"} {
		_, err := ScAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestContractTokenDecimals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req simulateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "simulateTransaction", req.Method)
		assert.NotEmpty(t, req.Params.Transaction)

		six := xdr.Uint32(6)
		result, err := xdr.MarshalBase64(xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &six})
		assert.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]any{"results": []map[string]string{{"xdr": result}}},
		})
	}))
	defer srv.Close()

	contract, err := strkey.Encode(strkey.VersionByteContract, make([]byte, 32))
	require.NoError(t, err)

	decimals, err := ContractTokenDecimals(context.Background(), SorobanConfig{RPCURL: srv.URL}, contract)
	require.NoError(t, err)
	assert.EqualValues(t, 6, decimals)
}

func TestCallReadOnlyFunctionRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer srv.Close()

	contract, err := strkey.Encode(strkey.VersionByteContract, make([]byte, 32))
	require.NoError(t, err)

	_, err = ContractTokenDecimals(context.Background(), SorobanConfig{RPCURL: srv.URL}, contract)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}
