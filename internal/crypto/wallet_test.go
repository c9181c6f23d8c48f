package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known hardhat account #0.
const (
	testKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestAddressFromPrivateKey(t *testing.T) {
	addr, err := AddressFromPrivateKey(testKey)
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr.Hex())

	addr, err = AddressFromPrivateKey(testKey[2:])
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr.Hex())

	_, err = AddressFromPrivateKey("0xnothex")
	assert.Error(t, err)
}

func TestResolveWallet(t *testing.T) {
	tests := []struct {
		name    string
		address string
		key     string
		want    string
		wantErr bool
	}{
		{name: "key only", key: testKey, want: testAddress},
		{name: "address only", address: "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", want: testAddress},
		{name: "both agree", address: testAddress, key: testKey, want: testAddress},
		{name: "mismatch", address: "0x0000000000000000000000000000000000000001", key: testKey, wantErr: true},
		{name: "neither", wantErr: true},
		{name: "bad address", address: "wallet", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveWallet(tc.address, tc.key)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
