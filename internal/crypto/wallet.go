// Package crypto derives the wallet identity the engine estimates gas from.
// Keys are only parsed, never used to sign.
package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressFromPrivateKey returns the address controlled by a hex-encoded
// secp256k1 key, with or without the 0x prefix.
func AddressFromPrivateKey(privateKeyHex string) (common.Address, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: invalid private key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(pk.PublicKey), nil
}

// ResolveWallet picks the wallet address from an explicit address, a private
// key, or both. When both are given they must agree.
func ResolveWallet(address, privateKeyHex string) (string, error) {
	address = strings.TrimSpace(address)
	if address != "" && !common.IsHexAddress(address) {
		return "", fmt.Errorf("crypto: wallet address %q is not a hex address", address)
	}
	if strings.TrimSpace(privateKeyHex) == "" {
		if address == "" {
			return "", errors.New("crypto: wallet address or private key required")
		}
		return common.HexToAddress(address).Hex(), nil
	}

	derived, err := AddressFromPrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	if address != "" && common.HexToAddress(address) != derived {
		return "", fmt.Errorf("crypto: wallet address %s does not match private key (%s)", address, derived.Hex())
	}
	return derived.Hex(), nil
}
