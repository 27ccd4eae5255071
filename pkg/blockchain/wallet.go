package blockchain

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EscrowWallet is a single-use keypair generated per job. The private key is
// persisted only inside the job record; it must never be logged or put on the
// negotiation transport.
type EscrowWallet struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// GenerateEscrowWallet creates a fresh keypair.
func GenerateEscrowWallet() (*EscrowWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate escrow key: %v", err)
	}
	return &EscrowWallet{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}, nil
}

// LoadEscrowWallet reconstructs a wallet from its persisted hex key.
func LoadEscrowWallet(keyHex string) (*EscrowWallet, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow key: %v", err)
	}
	return &EscrowWallet{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}, nil
}

// Key returns the signing key for transaction signing.
func (w *EscrowWallet) Key() *ecdsa.PrivateKey {
	return w.key
}

// KeyHex returns the hex-encoded private key for persistence in the job
// record. Callers must not pass the result to any logger or transport.
func (w *EscrowWallet) KeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(w.key))
}

// String renders the wallet address only. The key never appears in any
// formatted output.
func (w *EscrowWallet) String() string {
	return w.Address.Hex()
}
