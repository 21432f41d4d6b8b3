package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey is returned when the private key cannot be parsed. Fatal:
// without a key no credential can ever be derived.
var ErrInvalidKey = errors.New("invalid private key")

// Signer produces EIP-191 personal_sign signatures with a fixed secp256k1
// key. Stateless after construction; the key is never logged or persisted.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

func New(privateKeyHex string) (*Signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

// Address returns the checksummed address derived from the key.
func (s *Signer) Address() string {
	return s.address
}

// SignMessage signs msg the way wallets do for personal_sign: the EIP-191
// text hash, with the legacy +27 recovery offset, hex-encoded.
func (s *Signer) SignMessage(msg string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), s.key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
