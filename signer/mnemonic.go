package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

const DEFAULT_PATH = "m/44'/60'/0'/0/0"

var ErrBadMnemonic = errors.New("invalid mnemonic")

// Mnemonic signs with one key derived from a BIP-39 phrase.
type Mnemonic struct {
	Path    string
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewEntropy returns fresh 256-bit entropy, hex encoded.
func NewEntropy() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(entropy), nil
}

func PhraseFromEntropy(entropyHex string) (string, error) {
	entropy, err := hex.DecodeString(entropyHex)
	if err != nil {
		return "", fmt.Errorf("decoding entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

func EntropyFromPhrase(phrase string) (string, error) {
	entropy, err := bip39.EntropyFromMnemonic(normalize(phrase))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadMnemonic, err)
	}
	return hex.EncodeToString(entropy), nil
}

func FromEntropy(entropyHex, path string) (*Mnemonic, error) {
	phrase, err := PhraseFromEntropy(entropyHex)
	if err != nil {
		return nil, err
	}
	return FromPhrase(phrase, path)
}

func FromPhrase(phrase, path string) (*Mnemonic, error) {
	phrase = normalize(phrase)
	if !bip39.IsMnemonicValid(phrase) {
		return nil, ErrBadMnemonic
	}
	if path == "" {
		path = DEFAULT_PATH
	}

	seed := bip39.NewSeed(phrase, "")
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		log.Error().Msgf("FromPhrase: Error creating master key: %v", err)
		return nil, err
	}

	key, err := DeriveKey(masterKey, path)
	if err != nil {
		return nil, err
	}

	return &Mnemonic{
		Path:    path,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func DeriveKey(masterKey *bip32.Key, path string) (*ecdsa.PrivateKey, error) {
	derivationPath, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}

	key := masterKey
	for _, n := range derivationPath {
		key, err = key.NewChildKey(n)
		if err != nil {
			return nil, err
		}
	}

	return crypto.ToECDSA(key.Key)
}

func (m *Mnemonic) Address() common.Address {
	return m.address
}

func (m *Mnemonic) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), m.key)
	if err != nil {
		log.Error().Msgf("SignTx: Failed to sign transaction: %v", err)
		return nil, err
	}
	return signedTx, nil
}

func normalize(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}
