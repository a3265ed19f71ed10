/*

Recipient wallet generation. Each vend can mint a fresh wallet for buyers who
do not connect one: a BIP-39 mnemonic plus the secp256k1 key derived from it,
with the EVM address precomputed for the funding call.

*/

package wallet

import (
	"errors"
	"fmt"

	bip39 "github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// entropyBits yields a 12-word mnemonic.
const entropyBits = 128

// Wallet is a freshly generated recipient keypair. PrivateKeyHex and Mnemonic
// are secrets: they only ever leave this package encrypted.
type Wallet struct {
	Address       common.Address
	PrivateKeyHex string
	Mnemonic      string
}

// Generate creates a new wallet from fresh entropy.
func Generate() (*Wallet, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to build mnemonic: %w", err)
	}
	return FromMnemonic(mnemonic)
}

// FromMnemonic deterministically derives the wallet for a mnemonic.
func FromMnemonic(mnemonic string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("mnemonic is not a valid BIP-39 phrase")
	}

	seed := bip39.NewSeed(mnemonic, "")
	// The seed is 64 bytes; hash it down to the 32-byte secp256k1 key space.
	key, err := crypto.ToECDSA(crypto.Keccak256(seed))
	if err != nil {
		return nil, fmt.Errorf("failed to derive private key: %w", err)
	}

	return &Wallet{
		Address:       crypto.PubkeyToAddress(key.PublicKey),
		PrivateKeyHex: hexutil.Encode(crypto.FromECDSA(key)),
		Mnemonic:      mnemonic,
	}, nil
}
