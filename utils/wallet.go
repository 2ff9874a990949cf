package utils

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrBadSignature = errors.New("signature does not match address")

// RecoverSigner returns the address that produced an EIP-191 personal_sign signature over message.
func RecoverSigner(message, signatureHex string) (common.Address, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signatureHex))
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}
	// wallets emit v as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyWalletSignature checks that address signed message.
func VerifyWalletSignature(address, message, signatureHex string) error {
	signer, err := RecoverSigner(message, signatureHex)
	if err != nil {
		return err
	}
	if !strings.EqualFold(signer.Hex(), address) {
		return ErrBadSignature
	}
	return nil
}
