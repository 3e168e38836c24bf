package signer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverSigner returns the address that produced sig over the action digest.
// It hashes through apitypes so it does not share code with the signing path.
func RecoverSigner(digest common.Hash, isMainnet bool, sig Signature) (common.Address, error) {
	hash, err := TypedDataHash(NewPhantomAgent(digest, isMainnet))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash typed data: %w", err)
	}
	r, err := hexutil.DecodeBig(sig.R)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid r: %w", err)
	}
	s, err := hexutil.DecodeBig(sig.S)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid s: %w", err)
	}
	if sig.V != 27 && sig.V != 28 {
		return common.Address{}, fmt.Errorf("invalid v %d", sig.V)
	}

	raw := make([]byte, 65)
	copy(raw[0:32], math.U256Bytes(r))
	copy(raw[32:64], math.U256Bytes(s))
	raw[64] = byte(sig.V - 27)

	pub, err := crypto.SigToPub(hash.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func VerifySignature(digest common.Hash, isMainnet bool, sig Signature, expected common.Address) error {
	recovered, err := RecoverSigner(digest, isMainnet, sig)
	if err != nil {
		return err
	}
	if recovered != expected {
		return fmt.Errorf("signature mismatch: recovered %s", recovered.Hex())
	}
	return nil
}
