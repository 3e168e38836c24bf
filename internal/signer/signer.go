package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
)

type Signer struct {
	key             *ecdsa.PrivateKey
	address         common.Address
	domainSeparator common.Hash
}

// NewSigner parses a hex private key (with or without 0x) and precomputes the
// domain separator.
func NewSigner(privateKeyHex string) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, apperrors.New(apperrors.ErrSignature, "private key is required", nil)
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrSignature, "invalid private key", err)
	}

	return &Signer{
		key:             key,
		address:         crypto.PubkeyToAddress(key.PublicKey),
		domainSeparator: domainSeparator(),
	}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// TypedHash is keccak256("\x19\x01" || domainSeparator || hashStruct(agent)).
func (s *Signer) TypedHash(digest common.Hash, isMainnet bool) common.Hash {
	agent := NewPhantomAgent(digest, isMainnet)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, s.domainSeparator.Bytes(), hashAgent(agent))
}

// SignDigest signs an action digest through the phantom agent.
func (s *Signer) SignDigest(digest common.Hash, isMainnet bool) (Signature, error) {
	hash := s.TypedHash(digest, isMainnet)

	// crypto.Sign is RFC 6979 deterministic and returns low-s [R || S || V], V in {0,1}.
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return Signature{}, apperrors.New(apperrors.ErrSignature, "signing failed", err)
	}

	return Signature{
		R: hexutil.EncodeBig(new(big.Int).SetBytes(sig[0:32])),
		S: hexutil.EncodeBig(new(big.Int).SetBytes(sig[32:64])),
		V: int(sig[64]) + 27,
	}, nil
}

// SignAction hashes the action and signs the digest.
func (s *Signer) SignAction(action Action, vault *common.Address, nonce uint64, expiresAfter *uint64, isMainnet bool) (Signature, error) {
	digest, err := ActionHash(action, vault, nonce, expiresAfter)
	if err != nil {
		return Signature{}, apperrors.New(apperrors.ErrSignature, "action encoding failed", err)
	}
	return s.SignDigest(digest, isMainnet)
}

// BuildPayload signs the action and assembles the /exchange body.
func (s *Signer) BuildPayload(action Action, vault *common.Address, nonce uint64, expiresAfter *uint64, isMainnet bool) (*SignedPayload, error) {
	sig, err := s.SignAction(action, vault, nonce, expiresAfter, isMainnet)
	if err != nil {
		return nil, err
	}
	payload := &SignedPayload{
		Action:       action,
		Nonce:        nonce,
		Signature:    sig,
		ExpiresAfter: expiresAfter,
	}
	if vault != nil {
		v := strings.ToLower(vault.Hex())
		payload.VaultAddress = &v
	}
	return payload, nil
}

func (s Signature) String() string {
	return fmt.Sprintf("r=%s s=%s v=%d", s.R, s.S, s.V)
}
