package signer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeAction returns the canonical MessagePack bytes of an action.
func EncodeAction(action Action) ([]byte, error) {
	if action == nil {
		return nil, fmt.Errorf("action is required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return nil, fmt.Errorf("msgpack encode %s: %w", action.ActionType(), err)
	}
	return buf.Bytes(), nil
}

// ActionHash computes the L1 action digest:
//
//	keccak256(msgpack(action) || nonce_be64 || vault_tag [|| addr] [|| 0x00 || expires_be64])
//
// The marker before expiresAfter is 0x00, not 0x01. The exchange hashes it
// that way, so it must stay.
func ActionHash(action Action, vault *common.Address, nonce uint64, expiresAfter *uint64) (common.Hash, error) {
	data, err := EncodeAction(action)
	if err != nil {
		return common.Hash{}, err
	}

	var b8 [8]byte
	binary.BigEndian.PutUint64(b8[:], nonce)
	data = append(data, b8[:]...)

	if vault == nil {
		data = append(data, 0x00)
	} else {
		data = append(data, 0x01)
		data = append(data, vault.Bytes()...)
	}

	if expiresAfter != nil {
		binary.BigEndian.PutUint64(b8[:], *expiresAfter)
		data = append(data, 0x00)
		data = append(data, b8[:]...)
	}

	return crypto.Keccak256Hash(data), nil
}
