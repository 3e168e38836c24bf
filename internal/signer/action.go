package signer

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Action is any exchange action that can be hashed and signed. Field
// declaration order of the concrete types is the canonical key order.
type Action interface {
	ActionType() string
}

const (
	GroupingNA = "na"

	TifGtc = "Gtc"
	TifIoc = "Ioc"
	TifAlo = "Alo"
)

type OrderWire struct {
	Asset      int           `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	LimitPx    string        `json:"p" msgpack:"p"`
	Size       string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	OrderType  OrderTypeWire `json:"t" msgpack:"t"`
	Cloid      string        `json:"c,omitempty" msgpack:"c,omitempty"`
}

type OrderTypeWire struct {
	Limit   *LimitWire   `json:"limit,omitempty" msgpack:"limit,omitempty"`
	Trigger *TriggerWire `json:"trigger,omitempty" msgpack:"trigger,omitempty"`
}

type LimitWire struct {
	Tif string `json:"tif" msgpack:"tif"`
}

type TriggerWire struct {
	IsMarket  bool   `json:"isMarket" msgpack:"isMarket"`
	TriggerPx string `json:"triggerPx" msgpack:"triggerPx"`
	Tpsl      string `json:"tpsl" msgpack:"tpsl"`
}

type OrderAction struct {
	Type     string      `json:"type" msgpack:"type"`
	Orders   []OrderWire `json:"orders" msgpack:"orders"`
	Grouping string      `json:"grouping" msgpack:"grouping"`
}

func NewOrderAction(orders ...OrderWire) *OrderAction {
	return &OrderAction{Type: "order", Orders: orders, Grouping: GroupingNA}
}

func (a *OrderAction) ActionType() string { return a.Type }

type UpdateLeverageAction struct {
	Type     string `json:"type" msgpack:"type"`
	Asset    int    `json:"asset" msgpack:"asset"`
	IsCross  bool   `json:"isCross" msgpack:"isCross"`
	Leverage int    `json:"leverage" msgpack:"leverage"`
}

func NewUpdateLeverageAction(asset int, isCross bool, leverage int) *UpdateLeverageAction {
	return &UpdateLeverageAction{Type: "updateLeverage", Asset: asset, IsCross: isCross, Leverage: leverage}
}

func (a *UpdateLeverageAction) ActionType() string { return a.Type }

type CancelWire struct {
	Asset   int    `json:"a" msgpack:"a"`
	OrderID uint64 `json:"o" msgpack:"o"`
}

type CancelAction struct {
	Type    string       `json:"type" msgpack:"type"`
	Cancels []CancelWire `json:"cancels" msgpack:"cancels"`
}

func NewCancelAction(cancels ...CancelWire) *CancelAction {
	return &CancelAction{Type: "cancel", Cancels: cancels}
}

func (a *CancelAction) ActionType() string { return a.Type }

// KV is a single entry of an OrderedMap.
type KV struct {
	Key   string
	Value any
}

// OrderedMap is a map that keeps insertion order when encoded, for actions
// that have no dedicated struct.
type OrderedMap []KV

func (m OrderedMap) ActionType() string {
	for _, kv := range m {
		if kv.Key == "type" {
			if s, ok := kv.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

func (m OrderedMap) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(m)); err != nil {
		return err
	}
	for _, kv := range m {
		if err := enc.EncodeString(kv.Key); err != nil {
			return err
		}
		if err := enc.Encode(kv.Value); err != nil {
			return err
		}
	}
	return nil
}

func (m OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Signature is the wire form expected by the exchange: minimal hex r and s,
// v in {27, 28}.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// SignedPayload is the body posted to /exchange.
type SignedPayload struct {
	Action       Action    `json:"action"`
	Nonce        uint64    `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress *string   `json:"vaultAddress"`
	ExpiresAfter *uint64   `json:"expiresAfter,omitempty"`
}
