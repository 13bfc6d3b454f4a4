package exchange

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// Codec serializes gossip messages for an adapter.
type Codec interface {
	Marshal(msg *model.GossipMessage) ([]byte, error)
	Unmarshal(data []byte, msg *model.GossipMessage) error
	// Ext is the file or object suffix for encoded messages, with the dot.
	Ext() string
}

// JSONCodec writes indented JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(msg *model.GossipMessage) ([]byte, error) {
	return json.MarshalIndent(msg, "", "  ")
}

func (JSONCodec) Unmarshal(data []byte, msg *model.GossipMessage) error {
	return json.Unmarshal(data, msg)
}

func (JSONCodec) Ext() string { return ".json" }

// MsgpackCodec writes MessagePack using the json field names, so both
// encodings describe the same document.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(msg *model.GossipMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, msg *model.GossipMessage) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(msg)
}

func (MsgpackCodec) Ext() string { return ".msgpack" }

// CodecFor returns the codec registered under name ("json" or "msgpack").
func CodecFor(name string) (Codec, bool) {
	switch name {
	case "", "json":
		return JSONCodec{}, true
	case "msgpack":
		return MsgpackCodec{}, true
	}
	return nil, false
}
