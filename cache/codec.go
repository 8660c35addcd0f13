package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Shape is the structural kind of a cached payload.
type Shape int

const (
	// ShapeNull is an explicit absent result.
	ShapeNull Shape = iota
	// ShapeRecord is a single record.
	ShapeRecord
	// ShapeList is an ordered sequence of records.
	ShapeList
)

func (s Shape) String() string {
	switch s {
	case ShapeNull:
		return "null"
	case ShapeRecord:
		return "record"
	case ShapeList:
		return "list"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Payload is a cached value split by shape. Record holds the encoded record
// for ShapeRecord, Items holds one encoded element per list entry.
type Payload struct {
	Shape  Shape
	Record []byte
	Items  [][]byte
}

// Codec turns query results into bytes and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// Inspect reports the payload shape without decoding records.
	Inspect(data []byte) (Payload, error)
}

var errEmptyPayload = errors.New("empty payload")

// NewJSONCodec returns the default codec. Payloads are plain JSON documents;
// stores put their own expiry header in front of them.
func NewJSONCodec() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Inspect(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Payload{}, errEmptyPayload
	}

	switch trimmed[0] {
	case 'n':
		if !bytes.Equal(trimmed, []byte("null")) {
			return Payload{}, fmt.Errorf("invalid json payload %q", trimmed)
		}
		return Payload{Shape: ShapeNull}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Payload{}, err
		}
		out := make([][]byte, len(items))
		for i, item := range items {
			out[i] = item
		}
		return Payload{Shape: ShapeList, Items: out}, nil
	default:
		if !json.Valid(trimmed) {
			return Payload{}, fmt.Errorf("invalid json payload %q", trimmed)
		}
		return Payload{Shape: ShapeRecord, Record: trimmed}, nil
	}
}

// NewMsgpackCodec returns a compact binary codec. Struct fields use their
// json tags so models need no extra annotations.
func NewMsgpackCodec() Codec {
	return msgpackCodec{}
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (msgpackCodec) Inspect(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, errEmptyPayload
	}

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	code, err := dec.PeekCode()
	if err != nil {
		return Payload{}, err
	}

	var p Payload
	switch {
	case code == msgpcode.Nil:
		if err := dec.Skip(); err != nil {
			return Payload{}, err
		}
		p.Shape = ShapeNull
	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return Payload{}, err
		}
		p.Shape = ShapeList
		p.Items = make([][]byte, 0, n)
		for i := 0; i < n; i++ {
			raw, err := dec.DecodeRaw()
			if err != nil {
				return Payload{}, fmt.Errorf("list item %d: %w", i, err)
			}
			p.Items = append(p.Items, raw)
		}
	default:
		raw, err := dec.DecodeRaw()
		if err != nil {
			return Payload{}, err
		}
		p.Shape = ShapeRecord
		p.Record = raw
	}

	if r.Len() != 0 {
		return Payload{}, fmt.Errorf("%d trailing bytes after msgpack payload", r.Len())
	}
	return p, nil
}

// CodecByName resolves a codec from its configured name. An empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return NewJSONCodec(), nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
