package types

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// RequestType is the request verb.
type RequestType int

// Request verbs. Head (4) and Options (6) are reserved and not sent.
const (
	RequestTypeDelete RequestType = 0
	RequestTypeGet    RequestType = 1
	RequestTypePost   RequestType = 2
	RequestTypePut    RequestType = 3
	RequestTypePatch  RequestType = 5
)

var requestTypeNames = map[RequestType]string{
	RequestTypeDelete: "DELETE",
	RequestTypeGet:    "GET",
	RequestTypePost:   "POST",
	RequestTypePut:    "PUT",
	RequestTypePatch:  "PATCH",
}

// Valid returns true for the verbs that may be sent.
func (t RequestType) Valid() bool {
	_, ok := requestTypeNames[t]
	return ok
}

func (t RequestType) String() string {
	if name, ok := requestTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RequestType(%d)", int(t))
}

// ParseRequestType parses an HTTP-style verb, case-insensitively.
func ParseRequestType(s string) (RequestType, error) {
	upper := strings.ToUpper(s)
	for t, name := range requestTypeNames {
		if name == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unsupported request type %q (must be DELETE, GET, POST, PUT or PATCH)", s)
}

// MessageType discriminates message kinds.
type MessageType int

// Message kinds.
const (
	MessageTypeRequest MessageType = 1
	// MessageTypeFinalResponse is the last response for a message id.
	MessageTypeFinalResponse MessageType = 2
	// MessageTypeResponse is a response with more to follow for the message id.
	MessageTypeResponse       MessageType = 3
	MessageTypeAuthentication MessageType = 1000
)

// Valid returns true for known message kinds.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeRequest, MessageTypeFinalResponse, MessageTypeResponse, MessageTypeAuthentication:
		return true
	}
	return false
}

func (t MessageType) String() string {
	switch t {
	case MessageTypeRequest:
		return "request"
	case MessageTypeFinalResponse:
		return "final_response"
	case MessageTypeResponse:
		return "response"
	case MessageTypeAuthentication:
		return "authentication"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Request envelope defaults.
const (
	DefaultRequestVersion = 1
	DefaultDatabase       = "_system"
	DefaultRequestPath    = "/_admin/echo"
)

// requestFields is the number of positional fields in an encoded request.
const requestFields = 7

// RequestEnvelope is the request message header.
//
// On the wire it is a fixed 7-element array, decoded positionally:
//
//	[version, message_type, database, request_type, request_path, parameters, meta]
type RequestEnvelope struct {
	Version     uint32
	MessageType MessageType
	Database    string
	RequestType RequestType
	RequestPath string
	Parameters  map[string]string
	Meta        map[string]string
}

// NewRequestEnvelope returns a GET /_admin/echo request against _system.
func NewRequestEnvelope() *RequestEnvelope {
	return &RequestEnvelope{
		Version:     DefaultRequestVersion,
		MessageType: MessageTypeRequest,
		Database:    DefaultDatabase,
		RequestType: RequestTypeGet,
		RequestPath: DefaultRequestPath,
		Parameters:  map[string]string{},
		Meta:        map[string]string{},
	}
}

// Values returns the positional array handed to the value encoder.
// Nil maps are returned as empty maps.
func (r *RequestEnvelope) Values() []any {
	return []any{
		r.Version,
		int(r.MessageType),
		r.Database,
		int(r.RequestType),
		r.RequestPath,
		orEmpty(r.Parameters),
		orEmpty(r.Meta),
	}
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Encode serializes the envelope with msgpack.
func (r *RequestEnvelope) Encode() ([]byte, error) {
	return msgpack.Marshal(r)
}

// DecodeRequestEnvelope decodes an envelope produced by Encode.
func DecodeRequestEnvelope(b []byte) (*RequestEnvelope, error) {
	var r RequestEnvelope
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// EncodeMsgpack implements msgpack.CustomEncoder. It writes Values in
// order, with map keys sorted so equal envelopes encode to equal bytes.
// Reserved or unknown enum values are rejected so every encoded envelope
// decodes again.
func (r *RequestEnvelope) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !r.MessageType.Valid() {
		return fmt.Errorf("request envelope: unknown message type %d", r.MessageType)
	}
	if !r.RequestType.Valid() {
		return fmt.Errorf("request envelope: unsupported request type %d", r.RequestType)
	}

	values := r.Values()
	if err := enc.EncodeArrayLen(len(values)); err != nil {
		return err
	}
	for i, v := range values {
		var err error
		switch v := v.(type) {
		case uint32:
			err = enc.EncodeUint(uint64(v))
		case int:
			err = enc.EncodeInt(int64(v))
		case string:
			err = enc.EncodeString(v)
		case map[string]string:
			err = encodeStringMap(enc, v)
		default:
			err = fmt.Errorf("unsupported value %T", v)
		}
		if err != nil {
			return fmt.Errorf("request envelope: field %d: %w", i, err)
		}
	}
	return nil
}

func encodeStringMap(enc *msgpack.Encoder, m map[string]string) error {
	if err := enc.EncodeMapLen(len(m)); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.EncodeString(m[k]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (r *RequestEnvelope) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return fmt.Errorf("request envelope: %w", err)
	}
	if n != requestFields {
		return fmt.Errorf("request envelope: expected %d fields, got %d", requestFields, n)
	}

	if r.Version, err = dec.DecodeUint32(); err != nil {
		return fmt.Errorf("request envelope: version: %w", err)
	}

	mt, err := dec.DecodeInt()
	if err != nil {
		return fmt.Errorf("request envelope: message type: %w", err)
	}
	r.MessageType = MessageType(mt)
	if !r.MessageType.Valid() {
		return fmt.Errorf("request envelope: unknown message type %d", mt)
	}

	if r.Database, err = dec.DecodeString(); err != nil {
		return fmt.Errorf("request envelope: database: %w", err)
	}

	rt, err := dec.DecodeInt()
	if err != nil {
		return fmt.Errorf("request envelope: request type: %w", err)
	}
	r.RequestType = RequestType(rt)
	if !r.RequestType.Valid() {
		return fmt.Errorf("request envelope: unsupported request type %d", rt)
	}

	if r.RequestPath, err = dec.DecodeString(); err != nil {
		return fmt.Errorf("request envelope: request path: %w", err)
	}
	if r.Parameters, err = decodeStringMap(dec); err != nil {
		return fmt.Errorf("request envelope: parameters: %w", err)
	}
	if r.Meta, err = decodeStringMap(dec); err != nil {
		return fmt.Errorf("request envelope: meta: %w", err)
	}
	return nil
}

func decodeStringMap(dec *msgpack.Decoder) (map[string]string, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, max(n, 0))
	for range n {
		k, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		v, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

var (
	_ msgpack.CustomEncoder = (*RequestEnvelope)(nil)
	_ msgpack.CustomDecoder = (*RequestEnvelope)(nil)
)
