package v1

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
)

// MaxMessageBytes bounds encoded messages in both directions.
const MaxMessageBytes = 64 << 10 // 64 KiB

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		MaxNestedLevels:   8,
		MaxMapPairs:       16,
		MaxArrayElements:  16,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// wireSession distinguishes a missing token field from an empty one.
type wireSession struct {
	Token *string `cbor:"token"`
}

// EncodeRequest encodes req. It fails only with ErrUnencodable for values the
// schema cannot carry (non-UTF-8 token, oversize message, unknown variant).
func EncodeRequest(req Request) ([]byte, error) {
	var s Session
	switch r := req.(type) {
	case LoginSession:
		s = r.Session
	case *LoginSession:
		if r == nil {
			return nil, fmt.Errorf("%w: nil request", ErrUnencodable)
		}
		s = r.Session
	default:
		return nil, fmt.Errorf("%w: unsupported request %T", ErrUnencodable, req)
	}

	if !utf8.ValidString(s.Token) {
		return nil, fmt.Errorf("%w: token is not valid UTF-8", ErrUnencodable)
	}
	return marshal(map[string]Session{VariantLoginSession: s})
}

// EncodeResponse encodes r as {"Ok": session} or {"Err": message}.
func EncodeResponse(r Response) ([]byte, error) {
	if s, ok := r.Session(); ok {
		if !utf8.ValidString(s.Token) {
			return nil, fmt.Errorf("%w: token is not valid UTF-8", ErrUnencodable)
		}
		return marshal(map[string]Session{VariantOk: s})
	}

	if !utf8.ValidString(r.Message()) {
		return nil, fmt.Errorf("%w: message is not valid UTF-8", ErrUnencodable)
	}
	return marshal(map[string]string{VariantErr: r.Message()})
}

// DecodeRequest decodes a client request. Errors are *DecodeError.
func DecodeRequest(data []byte) (Request, error) {
	key, raw, err := decodeUnion(data)
	if err != nil {
		return nil, err
	}

	switch key {
	case VariantLoginSession:
		s, err := decodeSession(raw)
		if err != nil {
			return nil, err
		}
		return LoginSession{Session: s}, nil
	case VariantOk, VariantErr:
		return nil, &DecodeError{Kind: ErrTypeMismatch, Err: fmt.Errorf("response variant %q in request", key)}
	default:
		return nil, &DecodeError{Kind: ErrUnknownVariant, Err: fmt.Errorf("variant %q", key)}
	}
}

// DecodeResponse decodes a server response. Errors are *DecodeError.
func DecodeResponse(data []byte) (Response, error) {
	key, raw, err := decodeUnion(data)
	if err != nil {
		return Response{}, err
	}

	switch key {
	case VariantOk:
		s, err := decodeSession(raw)
		if err != nil {
			return Response{}, err
		}
		return OK(s), nil
	case VariantErr:
		var msg *string
		if err := decMode.Unmarshal(raw, &msg); err != nil {
			return Response{}, decodeErr(err)
		}
		if msg == nil {
			return Response{}, &DecodeError{Kind: ErrTypeMismatch, Err: errors.New("missing error message")}
		}
		return Failure(*msg), nil
	case VariantLoginSession:
		return Response{}, &DecodeError{Kind: ErrTypeMismatch, Err: errors.New("request variant in response")}
	default:
		return Response{}, &DecodeError{Kind: ErrUnknownVariant, Err: fmt.Errorf("variant %q", key)}
	}
}

func marshal(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	if len(b) > MaxMessageBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrUnencodable, len(b))
	}
	return b, nil
}

// decodeUnion reads a single-key map and returns the key and its raw value.
func decodeUnion(data []byte) (string, cbor.RawMessage, error) {
	if len(data) == 0 {
		return "", nil, &DecodeError{Kind: ErrTruncated, Err: io.EOF}
	}
	if len(data) > MaxMessageBytes {
		return "", nil, &DecodeError{Kind: ErrTypeMismatch, Err: fmt.Errorf("%d bytes exceeds limit", len(data))}
	}

	var m map[string]cbor.RawMessage
	if err := decMode.Unmarshal(data, &m); err != nil {
		return "", nil, decodeErr(err)
	}
	if len(m) != 1 {
		return "", nil, &DecodeError{Kind: ErrTypeMismatch, Err: fmt.Errorf("expected one variant, got %d keys", len(m))}
	}

	for k, v := range m {
		return k, v, nil
	}
	return "", nil, &DecodeError{Kind: ErrTypeMismatch}
}

func decodeSession(raw cbor.RawMessage) (Session, error) {
	var w wireSession
	if err := decMode.Unmarshal(raw, &w); err != nil {
		return Session{}, decodeErr(err)
	}
	if w.Token == nil {
		return Session{}, &DecodeError{Kind: ErrTypeMismatch, Err: errors.New("missing field: token")}
	}
	return NewSession(*w.Token), nil
}

func decodeErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &DecodeError{Kind: ErrTruncated, Err: err}
	}
	return &DecodeError{Kind: ErrTypeMismatch, Err: err}
}
