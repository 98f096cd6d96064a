package api

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrDecode is returned when a request body is not a valid message.
var ErrDecode = errors.New("malformed message")

// CheckAuthTokenParams is the request of check_token and check_token_test.
//
//	message CheckAuthTokenParams { string token = 1; }
type CheckAuthTokenParams struct {
	Token string
}

func (m *CheckAuthTokenParams) Unmarshal(b []byte) error {
	*m = CheckAuthTokenParams{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			s, n, err := consumeString(b)
			m.Token = s
			return n, true, err
		}
		return 0, false, nil
	})
}

func (m *CheckAuthTokenParams) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Token)
	return b
}

// CheckAuthTokenResult reports whether the token belongs to a live session.
//
//	message CheckAuthTokenResult { bool result = 1; }
type CheckAuthTokenResult struct {
	Result bool
}

func (m *CheckAuthTokenResult) Unmarshal(b []byte) error {
	*m = CheckAuthTokenResult{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n, err := consumeBool(b)
			m.Result = v
			return n, true, err
		}
		return 0, false, nil
	})
}

func (m *CheckAuthTokenResult) Marshal() []byte {
	return appendBool(nil, 1, m.Result)
}

// UploadPictureParams carries a new profile picture for the session's user.
//
//	message UploadPictureParams { string token = 1; bytes picture = 2; }
type UploadPictureParams struct {
	Token   string
	Picture []byte
}

func (m *UploadPictureParams) Unmarshal(b []byte) error {
	*m = UploadPictureParams{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if typ != protowire.BytesType {
			return 0, false, nil
		}
		switch num {
		case 1:
			s, n, err := consumeString(b)
			m.Token = s
			return n, true, err
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, true, protowire.ParseError(n)
			}
			m.Picture = append([]byte(nil), v...)
			return n, true, nil
		}
		return 0, false, nil
	})
}

func (m *UploadPictureParams) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Token)
	if len(m.Picture) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Picture)
	}
	return b
}

// UploadPictureResult reports whether the picture was stored.
//
//	message UploadPictureResult { bool result = 1; }
type UploadPictureResult struct {
	Result bool
}

func (m *UploadPictureResult) Unmarshal(b []byte) error {
	*m = UploadPictureResult{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n, err := consumeBool(b)
			m.Result = v
			return n, true, err
		}
		return 0, false, nil
	})
}

func (m *UploadPictureResult) Marshal() []byte {
	return appendBool(nil, 1, m.Result)
}

// fieldFunc decodes one known field from b, returning the bytes consumed.
// Fields it does not handle are skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (n int, handled bool, err error)

func decodeFields(b []byte, field fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrDecode, protowire.ParseError(n))
		}
		b = b[n:]

		n, handled, err := field(num, typ, b)
		if err != nil {
			return fmt.Errorf("%w: field %d: %w", ErrDecode, num, err)
		}
		if !handled {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %w", ErrDecode, num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}

func consumeString(b []byte) (string, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", n, protowire.ParseError(n)
	}
	if !utf8.Valid(v) {
		return "", n, errors.New("invalid UTF-8 in string field")
	}
	return string(v), n, nil
}

func consumeBool(b []byte) (bool, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return false, n, protowire.ParseError(n)
	}
	return protowire.DecodeBool(v), n, nil
}

// proto3 omits fields holding their zero value

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}
