package api

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCheckAuthTokenParamsWire(t *testing.T) {
	params := &CheckAuthTokenParams{Token: "abc"}
	require.Equal(t, []byte{0x0a, 0x03, 'a', 'b', 'c'}, params.Marshal())

	var decoded CheckAuthTokenParams
	require.NoError(t, decoded.Unmarshal(params.Marshal()))
	require.Equal(t, "abc", decoded.Token)
}

func TestCheckAuthTokenResultWire(t *testing.T) {
	require.Equal(t, []byte{0x08, 0x01}, (&CheckAuthTokenResult{Result: true}).Marshal())
	require.Empty(t, (&CheckAuthTokenResult{Result: false}).Marshal())

	var decoded CheckAuthTokenResult
	require.NoError(t, decoded.Unmarshal([]byte{0x08, 0x01}))
	require.True(t, decoded.Result)

	require.NoError(t, decoded.Unmarshal(nil))
	require.False(t, decoded.Result)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, 300)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "tok")
	b = protowire.AppendTag(b, 9, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 1)

	var params CheckAuthTokenParams
	require.NoError(t, params.Unmarshal(b))
	require.Equal(t, "tok", params.Token)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "truncated length", body: []byte{0x0a, 0x05, 'a'}},
		{name: "truncated tag", body: []byte{0x80}},
		{name: "field number zero", body: []byte{0x00, 0x01}},
		{name: "invalid utf8", body: []byte{0x0a, 0x02, 0xff, 0xfe}},
		{name: "truncated unknown field", body: []byte{0x12, 0x04, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params CheckAuthTokenParams
			require.ErrorIs(t, params.Unmarshal(tt.body), ErrDecode)
		})
	}
}

func TestUploadPictureParamsRoundTrip(t *testing.T) {
	params := &UploadPictureParams{Token: "tok", Picture: []byte{1, 2, 3}}

	var decoded UploadPictureParams
	require.NoError(t, decoded.Unmarshal(params.Marshal()))
	require.Equal(t, *params, decoded)

	var result UploadPictureResult
	require.NoError(t, result.Unmarshal((&UploadPictureResult{Result: true}).Marshal()))
	require.True(t, result.Result)
}
