package applestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountTokenCodec_RoundTripNumeric(t *testing.T) {
	userID := "1234567890"

	token, err := EncodeAccountToken(userID)
	require.NoError(t, err)

	decoded, err := DecodeAccountToken(token)
	require.NoError(t, err)
	require.Equal(t, userID, decoded)
}

func TestAccountTokenCodec_RoundTripHexLeadingA(t *testing.T) {
	userID := "a1bcdef234"

	token, err := EncodeAccountToken(userID)
	require.NoError(t, err)

	decoded, err := DecodeAccountToken(token)
	require.NoError(t, err)
	require.Equal(t, userID, decoded)
}

func TestEncodeAccountToken_UUIDShape(t *testing.T) {
	token, err := EncodeAccountToken("1234")
	require.NoError(t, err)
	require.Len(t, token, 36)
	require.Equal(t, "04123", token[:5])
}

func TestEncodeAccountToken_RejectsNonHex(t *testing.T) {
	_, err := EncodeAccountToken("user-42")
	require.Error(t, err)
}

func TestEncodeAccountToken_RejectsTooLong(t *testing.T) {
	_, err := EncodeAccountToken("0123456789012345678901234567890")
	require.Error(t, err)
}

func TestDecodeAccountToken_RejectsUnknownScheme(t *testing.T) {
	// Random UUID-like value not produced by the encoding scheme.
	_, err := DecodeAccountToken("4b825dc6-5f3b-4f8e-b9d6-4f4f2d8c1122")
	require.Error(t, err)
}

func TestDecodeAccountToken_RejectsWrongLength(t *testing.T) {
	_, err := DecodeAccountToken("abc")
	require.Error(t, err)
}
