package applestore

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// The app encodes the signed-in user's id into the appAccountToken UUID
// it attaches to every purchase: [2-hex length][hex user id][padding 'a'
// to 32 nibbles]. Reversing that token is how a notification is linked
// back to its owning user.

const (
	tokenHexLen     = 32
	maxUserIDHexLen = 30
	tokenPadChar    = "a"
)

// EncodeAccountToken converts a user id to the UUID-shaped token format.
func EncodeAccountToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is empty")
	}

	normalized := strings.ToLower(userID)
	if !isHex(normalized) {
		return "", fmt.Errorf("user id is not valid hex")
	}
	if len(normalized) > maxUserIDHexLen {
		return "", fmt.Errorf("user id too long: max hex length is %d", maxUserIDHexLen)
	}

	hex := fmt.Sprintf("%02x", len(normalized)) + normalized
	if len(hex) < tokenHexLen {
		hex += strings.Repeat(tokenPadChar, tokenHexLen-len(hex))
	}

	var b strings.Builder
	for i, width := range []int{8, 4, 4, 4, 12} {
		if i > 0 {
			b.WriteString("-")
		}
		b.WriteString(hex[:width])
		hex = hex[width:]
	}
	return b.String(), nil
}

// DecodeAccountToken reverses EncodeAccountToken.
func DecodeAccountToken(token string) (string, error) {
	hex := strings.ToLower(strings.ReplaceAll(token, "-", ""))
	if len(hex) != tokenHexLen || !isHex(hex) {
		return "", fmt.Errorf("invalid account token format")
	}

	n, err := strconv.ParseUint(hex[:2], 16, 8)
	if err != nil {
		return "", fmt.Errorf("invalid account token length prefix")
	}
	size := int(n)
	if size == 0 || size > maxUserIDHexLen {
		return "", fmt.Errorf("account token is not encoded by known user id scheme")
	}

	payload := hex[2 : 2+size]
	padding := hex[2+size:]
	if !isHex(payload) || strings.Trim(padding, tokenPadChar) != "" {
		return "", fmt.Errorf("account token is not encoded by known user id scheme")
	}
	return payload, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !(unicode.IsDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')) {
			return false
		}
	}
	return true
}
