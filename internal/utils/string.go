package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	alphanumericBytes = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	NumberBytes       = "0123456789"
)

// RandomString returns size characters drawn with crypto/rand. Without charsets it uses letters and digits.
func RandomString(size int, charSets ...string) (string, error) {
	alphabet := alphanumericBytes
	if len(charSets) > 0 {
		alphabet = strings.Join(charSets, "")
	}
	if alphabet == "" {
		return "", fmt.Errorf("empty charset")
	}

	upper := big.NewInt(int64(len(alphabet)))
	var sb strings.Builder
	sb.Grow(size)
	for range size {
		n, err := rand.Int(rand.Reader, upper)
		if err != nil {
			return "", fmt.Errorf("drawing random index: %w", err)
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String(), nil
}

// TruncateString masks the middle of str, keeping border runes on each side. Used to keep recipients out of logs.
func TruncateString(str string, border int) string {
	runes := []rune(str)
	if len(runes) <= 2*border {
		return str
	}
	return string(runes[:border]) + "..." + string(runes[len(runes)-border:])
}
