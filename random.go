package sloth

import (
	"crypto/rand"
	"math/big"
)

const (
	// EntryCodeLength is the length of the human-enterable login code.
	EntryCodeLength = 9
	// SessionSecretLength is the length of the opaque session/refresh secrets.
	SessionSecretLength = 15

	codeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijklmnopqrstuvwxyz"
	secretAlphabet = codeAlphabet + "_#%$?"
)

// RandomCode returns an alphanumeric one-time entry code.
func RandomCode(length int) string {
	return randomString(length, codeAlphabet)
}

// RandomSecret returns an opaque secret over the wider alphabet used for
// session and refresh secrets.
func RandomSecret(length int) string {
	return randomString(length, secretAlphabet)
}

func randomString(length int, alphabet string) string {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// an auth system cannot degrade to predictable codes.
			panic(err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out)
}
