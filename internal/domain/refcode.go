package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// NewReferenceCode builds a short, human-typeable transfer-matching token:
// the method prefix followed by six uppercase hex characters. Account holders
// copy it into the payment memo and the admin reconciles it against the bank
// statement by eye, so it has to stay short.
func NewReferenceCode(method string) (string, error) {
	var prefix string
	switch method {
	case MethodBankTransfer:
		prefix = RefPrefixBank
	case MethodCard:
		prefix = RefPrefixCard
	default:
		return "", fmt.Errorf("no reference prefix for method %q", method)
	}

	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reference code: %w", err)
	}
	return prefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}
