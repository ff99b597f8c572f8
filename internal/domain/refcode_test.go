package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferenceCode(t *testing.T) {
	bank, err := NewReferenceCode(MethodBankTransfer)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bank, RefPrefixBank))
	assert.Len(t, bank, len(RefPrefixBank)+6)

	card, err := NewReferenceCode(MethodCard)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(card, RefPrefixCard))
	assert.Len(t, card, len(RefPrefixCard)+6)

	for _, r := range strings.TrimPrefix(card, RefPrefixCard) {
		assert.Contains(t, "0123456789ABCDEF", string(r))
	}
}

func TestNewReferenceCodeUnknownMethod(t *testing.T) {
	_, err := NewReferenceCode("paypal")
	assert.Error(t, err)
}
