package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestTicketCodeRoundtrip(t *testing.T) {
	code, err := TicketCode(testKey, "ticket-1", "tt-1")
	require.NoError(t, err)
	assert.NotContains(t, code, "ticket-1")

	ticketID, ticketTypeID, err := DecodeTicketCode(testKey, code)
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", ticketID)
	assert.Equal(t, "tt-1", ticketTypeID)
}

func TestTicketCodesAreUnique(t *testing.T) {
	first, err := TicketCode(testKey, "ticket-1", "tt-1")
	require.NoError(t, err)
	second, err := TicketCode(testKey, "ticket-1", "tt-1")
	require.NoError(t, err)

	// A random IV makes equal inputs produce different codes.
	assert.NotEqual(t, first, second)
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	code, err := TicketCode(testKey, "ticket-1", "tt-1")
	require.NoError(t, err)

	otherKey := []byte("ffffffffffffffffffffffffffffffff")
	_, _, err = DecodeTicketCode(otherKey, code)
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	_, _, err := DecodeTicketCode(testKey, "not base64 at all!!!")
	assert.Error(t, err)

	_, _, err = DecodeTicketCode(testKey, "")
	assert.Error(t, err)
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	_, err := Encrypt([]byte("short"), []byte("payload"))
	assert.Error(t, err)
}
