package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Encrypt seals text with AES-CFB under key; the IV is prepended to the
// ciphertext. Used for ticket codes so the barcode carries no readable ids.
func Encrypt(key, text []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("encrypt: could not encrypt: %w", err)
	}
	b := base64.StdEncoding.EncodeToString(text)
	ciphertext := make([]byte, aes.BlockSize+len(b))
	iv := ciphertext[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	cfb := cipher.NewCFBEncrypter(block, iv)
	cfb.XORKeyStream(ciphertext[aes.BlockSize:], []byte(b))
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func Decrypt(key []byte, text string) ([]byte, error) {
	cipherText, err := base64.URLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decrypt: error decoding into base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("decrypt: could not create cipher: %w", err)
	}
	if len(cipherText) < aes.BlockSize {
		return nil, fmt.Errorf("decrypt: ciphertext too short")
	}
	iv := cipherText[:aes.BlockSize]
	cipherText = cipherText[aes.BlockSize:]
	cfb := cipher.NewCFBDecrypter(block, iv)
	cfb.XORKeyStream(cipherText, cipherText)
	data, err := base64.StdEncoding.DecodeString(string(cipherText))
	if err != nil {
		return nil, fmt.Errorf("decrypt: error decoding string: %w", err)
	}
	return data, nil
}

// TicketCode produces the opaque code printed on a ticket, binding the
// ticket id to its ticket type.
func TicketCode(key []byte, ticketID, ticketTypeID string) (string, error) {
	code, err := Encrypt(key, []byte(ticketID+"|"+ticketTypeID))
	if err != nil {
		return "", fmt.Errorf("ticketCode: %w", err)
	}
	return code, nil
}

// DecodeTicketCode reverses TicketCode, returning the ticket id and ticket
// type id embedded in the code.
func DecodeTicketCode(key []byte, code string) (string, string, error) {
	data, err := Decrypt(key, code)
	if err != nil {
		return "", "", fmt.Errorf("decodeTicketCode: %w", err)
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("decodeTicketCode: malformed code")
	}
	return parts[0], parts[1], nil
}
