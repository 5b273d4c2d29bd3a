package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// aesGCMEncryptor is the default Encryptor. Credential encryption
// primitives are treated as an external collaborator described only at
// the interface boundary; crypto/aes+cipher.NewGCM is the standard
// library's own recommended AEAD construction, so it is the correct
// minimal default rather than a stand-in for a real secrets library.
type aesGCMEncryptor struct {
	gcm cipher.AEAD
}

var _ Encryptor = (*aesGCMEncryptor)(nil)

// NewAESGCMEncryptor builds the default Encryptor from a process-wide
// symmetric key (16, 24, or 32 bytes for AES-128/192/256).
func NewAESGCMEncryptor(key []byte) (Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid encryption key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("auth: gcm init: %w", err)
	}
	return &aesGCMEncryptor{gcm: gcm}, nil
}

func (e *aesGCMEncryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("auth: nonce: %w", err)
	}
	ciphertext := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (e *aesGCMEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("auth: decode: %w", err)
	}
	nonceSize := e.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("auth: ciphertext too short")
	}
	nonce, body := raw[:nonceSize], raw[nonceSize:]
	plain, err := e.gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("auth: decrypt: %w", err)
	}
	return string(plain), nil
}
