package enc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	log "github.com/sirupsen/logrus"
)

// gcmStandardNonceSize is the nonce length in front of every encrypted content.
const gcmStandardNonceSize = 12

// Crypt encrypts content with AES Galois Counter Mode.
//
//   NONCE|CIPHERTEXT+TAG
//
// Every Process call uses a new random nonce.
// ReverseProcess authenticates the content; tampered data is an error.
type Crypt struct {
	gcm cipher.AEAD
}

// NewCrypt creates a Crypt processor with a 16, 24, or 32 bytes key (@see KeyFile.ArchiveKey).
func NewCrypt(key []byte) (*Crypt, error) {
	// create AES cipher
	block, err := aes.NewCipher(key)
	if err != nil {
		log.Errorf("%s/NewCrypt: NewCipher: %v", packageName, err)
		return nil, err
	}

	// Galois Counter Mode
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Errorf("%s/NewCrypt: NewGCM: %v", packageName, err)
		return nil, err
	}

	return &Crypt{gcm: gcm}, nil
}

func (c *Crypt) Process(in []byte) ([]byte, error) {
	// create random nonce with standard length
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		log.Errorf("%s/Crypt: nonce: %v", packageName, err)
		return []byte{}, err
	}

	// encrypts and authenticates plaintext
	return c.gcm.Seal(nonce, nonce, in, nil), nil
}

func (c *Crypt) ReverseProcess(in []byte) ([]byte, error) {
	// big enough for nonce and tag?
	if len(in) < gcmStandardNonceSize+c.gcm.Overhead() {
		return []byte{}, errors.New("size check fail")
	}
	nonce := in[:gcmStandardNonceSize]

	// decrypts and authenticates cipher text
	b, err := c.gcm.Open(nil, nonce, in[gcmStandardNonceSize:], nil)
	if err != nil {
		log.Debugf("%s/Crypt: open: %v", packageName, err)
		return []byte{}, err
	}
	return b, nil
}
