package enc

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

// KeyFileSize is the exact size of a key file.
const KeyFileSize = 128

// KeyFile manages the secret for encrypted archive content.
type KeyFile struct {
	secret []byte
}

// LoadKeyFile read the 128 bytes key file and generate the secret.
func LoadKeyFile(path string) (*KeyFile, error) {

	// read key file
	b, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("%s/LoadKeyFile: %v", packageName, err)
		return nil, err
	}

	// file size == 128 bytes
	if len(b) != KeyFileSize {
		return nil, errors.New("key file must be exactly 128 bytes long")
	}

	k := new(KeyFile)
	k.secret = pbkdf2.Key(b, []byte("archive_secret"), 60000, 64, sha512.New)
	return k, nil
}

// ArchiveKey calculates the key for the content of archive files.
// return 32 bytes (AES 256 key)
func (k *KeyFile) ArchiveKey() []byte {
	return pbkdf2.Key(k.secret, []byte("ArchiveKey"), 5000, 32, sha256.New)
}

//--------------------------------------------------------------------------------------------------------------------//

// CreateKeyFile creates a new key file that contains exactly 128 random bytes.
// Existing files are NOT overwritten.
func CreateKeyFile(path string) error {
	// random key
	randKey := make([]byte, KeyFileSize)
	if _, err := io.ReadFull(rand.Reader, randKey); err != nil {
		return err
	}

	// don't overwrite files
	if _, err := os.Stat(path); err == nil {
		return errors.New("file already exists")
	}

	// write key file
	if err := os.WriteFile(path, randKey, 0600); err != nil {
		log.Errorf("%s/CreateKeyFile: %v", packageName, err)
		return err
	}

	// read test
	k, err := LoadKeyFile(path)
	if err != nil {
		return err
	}
	k.ArchiveKey() // get key

	// success
	return nil
}
