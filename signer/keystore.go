package signer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

const SALT_SIZE = 32

var ErrNoKeystore = errors.New("keystore not found")
var ErrBadPassword = errors.New("wrong password or corrupted keystore")

// Keystore is the plaintext content of the encrypted signer file.
type Keystore struct {
	Entropy string `json:"entropy"`
	Path    string `json:"path"`
}

func (k *Keystore) Signer() (*Mnemonic, error) {
	return FromEntropy(k.Entropy, k.Path)
}

func KeystoreExists(file string) bool {
	_, err := os.Stat(file)
	return err == nil
}

// SaveKeystore writes salt || nonce || AES-GCM(json) to file.
func SaveKeystore(k *Keystore, file, pass string) error {
	jsonData, err := json.Marshal(k)
	if err != nil {
		log.Error().Msgf("Error marshaling JSON: %v\n", err)
		return err
	}

	salt := make([]byte, SALT_SIZE)
	if _, err = rand.Read(salt); err != nil {
		log.Error().Msgf("Error generating salt: %v\n", err)
		return err
	}

	encrypted, err := encrypt(jsonData, generateKey(pass, salt))
	if err != nil {
		log.Error().Msgf("Error encrypting data: %v\n", err)
		return err
	}

	err = os.WriteFile(file, append(salt, encrypted...), 0600)
	if err != nil {
		log.Error().Msgf("Error writing file: %v\n", err)
		return err
	}

	return nil
}

func OpenKeystore(file, pass string) (*Keystore, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoKeystore
		}
		return nil, err
	}
	if len(data) < SALT_SIZE {
		return nil, ErrBadPassword
	}

	salt, data := data[:SALT_SIZE], data[SALT_SIZE:]

	decrypted, err := decrypt(data, generateKey(pass, salt))
	if err != nil {
		log.Debug().Err(err).Msg("Error decrypting keystore")
		return nil, ErrBadPassword
	}

	k := &Keystore{}
	if err = json.Unmarshal(decrypted, k); err != nil {
		log.Error().Msgf("Error unmarshaling JSON: %v\n", err)
		return nil, err
	}

	return k, nil
}

func encrypt(data []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

func decrypt(data []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// generateKey derives a key from a password using PBKDF2
func generateKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, 4096, 32, sha256.New)
}
