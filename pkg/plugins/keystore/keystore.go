// Package keystore is a plugin that resolves named configuration variables
// from an encrypted file. The file key is derived from a password the user
// is asked for on first use.
package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/platinummonkey/hookrt/pkg/configvars"
	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/interaction"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/scrypt"
	"gopkg.in/yaml.v3"
)

const (
	// PluginID is the id of the plugin.
	PluginID = "keystore"

	// FactoryName is the go: reference the plugin declares.
	FactoryName = "keystore"

	saltSize = 16
	keySize  = 32
)

var (
	// ErrWrongPassword is returned when the password does not decrypt the
	// keystore.
	ErrWrongPassword = errors.New("wrong keystore password")

	// ErrNoCoordinator is returned when a password is needed but the hook
	// was invoked without an interaction coordinator.
	ErrNoCoordinator = errors.New("keystore password required but no interaction coordinator available")
)

// File is the on-disk keystore format.
type File struct {
	Salt    string            `yaml:"salt"`
	Entries map[string]string `yaml:"entries"`
}

// Keystore holds encrypted variables.
type Keystore struct {
	path   string
	logger *logrus.Logger

	mu   sync.Mutex
	file File
	key  []byte
}

// New creates an empty keystore that will be saved to path.
func New(path string, logger *logrus.Logger) (*Keystore, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &Keystore{
		path:   path,
		logger: loggerOrDefault(logger),
		file: File{
			Salt:    base64.StdEncoding.EncodeToString(salt),
			Entries: make(map[string]string),
		},
	}, nil
}

// Open reads a keystore file.
func Open(path string, logger *logrus.Logger) (*Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse keystore %s: %w", path, err)
	}
	if _, err := base64.StdEncoding.DecodeString(file.Salt); err != nil || file.Salt == "" {
		return nil, fmt.Errorf("keystore %s has an invalid salt", path)
	}
	if file.Entries == nil {
		file.Entries = make(map[string]string)
	}

	return &Keystore{path: path, logger: loggerOrDefault(logger), file: file}, nil
}

func loggerOrDefault(logger *logrus.Logger) *logrus.Logger {
	if logger == nil {
		return logrus.New()
	}
	return logger
}

// Names returns the stored variable names in sorted order.
func (k *Keystore) Names() []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	names := make([]string, 0, len(k.file.Entries))
	for name := range k.file.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is stored.
func (k *Keystore) Has(name string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.file.Entries[name]
	return ok
}

// Unlock derives the key from password and checks it against the stored
// entries. An empty keystore accepts any password.
func (k *Keystore) Unlock(password string) error {
	_, err := k.unlock(password)
	return err
}

// unlock derives the key without holding k.mu, then checks it against the
// entries and installs it.
func (k *Keystore) unlock(password string) ([]byte, error) {
	k.mu.Lock()
	salt := k.file.Salt
	k.mu.Unlock()

	key, err := deriveKey(salt, password)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	for name, sealed := range k.file.Entries {
		if _, err := decrypt(key, sealed); err != nil {
			return nil, fmt.Errorf("%w: cannot decrypt %s", ErrWrongPassword, name)
		}
		break
	}
	k.key = key
	return key, nil
}

func (k *Keystore) currentKey() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.key
}

// Put encrypts and stores value under name. The keystore must be unlocked.
func (k *Keystore) Put(name, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.key == nil {
		return errors.New("keystore is locked")
	}
	sealed, err := encrypt(k.key, value)
	if err != nil {
		return err
	}
	k.file.Entries[name] = sealed
	return nil
}

// Delete removes name.
func (k *Keystore) Delete(name string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.file.Entries, name)
}

// Save writes the keystore file with owner-only permissions.
func (k *Keystore) Save() error {
	k.mu.Lock()
	data, err := yaml.Marshal(k.file)
	k.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode keystore: %w", err)
	}
	if err := os.WriteFile(k.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return nil
}

// Get decrypts name, asking for the password through c when the keystore
// is still locked. The second return is false when name is not stored.
// k.mu is never held while the user is prompted.
func (k *Keystore) Get(ctx context.Context, c *interaction.Coordinator, name string) (string, bool, error) {
	k.mu.Lock()
	sealed, ok := k.file.Entries[name]
	key := k.key
	k.mu.Unlock()

	if !ok {
		return "", false, nil
	}

	if key == nil {
		if c == nil {
			return "", true, ErrNoCoordinator
		}
		var err error
		if key, err = k.promptUnlock(ctx, c); err != nil {
			return "", true, err
		}
	}

	value, err := decrypt(key, sealed)
	if err != nil {
		return "", true, fmt.Errorf("failed to decrypt %s: %w", name, err)
	}
	return value, true, nil
}

// promptUnlock asks for the password inside the interaction section. A
// caller that queued behind another unlock finds the key installed and
// does not prompt again.
func (k *Keystore) promptUnlock(ctx context.Context, c *interaction.Coordinator) ([]byte, error) {
	var key []byte
	err := c.Uninterrupted(ctx, func(ctx context.Context) error {
		if key = k.currentKey(); key != nil {
			return nil
		}

		password, err := c.RequestSecretInput(ctx, PluginID, "Keystore password")
		if err != nil {
			return fmt.Errorf("failed to read keystore password: %w", err)
		}
		if key, err = k.unlock(password); err != nil {
			return err
		}
		k.logger.WithField("path", k.path).Debug("Keystore unlocked")
		return nil
	})
	return key, err
}

// HandlerSet returns the configurationVariables handlers.
func (k *Keystore) HandlerSet() *plugins.HandlerSet {
	return plugins.NewHandlerSet(PluginID, map[string]plugins.Handler{
		configvars.HookResolve: configvars.Handler(k.resolve),
	})
}

// Register makes the handler set available as go:keystore.
func (k *Keystore) Register(loader *hooks.GoLoader) {
	loader.RegisterSet(FactoryName, k.HandlerSet())
}

// Plugin returns the plugin declaration.
func Plugin() *plugins.Plugin {
	return &plugins.Plugin{
		ID: PluginID,
		Hooks: map[string]plugins.HookDeclaration{
			configvars.Category: plugins.Reference("go:" + FactoryName),
		},
	}
}

func (k *Keystore) resolve(ctx context.Context, v *configvars.Variable, c *interaction.Coordinator, next func(context.Context) (string, error)) (string, error) {
	value, found, err := k.Get(ctx, c, v.Name)
	if !found {
		return next(ctx)
	}
	return value, err
}

func deriveKey(encodedSalt, password string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(encodedSalt)
	if err != nil {
		return nil, fmt.Errorf("invalid keystore salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keystore key: %w", err)
	}
	return key, nil
}

func encrypt(key []byte, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func decrypt(key []byte, encoded string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid entry encoding: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("entry too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
