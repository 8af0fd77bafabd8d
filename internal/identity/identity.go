package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

// Signer - a party together with its signing key.
type Signer struct {
	party entity.Party
	key   ed25519.PrivateKey
}

// NewSigner - derives the key pair of party from a secret seed phrase.
func NewSigner(party entity.Party, seed string) *Signer {
	sum := sha256.Sum256([]byte(seed))

	return &Signer{
		party: party,
		key:   ed25519.NewKeyFromSeed(sum[:]),
	}
}

func (that *Signer) Party() entity.Party {
	return that.party
}

func (that *Signer) PublicKey() ed25519.PublicKey {
	return that.key.Public().(ed25519.PublicKey) //nolint: forcetypeassert // always ed25519
}

// Sign - adds the signer's signature over the transition id.
func (that *Signer) Sign(signed *entity.SignedTransition) {
	if signed.Signatures == nil {
		signed.Signatures = make(map[entity.Party][]byte)
	}

	signed.Signatures[that.party] = ed25519.Sign(that.key, []byte(signed.Transition.ID()))
}

// Directory - known public keys of every party.
type Directory struct {
	mu   sync.RWMutex
	keys map[entity.Party]ed25519.PublicKey
}

func NewDirectory() *Directory {
	return &Directory{
		keys: make(map[entity.Party]ed25519.PublicKey),
	}
}

func (that *Directory) Register(party entity.Party, key ed25519.PublicKey) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.keys[party] = key
}

// RegisterEncoded - registers a base64 encoded public key.
func (that *Directory) RegisterEncoded(party entity.Party, encoded string) error {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode public key of %s: %w", party, err)
	}

	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("public key of %s has %d bytes", party, len(key))
	}

	that.Register(party, key)

	return nil
}

// Verify - checks that every required party signed the transition.
func (that *Directory) Verify(signed entity.SignedTransition, required []entity.Party) error {
	that.mu.RLock()
	defer that.mu.RUnlock()

	id := []byte(signed.Transition.ID())

	for _, party := range required {
		key, ok := that.keys[party]
		if !ok {
			return fmt.Errorf("%w: unknown party %s", apperror.ErrBadSignature, party)
		}

		signature, ok := signed.Signatures[party]
		if !ok {
			return fmt.Errorf("%w: missing signature of %s", apperror.ErrBadSignature, party)
		}

		if !ed25519.Verify(key, id, signature) {
			return fmt.Errorf("%w: signature of %s does not match", apperror.ErrBadSignature, party)
		}
	}

	return nil
}

func EncodePublicKey(key ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(key)
}
