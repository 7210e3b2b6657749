// Package local implements a username/password identity provider with
// Argon2id hashing and timing-safe verification, ported from the
// reference implementation's ras-identity-local crate.
package local

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/agentstack/ras-go/pkg/identity"
)

// dummyHash is a well-formed Argon2id PHC string whose salt and digest
// are placeholders, so no password is expected to match it. It is
// verified against on every lookup of an unknown username so that the
// CPU cost (and thus the observable timing) of "unknown user" and
// "known user, wrong password" are identical.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$abcdefghijklmnopqrstuv$abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQ"

const (
	maxConcurrentVerifications = 5

	defaultArgon2Time    = 1
	defaultArgon2MemKiB  = 65536
	defaultArgon2Threads = 4
	argon2KeyLen         = 32
	saltLen              = 16
)

// User is an in-memory local account.
type User struct {
	Username     string
	PasswordHash string
	Email        string
	DisplayName  string
	Metadata     map[string]any
}

// authPayload is the wire shape of the local provider's verify input.
type authPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Provider is a username/password identity.Provider backed by an
// in-memory user table. Verification is bounded to at most 5
// concurrent Argon2id operations by a semaphore, since Argon2 is
// deliberately CPU-heavy.
type Provider struct {
	mu    sync.RWMutex
	users map[string]User
	sem   chan struct{}

	argon2Time    uint32
	argon2MemKiB  uint32
	argon2Threads uint8
}

// New returns an empty local Provider using the default Argon2id cost
// parameters (RAS_ARGON2_* defaults: time=1, memory=65536KiB, threads=4).
func New() *Provider {
	return NewWithCost(defaultArgon2Time, defaultArgon2MemKiB, defaultArgon2Threads)
}

// NewWithCost returns an empty local Provider with explicit Argon2id
// cost parameters, for callers that source them from configuration.
func NewWithCost(timeCost, memoryKiB uint32, threads uint8) *Provider {
	return &Provider{
		users:         make(map[string]User),
		sem:           make(chan struct{}, maxConcurrentVerifications),
		argon2Time:    timeCost,
		argon2MemKiB:  memoryKiB,
		argon2Threads: threads,
	}
}

// ProviderID implements identity.Provider.
func (*Provider) ProviderID() string { return "local" }

// AddUser registers a new account, hashing password with Argon2id and
// a fresh random salt.
func (p *Provider) AddUser(username, password, email, displayName string) error {
	hash, err := p.hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[username] = User{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		DisplayName:  displayName,
	}
	return nil
}

// RemoveUser deletes an account, if present.
func (p *Provider) RemoveUser(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, username)
}

// Verify implements identity.Provider.
func (p *Provider) Verify(ctx context.Context, payload json.RawMessage) (identity.CanonicalIdentity, error) {
	var req authPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return identity.CanonicalIdentity{}, identity.NewInvalidPayloadError()
	}
	if req.Username == "" || req.Password == "" {
		return identity.CanonicalIdentity{}, identity.NewInvalidPayloadError()
	}

	user, err := p.verifyUser(ctx, req.Username, req.Password)
	if err != nil {
		return identity.CanonicalIdentity{}, err
	}

	return identity.CanonicalIdentity{
		ProviderID:  p.ProviderID(),
		Subject:     user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Metadata:    user.Metadata,
	}, nil
}

// verifyUser never short-circuits on an unknown username: it always
// runs one Argon2id verification, against the real hash when the user
// exists and against dummyHash otherwise, and always returns the same
// error value on failure.
func (p *Provider) verifyUser(ctx context.Context, username, password string) (User, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return User{}, identity.NewProviderError(ctx.Err())
	}
	defer func() { <-p.sem }()

	p.mu.RLock()
	user, exists := p.users[username]
	p.mu.RUnlock()

	hash := dummyHash
	if exists {
		hash = user.PasswordHash
	}

	valid, err := p.verifyPassword(password, hash)
	if err != nil {
		return User{}, identity.NewProviderError(err)
	}

	if !exists || !valid {
		return User{}, identity.NewInvalidCredentialsError()
	}
	return user, nil
}

func (p *Provider) hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, p.argon2Time, p.argon2MemKiB, p.argon2Threads, argon2KeyLen)
	return encodePHC(salt, hash, p.argon2Time, p.argon2MemKiB, p.argon2Threads), nil
}

// verifyPassword always recomputes with this Provider's configured
// cost parameters rather than whatever is recorded in encoded's PHC
// header, so the dummy-hash path and the real-user path cost exactly
// the same regardless of which hash happens to be on disk.
func (p *Provider) verifyPassword(password, encoded string) (bool, error) {
	salt, hash, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(password), salt, p.argon2Time, p.argon2MemKiB, p.argon2Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(candidate, hash) == 1, nil
}

// encodePHC renders an Argon2id hash in PHC string format:
// $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<salt>$<hash>
func encodePHC(salt, hash []byte, timeCost, memoryKiB uint32, threads uint8) string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, timeCost, threads,
		b64.EncodeToString(salt), b64.EncodeToString(hash))
}

func decodePHC(encoded string) (salt, hash []byte, err error) {
	parts := strings.Split(encoded, "$")
	// parts[0] is empty (leading '$'), [1]=argon2id, [2]=v=, [3]=params, [4]=salt, [5]=hash
	if len(parts) != 6 {
		return nil, nil, fmt.Errorf("malformed argon2 hash")
	}
	b64 := base64.RawStdEncoding
	salt, err = b64.DecodeString(parts[4])
	if err != nil {
		return nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	hash, err = b64.DecodeString(parts[5])
	if err != nil {
		return nil, nil, fmt.Errorf("decode hash: %w", err)
	}
	return salt, hash, nil
}
