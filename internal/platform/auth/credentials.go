package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Credential is a known user. The password is only ever held as a bcrypt hash.
type Credential struct {
	Username     string
	PasswordHash string
	Email        string
	Roles        []string
}

// UserSeed describes a user to load at startup. Exactly one of Password or
// PasswordHash is expected; a plaintext Password is hashed on load.
type UserSeed struct {
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password,omitempty"`
	PasswordHash string   `yaml:"password_hash,omitempty"`
	Email        string   `yaml:"email,omitempty"`
	Roles        []string `yaml:"roles,omitempty"`
}

type userFile struct {
	Users []UserSeed `yaml:"users"`
}

// CredentialStore holds the seeded users. It is immutable after
// construction and therefore safe for concurrent use without locking.
type CredentialStore struct {
	users     map[string]Credential
	dummyHash []byte
}

// NewCredentialStore hashes plaintext seeds with the given bcrypt cost and
// rejects empty or duplicate usernames.
func NewCredentialStore(seeds []UserSeed, cost int) (*CredentialStore, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("at least one user is required")
	}

	s := &CredentialStore{users: make(map[string]Credential, len(seeds))}
	for _, seed := range seeds {
		username := strings.TrimSpace(seed.Username)
		if username == "" {
			return nil, fmt.Errorf("user seed has empty username")
		}
		if _, dup := s.users[username]; dup {
			return nil, fmt.Errorf("duplicate username %q", username)
		}

		hash := seed.PasswordHash
		switch {
		case hash != "":
			if _, err := bcrypt.Cost([]byte(hash)); err != nil {
				return nil, fmt.Errorf("user %q: invalid password_hash: %w", username, err)
			}
		case seed.Password != "":
			h, err := HashPassword(seed.Password, cost)
			if err != nil {
				return nil, fmt.Errorf("user %q: %w", username, err)
			}
			hash = h
		default:
			return nil, fmt.Errorf("user %q has no password", username)
		}

		email := seed.Email
		if email == "" {
			email = username + "@example.com"
		}
		roles := seed.Roles
		if len(roles) == 0 {
			roles = []string{"user"}
		}

		s.users[username] = Credential{
			Username:     username,
			PasswordHash: hash,
			Email:        email,
			Roles:        append([]string(nil), roles...),
		}
	}

	// Compared against on unknown usernames so lookups of missing users
	// cost the same as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), cost)
	if err != nil {
		return nil, fmt.Errorf("hash placeholder password: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

// Verify checks a username/password pair.
func (s *CredentialStore) Verify(username, password string) (Credential, error) {
	cred, ok := s.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return Credential{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return Credential{}, ErrInvalidCredentials
	}
	return cred, nil
}

// Lookup returns the credential for username without checking a password.
func (s *CredentialStore) Lookup(username string) (Credential, bool) {
	c, ok := s.users[username]
	return c, ok
}

// Usernames returns the seeded usernames in sorted order.
func (s *CredentialStore) Usernames() []string {
	names := make([]string, 0, len(s.users))
	for n := range s.users {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func HashPassword(password string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// ParseUserList parses "user:password" pairs separated by commas, e.g.
// "demo:demo,tester:secret". Passwords may contain colons.
func ParseUserList(s string) ([]UserSeed, error) {
	var seeds []UserSeed
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, pw, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(name) == "" || pw == "" {
			return nil, fmt.Errorf("invalid user entry %q: want user:password", entry)
		}
		seeds = append(seeds, UserSeed{Username: strings.TrimSpace(name), Password: pw})
	}
	return seeds, nil
}

// LoadUserFile reads user seeds from a YAML document of the form:
//
//	users:
//	  - username: alice
//	    password_hash: $2a$10$...
//	    email: alice@clinic.example
//	    roles: [clinician]
func LoadUserFile(path string) ([]UserSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var f userFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}
	if len(f.Users) == 0 {
		return nil, errors.New("users file contains no users")
	}
	return f.Users, nil
}

// constantTimeEqual compares two strings without leaking their common prefix length.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
