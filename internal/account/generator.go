// Package account generates throwaway registration identities and persists
// the credentials that come out of a successful run.
package account

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLength   = 8
)

// Identity is one disposable account to register.
type Identity struct {
	Email    string
	Password string
}

// Generator mints unique addresses under a shared mailbox prefix. The
// webmail provider routes anything matching prefix-*@domain into the same
// inbox, so every generated address is reachable without extra setup.
type Generator struct {
	prefix   string
	domain   string
	password string
}

func NewGenerator(prefix, domain, password string) *Generator {
	return &Generator{prefix: prefix, domain: domain, password: password}
}

// Next returns a fresh identity. Suffixes come from crypto/rand; collisions
// across runs are negligible at 36^8 combinations.
func (g *Generator) Next() (Identity, error) {
	suffix, err := randomSuffix(suffixLength)
	if err != nil {
		return Identity{}, fmt.Errorf("account: generating suffix: %w", err)
	}
	return Identity{
		Email:    fmt.Sprintf("%s-%s@%s", g.prefix, suffix, g.domain),
		Password: g.password,
	}, nil
}

func randomSuffix(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(suffixAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}
