// Package walletsecret holds the wallet credential hyperliquidity needs
// to sign exchange requests, sourced only from the environment — never
// from a config file, and never logged. The zeroing pattern is grounded
// on the teacher's bitget.Signer, which stores API keys as []byte
// specifically so they can be wiped on shutdown.
package walletsecret

import (
	"fmt"
	"os"
)

const privateKeyEnvVar = "HYPERLIQUIDITY_PRIVATE_KEY"

// Wallet holds a wallet address and its signing key. The key is kept as
// a []byte, not a string, because Go strings are immutable — a string
// holding a secret can't be zeroed, it can only be garbage collected on
// its own schedule.
type Wallet struct {
	address string
	key     []byte
}

// Load reads the signing key from HYPERLIQUIDITY_PRIVATE_KEY. address
// is the public wallet address (not a secret) resolved separately from
// config, since it's used for read-only REST calls even in PAPER mode
// where no key is required.
func Load(address string) (*Wallet, error) {
	raw := os.Getenv(privateKeyEnvVar)
	if raw == "" {
		return nil, fmt.Errorf("walletsecret: %s is not set", privateKeyEnvVar)
	}
	return &Wallet{address: address, key: []byte(raw)}, nil
}

// Address returns the wallet's public address.
func (w *Wallet) Address() string {
	if w == nil {
		return ""
	}
	return w.address
}

// Key returns the raw signing key bytes. Callers must not retain the
// returned slice past the call that needs it — Wipe zeroes the
// underlying array, not any copy the caller made.
func (w *Wallet) Key() []byte {
	if w == nil {
		return nil
	}
	return w.key
}

// Wipe zeroes the signing key in place. Safe to call multiple times and
// on a nil Wallet.
func (w *Wallet) Wipe() {
	if w == nil {
		return
	}
	for i := range w.key {
		w.key[i] = 0
	}
}
