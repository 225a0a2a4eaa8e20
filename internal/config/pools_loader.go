package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// KnownPool is a locally registered pool for a token mint. Entries here are
// trusted without an on-chain lookup, which keeps the fast path off RPC for
// tokens we created or already sniped.
type KnownPool struct {
	PoolID    string `yaml:"pool_id"`
	TokenMint string `yaml:"token_mint"`
	BaseMint  string `yaml:"base_mint"`
}

// KnownPools maps venue name -> registered pools for that venue.
type KnownPools struct {
	Venues map[string][]KnownPool `yaml:"venues"`
}

// LoadKnownPools reads the local pool registry. A missing file is not an
// error: discovery simply falls through to the venue adapters.
func LoadKnownPools(path string) (KnownPools, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return KnownPools{}, nil
		}
		return KnownPools{}, fmt.Errorf("read pool registry: %w", err)
	}

	var pools KnownPools
	if err := yaml.Unmarshal(data, &pools); err != nil {
		return KnownPools{}, fmt.Errorf("parse pool registry: %w", err)
	}

	return pools, nil
}

// Lookup returns the registered pool id for (venue, tokenMint), if any.
func (kp KnownPools) Lookup(venue, tokenMint string) (string, bool) {
	for _, p := range kp.Venues[venue] {
		if p.TokenMint == tokenMint {
			return p.PoolID, true
		}
	}
	return "", false
}
