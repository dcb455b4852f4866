// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package mpt

import (
	"fmt"

	"github.com/Fantom-foundation/triedb/common"
)

// MptConfig defines a set of configuration options for customizing the MPT
// implementation. The node layout is fixed to Ethereum's encoding; the
// options only select the content hash and the life-cycle management of
// outdated nodes.
type MptConfig struct {
	// A descriptive name for this configuration. It has no effect except for
	// logging and debugging purposes.
	Name string

	// The hashing algorithm used for node hashes and hashed keys.
	Hashing common.HashAlgorithm

	// If enabled, nodes replaced by updates are deleted from the backing
	// store on the next sync.
	PruningEnabled bool

	// The number of key hashes retained by secure tries. Non-positive values
	// disable the cache.
	HashCacheCapacity int
}

var AionConfig = MptConfig{
	Name:              "Aion",
	Hashing:           common.Blake2b256,
	PruningEnabled:    false,
	HashCacheCapacity: 1 << 16,
}

var EthereumConfig = MptConfig{
	Name:              "Ethereum",
	Hashing:           common.Keccak256,
	PruningEnabled:    false,
	HashCacheCapacity: 1 << 16,
}

var allMptConfigs = []MptConfig{AionConfig, EthereumConfig}

// GetConfigByName attempts to locate a configuration with the given name.
func GetConfigByName(name string) (MptConfig, bool) {
	for _, config := range allMptConfigs {
		if config.Name == name {
			return config, true
		}
	}
	return MptConfig{}, false
}

func (c MptConfig) validate() error {
	if _, err := common.ParseHashAlgorithm(c.Hashing.String()); err != nil {
		return fmt.Errorf("invalid configuration %q: %w", c.Name, err)
	}
	return nil
}
