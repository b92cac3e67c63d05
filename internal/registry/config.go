package registry

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a registry override file.
type fileConfig struct {
	Chains []chainConfig `yaml:"chains"`
}

type chainConfig struct {
	ID        int64             `yaml:"id"`
	Name      string            `yaml:"name"`
	RPCURLs   []string          `yaml:"rpc_urls"`
	WSURL     string            `yaml:"ws_url"`
	Contracts map[string]string `yaml:"contracts"`
	Router    string            `yaml:"uniswap_v2_router"`
	PYUSD     string            `yaml:"pyusd_token"`
}

// contract keys accepted in the YAML file, mapped to logical names.
var contractKeys = map[string]ContractName{
	"token_factory":  TokenFactory,
	"store_contract": StoreContract,
	"retail_factory": RetailFactory,
}

// LoadFile reads a YAML override file and applies it on top of the
// built-in defaults. Chains in the file replace built-in chains with
// the same ID.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML registry configuration on top of the defaults.
func Parse(data []byte) (*Registry, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}

	r := Default()
	for _, cc := range cfg.Chains {
		if cc.ID == 0 {
			return nil, fmt.Errorf("registry config: chain entry missing id")
		}

		chain := Chain{
			ID:        cc.ID,
			Name:      cc.Name,
			RPCURLs:   cc.RPCURLs,
			WSURL:     cc.WSURL,
			Contracts: make(map[ContractName]common.Address),
		}

		for key, hex := range cc.Contracts {
			name, ok := contractKeys[key]
			if !ok {
				return nil, fmt.Errorf("registry config: unknown contract key %q for chain %d", key, cc.ID)
			}
			addr, err := parseAddress(hex)
			if err != nil {
				return nil, fmt.Errorf("registry config: contract %s on chain %d: %w", key, cc.ID, err)
			}
			chain.Contracts[name] = addr
		}

		if cc.Router != "" {
			addr, err := parseAddress(cc.Router)
			if err != nil {
				return nil, fmt.Errorf("registry config: router on chain %d: %w", cc.ID, err)
			}
			chain.UniswapV2Router = addr
		}
		if cc.PYUSD != "" {
			addr, err := parseAddress(cc.PYUSD)
			if err != nil {
				return nil, fmt.Errorf("registry config: pyusd on chain %d: %w", cc.ID, err)
			}
			chain.PYUSDToken = addr
		}

		r.Put(chain)
	}

	return r, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
