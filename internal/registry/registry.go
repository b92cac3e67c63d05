// Package registry maps chain IDs to deployed contract addresses and
// RPC endpoints. Every other component resolves addresses through it.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Registry errors.
var (
	// ErrUnknownChain is returned when no configuration exists for a chain ID.
	ErrUnknownChain = errors.New("chain not configured")

	// ErrUnknownContract is returned when a chain has no address for the
	// requested logical contract name.
	ErrUnknownContract = errors.New("contract not configured")
)

// ContractName identifies a logical contract deployed per chain.
type ContractName string

// Logical contract names.
const (
	TokenFactory  ContractName = "TOKEN_FACTORY"
	StoreContract ContractName = "STORE_CONTRACT"
	RetailFactory ContractName = "RETAIL_FACTORY"
)

// Chain holds the configuration for one supported chain.
type Chain struct {
	ID   int64
	Name string

	// RPCURLs are HTTP endpoints tried in order by the client factory.
	RPCURLs []string

	// WSURL is the optional WebSocket endpoint for log subscriptions.
	WSURL string

	Contracts map[ContractName]common.Address

	// UniswapV2Router is the AMM router used for shop-token swaps.
	UniswapV2Router common.Address

	// PYUSDToken is the stable token used to seed trading liquidity.
	PYUSDToken common.Address
}

// Registry resolves chain configuration by chain ID.
type Registry struct {
	chains map[int64]Chain
}

// Chain IDs with built-in configuration.
const (
	ChainIDMainnet int64 = 1
	ChainIDAnvil   int64 = 31337
	ChainIDSepolia int64 = 11155111
)

// Default returns a registry preloaded with the built-in chains.
func Default() *Registry {
	return &Registry{
		chains: map[int64]Chain{
			ChainIDAnvil: {
				ID:      ChainIDAnvil,
				Name:    "anvil",
				RPCURLs: []string{"http://127.0.0.1:8545"},
				WSURL:   "ws://127.0.0.1:8545",
				Contracts: map[ContractName]common.Address{
					TokenFactory:  common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
					StoreContract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
					RetailFactory: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
				},
				UniswapV2Router: common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
				PYUSDToken:      common.HexToAddress("0xCaC524BcA292aaade2DF8A05cC58F0a65B1B3bB9"),
			},
			// Mainnet carries only the canonical router and PYUSD
			// addresses; the retail contracts are not deployed there,
			// so store operations fail at address resolution.
			ChainIDMainnet: {
				ID:   ChainIDMainnet,
				Name: "mainnet",
				RPCURLs: []string{
					"https://eth.llamarpc.com",
					"https://rpc.ankr.com/eth",
					"https://cloudflare-eth.com",
				},
				Contracts:       map[ContractName]common.Address{},
				UniswapV2Router: common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
				PYUSDToken:      common.HexToAddress("0x6c3ea9036406852006290770BEdFcAbA0e23A0e8"),
			},
			ChainIDSepolia: {
				ID:   ChainIDSepolia,
				Name: "sepolia",
				// Ordered by observed method support; the client factory
				// falls through to the next endpoint on failure.
				RPCURLs: []string{
					"https://rpc.ankr.com/eth_sepolia",
					"https://sepolia.infura.io/v3/9aa3d95b3bc440fa88ea12eaa4456161",
					"https://eth-sepolia.g.alchemy.com/v2/demo",
					"https://rpc2.sepolia.org",
					"https://rpc.sepolia.org",
				},
				Contracts: map[ContractName]common.Address{
					TokenFactory:  common.HexToAddress("0x85d6F0f1b61992d18AF39ebd520b5209418900a3"),
					StoreContract: common.HexToAddress("0x85d6F0f1b61992d18AF39ebd520b5209418900a3"),
					RetailFactory: common.HexToAddress("0x935c367772E914C160A728b389baa6A031cC2149"),
				},
				UniswapV2Router: common.HexToAddress("0xeE567Fe1712Faf6149d80dA1E6934E354124CfE3"),
				PYUSDToken:      common.HexToAddress("0xCaC524BcA292aaade2DF8A05cC58F0a65B1B3bB9"),
			},
		},
	}
}

// Chain returns the configuration for the given chain ID.
func (r *Registry) Chain(chainID int64) (Chain, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return Chain{}, fmt.Errorf("%w: chain %d", ErrUnknownChain, chainID)
	}
	return c, nil
}

// ContractAddress returns the address of a logical contract on a chain.
func (r *Registry) ContractAddress(chainID int64, name ContractName) (common.Address, error) {
	c, err := r.Chain(chainID)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := c.Contracts[name]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s on chain %d", ErrUnknownContract, name, chainID)
	}
	return addr, nil
}

// RouterAddress returns the Uniswap V2 router address for a chain.
func (r *Registry) RouterAddress(chainID int64) (common.Address, error) {
	c, err := r.Chain(chainID)
	if err != nil {
		return common.Address{}, err
	}
	if c.UniswapV2Router == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: uniswap v2 router on chain %d", ErrUnknownContract, chainID)
	}
	return c.UniswapV2Router, nil
}

// StableTokenAddress returns the PYUSD token address for a chain.
func (r *Registry) StableTokenAddress(chainID int64) (common.Address, error) {
	c, err := r.Chain(chainID)
	if err != nil {
		return common.Address{}, err
	}
	if c.PYUSDToken == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: pyusd token on chain %d", ErrUnknownContract, chainID)
	}
	return c.PYUSDToken, nil
}

// ChainIDs returns all configured chain IDs in ascending order.
func (r *Registry) ChainIDs() []int64 {
	ids := make([]int64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Put adds or replaces a chain configuration.
func (r *Registry) Put(c Chain) {
	if r.chains == nil {
		r.chains = make(map[int64]Chain)
	}
	r.chains[c.ID] = c
}
