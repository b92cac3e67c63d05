// Package contracts holds the ABIs of the externally deployed
// contracts this module talks to: the retail factory, per-store
// contracts, ERC-20 tokens and the Uniswap V2 router. The contracts
// themselves are not part of this repository; their interfaces are a
// versioned external dependency.
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("contracts: parse %s ABI: %v", name, err))
	}
	return parsed
}
