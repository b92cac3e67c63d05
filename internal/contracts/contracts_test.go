package contracts

import (
	"encoding/hex"
	"testing"
)

func TestABIsParse(t *testing.T) {
	// mustParse panics on malformed JSON; reaching here means all four
	// package-level ABIs parsed. Spot-check the surfaces.
	for _, name := range []string{"balanceOf", "allowance", "approve", "transfer", "decimals"} {
		if _, ok := ERC20.Methods[name]; !ok {
			t.Errorf("erc20 missing method %s", name)
		}
	}
	for _, name := range []string{"initializeStore", "addProduct", "getProduct", "nextProductId", "purchaseProduct", "getStoreInfo", "storeToken", "owner", "withdrawTokens", "distributeTokens"} {
		if _, ok := Store.Methods[name]; !ok {
			t.Errorf("store missing method %s", name)
		}
	}
	for _, name := range []string{"createStore", "getAllStores", "getStoresByOwner", "storeToOwner"} {
		if _, ok := Factory.Methods[name]; !ok {
			t.Errorf("factory missing method %s", name)
		}
	}
	for _, name := range []string{"getAmountsOut", "swapExactTokensForTokens"} {
		if _, ok := Router.Methods[name]; !ok {
			t.Errorf("router missing method %s", name)
		}
	}
}

func TestERC20Selectors(t *testing.T) {
	// Selectors are fixed by EIP-20; a mismatch means the ABI is wrong.
	cases := map[string]string{
		"balanceOf": "70a08231",
		"allowance": "dd62ed3e",
		"approve":   "095ea7b3",
		"transfer":  "a9059cbb",
		"decimals":  "313ce567",
	}
	for name, want := range cases {
		got := hex.EncodeToString(ERC20.Methods[name].ID)
		if got != want {
			t.Errorf("selector for %s: got %s, want %s", name, got, want)
		}
	}
}

func TestEventIDs(t *testing.T) {
	ev, ok := Factory.Events[EventStoreDeployed]
	if !ok {
		t.Fatal("factory missing StoreDeployed event")
	}
	if ev.ID.Hex() == "0x0000000000000000000000000000000000000000000000000000000000000000" {
		t.Error("StoreDeployed event ID is zero")
	}

	for _, name := range []string{EventStoreInitialized, EventProductAdded, EventProductPurchased, EventTokensWithdrawn} {
		if _, ok := Store.Events[name]; !ok {
			t.Errorf("store missing event %s", name)
		}
	}
}

func TestStoreInfoTupleShape(t *testing.T) {
	m := Store.Methods["getStoreInfo"]
	if len(m.Outputs) != 1 {
		t.Fatalf("getStoreInfo outputs: got %d, want 1", len(m.Outputs))
	}
	comps := m.Outputs[0].Type.TupleElems
	if len(comps) != 6 {
		t.Errorf("StoreInfo tuple components: got %d, want 6", len(comps))
	}
}
