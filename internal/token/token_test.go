package token_test

import (
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"block-bazaar/internal/contracts"
	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/ethrpc/ethtest"
	"block-bazaar/internal/token"
)

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func fakeToken() *ethtest.Contract {
	return ethtest.NewContract(contracts.ERC20).
		Returns("name", "PayPal USD").
		Returns("symbol", "PYUSD").
		Returns("decimals", uint8(6)).
		Returns("totalSupply", big.NewInt(1_000_000_000))
}

func TestInfo(t *testing.T) {
	fake := ethtest.NewBackend(31337)
	fake.Handle(tokenAddr, fakeToken().Handler())

	svc := token.NewService(fake, nil)
	info, err := svc.Info(context.Background(), tokenAddr)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}

	if info.Name != "PayPal USD" {
		t.Errorf("name = %q, want %q", info.Name, "PayPal USD")
	}
	if info.Symbol != "PYUSD" {
		t.Errorf("symbol = %q, want %q", info.Symbol, "PYUSD")
	}
	if info.Decimals != 6 {
		t.Errorf("decimals = %d, want 6", info.Decimals)
	}
	if info.TotalSupply.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Errorf("totalSupply = %s, want 1000000000", info.TotalSupply)
	}
	if got := fake.CallCount("eth_call"); got != 4 {
		t.Errorf("eth_call count = %d, want 4", got)
	}
}

func TestInfo_PartialFailure(t *testing.T) {
	fake := ethtest.NewBackend(31337)
	fake.Handle(tokenAddr, fakeToken().
		Reverts("symbol", "not a token").
		Handler())

	svc := token.NewService(fake, nil)
	if _, err := svc.Info(context.Background(), tokenAddr); err == nil {
		t.Fatal("Info() expected error when one read fails")
	}
}

func TestBalanceAndAllowance(t *testing.T) {
	fake := ethtest.NewBackend(31337)
	fake.Handle(tokenAddr, fakeToken().
		On("balanceOf", func(_ ethereum.CallMsg, args []interface{}) ([]interface{}, error) {
			if args[0].(common.Address) == alice {
				return []interface{}{big.NewInt(500)}, nil
			}
			return []interface{}{big.NewInt(0)}, nil
		}).
		On("allowance", func(_ ethereum.CallMsg, args []interface{}) ([]interface{}, error) {
			if args[0].(common.Address) == alice && args[1].(common.Address) == bob {
				return []interface{}{big.NewInt(42)}, nil
			}
			return []interface{}{big.NewInt(0)}, nil
		}).
		Handler())

	svc := token.NewService(fake, nil)

	bal, err := svc.BalanceOf(context.Background(), tokenAddr, alice)
	if err != nil {
		t.Fatalf("BalanceOf() error = %v", err)
	}
	if bal.Int64() != 500 {
		t.Errorf("balance = %s, want 500", bal)
	}

	allowance, err := svc.Allowance(context.Background(), tokenAddr, alice, bob)
	if err != nil {
		t.Fatalf("Allowance() error = %v", err)
	}
	if allowance.Int64() != 42 {
		t.Errorf("allowance = %s, want 42", allowance)
	}
}

func TestApprove_SubmitsApprovalCalldata(t *testing.T) {
	fake := ethtest.NewBackend(31337)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	w, err := ethrpc.NewWriteClient(context.Background(), fake, ethrpc.NewSignerFromKey(key), nil)
	if err != nil {
		t.Fatalf("NewWriteClient() error = %v", err)
	}

	svc := token.NewService(fake, nil)
	hash, err := svc.Approve(context.Background(), w, tokenAddr, bob, big.NewInt(1000))
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	sent := fake.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d transactions, want 1", len(sent))
	}
	if sent[0].Hash() != hash {
		t.Errorf("hash mismatch")
	}
	if *sent[0].To() != tokenAddr {
		t.Errorf("tx to %s, want token %s", sent[0].To(), tokenAddr)
	}

	want, _ := contracts.ERC20.Pack("approve", bob, big.NewInt(1000))
	if string(sent[0].Data()) != string(want) {
		t.Errorf("calldata is not an approve(bob, 1000) call")
	}
}

func TestApproveAndWait_SurfacesRevert(t *testing.T) {
	fake := ethtest.NewBackend(31337)
	fake.OnSend = func(tx *types.Transaction) {
		fake.SetReceipt(tx.Hash(), &types.Receipt{
			Status:      types.ReceiptStatusFailed,
			TxHash:      tx.Hash(),
			BlockNumber: big.NewInt(1),
		})
	}

	key, _ := crypto.GenerateKey()
	w, err := ethrpc.NewWriteClient(context.Background(), fake, ethrpc.NewSignerFromKey(key), nil)
	if err != nil {
		t.Fatalf("NewWriteClient() error = %v", err)
	}

	svc := token.NewService(fake, nil)
	_, err = svc.ApproveAndWait(context.Background(), w, tokenAddr, bob, big.NewInt(1000))
	if !ethrpc.IsRevert(err) {
		t.Fatalf("ApproveAndWait() error = %v, want revert", err)
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{big.NewInt(0), 6, "0"},
		{big.NewInt(1_000_000), 6, "1"},
		{big.NewInt(1_500_000), 6, "1.5"},
		{big.NewInt(1_000_001), 6, "1.000001"},
		{big.NewInt(123), 6, "0.000123"},
		{big.NewInt(-2_500_000), 6, "-2.5"},
		{big.NewInt(42), 0, "42"},
	}
	for _, tt := range tests {
		if got := token.FormatUnits(tt.amount, tt.decimals); got != tt.want {
			t.Errorf("FormatUnits(%s, %d) = %q, want %q", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     int64
		wantErr  bool
	}{
		{"1", 6, 1_000_000, false},
		{"1.5", 6, 1_500_000, false},
		{"0.000001", 6, 1, false},
		{".5", 6, 500_000, false},
		{"-2.5", 6, -2_500_000, false},
		{"1.0000001", 6, 0, true},
		{"", 6, 0, true},
		{"abc", 6, 0, true},
	}
	for _, tt := range tests {
		got, err := token.ParseUnits(tt.in, tt.decimals)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseUnits(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseUnits(%q) error = %v", tt.in, err)
			continue
		}
		if got.Int64() != tt.want {
			t.Errorf("ParseUnits(%q) = %s, want %d", tt.in, got, tt.want)
		}
	}
}
