package ethrpc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoSigner is returned when a write is attempted without a
// configured signing key. There is no write fallback: signing
// requires a key the same way the browser app requires a wallet.
var ErrNoSigner = errors.New("ethrpc: no signer configured")

// Signer holds a secp256k1 key and derives its address.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewSigner parses a hex-encoded private key, with or without the
// 0x prefix.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewSignerFromKey(key), nil
}

// NewSignerFromKey wraps an existing private key.
func NewSignerFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the signer's account address.
func (s *Signer) Address() common.Address {
	return s.addr
}

// SignTx signs a transaction for the given chain.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// WriteClient submits signed transactions. It is bound to one chain
// and one signing account at construction time; services receive it
// explicitly instead of reading ambient wallet state.
type WriteClient struct {
	backend Backend
	signer  *Signer
	chainID *big.Int
	logger  *log.Logger
}

// NewWriteClient builds a write client, fetching the chain ID from
// the backend. Fails immediately with ErrNoSigner when no key is
// available.
func NewWriteClient(ctx context.Context, backend Backend, signer *Signer, logger *log.Logger) (*WriteClient, error) {
	if signer == nil {
		return nil, ErrNoSigner
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve chain id: %w", err)
	}

	return &WriteClient{
		backend: backend,
		signer:  signer,
		chainID: chainID,
		logger:  logger,
	}, nil
}

// From returns the sending account.
func (w *WriteClient) From() common.Address {
	return w.signer.Address()
}

// ChainID returns the chain the client is bound to.
func (w *WriteClient) ChainID() *big.Int {
	return new(big.Int).Set(w.chainID)
}

// Backend returns the underlying read backend.
func (w *WriteClient) Backend() Backend {
	return w.backend
}

// Submit signs and broadcasts a contract call and returns its hash.
// Gas is estimated against current state with a 20% margin; fees use
// the node's tip suggestion over the latest base fee.
func (w *WriteClient) Submit(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	from := w.signer.Address()

	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}

	tipCap, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest tip cap: %w", err)
	}

	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch head: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(baseFee, big.NewInt(2)))

	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas / 5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	})

	signed, err := w.signer.SignTx(tx, w.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	backendMetrics(w.backend).RecordTxSubmitted()

	w.logger.Printf("submitted tx %s to %s (nonce %d)", signed.Hash().Hex(), to.Hex(), nonce)
	return signed.Hash(), nil
}
