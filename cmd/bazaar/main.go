// Package main provides the bazaar CLI: store browsing, store
// creation, product management, purchases and shop-token swaps from
// the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/factory"
	"block-bazaar/internal/registry"
	"block-bazaar/internal/session"
	"block-bazaar/internal/store"
	"block-bazaar/internal/swap"
	"block-bazaar/internal/token"
)

const usage = `Usage: bazaar <command> [flags]

Read commands:
  stores            List the store directory
  store-info        Show one store's public state
  products          List a store's product catalog
  history           Show a store's purchase history
  balance           Show shop-token balance of an account
  quote             Quote a shop-token swap

Write commands (require --private-key or PRIVATE_KEY):
  create-store      Deploy a new store via the factory
  init-store        Initialize a deployed store
  create-and-init   Deploy and initialize in one flow
  add-product       Add a product to a store
  update-product    Change price, stock or active flag
  buy               Purchase a product
  distribute        Send shop tokens to customers
  withdraw          Withdraw shop tokens as the owner
  swap              Execute a shop-token swap

Session commands:
  session           connect | status | disconnect

Common flags: --chain-id, --rpc-endpoints, --registry-config
`

// env is the shared CLI context built once per invocation.
type env struct {
	ctx      context.Context
	chain    registry.Chain
	reg      *registry.Registry
	backend  ethrpc.Backend
	tokens   *token.Service
	stores   *store.Service
	factory  *factory.Service
	swaps    *swap.Service
	logger   *log.Logger
	writeKey string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	logger := log.New(os.Stderr, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var err error
	switch cmd {
	case "stores":
		err = runStores(ctx, logger, args)
	case "store-info":
		err = runStoreInfo(ctx, logger, args)
	case "products":
		err = runProducts(ctx, logger, args)
	case "history":
		err = runHistory(ctx, logger, args)
	case "balance":
		err = runBalance(ctx, logger, args)
	case "quote":
		err = runQuote(ctx, logger, args)
	case "create-store":
		err = runCreateStore(ctx, logger, args)
	case "init-store":
		err = runInitStore(ctx, logger, args)
	case "create-and-init":
		err = runCreateAndInit(ctx, logger, args)
	case "add-product":
		err = runAddProduct(ctx, logger, args)
	case "update-product":
		err = runUpdateProduct(ctx, logger, args)
	case "buy":
		err = runBuy(ctx, logger, args)
	case "distribute":
		err = runDistribute(ctx, logger, args)
	case "withdraw":
		err = runWithdraw(ctx, logger, args)
	case "swap":
		err = runSwap(ctx, logger, args)
	case "session":
		err = runSession(ctx, logger, args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		var re *ethrpc.RevertError
		if errors.As(err, &re) {
			logger.Fatalf("Transaction reverted on chain (tx %s)", re.Receipt.TxHash.Hex())
		}
		logger.Fatalf("Error: %v", err)
	}
}

// commonFlags registers flags shared by every subcommand and returns
// their destinations.
func commonFlags(fs *flag.FlagSet) (chainID *int64, rpcEndpoints, registryPath, privateKey *string) {
	chainID = fs.Int64("chain-id", 31337, "Chain ID")
	rpcEndpoints = fs.String("rpc-endpoints", os.Getenv("RPC_ENDPOINTS"), "Comma-separated RPC endpoints (default: registry)")
	registryPath = fs.String("registry-config", os.Getenv("REGISTRY_CONFIG"), "YAML file overriding chain configuration")
	privateKey = fs.String("private-key", os.Getenv("PRIVATE_KEY"), "Hex private key for write commands")
	return
}

// dial builds the CLI environment: registry lookup, endpoint failover
// dial, services.
func dial(ctx context.Context, logger *log.Logger, chainID int64, rpcEndpoints, registryPath, privateKey string) (*env, error) {
	reg := registry.Default()
	if registryPath != "" {
		var err error
		reg, err = registry.LoadFile(registryPath)
		if err != nil {
			return nil, fmt.Errorf("load registry config: %w", err)
		}
	}
	chain, err := reg.Chain(chainID)
	if err != nil {
		return nil, err
	}

	endpoints := chain.RPCURLs
	if rpcEndpoints != "" {
		endpoints = splitList(rpcEndpoints)
	}

	backend, endpoint, err := ethrpc.Dial(ctx, endpoints)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	logger.Printf("Connected to %s (chain %d)", endpoint, chain.ID)

	factoryAddr, err := reg.ContractAddress(chain.ID, registry.RetailFactory)
	if err != nil {
		return nil, err
	}

	tokens := token.NewService(backend, logger)
	stores := store.NewService(backend, tokens, logger)

	return &env{
		ctx:      ctx,
		chain:    chain,
		reg:      reg,
		backend:  backend,
		tokens:   tokens,
		stores:   stores,
		factory:  factory.NewService(backend, factoryAddr, stores, logger),
		swaps:    swap.NewService(backend, chain.UniswapV2Router, tokens, logger),
		logger:   logger,
		writeKey: privateKey,
	}, nil
}

// writer builds a write client from the configured private key.
func (e *env) writer() (*ethrpc.WriteClient, error) {
	if e.writeKey == "" {
		return nil, errors.New("write command requires --private-key or PRIVATE_KEY")
	}
	signer, err := ethrpc.NewSigner(e.writeKey)
	if err != nil {
		return nil, err
	}
	return ethrpc.NewWriteClient(e.ctx, e.backend, signer, e.logger)
}

func setup(ctx context.Context, logger *log.Logger, fs *flag.FlagSet, args []string) (*env, error) {
	chainID, rpcEndpoints, registryPath, privateKey := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return dial(ctx, logger, *chainID, *rpcEndpoints, *registryPath, *privateKey)
}

func runStores(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("stores", flag.ExitOnError)
	owner := fs.String("owner", "", "Only stores owned by this address")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}

	if *owner != "" {
		addrs, err := e.factory.StoresByOwner(ctx, common.HexToAddress(*owner))
		if err != nil {
			return err
		}
		for _, a := range addrs {
			fmt.Println(a.Hex())
		}
		return nil
	}

	entries, err := e.factory.Directory(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		status := "active"
		if entry.Synthesized {
			status = "unreadable"
		} else if entry.Info != nil && !entry.Info.IsActive {
			status = "inactive"
		}
		fmt.Printf("%s  %-32s %s\n", entry.Address.Hex(), entry.Name, status)
	}
	return nil
}

func runStoreInfo(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("store-info", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}

	info, err := e.stores.GetStoreInfo(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Printf("Name:          %s\n", info.Name)
	fmt.Printf("Description:   %s\n", info.Description)
	fmt.Printf("Token:         %s\n", info.TokenAddress.Hex())
	fmt.Printf("Token balance: %s\n", info.TokenBalance)
	fmt.Printf("Active:        %v\n", info.IsActive)
	fmt.Printf("Created:       %s\n", info.CreatedAt.UTC().Format(time.RFC3339))
	if info.TokenTotalSupply != nil {
		fmt.Printf("Token supply:  %s\n", info.TokenTotalSupply)
	}

	revenue, err := e.stores.TotalRevenue(ctx, addr)
	if err == nil {
		fmt.Printf("Revenue:       %s\n", revenue)
	}
	return nil
}

func runProducts(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}

	products, failed, err := e.stores.GetAllProducts(ctx, addr)
	if err != nil {
		return err
	}
	for _, p := range products {
		status := "active"
		if !p.IsActive {
			status = "inactive"
		}
		fmt.Printf("#%s  %-24s price=%s stock=%s %s\n", p.ID, p.Name, p.Price, p.Stock, status)
	}
	if failed > 0 {
		logger.Printf("%d product(s) could not be read", failed)
	}
	return nil
}

func runHistory(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}

	purchases, err := e.stores.PurchaseHistory(ctx, addr)
	if err != nil {
		return err
	}
	for _, p := range purchases {
		fmt.Printf("%s  product=%s qty=%s paid=%s buyer=%s\n",
			p.Timestamp.UTC().Format(time.RFC3339), p.ProductID, p.Quantity, p.TotalPrice, p.Buyer.Hex())
	}
	return nil
}

func runBalance(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	account := fs.String("account", "", "Account to query")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}
	holder, err := parseAddr(*account, "--account")
	if err != nil {
		return err
	}

	balance, err := e.stores.UserTokenBalance(ctx, addr, holder)
	if err != nil {
		return err
	}

	tokenAddr, err := e.stores.StoreToken(ctx, addr)
	if err != nil {
		return err
	}
	info, err := e.tokens.Info(ctx, tokenAddr)
	if err != nil {
		// Balance is still useful without symbol and decimals.
		fmt.Printf("%s\n", balance)
		return nil
	}
	fmt.Printf("%s %s\n", token.FormatUnits(balance, info.Decimals), info.Symbol)
	return nil
}

func runQuote(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	tokenIn := fs.String("token-in", "", "Input token address")
	tokenOut := fs.String("token-out", "", "Output token address")
	amountIn := fs.String("amount-in", "", "Input amount in base units")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}

	path, amount, err := parseSwapArgs(*tokenIn, *tokenOut, *amountIn)
	if err != nil {
		return err
	}

	quote, err := e.swaps.GetQuote(ctx, path, amount)
	if err != nil {
		return err
	}
	fmt.Printf("Amount in:    %s\n", quote.AmountIn)
	fmt.Printf("Amount out:   %s\n", quote.AmountOut)
	fmt.Printf("Price impact: %.2f%%\n", quote.PriceImpactPct)
	return nil
}

func runCreateStore(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("create-store", flag.ExitOnError)
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	addr, txHash, err := e.factory.CreateStore(ctx, w)
	if err != nil {
		return err
	}
	logger.Printf("Store deployed in tx %s", txHash.Hex())
	fmt.Println(addr.Hex())
	return nil
}

// initFlags registers the store initialization parameter flags.
func initFlags(fs *flag.FlagSet) (name, description, tokenName, tokenSymbol, supply, liquidity *string) {
	name = fs.String("name", "", "Store name")
	description = fs.String("description", "", "Store description")
	tokenName = fs.String("token-name", "", "Shop token name")
	tokenSymbol = fs.String("token-symbol", "", "Shop token symbol")
	supply = fs.String("token-supply", "", "Initial shop token supply in base units")
	liquidity = fs.String("stable-liquidity", "", "PYUSD amount seeding the trading pool, base units")
	return
}

func parseInitParams(name, description, tokenName, tokenSymbol, supply, liquidity string) (store.InitParams, error) {
	if name == "" || tokenName == "" || tokenSymbol == "" {
		return store.InitParams{}, errors.New("--name, --token-name and --token-symbol are required")
	}
	supplyWei, err := parseAmount(supply, "--token-supply")
	if err != nil {
		return store.InitParams{}, err
	}
	liquidityWei, err := parseAmount(liquidity, "--stable-liquidity")
	if err != nil {
		return store.InitParams{}, err
	}
	return store.InitParams{
		Name:               name,
		Description:        description,
		TokenName:          tokenName,
		TokenSymbol:        tokenSymbol,
		InitialTokenSupply: supplyWei,
		StableLiquidity:    liquidityWei,
	}, nil
}

func runInitStore(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("init-store", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	name, description, tokenName, tokenSymbol, supply, liquidity := initFlags(fs)
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}
	params, err := parseInitParams(*name, *description, *tokenName, *tokenSymbol, *supply, *liquidity)
	if err != nil {
		return err
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	stable, err := e.reg.StableTokenAddress(e.chain.ID)
	if err != nil {
		return err
	}
	txHash, err := e.stores.InitializeStore(ctx, w, addr, e.chain.UniswapV2Router, stable, params)
	if err != nil {
		return err
	}
	logger.Printf("Store initialized in tx %s", txHash.Hex())
	return nil
}

func runCreateAndInit(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("create-and-init", flag.ExitOnError)
	name, description, tokenName, tokenSymbol, supply, liquidity := initFlags(fs)
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	params, err := parseInitParams(*name, *description, *tokenName, *tokenSymbol, *supply, *liquidity)
	if err != nil {
		return err
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	stable, err := e.reg.StableTokenAddress(e.chain.ID)
	if err != nil {
		return err
	}
	addr, err := e.factory.CreateAndInitialize(ctx, w, e.chain.UniswapV2Router, stable, params,
		func(stage string) { logger.Printf("Stage: %s", stage) })
	if err != nil {
		return err
	}
	fmt.Println(addr.Hex())
	return nil
}

func runAddProduct(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("add-product", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	name := fs.String("name", "", "Product name")
	description := fs.String("description", "", "Product description")
	price := fs.String("price", "", "Price in shop-token base units")
	stock := fs.String("stock", "", "Initial stock")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}
	priceWei, err := parseAmount(*price, "--price")
	if err != nil {
		return err
	}
	stockN, err := parseAmount(*stock, "--stock")
	if err != nil {
		return err
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	txHash, err := e.stores.AddProduct(ctx, w, addr, *name, *description, priceWei, stockN)
	if err != nil {
		return err
	}
	logger.Printf("Product added in tx %s", txHash.Hex())
	return nil
}

func runUpdateProduct(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("update-product", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	productID := fs.String("product", "", "Product ID")
	price := fs.String("price", "", "New price in shop-token base units")
	stock := fs.String("stock", "", "New stock")
	active := fs.Bool("active", true, "Whether the product is purchasable")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}
	id, err := parseAmount(*productID, "--product")
	if err != nil {
		return err
	}
	priceWei, err := parseAmount(*price, "--price")
	if err != nil {
		return err
	}
	stockN, err := parseAmount(*stock, "--stock")
	if err != nil {
		return err
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	txHash, err := e.stores.UpdateProduct(ctx, w, addr, id, priceWei, stockN, *active)
	if err != nil {
		return err
	}
	logger.Printf("Product updated in tx %s", txHash.Hex())
	return nil
}

func runBuy(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	productID := fs.String("product", "", "Product ID")
	quantity := fs.String("quantity", "1", "Quantity")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}
	id, err := parseAmount(*productID, "--product")
	if err != nil {
		return err
	}
	qty, err := parseAmount(*quantity, "--quantity")
	if err != nil {
		return err
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	txHash, err := e.stores.PurchaseProduct(ctx, w, addr, id, qty)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return fmt.Errorf("not enough shop tokens to cover the purchase")
		}
		return err
	}
	logger.Printf("Purchase confirmed in tx %s", txHash.Hex())
	return nil
}

func runDistribute(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("distribute", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	customers := fs.String("customers", "", "Comma-separated recipient addresses")
	amounts := fs.String("amounts", "", "Comma-separated amounts, base units, one per recipient")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}

	var recipients []common.Address
	for _, raw := range splitList(*customers) {
		a, err := parseAddr(raw, "--customers")
		if err != nil {
			return err
		}
		recipients = append(recipients, a)
	}
	var values []*big.Int
	for _, raw := range splitList(*amounts) {
		v, err := parseAmount(raw, "--amounts")
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	txHash, err := e.stores.DistributeTokens(ctx, w, addr, recipients, values)
	if err != nil {
		return err
	}
	logger.Printf("Tokens distributed in tx %s", txHash.Hex())
	return nil
}

func runWithdraw(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("withdraw", flag.ExitOnError)
	storeAddr := fs.String("store", "", "Store contract address")
	amount := fs.String("amount", "", "Amount in shop-token base units")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}
	addr, err := parseAddr(*storeAddr, "--store")
	if err != nil {
		return err
	}
	value, err := parseAmount(*amount, "--amount")
	if err != nil {
		return err
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	txHash, err := e.stores.WithdrawTokens(ctx, w, addr, value)
	if err != nil {
		return err
	}
	logger.Printf("Tokens withdrawn in tx %s", txHash.Hex())
	return nil
}

func runSwap(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("swap", flag.ExitOnError)
	tokenIn := fs.String("token-in", "", "Input token address")
	tokenOut := fs.String("token-out", "", "Output token address")
	amountIn := fs.String("amount-in", "", "Input amount in base units")
	slippage := fs.Float64("slippage", 0.5, "Slippage tolerance in percent")
	e, err := setup(ctx, logger, fs, args)
	if err != nil {
		return err
	}

	path, amount, err := parseSwapArgs(*tokenIn, *tokenOut, *amountIn)
	if err != nil {
		return err
	}
	w, err := e.writer()
	if err != nil {
		return err
	}

	flow := swap.NewFlow(e.swaps, w, func(state swap.State) {
		logger.Printf("Swap state: %s", state)
	})
	if err := flow.Run(ctx, path, amount, *slippage); err != nil {
		return err
	}
	logger.Printf("Swap confirmed in tx %s", flow.TxHash().Hex())
	if quote := flow.Quote(); quote != nil {
		fmt.Printf("Received at least %s (quoted %s)\n",
			swap.CalculateMinAmountOut(quote.AmountOut, *slippage), quote.AmountOut)
	}
	return nil
}

func runSession(ctx context.Context, logger *log.Logger, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: bazaar session connect|status|disconnect [flags]")
	}
	sub := args[0]

	fs := flag.NewFlagSet("session", flag.ExitOnError)
	account := fs.String("account", "", "Wallet address (connect)")
	chainID := fs.Int64("chain-id", 31337, "Chain ID (connect)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	path, err := session.DefaultPath()
	if err != nil {
		return err
	}
	manager := session.NewManager(session.NewFileStore(path))

	switch sub {
	case "connect":
		addr, err := parseAddr(*account, "--account")
		if err != nil {
			return err
		}
		if err := manager.Connect(ctx, addr, uint64(*chainID)); err != nil {
			return err
		}
		logger.Printf("Session saved for %s on chain %d", addr.Hex(), *chainID)
		return nil
	case "status":
		state, err := manager.Restore(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				fmt.Println("No active session")
				return nil
			}
			return err
		}
		fmt.Printf("Connected: %s on chain %d (since %s)\n",
			state.Address.Hex(), state.ChainID, state.Timestamp.UTC().Format(time.RFC3339))
		return nil
	case "disconnect":
		if err := manager.Disconnect(ctx); err != nil {
			return err
		}
		fmt.Println("Session cleared")
		return nil
	default:
		return fmt.Errorf("unknown session command: %s", sub)
	}
}

func parseAddr(raw, flagName string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, fmt.Errorf("%s is required", flagName)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", flagName, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(raw, flagName string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("%s is required", flagName)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", flagName, raw)
	}
	return v, nil
}

func parseSwapArgs(tokenIn, tokenOut, amountIn string) ([]common.Address, *big.Int, error) {
	in, err := parseAddr(tokenIn, "--token-in")
	if err != nil {
		return nil, nil, err
	}
	out, err := parseAddr(tokenOut, "--token-out")
	if err != nil {
		return nil, nil, err
	}
	amount, err := parseAmount(amountIn, "--amount-in")
	if err != nil {
		return nil, nil, err
	}
	return []common.Address{in, out}, amount, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
