package blockchain

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"balance_service/internal/config"
	"balance_service/internal/entity"
	"balance_service/pkg/metrics"
)

// evmBalancer and solanaBalancer let the fetcher run against fakes in tests.
type evmBalancer interface {
	GetBalances(ctx context.Context, requests []BalanceRequestItem) ([]BalanceResultItem, error)
}

type solanaBalancer interface {
	NativeBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error)
	TokenAccountBalance(ctx context.Context, tokenAccount string) (decimal.Decimal, error)
	TokenBalanceByMint(ctx context.Context, walletAddress, mintAddress string) (decimal.Decimal, error)
}

type chainRunner struct {
	cfg    config.ChainConfig
	evm    evmBalancer
	solana solanaBalancer
}

// ChainFetcher sweeps configured wallets across all chains. Individual RPC
// failures degrade to zero balances rather than failing the sweep.
type ChainFetcher struct {
	runners []chainRunner
	logger  *zap.Logger
}

// NewChainFetcher builds clients for every configured chain. A chain with no
// RPC endpoint or no wallets is kept but always yields empty results; an EVM
// chain whose endpoint cannot be dialed is treated the same way.
func NewChainFetcher(chains []config.ChainConfig, logger *zap.Logger) *ChainFetcher {
	f := &ChainFetcher{logger: logger.Named("ChainFetcher")}
	for _, chain := range chains {
		runner := chainRunner{cfg: chain}
		if chain.RPCURL != "" && len(chain.Wallets) > 0 {
			switch chain.Kind {
			case "solana":
				runner.solana = NewSolanaClient(chain, logger)
			default:
				evmClient, err := NewEVMClient(chain, logger)
				if err != nil {
					f.logger.Warn("Failed to initialize EVM client, chain will yield empty results",
						zap.String("chain", chain.Name), zap.Error(err))
				} else {
					runner.evm = evmClient
				}
			}
		}
		f.runners = append(f.runners, runner)
	}
	return f
}

// FetchAllChains sweeps every chain concurrently and returns results keyed by
// chain name.
func (f *ChainFetcher) FetchAllChains(ctx context.Context) map[string][]entity.ChainWalletBalance {
	results := make(map[string][]entity.ChainWalletBalance, len(f.runners))
	var mu sync.Mutex

	eg, childCtx := errgroup.WithContext(ctx)
	for _, runner := range f.runners {
		runner := runner
		eg.Go(func() error {
			balances := f.fetchChain(childCtx, runner)
			mu.Lock()
			results[runner.cfg.Name] = balances
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (f *ChainFetcher) fetchChain(ctx context.Context, runner chainRunner) []entity.ChainWalletBalance {
	if runner.evm == nil && runner.solana == nil {
		return []entity.ChainWalletBalance{}
	}

	var balances []entity.ChainWalletBalance
	var err error
	if runner.solana != nil {
		balances = f.fetchSolanaChain(ctx, runner)
	} else {
		balances, err = f.fetchEVMChain(ctx, runner)
	}
	if err != nil {
		metrics.ChainFetchesTotal.WithLabelValues(runner.cfg.Name, "error").Inc()
		f.logger.Error("Chain sweep failed", zap.String("chain", runner.cfg.Name), zap.Error(err))
		return balances
	}
	metrics.ChainFetchesTotal.WithLabelValues(runner.cfg.Name, "success").Inc()
	return balances
}

// sortedWalletLabels fixes the sweep order so results are deterministic.
func sortedWalletLabels(wallets map[string]string) []string {
	labels := make([]string, 0, len(wallets))
	for label := range wallets {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func sortedTokenSymbols(tokens map[string]config.TokenConfig) []string {
	symbols := make([]string, 0, len(tokens))
	for symbol := range tokens {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (f *ChainFetcher) fetchEVMChain(ctx context.Context, runner chainRunner) ([]entity.ChainWalletBalance, error) {
	labels := sortedWalletLabels(runner.cfg.Wallets)
	symbols := sortedTokenSymbols(runner.cfg.Tokens)

	var requests []BalanceRequestItem
	for _, label := range labels {
		address := runner.cfg.Wallets[label]
		for _, symbol := range symbols {
			token := runner.cfg.Tokens[symbol]
			item := BalanceRequestItem{
				Type:          TokenBalanceRequest,
				WalletLabel:   label,
				WalletAddress: address,
				TokenSymbol:   symbol,
				TokenAddress:  token.Address,
				Decimals:      token.Decimals,
			}
			if token.Native || token.Address == "" {
				item.Type = NativeBalanceRequest
				item.TokenAddress = ""
			}
			requests = append(requests, item)
		}
	}

	balancesByLabel := make(map[string]map[string]float64, len(labels))
	for _, label := range labels {
		balancesByLabel[label] = make(map[string]float64, len(symbols))
		for _, symbol := range symbols {
			balancesByLabel[label][symbol] = 0
		}
	}

	batchResults, err := runner.evm.GetBalances(ctx, requests)
	for _, item := range batchResults {
		if item.Error != nil {
			f.logger.Warn("Balance request failed, reporting zero",
				zap.String("chain", runner.cfg.Name),
				zap.String("wallet", item.WalletLabel),
				zap.String("token", item.TokenSymbol),
				zap.Error(item.Error))
			continue
		}
		balancesByLabel[item.WalletLabel][item.TokenSymbol], _ = item.Amount.Float64()
	}

	results := make([]entity.ChainWalletBalance, 0, len(labels))
	for _, label := range labels {
		results = append(results, entity.ChainWalletBalance{
			Chain:       runner.cfg.Name,
			WalletLabel: label,
			Address:     runner.cfg.Wallets[label],
			Balances:    balancesByLabel[label],
		})
	}
	return results, err
}

func (f *ChainFetcher) fetchSolanaChain(ctx context.Context, runner chainRunner) []entity.ChainWalletBalance {
	labels := sortedWalletLabels(runner.cfg.Wallets)
	symbols := sortedTokenSymbols(runner.cfg.Tokens)

	results := make([]entity.ChainWalletBalance, 0, len(labels))
	for _, label := range labels {
		address := runner.cfg.Wallets[label]
		balances := make(map[string]float64, len(symbols))

		for _, symbol := range symbols {
			token := runner.cfg.Tokens[symbol]
			amount, err := f.fetchSolanaToken(ctx, runner, label, address, token)
			if err != nil {
				f.logger.Warn("Balance request failed, reporting zero",
					zap.String("chain", runner.cfg.Name),
					zap.String("wallet", label),
					zap.String("token", symbol),
					zap.Error(err))
				balances[symbol] = 0
				continue
			}
			balances[symbol], _ = amount.Float64()
		}

		results = append(results, entity.ChainWalletBalance{
			Chain:       runner.cfg.Name,
			WalletLabel: label,
			Address:     address,
			Balances:    balances,
		})
	}
	return results
}

func (f *ChainFetcher) fetchSolanaToken(ctx context.Context, runner chainRunner, label, address string, token config.TokenConfig) (decimal.Decimal, error) {
	if token.Native || (token.Address == "" && len(token.AccountMap) == 0) {
		return runner.solana.NativeBalance(ctx, address)
	}
	if len(token.AccountMap) > 0 {
		tokenAccount, ok := token.AccountMap[label]
		if !ok {
			// No token account configured for this wallet: zero, not an error.
			return decimal.Zero, nil
		}
		return runner.solana.TokenAccountBalance(ctx, tokenAccount)
	}
	return runner.solana.TokenBalanceByMint(ctx, address, token.Address)
}
