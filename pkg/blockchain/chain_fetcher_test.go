package blockchain

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"balance_service/internal/config"
)

type fakeEVM struct {
	results map[string]decimal.Decimal
	errs    map[string]error
}

func (f *fakeEVM) GetBalances(ctx context.Context, requests []BalanceRequestItem) ([]BalanceResultItem, error) {
	results := make([]BalanceResultItem, len(requests))
	for i, req := range requests {
		key := req.WalletLabel + "/" + req.TokenSymbol
		results[i] = BalanceResultItem{
			WalletLabel:   req.WalletLabel,
			WalletAddress: req.WalletAddress,
			TokenSymbol:   req.TokenSymbol,
			Amount:        f.results[key],
			Error:         f.errs[key],
		}
	}
	return results, nil
}

type fakeSolana struct {
	native        decimal.Decimal
	tokenAccounts map[string]decimal.Decimal
	mintBalances  map[string]decimal.Decimal
	err           error
}

func (f *fakeSolana) NativeBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	return f.native, f.err
}

func (f *fakeSolana) TokenAccountBalance(ctx context.Context, tokenAccount string) (decimal.Decimal, error) {
	return f.tokenAccounts[tokenAccount], f.err
}

func (f *fakeSolana) TokenBalanceByMint(ctx context.Context, walletAddress, mintAddress string) (decimal.Decimal, error) {
	return f.mintBalances[mintAddress], f.err
}

func TestFetchAllChainsSkipsUnconfiguredChain(t *testing.T) {
	fetcher := NewChainFetcher([]config.ChainConfig{
		{Name: "Ethereum", Kind: "evm", Wallets: map[string]string{"main": "0xabc"}},
	}, zap.NewNop())

	results := fetcher.FetchAllChains(context.Background())

	require.Contains(t, results, "Ethereum")
	assert.Empty(t, results["Ethereum"])
}

func TestFetchEVMChainZeroesFailedItems(t *testing.T) {
	cfg := config.ChainConfig{
		Name: "Ethereum",
		Kind: "evm",
		Wallets: map[string]string{
			"hot":  "0xaaa",
			"cold": "0xbbb",
		},
		Tokens: map[string]config.TokenConfig{
			"ETH":  {Native: true, Decimals: 18},
			"USDT": {Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
		},
	}
	fetcher := &ChainFetcher{logger: zap.NewNop()}
	runner := chainRunner{
		cfg: cfg,
		evm: &fakeEVM{
			results: map[string]decimal.Decimal{
				"cold/ETH":  decimal.NewFromFloat(3.5),
				"cold/USDT": decimal.NewFromInt(1000),
				"hot/ETH":   decimal.NewFromFloat(0.1),
			},
			errs: map[string]error{
				"hot/USDT": errors.New("execution reverted"),
			},
		},
	}

	balances := fetcher.fetchChain(context.Background(), runner)

	require.Len(t, balances, 2)
	// Sorted by wallet label: cold, hot.
	assert.Equal(t, "cold", balances[0].WalletLabel)
	assert.Equal(t, 3.5, balances[0].Balances["ETH"])
	assert.Equal(t, 1000.0, balances[0].Balances["USDT"])
	assert.Equal(t, "hot", balances[1].WalletLabel)
	assert.Equal(t, 0.1, balances[1].Balances["ETH"])
	assert.Zero(t, balances[1].Balances["USDT"])
}

func TestFetchSolanaChainAccountMap(t *testing.T) {
	cfg := config.ChainConfig{
		Name: "Solana",
		Kind: "solana",
		Wallets: map[string]string{
			"main":  "walletMain",
			"spare": "walletSpare",
		},
		Tokens: map[string]config.TokenConfig{
			"SOL": {Native: true, Decimals: 9},
			"ALI": {
				Address:  "mintALI",
				Decimals: 6,
				AccountMap: map[string]string{
					"main": "tokenAccMain",
				},
			},
		},
	}
	fetcher := &ChainFetcher{logger: zap.NewNop()}
	runner := chainRunner{
		cfg: cfg,
		solana: &fakeSolana{
			native: decimal.NewFromFloat(2.0),
			tokenAccounts: map[string]decimal.Decimal{
				"tokenAccMain": decimal.NewFromInt(500),
			},
		},
	}

	balances := fetcher.fetchChain(context.Background(), runner)

	require.Len(t, balances, 2)
	assert.Equal(t, "main", balances[0].WalletLabel)
	assert.Equal(t, 2.0, balances[0].Balances["SOL"])
	assert.Equal(t, 500.0, balances[0].Balances["ALI"])
	// spare has no mapped token account: zero ALI, not an error.
	assert.Equal(t, "spare", balances[1].WalletLabel)
	assert.Equal(t, 2.0, balances[1].Balances["SOL"])
	assert.Zero(t, balances[1].Balances["ALI"])
}
