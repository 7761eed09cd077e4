package entity

import "time"

// BalanceEntry holds the free/used/total amounts for a single asset as
// reported by an exchange. Total is sourced upstream, not recomputed.
type BalanceEntry struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// AccountBalance is the per-account fetch outcome. Exactly one of
// "successful" (Error empty, Balances populated) or "errored" (Error set,
// Balances zeroed placeholders) holds per instance.
type AccountBalance struct {
	AccountID   string                  `json:"account_id"`
	AccountName string                  `json:"account_name"`
	Exchange    string                  `json:"exchange"`
	Balances    map[string]BalanceEntry `json:"balances"`
	Error       string                  `json:"error,omitempty"`
	Timestamp   string                  `json:"timestamp"`
}

// Failed reports whether this account's fetch ended in a terminal error.
func (a AccountBalance) Failed() bool { return a.Error != "" }

// NewFailedAccountBalance renders a terminal failure for an account with the
// configured placeholder assets zeroed, so downstream summation code need not
// special-case missing accounts.
func NewFailedAccountBalance(account Account, errMsg string, placeholders []string) AccountBalance {
	balances := make(map[string]BalanceEntry, len(placeholders))
	for _, symbol := range placeholders {
		balances[symbol] = BalanceEntry{}
	}
	return AccountBalance{
		AccountID:   account.AccountID,
		AccountName: account.AccountName,
		Exchange:    account.Exchange,
		Balances:    balances,
		Error:       errMsg,
		Timestamp:   NowUTC(),
	}
}

// ChainWalletBalance holds the normalized on-chain balances of one wallet on
// one chain.
type ChainWalletBalance struct {
	Chain       string             `json:"chain"`
	WalletLabel string             `json:"wallet_label"`
	Address     string             `json:"address"`
	Balances    map[string]float64 `json:"balances"`
}

// AggregateResult is the merged outcome of one aggregation request.
// Invariant: TotalAccounts == SuccessfulFetches + FailedFetches == len(Accounts).
type AggregateResult struct {
	Success           bool                            `json:"success"`
	Accounts          []AccountBalance                `json:"accounts"`
	Chains            map[string][]ChainWalletBalance `json:"chains"`
	Prices            map[string]float64              `json:"prices"`
	TotalAccounts     int                             `json:"total_accounts"`
	SuccessfulFetches int                             `json:"successful_fetches"`
	FailedFetches     int                             `json:"failed_fetches"`
	Timestamp         string                          `json:"timestamp"`
}

// DexResult is the on-chain-only aggregate.
type DexResult struct {
	Success   bool                            `json:"success"`
	Chains    map[string][]ChainWalletBalance `json:"chains"`
	Prices    map[string]float64              `json:"prices"`
	Timestamp string                          `json:"timestamp"`
}

// CurrencyTotals is the per-currency slice of the summary view.
type CurrencyTotals struct {
	Total float64 `json:"total"`
	Free  float64 `json:"free"`
}

// SummaryTotals aggregates currency totals per exchange and overall.
type SummaryTotals struct {
	ByExchange map[string]map[string]float64 `json:"by_exchange"`
	Overall    map[string]float64            `json:"overall"`
}

// BalancesSummary is the grouped view derived from an AggregateResult with no
// additional I/O. Summary is keyed exchange -> account name -> currency.
type BalancesSummary struct {
	Success   bool                                            `json:"success"`
	Summary   map[string]map[string]map[string]CurrencyTotals `json:"summary"`
	Totals    SummaryTotals                                   `json:"totals"`
	Prices    map[string]float64                              `json:"prices"`
	Timestamp string                                          `json:"timestamp"`
}

// NowUTC returns the aggregation timestamp format used across responses.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
