package entity

import (
	"fmt"
	"strings"
)

// Account is a normalized, read-only snapshot of a credential-store record.
// APIKey and APISecret are expected to be decrypted before the account is
// handed to a fetcher.
type Account struct {
	AccountID   string
	AccountName string
	Exchange    string
	APIKey      string
	APISecret   string
}

// exchangeNameMap maps the raw exchange labels found in stored account
// documents onto canonical exchange names.
var exchangeNameMap = map[string]string{
	"gate":       "Gate_io",
	"gate.io":    "Gate_io",
	"gateio":     "Gate_io",
	"htx":        "HTX",
	"mexc":       "MEXC",
	"crypto":     "Crypto_com",
	"crypto.com": "Crypto_com",
	"cryptocom":  "Crypto_com",
	"crypto_com": "Crypto_com",
}

// CanonicalExchangeName resolves a raw exchange label to its canonical name.
// Unknown labels fall back to upper-casing the raw label.
func CanonicalExchangeName(raw string) string {
	if name, ok := exchangeNameMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return name
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// DeriveAccountID builds the account identifier from the raw document fields.
// The stored accountId field, when present, is ignored: the derivation here is
// the single source of truth.
func DeriveAccountID(name, exchange, accountName string) string {
	return strings.ToLower(fmt.Sprintf("%s-%s-%s", name, exchange, accountName))
}
