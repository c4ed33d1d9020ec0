package screener

import "strings"

// AssetClass tags a watch-list entry as a stock or a cryptocurrency.
type AssetClass string

const (
	Stock  AssetClass = "stock"
	Crypto AssetClass = "crypto"
)

const (
	America = "america"
	Europe  = "europe"
	Asia    = "asia"
	Forex   = "forex"
	Cryptos = "crypto"
)

var (
	usExchanges   = map[string]bool{"NASDAQ": true, "NYSE": true, "AMEX": true, "BATS": true, "OTC": true}
	euExchanges   = map[string]bool{"XETRA": true, "TRADEGATE": true, "FWB": true, "LSE": true, "EURONEXT": true, "BME": true}
	asiaExchanges = map[string]bool{"TSE": true, "HKEX": true, "SSE": true, "SZSE": true}
)

// ParseAssetClass accepts "stock"/"crypto" in any case.
func ParseAssetClass(raw string) (AssetClass, bool) {
	switch AssetClass(strings.ToLower(strings.TrimSpace(raw))) {
	case Stock:
		return Stock, true
	case Crypto:
		return Crypto, true
	}
	return "", false
}

// Classify maps an exchange code to the scanner partition it is queried under.
// Unknown stock exchanges fall back to america, everything that is not forex
// is queried as crypto.
func Classify(class AssetClass, exchange string) string {
	e := strings.ToUpper(strings.TrimSpace(exchange))
	if class == Crypto {
		if strings.Contains(e, "FOREX") {
			return Forex
		}
		return Cryptos
	}
	switch {
	case usExchanges[e]:
		return America
	case euExchanges[e]:
		return Europe
	case asiaExchanges[e]:
		return Asia
	}
	return America
}

// Default is the partition used for a persisted entry without a screener.
func Default(class AssetClass) string {
	if class == Crypto {
		return Cryptos
	}
	return America
}
