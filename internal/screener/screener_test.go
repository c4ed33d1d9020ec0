package screener

import "testing"

func TestClassifyStock(t *testing.T) {
	cases := map[string]string{
		"NASDAQ":    America,
		"nyse":      America,
		"AMEX":      America,
		"BATS":      America,
		"OTC":       America,
		"XETRA":     Europe,
		"tradegate": Europe,
		"FWB":       Europe,
		"LSE":       Europe,
		"EURONEXT":  Europe,
		"BME":       Europe,
		"TSE":       Asia,
		"HKEX":      Asia,
		"sse":       Asia,
		"SZSE":      Asia,
		"":          America,
		"BINANCE":   America,
		"NASDAQX":   America,
	}
	for code, want := range cases {
		if got := Classify(Stock, code); got != want {
			t.Errorf("Classify(stock, %q) = %q, want %q", code, got, want)
		}
	}
}

func TestClassifyCrypto(t *testing.T) {
	cases := map[string]string{
		"FOREX":      Forex,
		"fx_forex":   Forex,
		"ForexCom":   Forex,
		"OANDAFOREX": Forex,
		"BINANCE":    Cryptos,
		"COINBASE":   Cryptos,
		"NASDAQ":     Cryptos,
		"":           Cryptos,
		"FORE X":     Cryptos,
	}
	for code, want := range cases {
		if got := Classify(Crypto, code); got != want {
			t.Errorf("Classify(crypto, %q) = %q, want %q", code, got, want)
		}
	}
}

func TestParseAssetClass(t *testing.T) {
	tests := []struct {
		in   string
		want AssetClass
		ok   bool
	}{
		{"stock", Stock, true},
		{" Crypto ", Crypto, true},
		{"STOCK", Stock, true},
		{"bond", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAssetClass(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseAssetClass(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDefault(t *testing.T) {
	if got := Default(Stock); got != America {
		t.Errorf("Default(stock) = %q", got)
	}
	if got := Default(Crypto); got != Cryptos {
		t.Errorf("Default(crypto) = %q", got)
	}
}
