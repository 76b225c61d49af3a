package currencies

import "github.com/sig-0/p2prates/types"

var (
	USD types.Currency = "USD"
	EUR types.Currency = "EUR"
	GBP types.Currency = "GBP"
	ETB types.Currency = "ETB"
	NGN types.Currency = "NGN"
	KES types.Currency = "KES"
	TRY types.Currency = "TRY"
	RUB types.Currency = "RUB"
	UAH types.Currency = "UAH"
	INR types.Currency = "INR"
	BRL types.Currency = "BRL"
	ARS types.Currency = "ARS"
	VES types.Currency = "VES"
	CNY types.Currency = "CNY"

	USDT types.Currency = "USDT"
	USDC types.Currency = "USDC"
	BTC  types.Currency = "BTC"
	ETH  types.Currency = "ETH"
	BNB  types.Currency = "BNB"
	SOL  types.Currency = "SOL"
	TON  types.Currency = "TON"
	ADA  types.Currency = "ADA"
	DOGE types.Currency = "DOGE"
	XRP  types.Currency = "XRP"
)

var fiat = map[types.Currency]struct{}{
	USD: {},
	EUR: {},
	GBP: {},
	ETB: {},
	NGN: {},
	KES: {},
	TRY: {},
	RUB: {},
	UAH: {},
	INR: {},
	BRL: {},
	ARS: {},
	VES: {},
	CNY: {},
}

// IsFiat reports whether the symbol is a known fiat currency.
// Unknown symbols are treated as crypto assets
func IsFiat(c types.Currency) bool {
	_, ok := fiat[c]

	return ok
}
