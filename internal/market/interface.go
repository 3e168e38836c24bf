package market

import "github.com/shopspring/decimal"

// Provider is the streaming market-data surface the HTTP layer reads from.
type Provider interface {
	SubscribeMids()
	SubscribeBook(coin string)
	SubscribeUserFills(user string)
	Mid(coin string) (decimal.Decimal, bool)
	GetBook(coin string) *Orderbook
	Fills(coin string, limit int) []Fill
	Start()
	Stop()
}

var _ Provider = (*Stream)(nil)
