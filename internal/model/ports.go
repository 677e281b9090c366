package model

import "context"

// ── Broker Port ──
// The broker/exchange collaborator that supplies live state and executes
// orders. All commands are fire-and-forget: a nil error only means the
// request was dispatched. Callers re-read Positions/PendingOrders every
// cycle instead of tracking acknowledgements.

// Broker is the market/broker interface consumed by the trading core.
type Broker interface {
	// Positions returns the authoritative snapshot of open positions.
	Positions(ctx context.Context) []Position

	// PendingOrders returns the authoritative snapshot of resting orders.
	PendingOrders(ctx context.Context) []PendingOrder

	ExecuteMarketOrder(ctx context.Context, req MarketOrderRequest) error
	PlaceStopOrder(ctx context.Context, req StopOrderRequest) error
	CancelOrder(ctx context.Context, order PendingOrder) error
	ClosePosition(ctx context.Context, pos Position) error

	// Account returns the current balance/equity snapshot.
	Account(ctx context.Context) AccountState

	// Symbol returns the current instrument description (including spread).
	Symbol(ctx context.Context) SymbolInfo
}
