package domain

import "math/big"

// EventMeta is display metadata for a ticketed event. The event catalog
// service and the local "created events" collection both produce these.
type EventMeta struct {
	EventID     uint64 `json:"eventId"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Venue       string `json:"venue"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// SaleOverview is the contract's view of one event sale. It is read-only
// from this engine's perspective: refreshed by polling, never locally
// mutated.
type SaleOverview struct {
	EventID         uint64   `json:"eventId"`
	StakeAmount     *big.Int `json:"stakeAmount"` // wei
	TicketSupply    uint64   `json:"ticketSupply"`
	TicketsMinted   uint64   `json:"ticketsMinted"`
	IsOpen          bool     `json:"isOpen"`
	LotteryExecuted bool     `json:"lotteryExecuted"`
	EntrantsCount   uint64   `json:"entrantsCount"`
	WinnersCount    uint64   `json:"winnersCount"`
}
