package domain

import (
	"context"
	"math/big"
)

// TxReceipt summarizes a mined transaction.
type TxReceipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// SaleContract is the engine's view of the ticket sale contract. All reads
// reflect current chain state; all writes block until the transaction is
// mined or the context is done.
type SaleContract interface {
	// CallerAddress returns the lowercase address of the signing wallet.
	CallerAddress() string

	GetSaleOverview(ctx context.Context, eventID uint64) (SaleOverview, error)
	HasEnteredSale(ctx context.Context, eventID uint64, wallet string) (bool, error)
	IsSaleWinner(ctx context.Context, eventID uint64, wallet string) (bool, error)
	GetEventMaxTransferPrice(ctx context.Context, eventID uint64) (*big.Int, error)

	EnterSale(ctx context.Context, eventID uint64, stake *big.Int) (TxReceipt, error)
	ClaimTicket(ctx context.Context, eventID uint64) (TxReceipt, error)
	TransferWinnerStatus(ctx context.Context, eventID uint64, to string) (TxReceipt, error)
	WithdrawEntryBeforeLottery(ctx context.Context, eventID uint64) (TxReceipt, error)
	WithdrawStake(ctx context.Context, eventID uint64) (TxReceipt, error)

	ConfigureEventSale(ctx context.Context, eventID uint64, stake *big.Int, supply uint64, maxTransferPct uint64) (TxReceipt, error)
	RunLottery(ctx context.Context, eventID uint64) (TxReceipt, error)

	// SendPayment moves plain ETH, used for the off-chain payment leg of a
	// resale purchase.
	SendPayment(ctx context.Context, to string, amount *big.Int) (TxReceipt, error)
}
