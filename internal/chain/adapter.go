// Package chain implements the ticket sale contract adapter on top of a
// JSON-RPC Ethereum node.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// Compile-time interface check.
var _ domain.SaleContract = (*Adapter)(nil)

const paymentGasLimit = 21_000

// Adapter talks to the deployed ticket sale contract. Writes are signed
// locally and block until the transaction is mined.
type Adapter struct {
	client   *ethclient.Client
	abi      abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	logger   *slog.Logger
}

// NewAdapter dials the node, parses the contract ABI and derives the signing
// address from the private key.
func NewAdapter(ctx context.Context, rpcURL, contractAddr, privateKeyHex string, logger *slog.Logger) (*Adapter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	parsed, err := abi.JSON(strings.NewReader(saleABIJSON))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}

	a := &Adapter{
		client:   client,
		abi:      parsed,
		contract: common.HexToAddress(contractAddr),
		key:      key,
		from:     ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		logger:   logger.With(slog.String("component", "chain")),
	}
	a.logger.Info("adapter ready",
		slog.String("contract", a.contract.Hex()),
		slog.String("caller", a.from.Hex()),
		slog.String("chain_id", chainID.String()))
	return a, nil
}

// Close releases the underlying RPC connection.
func (a *Adapter) Close() error {
	a.client.Close()
	return nil
}

// CallerAddress returns the lowercase address of the signing wallet.
func (a *Adapter) CallerAddress() string {
	return domain.NormalizeAddress(a.from.Hex())
}

func (a *Adapter) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := a.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	res, err := a.client.CallContract(ctx, ethereum.CallMsg{
		From: a.from,
		To:   &a.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, mapRevert(method, err)
	}
	out, err := a.abi.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return out, nil
}

func (a *Adapter) send(ctx context.Context, method string, value *big.Int, args ...any) (domain.TxReceipt, error) {
	data, err := a.abi.Pack(method, args...)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	return a.submit(ctx, method, a.contract, value, data)
}

func (a *Adapter) submit(ctx context.Context, op string, to common.Address, value *big.Int, data []byte) (domain.TxReceipt, error) {
	if value == nil {
		value = new(big.Int)
	}
	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return domain.TxReceipt{}, mapRevert(op, err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return domain.TxReceipt{}, mapRevert(op, err)
	}

	var gas uint64
	if len(data) == 0 {
		gas = paymentGasLimit
	} else {
		// Reverts surface here, before anything is broadcast.
		gas, err = a.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  a.from,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return domain.TxReceipt{}, mapRevert(op, err)
		}
		gas += gas / 5 // headroom over the estimate
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.key)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("chain: sign %s: %w", op, err)
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return domain.TxReceipt{}, mapRevert(op, err)
	}

	a.logger.Debug("transaction sent",
		slog.String("op", op),
		slog.String("tx", signed.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, a.client, signed)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("chain: wait %s: %w", op, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.TxReceipt{}, fmt.Errorf("chain: %s: tx %s reverted: %w",
			op, signed.Hash().Hex(), domain.ErrChain)
	}
	return domain.TxReceipt{
		TxHash:      signed.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// GetSaleOverview reads the full sale record for an event.
func (a *Adapter) GetSaleOverview(ctx context.Context, eventID uint64) (domain.SaleOverview, error) {
	out, err := a.call(ctx, "getSale", new(big.Int).SetUint64(eventID))
	if err != nil {
		return domain.SaleOverview{}, err
	}
	if len(out) != 7 {
		return domain.SaleOverview{}, fmt.Errorf("chain: getSale: %d outputs: %w", len(out), domain.ErrChain)
	}
	return domain.SaleOverview{
		EventID:         eventID,
		StakeAmount:     out[0].(*big.Int),
		TicketSupply:    out[1].(*big.Int).Uint64(),
		TicketsMinted:   out[2].(*big.Int).Uint64(),
		IsOpen:          out[3].(bool),
		LotteryExecuted: out[4].(bool),
		EntrantsCount:   out[5].(*big.Int).Uint64(),
		WinnersCount:    out[6].(*big.Int).Uint64(),
	}, nil
}

// HasEnteredSale reports whether the wallet staked for the event.
func (a *Adapter) HasEnteredSale(ctx context.Context, eventID uint64, wallet string) (bool, error) {
	out, err := a.call(ctx, "hasEnteredSale", new(big.Int).SetUint64(eventID), common.HexToAddress(wallet))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// IsSaleWinner reports whether the wallet currently holds winner status.
func (a *Adapter) IsSaleWinner(ctx context.Context, eventID uint64, wallet string) (bool, error) {
	out, err := a.call(ctx, "isSaleWinner", new(big.Int).SetUint64(eventID), common.HexToAddress(wallet))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// GetEventMaxTransferPrice returns the resale price ceiling in wei.
func (a *Adapter) GetEventMaxTransferPrice(ctx context.Context, eventID uint64) (*big.Int, error) {
	out, err := a.call(ctx, "getMaxTransferPrice", new(big.Int).SetUint64(eventID))
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// EnterSale stakes into the event lottery.
func (a *Adapter) EnterSale(ctx context.Context, eventID uint64, stake *big.Int) (domain.TxReceipt, error) {
	return a.send(ctx, "enterSale", stake, new(big.Int).SetUint64(eventID))
}

// ClaimTicket mints the ticket for a winning wallet.
func (a *Adapter) ClaimTicket(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	return a.send(ctx, "claimTicket", nil, new(big.Int).SetUint64(eventID))
}

// TransferWinnerStatus moves winner status to the resale buyer.
func (a *Adapter) TransferWinnerStatus(ctx context.Context, eventID uint64, to string) (domain.TxReceipt, error) {
	return a.send(ctx, "transferWinnerStatus", nil, new(big.Int).SetUint64(eventID), common.HexToAddress(to))
}

// WithdrawEntryBeforeLottery exits an open sale and returns the stake.
func (a *Adapter) WithdrawEntryBeforeLottery(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	return a.send(ctx, "withdrawEntry", nil, new(big.Int).SetUint64(eventID))
}

// WithdrawStake refunds a losing entrant after the lottery.
func (a *Adapter) WithdrawStake(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	return a.send(ctx, "withdrawStake", nil, new(big.Int).SetUint64(eventID))
}

// ConfigureEventSale opens a sale for an event, owner only.
func (a *Adapter) ConfigureEventSale(ctx context.Context, eventID uint64, stake *big.Int, supply uint64, maxTransferPct uint64) (domain.TxReceipt, error) {
	return a.send(ctx, "configureEventSale", nil,
		new(big.Int).SetUint64(eventID),
		stake,
		new(big.Int).SetUint64(supply),
		new(big.Int).SetUint64(maxTransferPct))
}

// RunLottery draws winners for an event, owner only.
func (a *Adapter) RunLottery(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	return a.send(ctx, "runLottery", nil, new(big.Int).SetUint64(eventID))
}

// SendPayment transfers plain ETH from the signing wallet.
func (a *Adapter) SendPayment(ctx context.Context, to string, amount *big.Int) (domain.TxReceipt, error) {
	return a.submit(ctx, "sendPayment", common.HexToAddress(to), amount, nil)
}
