// Package evmchain implements the Chain Client contract for the EVM
// side of a swap. It mirrors stellarchain's polling/backoff/circuit-
// breaker shape (itself grounded on the teacher's
// stellar-live-source server) but speaks in block-number/log-filter
// terms, the idiom ethereum-go-ethereum's ethclient/filter-log API
// uses for historical queries (FilterLogs over a block range,
// BlockNumber for the tip).
package evmchain

import (
	"context"
	"math/big"
	"time"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

// RawLog is what the underlying JSON-RPC client would hand back for
// one HTLC contract log. The concrete RPC wire format is out of
// scope per spec §1; this is the seam a real implementation (backed
// by go-ethereum's ethclient.Client) would fill in.
type RawLog struct {
	Kind       RawLogKind
	BlockNum   uint64
	TxHash     string
	LogIndex   uint64
	OrderID    string
	ContractID []byte
	Amount     *big.Int
	Asset      domain.AssetKey
	Hashlock   [32]byte
	Timelock   time.Time
	Preimage   [32]byte
	Revealer   string
}

// RawLogKind discriminates the kinds of on-chain events the
// transport can report.
type RawLogKind string

const (
	RawEscrowCreated  RawLogKind = "created"
	RawEscrowClaimed  RawLogKind = "claimed"
	RawEscrowRefunded RawLogKind = "refunded"
)

// Transport is the injectable seam for the actual EVM JSON-RPC calls
// (eth_blockNumber, eth_getLogs, eth_sendRawTransaction,
// eth_getTransactionReceipt in a production build).
type Transport interface {
	Connect(ctx context.Context) error
	BlockNumber(ctx context.Context) (uint64, error)
	// LogsInRange returns every HTLC contract log with block number in
	// (fromExclusive, toInclusive], ascending by (block, log index),
	// implementing the gap-fill query from spec §4.1.
	LogsInRange(ctx context.Context, fromExclusive, toInclusive uint64) ([]RawLog, error)

	SubmitCreateEscrow(ctx context.Context, p chain.CreateEscrowParams) (txHash string, err error)
	SubmitClaimEscrow(ctx context.Context, contractID []byte, preimage [32]byte) (txHash string, err error)
	SubmitRefundEscrow(ctx context.Context, contractID []byte) (txHash string, err error)
	GetEscrowState(ctx context.Context, contractID []byte) (chain.EscrowState, error)
}
