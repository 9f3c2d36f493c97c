package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// RPC is the subset of ethclient.Client the package relies on.
type RPC interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

var ErrWrongChain = errors.New("rpc endpoint is on a different chain")

type Client struct {
	rpc     RPC
	URL     string
	ChainID uint64
	rl      *rateLimiter
}

// Dial connects to url and checks that it serves chainID.
func Dial(ctx context.Context, url string, chainID uint64, rateLimit int) (*Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Failed to connect to RPC")
		return nil, err
	}

	id, err := c.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if id.Uint64() != chainID {
		c.Close()
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongChain, id.Uint64(), chainID)
	}

	log.Info().Str("url", url).Uint64("chainId", chainID).Msg("Connected")
	return NewClient(c, url, chainID, rateLimit), nil
}

func NewClient(rpc RPC, url string, chainID uint64, rateLimit int) *Client {
	return &Client{
		rpc:     rpc,
		URL:     url,
		ChainID: chainID,
		rl:      newRateLimiter(chainID, rateLimit),
	}
}

func (c *Client) SupportsSubscriptions() bool {
	return strings.HasPrefix(c.URL, "ws://") || strings.HasPrefix(c.URL, "wss://")
}

func (c *Client) RateLimit() int {
	return c.rl.rate()
}

// do runs f under the rate limiter and records the outcome.
func (c *Client) do(ctx context.Context, f func() error) error {
	if err := c.rl.waitForToken(ctx); err != nil {
		return err
	}
	err := f()
	c.rl.handleRPCResult(err)
	return err
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.do(ctx, func() (err error) {
		n, err = c.rpc.BlockNumber(ctx)
		return
	})
	return n, err
}

func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return c.rpc.SubscribeNewHead(ctx, ch)
}

// GetLogs returns the logs of one event emitted by address whose first
// indexed argument equals user.
func (c *Client) GetLogs(ctx context.Context, address common.Address, eventID common.Hash, user common.Address, from, to uint64) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{eventID}, {common.BytesToHash(user.Bytes())}},
	}

	var logs []types.Log
	err := c.do(ctx, func() (err error) {
		logs, err = c.rpc.FilterLogs(ctx, q)
		return
	})
	if err != nil {
		log.Debug().Err(err).Uint64("from", from).Uint64("to", to).Msg("GetLogs failed")
		return nil, err
	}

	log.Trace().Msgf("GetLogs %s [%d,%d]: %d entries", eventID.Hex()[:10], from, to, len(logs))
	return logs, nil
}

// Call packs method with args, runs eth_call against the latest block and
// returns the unpacked outputs.
func (c *Client) Call(ctx context.Context, to common.Address, a *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var output []byte
	err = c.do(ctx, func() (err error) {
		output, err = c.rpc.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	res, err := a.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return res, nil
}
