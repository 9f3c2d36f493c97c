package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

var ErrTxReverted = errors.New("transaction reverted")
var ErrNoSigner = errors.New("no signer")

var ReceiptPollInterval = 2 * time.Second

type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// BuildTx prepares an EIP-1559 transaction with an estimated gas limit and a
// fee cap of twice base fee plus tip.
func (c *Client) BuildTx(ctx context.Context, from common.Address, to common.Address,
	amount *big.Int, data []byte) (*types.Transaction, error) {

	var nonce uint64
	err := c.do(ctx, func() (err error) {
		nonce, err = c.rpc.PendingNonceAt(ctx, from)
		return
	})
	if err != nil {
		log.Error().Msgf("BuildTx: Cannot get nonce. Error:(%v)", err)
		return nil, err
	}

	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Gas:   0, // Set to 0 for gas estimation
		Value: amount,
		Data:  data,
	}

	var gasLimit uint64
	err = c.do(ctx, func() (err error) {
		gasLimit, err = c.rpc.EstimateGas(ctx, msg)
		return
	})
	if err != nil {
		log.Error().Msgf("BuildTx: Cannot estimate gas. Error:(%v)", err)
		return nil, err
	}

	var priorityFee *big.Int
	err = c.do(ctx, func() (err error) {
		priorityFee, err = c.rpc.SuggestGasTipCap(ctx)
		return
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to suggest gas tip cap")
		return nil, err
	}

	var header *types.Header
	err = c.do(ctx, func() (err error) {
		header, err = c.rpc.HeaderByNumber(ctx, nil) // latest
		return
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to get the latest header")
		return nil, err
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	maxFeePerGas := new(big.Int).Add(baseFee, priorityFee)
	maxFeePerGas.Mul(maxFeePerGas, big.NewInt(2))

	if amount == nil {
		amount = big.NewInt(0)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(c.ChainID),
		Nonce:     nonce,
		To:        &to,
		Value:     amount,
		Gas:       gasLimit,
		GasFeeCap: maxFeePerGas,
		GasTipCap: priorityFee,
		Data:      data,
	}), nil
}

// Transact builds, signs and broadcasts a contract call from s.
func (c *Client) Transact(ctx context.Context, s TxSigner, to common.Address, data []byte) (common.Hash, error) {
	if s == nil {
		return common.Hash{}, ErrNoSigner
	}

	tx, err := c.BuildTx(ctx, s.Address(), to, nil, data)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := s.SignTx(tx, new(big.Int).SetUint64(c.ChainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("error signing transaction: %w", err)
	}

	err = c.do(ctx, func() error {
		return c.rpc.SendTransaction(ctx, signed)
	})
	if err != nil {
		log.Error().Err(err).Msg("SendTransaction failed")
		return common.Hash{}, err
	}

	log.Info().Str("hash", signed.Hash().Hex()).Str("to", to.Hex()).Msg("Transaction sent")
	return signed.Hash(), nil
}

// WaitForReceipt polls until the transaction is mined. Only ctx bounds the wait.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(ReceiptPollInterval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := c.do(ctx, func() (err error) {
			receipt, err = c.rpc.TransactionReceipt(ctx, hash)
			return
		})

		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", ErrTxReverted, hash.Hex())
			}
			log.Debug().Str("hash", hash.Hex()).Uint64("block", receipt.BlockNumber.Uint64()).Msg("Transaction confirmed")
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			// pending
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
