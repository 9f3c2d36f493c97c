package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sync"

	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrNotConfigured = errors.New("contract address not configured")

// Vault is the typed view of the vault, its tokens and the lending pool.
type Vault struct {
	client    *Client
	contracts cmn.Contracts

	mu     sync.Mutex
	signer TxSigner
}

func NewVault(client *Client, contracts cmn.Contracts) *Vault {
	return &Vault{client: client, contracts: contracts}
}

func (v *Vault) SetSigner(s TxSigner) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.signer = s
}

func (v *Vault) Signer() TxSigner {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.signer
}

func (v *Vault) BlockNumber(ctx context.Context) (uint64, error) {
	return v.client.BlockNumber(ctx)
}

func (v *Vault) GetLogs(ctx context.Context, address common.Address, eventID common.Hash, user common.Address, from, to uint64) ([]types.Log, error) {
	return v.client.GetLogs(ctx, address, eventID, user, from, to)
}

func (v *Vault) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	out, err := v.client.Call(ctx, token, &ERC20, "symbol")
	if err != nil {
		return "", err
	}
	return asType[string](out, 0)
}

func (v *Vault) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := v.client.Call(ctx, token, &ERC20, "decimals")
	if err != nil {
		return 0, err
	}
	return asType[uint8](out, 0)
}

func (v *Vault) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := v.client.Call(ctx, token, &ERC20, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asType[*big.Int](out, 0)
}

func (v *Vault) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := v.client.Call(ctx, token, &ERC20, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asType[*big.Int](out, 0)
}

// PendingNaira is the deposit-token amount received by the vault but not yet
// converted and supplied.
func (v *Vault) PendingNaira(ctx context.Context, user common.Address) (*big.Int, error) {
	if v.contracts.Vault == nil {
		return nil, ErrNotConfigured
	}
	out, err := v.client.Call(ctx, *v.contracts.Vault, &VAULT, "pendingNaira", user)
	if err != nil {
		return nil, err
	}
	return asType[*big.Int](out, 0)
}

// ReserveData returns the current liquidity rate (ray) and the pool token of asset.
func (v *Vault) ReserveData(ctx context.Context, asset common.Address) (*big.Int, common.Address, error) {
	if v.contracts.AavePool == nil {
		return nil, common.Address{}, ErrNotConfigured
	}
	out, err := v.client.Call(ctx, *v.contracts.AavePool, &AAVE_POOL, "getReserveData", asset)
	if err != nil {
		return nil, common.Address{}, err
	}
	return decodeReserveData(out)
}

func decodeReserveData(out []interface{}) (*big.Int, common.Address, error) {
	if len(out) != 1 {
		return nil, common.Address{}, fmt.Errorf("getReserveData: unexpected output count %d", len(out))
	}
	s := reflect.ValueOf(out[0])
	if s.Kind() != reflect.Struct {
		return nil, common.Address{}, fmt.Errorf("getReserveData: unexpected output %T", out[0])
	}

	rate, ok := s.FieldByName(abi.ToCamelCase("currentLiquidityRate")).Interface().(*big.Int)
	if !ok {
		return nil, common.Address{}, errors.New("getReserveData: bad currentLiquidityRate")
	}
	aToken, ok := s.FieldByName(abi.ToCamelCase("aTokenAddress")).Interface().(common.Address)
	if !ok {
		return nil, common.Address{}, errors.New("getReserveData: bad aTokenAddress")
	}
	return rate, aToken, nil
}

// MockPosition returns principal and current balance of user in the simulated pool.
func (v *Vault) MockPosition(ctx context.Context, asset, user common.Address) (*big.Int, *big.Int, error) {
	if v.contracts.AavePool == nil {
		return nil, nil, ErrNotConfigured
	}
	out, err := v.client.Call(ctx, *v.contracts.AavePool, &MOCK_AAVE_POOL, "getPosition", asset, user)
	if err != nil {
		return nil, nil, err
	}
	principal, err := asType[*big.Int](out, 0)
	if err != nil {
		return nil, nil, err
	}
	balance, err := asType[*big.Int](out, 1)
	if err != nil {
		return nil, nil, err
	}
	return principal, balance, nil
}

func (v *Vault) MockAprBps(ctx context.Context) (*big.Int, error) {
	if v.contracts.AavePool == nil {
		return nil, ErrNotConfigured
	}
	out, err := v.client.Call(ctx, *v.contracts.AavePool, &MOCK_AAVE_POOL, "getMockAprBps")
	if err != nil {
		return nil, err
	}
	return asType[*big.Int](out, 0)
}

func (v *Vault) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := ERC20.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, err
	}
	return v.client.Transact(ctx, v.Signer(), token, data)
}

func (v *Vault) Deposit(ctx context.Context, amount *big.Int) (common.Hash, error) {
	if v.contracts.Vault == nil {
		return common.Hash{}, ErrNotConfigured
	}
	data, err := VAULT.Pack("deposit", amount)
	if err != nil {
		return common.Hash{}, err
	}
	return v.client.Transact(ctx, v.Signer(), *v.contracts.Vault, data)
}

func (v *Vault) WaitForReceipt(ctx context.Context, hash common.Hash) error {
	_, err := v.client.WaitForReceipt(ctx, hash)
	return err
}

func asType[T any](out []interface{}, i int) (T, error) {
	var zero T
	if i >= len(out) {
		return zero, fmt.Errorf("missing output %d", i)
	}
	v, ok := out[i].(T)
	if !ok {
		return zero, fmt.Errorf("unexpected output type %T", out[i])
	}
	return v, nil
}
