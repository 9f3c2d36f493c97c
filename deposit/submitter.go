package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

const DEFAULT_DECIMALS = 18

const (
	STATUS_APPROVE       = "Approve NAIRA spending in your wallet..."
	STATUS_APPROVAL_SENT = "Approval submitted: %s... confirming."
	STATUS_CONFIRM       = "Confirm deposit transaction in wallet..."
	STATUS_DEPOSIT_SENT  = "Deposit submitted: %s... waiting for confirmation."
	STATUS_DEPOSIT_DONE  = "Deposit confirmed successfully."
	STATUS_TX_FAILED     = "Transaction failed."
)

var (
	ErrInvalidAmount       = errors.New("enter an amount greater than zero")
	ErrNotReady            = errors.New(cmn.NOT_READY_WARNING)
	ErrNotConnected        = errors.New("connect a wallet first")
	ErrWrongNetwork        = errors.New("switch to the target network")
	ErrInsufficientBalance = errors.New("insufficient NAIRA balance")
	ErrBusy                = errors.New("a deposit is already in progress")
)

type Backend interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	Deposit(ctx context.Context, amount *big.Int) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) error
}

type AccountSource interface {
	Account() *common.Address
	ChainID() uint64
}

// Submitter runs the approve-then-deposit flow for the session account. One
// deposit runs at a time; every status change goes out on deposit/status.
type Submitter struct {
	cfg       *cmn.SConfig
	contracts cmn.Contracts
	backend   Backend
	session   AccountSource
	bus       *bus.Bus

	mu        sync.Mutex
	busy      bool
	status    string
	lastHash  string
	lastError string
	allowance *big.Int
	balance   *big.Int
}

func NewSubmitter(cfg *cmn.SConfig, backend Backend, session AccountSource, b *bus.Bus) *Submitter {
	return &Submitter{
		cfg:       cfg,
		contracts: cfg.Contracts(),
		backend:   backend,
		session:   session,
		bus:       b,
	}
}

func (s *Submitter) Status() bus.B_DepositStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status_locked()
}

func (s *Submitter) status_locked() bus.B_DepositStatus {
	return bus.B_DepositStatus{
		Status: s.status,
		Busy:   s.busy,
		Hash:   s.lastHash,
		Error:  s.lastError,
	}
}

// Allowance and Balance return the values read during the last deposit, nil
// before the first one.
func (s *Submitter) Allowance() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowance
}

func (s *Submitter) Balance() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Submitter) Deposit(ctx context.Context, input string) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.lastError = ""
	s.mu.Unlock()

	err := s.run(ctx, input)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.status = err.Error()
		s.lastError = err.Error()
	}
	st := s.status_locked()
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("amount", input).Msg("Deposit failed")
	}
	s.bus.Send("deposit", "status", &st)
	return err
}

func (s *Submitter) run(ctx context.Context, input string) error {
	if !s.contracts.Ready() {
		return ErrNotReady
	}
	account := s.session.Account()
	if account == nil {
		return ErrNotConnected
	}
	if s.session.ChainID() != s.cfg.TargetChainID {
		return ErrWrongNetwork
	}

	token := *s.contracts.NairaToken
	vault := *s.contracts.Vault

	decimals := DEFAULT_DECIMALS
	if d, err := s.backend.TokenDecimals(ctx, token); err == nil {
		decimals = int(d)
	} else {
		log.Debug().Err(err).Msgf("decimals unavailable, using %d", DEFAULT_DECIMALS)
	}

	amount, err := cmn.ParseUnits(input, decimals)
	if err != nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	balance, err := s.backend.BalanceOf(ctx, token, *account)
	if err != nil {
		return err
	}
	s.remember(nil, balance)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	allowance, err := s.backend.Allowance(ctx, token, *account, vault)
	if err != nil {
		return err
	}
	s.remember(allowance, nil)

	if allowance.Cmp(amount) < 0 {
		s.setStatus(STATUS_APPROVE, "")
		hash, err := s.backend.Approve(ctx, token, vault, amount)
		if err != nil {
			return txError(err)
		}
		s.setStatus(fmt.Sprintf(STATUS_APPROVAL_SENT, cmn.HashPrefix(hash.Hex())), hash.Hex())
		if err := s.backend.WaitForReceipt(ctx, hash); err != nil {
			return txError(err)
		}
		s.refresh(ctx, token, *account, vault, false)
	}

	s.setStatus(STATUS_CONFIRM, "")
	hash, err := s.backend.Deposit(ctx, amount)
	if err != nil {
		return txError(err)
	}
	s.setStatus(fmt.Sprintf(STATUS_DEPOSIT_SENT, cmn.HashPrefix(hash.Hex())), hash.Hex())
	if err := s.backend.WaitForReceipt(ctx, hash); err != nil {
		return txError(err)
	}
	s.refresh(ctx, token, *account, vault, true)

	log.Info().Str("amount", input).Str("hash", hash.Hex()).Msg("Deposit confirmed")
	s.setStatus(STATUS_DEPOSIT_DONE, "")
	return nil
}

func txError(err error) error {
	if err.Error() == "" {
		return errors.New(STATUS_TX_FAILED)
	}
	return err
}

func (s *Submitter) setStatus(status, hash string) {
	s.mu.Lock()
	s.status = status
	if hash != "" {
		s.lastHash = hash
	}
	st := s.status_locked()
	s.mu.Unlock()

	log.Debug().Msg(status)
	s.bus.Send("deposit", "status", &st)
}

func (s *Submitter) remember(allowance, balance *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if allowance != nil {
		s.allowance = allowance
	}
	if balance != nil {
		s.balance = balance
	}
}

// refresh re-reads allowance and optionally balance after a confirmed tx.
// Read failures are logged and keep the previous value.
func (s *Submitter) refresh(ctx context.Context, token, owner, vault common.Address, withBalance bool) {
	if a, err := s.backend.Allowance(ctx, token, owner, vault); err == nil {
		s.remember(a, nil)
	} else {
		log.Warn().Err(err).Msg("allowance refresh failed")
	}
	if !withBalance {
		return
	}
	if b, err := s.backend.BalanceOf(ctx, token, owner); err == nil {
		s.remember(nil, b)
	} else {
		log.Warn().Err(err).Msg("balance refresh failed")
	}
}
