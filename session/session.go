package session

import (
	"sync"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// Session tracks the active account and the chain it is connected to.
// Every change is published on session/account-changed.
type Session struct {
	mu      sync.Mutex
	account *common.Address
	chainID uint64
	bus     *bus.Bus
}

func New(b *bus.Bus, chainID uint64) *Session {
	return &Session{bus: b, chainID: chainID}
}

func (s *Session) Account() *common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil
	}
	a := *s.account
	return &a
}

func (s *Session) ChainID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID
}

func (s *Session) SetAccount(a common.Address) {
	s.set(&a, s.ChainID())
}

func (s *Session) SetChain(chainID uint64) {
	s.set(s.Account(), chainID)
}

func (s *Session) Clear() {
	s.set(nil, s.ChainID())
}

func (s *Session) set(a *common.Address, chainID uint64) {
	s.mu.Lock()
	same := chainID == s.chainID &&
		((a == nil && s.account == nil) || (a != nil && s.account != nil && *a == *s.account))
	s.account = a
	s.chainID = chainID
	s.mu.Unlock()

	if same {
		return
	}

	if a != nil {
		log.Info().Str("account", a.Hex()).Uint64("chainId", chainID).Msg("Session account set")
	} else {
		log.Info().Msg("Session cleared")
	}
	s.bus.Send("session", "account-changed", &bus.B_SessionAccount{Account: a, ChainID: chainID})
}
