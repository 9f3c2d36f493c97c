package bus

import (
	"github.com/ethereum/go-ethereum/common"
)

// ---------- eth ----------
type B_EthBlock struct { // block
	ChainID uint64
	Height  uint64
}

// ---------- session ----------
type B_SessionAccount struct { // account-changed
	Account *common.Address // nil when disconnected
	ChainID uint64
}

// ---------- position ----------
// updated: Data is *position.Snapshot

// ---------- deposit ----------
type B_DepositStatus struct { // status
	Status string
	Busy   bool
	Hash   string // last submitted tx
	Error  string
}
