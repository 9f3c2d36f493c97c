package position

import (
	"math/big"

	"github.com/AlexNa-Holdings/kobonest/eth"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

// ActivityKey identifies an event occurrence across repeated fetches.
type ActivityKey struct {
	TxHash common.Hash
	Block  uint64
}

// DepositActivity is one FundsReceived event of the user, in deposit-token units.
type DepositActivity struct {
	Amount *big.Int
	TxHash common.Hash
	Block  uint64
}

func (d DepositActivity) Key() ActivityKey { return ActivityKey{TxHash: d.TxHash, Block: d.Block} }

// SupplyActivity is one FundsSupplied event of the user, in settlement-token units.
type SupplyActivity struct {
	Amount *big.Int
	TxHash common.Hash
	Block  uint64
}

func (s SupplyActivity) Key() ActivityKey { return ActivityKey{TxHash: s.TxHash, Block: s.Block} }

// ReduceDeposits decodes FundsReceived logs, most recent first. Entries that
// do not decode are dropped.
func ReduceDeposits(logs []types.Log) []DepositActivity {
	event := eth.VAULT.Events[eth.EVENT_FUNDS_RECEIVED]

	res := make([]DepositActivity, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		amount, ok := decodeAmount(event, "nairaAmount", &logs[i])
		if !ok {
			continue
		}
		res = append(res, DepositActivity{Amount: amount, TxHash: logs[i].TxHash, Block: logs[i].BlockNumber})
	}
	return res
}

// ReduceSupplies decodes FundsSupplied logs in fetch order.
func ReduceSupplies(logs []types.Log) []SupplyActivity {
	event := eth.VAULT.Events[eth.EVENT_FUNDS_SUPPLIED]

	res := make([]SupplyActivity, 0, len(logs))
	for i := range logs {
		amount, ok := decodeAmount(event, "usdcAmount", &logs[i])
		if !ok {
			continue
		}
		res = append(res, SupplyActivity{Amount: amount, TxHash: logs[i].TxHash, Block: logs[i].BlockNumber})
	}
	return res
}

func decodeAmount(event abi.Event, field string, lg *types.Log) (*big.Int, bool) {
	if lg.Removed || len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
		log.Debug().Str("tx", lg.TxHash.Hex()).Msgf("skipping %s log with unexpected shape", event.Name)
		return nil, false
	}

	fields := make(map[string]interface{})
	if err := event.Inputs.NonIndexed().UnpackIntoMap(fields, lg.Data); err != nil {
		log.Debug().Err(err).Str("tx", lg.TxHash.Hex()).Msgf("skipping undecodable %s log", event.Name)
		return nil, false
	}

	amount, ok := fields[field].(*big.Int)
	if !ok || amount == nil {
		return nil, false
	}
	return amount, true
}

// Activity is the de-duplicated set of deposit and supply records of one
// account. Deposits are kept most recent first, supplies in chain order.
type Activity struct {
	deposits     []DepositActivity
	supplies     []SupplyActivity
	seenDeposits map[ActivityKey]struct{}
	seenSupplies map[ActivityKey]struct{}
}

func NewActivity() *Activity {
	return &Activity{
		seenDeposits: make(map[ActivityKey]struct{}),
		seenSupplies: make(map[ActivityKey]struct{}),
	}
}

// Merge folds a newer batch into the set and returns how many records were
// new. Merging the same batch again changes nothing.
func (a *Activity) Merge(deposits []DepositActivity, supplies []SupplyActivity) int {
	fresh := make([]DepositActivity, 0, len(deposits))
	for _, d := range deposits {
		if _, ok := a.seenDeposits[d.Key()]; ok {
			continue
		}
		a.seenDeposits[d.Key()] = struct{}{}
		fresh = append(fresh, d)
	}
	a.deposits = append(fresh, a.deposits...)

	added := len(fresh)
	for _, s := range supplies {
		if _, ok := a.seenSupplies[s.Key()]; ok {
			continue
		}
		a.seenSupplies[s.Key()] = struct{}{}
		a.supplies = append(a.supplies, s)
		added++
	}
	return added
}

func (a *Activity) Deposits() []DepositActivity {
	return append([]DepositActivity(nil), a.deposits...)
}

func (a *Activity) Supplies() []SupplyActivity {
	return append([]SupplyActivity(nil), a.supplies...)
}

func (a *Activity) TotalDeposited() *big.Int {
	return SumDeposits(a.deposits)
}

func (a *Activity) TotalSupplied() *big.Int {
	return SumSupplies(a.supplies)
}

func SumDeposits(deposits []DepositActivity) *big.Int {
	total := new(big.Int)
	for _, d := range deposits {
		total.Add(total, d.Amount)
	}
	return total
}

func SumSupplies(supplies []SupplyActivity) *big.Int {
	total := new(big.Int)
	for _, s := range supplies {
		total.Add(total, s.Amount)
	}
	return total
}
