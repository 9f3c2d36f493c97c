package position

import (
	"time"

	"github.com/AlexNa-Holdings/kobonest/cmn"
)

// View is the rendered form of a Snapshot. Amounts are decimal strings in
// token units, Display variants are grouped for humans.
type View struct {
	Ready   bool   `json:"ready"`
	Account string `json:"account,omitempty"`
	Mock    bool   `json:"mock"`
	Symbol  string `json:"symbol"`

	TotalDeposited    string  `json:"totalDeposited"`
	Principal         string  `json:"principal"`
	CurrentBalance    string  `json:"currentBalance"`
	Yield             string  `json:"yield"`
	PrincipalDisplay  string  `json:"principalDisplay"`
	YieldDisplay      string  `json:"yieldDisplay"`
	PendingConversion string  `json:"pendingConversion"`
	TotalBalance      string  `json:"totalBalance"`
	AprPercent        float64 `json:"aprPercent"`

	LastSyncedBlock         *uint64 `json:"lastSyncedBlock"`
	HasCompletedInitialSync bool    `json:"hasCompletedInitialSync"`
	Loading                 bool    `json:"loading"`

	UpdatedAt time.Time `json:"updatedAt"`
}

type ActivityView struct {
	Amount string `json:"amount"`
	TxHash string `json:"txHash"`
	Block  uint64 `json:"block"`
}

func (s *Snapshot) View() View {
	d := s.Decimals
	v := View{
		Ready:  s.Ready,
		Mock:   s.Mock,
		Symbol: s.Symbol,

		TotalDeposited:    cmn.FormatUnits(s.TotalDeposited, d),
		Principal:         cmn.FormatUnits(s.Principal, d),
		CurrentBalance:    cmn.FormatUnits(s.CurrentBalance, d),
		Yield:             cmn.FormatUnits(s.Yield, d),
		PrincipalDisplay:  cmn.FormatAmount(s.PrincipalDisplay, d),
		YieldDisplay:      cmn.FormatAmount(s.YieldDisplay, d),
		PendingConversion: cmn.FormatAmount(s.PendingConversion, d),
		TotalBalance:      cmn.FormatAmount(s.TotalBalance, d),
		AprPercent:        s.AprPercent,

		LastSyncedBlock:         s.Sync.LastSyncedBlock,
		HasCompletedInitialSync: s.Sync.HasCompletedInitialSync,
		Loading:                 s.Sync.Loading,
		UpdatedAt:               s.UpdatedAt,
	}
	if s.Account != nil {
		v.Account = s.Account.Hex()
	}
	return v
}

// ActivityViews lists deposits most recent first.
func (s *Snapshot) ActivityViews() []ActivityView {
	res := make([]ActivityView, 0, len(s.Deposits))
	for _, d := range s.Deposits {
		res = append(res, ActivityView{
			Amount: cmn.FormatUnits(d.Amount, s.Decimals),
			TxHash: d.TxHash.Hex(),
			Block:  d.Block,
		})
	}
	return res
}
