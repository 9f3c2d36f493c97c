package command

import (
	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/AlexNa-Holdings/kobonest/position"
)

const NAIRA_SIGN = "₦"

func NewPositionCommand() *Command {
	return &Command{
		Command:      "position",
		ShortCommand: "p",
		Usage: `
Usage: position

Show the savings position of the current account: total balance in naira,
principal and yield in the lending pool, pending conversion and APR.
`,
		Help:    `Show savings position`,
		Process: Position_Process,
	}
}

func Position_Process(cmd *Command, input string) {
	snap := env.Position.Snapshot()
	if snap == nil {
		PrintErrorf("position not available yet\n")
		return
	}

	if !env.Config.Contracts().Ready() {
		Printf("%s\n", cmn.NOT_READY_WARNING)
		return
	}

	if snap.Account == nil {
		Printf("No account. Use 'signer open' or 'watch ADDRESS'.\n")
		return
	}

	printPosition(snap)
}

func printPosition(s *position.Snapshot) {
	d := s.Decimals
	mode := "Aave"
	if s.Mock {
		mode = "simulated Aave"
	}

	Printf("\n")
	Printf("  %-18s %s\n", "Account:", s.Account.Hex())
	Printf("  %-18s %s%s\n", "Total balance:", NAIRA_SIGN, cmn.FormatAmount(s.TotalBalance, d))
	Printf("    %-16s %s%s\n", "Principal:", NAIRA_SIGN, cmn.FormatAmount(s.PrincipalDisplay, d))
	Printf("    %-16s %s%s\n", "Pending:", NAIRA_SIGN, cmn.FormatAmount(s.PendingConversion, d))
	Printf("    %-16s %s%s\n", "Yield:", NAIRA_SIGN, cmn.FormatAmount(s.YieldDisplay, d))
	Printf("  %-18s %s\n", "Pool:", mode)
	Printf("    %-16s %s\n", "Principal:", cmn.FormatUnits(s.Principal, d))
	Printf("    %-16s %s\n", "Balance:", cmn.FormatUnits(s.CurrentBalance, d))
	Printf("    %-16s %s\n", "APR:", cmn.FormatPercent(s.AprPercent))
	Printf("  %-18s %s %s\n", "Total deposited:", cmn.FormatAmount(s.TotalDeposited, d), s.Symbol)

	switch {
	case s.Sync.Loading:
		Printf("  %-18s %s\n", "Sync:", "loading history...")
	case s.Sync.LastSyncedBlock != nil:
		Printf("  %-18s block %d\n", "Sync:", *s.Sync.LastSyncedBlock)
	}
	Printf("\n")
}
