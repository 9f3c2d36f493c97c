package command

import (
	"strconv"
	"strings"

	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/AlexNa-Holdings/kobonest/position"
	"github.com/mattn/go-runewidth"
)

var activity_subcommands = []string{"copy"}

func NewActivityCommand() *Command {
	return &Command{
		Command:      "activity",
		ShortCommand: "a",
		Subcommands:  activity_subcommands,
		Usage: `
Usage: activity [COMMAND]

List deposits of the current account, most recent first.

COMMANDS:
  (no command)  - list deposits
  copy N        - copy the transaction hash of deposit N to the clipboard
`,
		Help:    `Deposit history`,
		Process: Activity_Process,
	}
}

func Activity_Process(cmd *Command, input string) {
	p := cmn.SplitN(input, 3)
	subcommand, param := p[1], p[2]

	snap := env.Position.Snapshot()
	if snap == nil || snap.Account == nil {
		PrintErrorf("no account\n")
		return
	}

	switch subcommand {
	case "":
		printActivity(snap)
	case "copy":
		n, err := strconv.Atoi(param)
		if err != nil || n < 1 || n > len(snap.Deposits) {
			PrintErrorf("Usage: activity copy N (1..%d)\n", len(snap.Deposits))
			return
		}
		hash := snap.Deposits[n-1].TxHash.Hex()
		if err := env.Copy(hash); err != nil {
			PrintErrorf("copy failed: %v\n", err)
			return
		}
		Printf("Copied: %s\n", hash)
	default:
		PrintErrorf("Unknown subcommand: %s\n", subcommand)
	}
}

func printActivity(s *position.Snapshot) {
	if len(s.Deposits) == 0 {
		if s.Sync.Loading {
			Printf("Loading history...\n")
		} else {
			Printf("No deposits yet.\n")
		}
		return
	}

	rows := [][]string{{"#", "Block", "Amount", "Transaction"}}
	for i, d := range s.Deposits {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatUint(d.Block, 10),
			cmn.FormatAmount(d.Amount, s.Decimals) + " " + s.Symbol,
			cmn.ShortHash(d.TxHash.Hex()),
		})
	}

	Printf("%s", renderTable(rows))
}

// renderTable left-aligns columns by display width.
func renderTable(rows [][]string) string {
	var widths []int
	for _, r := range rows {
		for i, c := range r {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	for _, r := range rows {
		for i, c := range r {
			if i == len(r)-1 {
				sb.WriteString(c)
				break
			}
			sb.WriteString(runewidth.FillRight(c, widths[i]+2))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
