package command

import (
	"github.com/AlexNa-Holdings/kobonest/cmn"
)

func NewDepositCommand() *Command {
	return &Command{
		Command:      "deposit",
		ShortCommand: "d",
		Usage: `
Usage: deposit AMOUNT

Deposit AMOUNT NAIRA into the treasury vault. Approves the vault first when
the current allowance is below AMOUNT. Needs an open signer.

EXAMPLES:
		deposit 25000
		deposit 1,250.50
`,
		Help:    `Deposit NAIRA into the vault`,
		Process: Deposit_Process,
	}
}

func Deposit_Process(cmd *Command, input string) {
	p := cmn.SplitN(input, 2)
	amount := p[1]
	if amount == "" {
		PrintErrorf("Usage: deposit AMOUNT\n")
		return
	}

	if env.Signers.Signer() == nil {
		PrintErrorf("no signer, use 'signer open' first\n")
		return
	}

	if err := env.Deposit.Deposit(env.Ctx, amount); err != nil {
		PrintErrorf("%v\n", err)
	}
}
