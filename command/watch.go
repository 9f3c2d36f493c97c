package command

import (
	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/ethereum/go-ethereum/common"
)

func NewWatchCommand() *Command {
	return &Command{
		Command:      "watch",
		ShortCommand: "w",
		Usage: `
Usage: watch ADDRESS

Track the position of ADDRESS without a signer. Deposits are disabled.
`,
		Help:    `Watch an address read-only`,
		Process: Watch_Process,
	}
}

func Watch_Process(cmd *Command, input string) {
	p := cmn.SplitN(input, 2)
	if !common.IsHexAddress(p[1]) {
		PrintErrorf("invalid address: %s\n", p[1])
		return
	}

	a := common.HexToAddress(p[1])
	env.Signers.SetSigner(nil)
	env.Session.SetAccount(a)
	Printf("Watching %s\n", a.Hex())
}

func NewDisconnectCommand() *Command {
	return &Command{
		Command: "disconnect",
		Usage: `
Usage: disconnect

Forget the current account and close the signer.
`,
		Help:    `Disconnect the current account`,
		Process: Disconnect_Process,
	}
}

func Disconnect_Process(cmd *Command, input string) {
	env.Signers.SetSigner(nil)
	env.Session.Clear()
	Printf("Disconnected\n")
}
