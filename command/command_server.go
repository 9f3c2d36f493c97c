package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/AlexNa-Holdings/kobonest/eth"
	"github.com/AlexNa-Holdings/kobonest/position"
	"github.com/AlexNa-Holdings/kobonest/session"
	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
)

type CommandProcessFunc func(*Command, string)

type Command struct {
	Command      string
	ShortCommand string
	Subcommands  []string
	Usage        string
	Help         string
	Process      CommandProcessFunc
}

type PositionSource interface {
	Snapshot() *position.Snapshot
}

type Depositor interface {
	Deposit(ctx context.Context, input string) error
	Status() bus.B_DepositStatus
}

type SignerHolder interface {
	SetSigner(s eth.TxSigner)
	Signer() eth.TxSigner
}

type RPCStatus interface {
	RateLimit() int
}

type HeadSource interface {
	Last() uint64
}

// Env is what the commands act on.
type Env struct {
	Ctx      context.Context
	Out      io.Writer
	Config   *cmn.SConfig
	Position PositionSource
	Deposit  Depositor
	Session  *session.Session
	Signers  SignerHolder
	RPC      RPCStatus          // optional
	Head     HeadSource         // optional
	Copy     func(string) error // clipboard
}

var Commands []*Command

var env *Env

func Init(e *Env) {
	if e.Out == nil {
		e.Out = os.Stdout
	}
	if e.Ctx == nil {
		e.Ctx = context.Background()
	}
	if e.Copy == nil {
		e.Copy = clipboard.WriteAll
	}
	env = e

	Commands = []*Command{
		NewHelpCommand(),
		NewPositionCommand(),
		NewActivityCommand(),
		NewDepositCommand(),
		NewWatchCommand(),
		NewSignerCommand(),
		NewDisconnectCommand(),
		NewConfigCommand(),
	}
}

func Process(input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	command := strings.Fields(input)[0]
	log.Trace().Msgf("Processing command: %s", command)

	for _, cmd := range Commands {
		if cmd.Command == command || cmd.ShortCommand == command {
			cmd.Process(cmd, input)
			return
		}
	}

	PrintErrorf("Unknown command: %s\n", command)
}

// AutoComplete returns the commands matching the first word of input.
func AutoComplete(input string) []string {
	p := cmn.SplitN(input, 2)
	command := p[0]

	var options []string
	for _, cmd := range Commands {
		if cmn.Contains(cmd.Command, command) || (cmd.ShortCommand != "" && cmn.Contains(cmd.ShortCommand, command)) {
			options = append(options, cmd.Command)
		}
	}
	return options
}

// Loop prints deposit progress as it is published. Failures are reported by
// the deposit command itself.
func Loop(ctx context.Context, b *bus.Bus) {
	ch := b.Subscribe("deposit")
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if msg.Type != "status" {
				continue
			}
			if st, ok := msg.Data.(*bus.B_DepositStatus); ok && st.Error == "" && st.Status != "" {
				Printf("%s\n", st.Status)
			}
		}
	}
}

func Printf(format string, a ...any) {
	fmt.Fprintf(env.Out, format, a...)
}

func PrintErrorf(format string, a ...any) {
	fmt.Fprintf(env.Out, "Error: "+format, a...)
}
