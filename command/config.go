package command

import (
	"strings"

	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/rs/zerolog"
)

func NewConfigCommand() *Command {
	return &Command{
		Command:      "config",
		ShortCommand: "cfg",
		Subcommands:  []string{"set"},
		Usage: `
Usage: config [COMMAND]

Show the configuration. Contract addresses and the RPC endpoint are read at
start from config.yaml and KOBONEST_* environment variables.

COMMANDS:
  (no command)          - show current configuration
  set verbosity LEVEL   - set log level (trace/debug/info/warn/error)
`,
		Help:    `Application configuration`,
		Process: Config_Process,
	}
}

func Config_Process(cmd *Command, input string) {
	tokens := strings.Fields(input)

	if len(tokens) < 2 {
		showConfig()
		return
	}

	switch tokens[1] {
	case "set":
		if len(tokens) < 4 || tokens[2] != "verbosity" {
			PrintErrorf("Usage: config set verbosity LEVEL\n")
			return
		}
		level, err := zerolog.ParseLevel(tokens[3])
		if err != nil || level == zerolog.NoLevel {
			PrintErrorf("invalid level: %s\n", tokens[3])
			return
		}
		env.Config.Verbosity = tokens[3]
		zerolog.SetGlobalLevel(level)
		cmn.ConfigChanged = true
		if err := cmn.SaveConfig(); err != nil {
			PrintErrorf("saving config: %v\n", err)
			return
		}
		Printf("verbosity: %s\n", tokens[3])
	default:
		PrintErrorf("Unknown subcommand: %s\n", tokens[1])
	}
}

func showConfig() {
	c := env.Config
	pool := "Aave"
	if c.UseMockAave {
		pool = "simulated Aave"
	}

	Printf("\nCurrent configuration:\n\n")
	Printf("  %-20s %s\n", "verbosity:", c.Verbosity)
	Printf("  %-20s %s\n", "rpc_url:", c.RPCURL)
	if env.RPC != nil {
		mode := "fixed"
		if c.RPCRateLimit <= 0 {
			mode = "auto"
		}
		Printf("  %-20s %d/s (%s)\n", "rpc_rate_limit:", env.RPC.RateLimit(), mode)
	}
	if env.Head != nil {
		Printf("  %-20s %d\n", "head_block:", env.Head.Last())
	}
	Printf("  %-20s %d\n", "target_chain_id:", c.TargetChainID)
	Printf("  %-20s %s\n", "vault_address:", orUnset(c.VaultAddress))
	Printf("  %-20s %s\n", "naira_token_address:", orUnset(c.NairaTokenAddress))
	Printf("  %-20s %s\n", "usdc_token_address:", orUnset(c.UsdcTokenAddress))
	Printf("  %-20s %s\n", "aave_pool_address:", orUnset(c.AavePoolAddress))
	Printf("  %-20s %s\n", "pool:", pool)
	Printf("  %-20s %d\n", "naira_per_usdc:", c.NairaPerUsdc)
	Printf("  %-20s %d\n", "vault_deploy_block:", c.VaultDeployBlock)
	Printf("\n")

	if !c.Contracts().Ready() {
		Printf("%s\n", cmn.NOT_READY_WARNING)
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
