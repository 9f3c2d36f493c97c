package command

import (
	"path/filepath"

	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/AlexNa-Holdings/kobonest/signer"
)

var signer_subcommands = []string{"create", "restore", "open"}

func NewSignerCommand() *Command {
	return &Command{
		Command:      "signer",
		ShortCommand: "s",
		Subcommands:  signer_subcommands,
		Usage: `
Usage: signer COMMAND PASSWORD ['MNEMONIC']

Manage the local mnemonic signer. The keystore is encrypted with PASSWORD.

Commands:
  create  - Create a new signer and print its recovery phrase
  restore - Restore a signer from a recovery phrase
  open    - Open the existing signer

EXAMPLES:
		signer create 'my password'
		signer restore 'my password' 'word1 word2 ... word24'
		`,
		Help:    `Manage the signer`,
		Process: Signer_Process,
	}
}

func keystorePath() string {
	if filepath.IsAbs(env.Config.Keystore) {
		return env.Config.Keystore
	}
	return filepath.Join(cmn.DataFolder, env.Config.Keystore)
}

func Signer_Process(cmd *Command, input string) {
	p := cmn.SplitN(input, 4)
	subcommand, pass, phrase := p[1], p[2], p[3]

	if !cmn.IsInArray(signer_subcommands, subcommand) {
		PrintErrorf("Usage: signer create|restore|open PASSWORD\n")
		return
	}
	if pass == "" {
		PrintErrorf("password required\n")
		return
	}

	file := keystorePath()

	var k *signer.Keystore
	switch subcommand {
	case "create", "restore":
		if signer.KeystoreExists(file) {
			PrintErrorf("keystore already exists: %s\n", file)
			return
		}

		var entropy string
		var err error
		if subcommand == "create" {
			entropy, err = signer.NewEntropy()
		} else {
			entropy, err = signer.EntropyFromPhrase(phrase)
		}
		if err != nil {
			PrintErrorf("%v\n", err)
			return
		}

		k = &signer.Keystore{Entropy: entropy, Path: env.Config.DerivationPath}
		if err := signer.SaveKeystore(k, file, pass); err != nil {
			PrintErrorf("saving keystore: %v\n", err)
			return
		}

		if subcommand == "create" {
			words, _ := signer.PhraseFromEntropy(entropy)
			Printf("\nWrite down your recovery phrase:\n\n  %s\n\n", words)
		}
	case "open":
		var err error
		k, err = signer.OpenKeystore(file, pass)
		if err != nil {
			PrintErrorf("%v\n", err)
			return
		}
	}

	m, err := k.Signer()
	if err != nil {
		PrintErrorf("%v\n", err)
		return
	}

	env.Signers.SetSigner(m)
	env.Session.SetAccount(m.Address())
	Printf("Signer open: %s\n", m.Address().Hex())
}
