package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/AlexNa-Holdings/kobonest/command"
	"github.com/AlexNa-Holdings/kobonest/deposit"
	"github.com/AlexNa-Holdings/kobonest/eth"
	"github.com/AlexNa-Holdings/kobonest/position"
	"github.com/AlexNa-Holdings/kobonest/session"
	"github.com/AlexNa-Holdings/kobonest/ws"
	"github.com/rs/zerolog/log"
)

const KOBONEST = `
 _  __     _           _   _           _
| |/ /___ | |__   ___ | \ | | ___  ___| |_
| ' // _ \| '_ \ / _ \|  \| |/ _ \/ __| __|
| . \ (_) | |_) | (_) | |\  |  __/\__ \ |_
|_|\_\___/|_.__/ \___/|_| \_|\___||___/\__|`

const DIAL_TIMEOUT = 30 * time.Second

func main() {
	cmn.InitConfig()
	cfg := cmn.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(KOBONEST)
	fmt.Printf("v%s  log: %s\n\n", cmn.VERSION, cmn.LogPath)

	bus.Init()
	b := bus.Default()

	dialCtx, cancel := context.WithTimeout(ctx, DIAL_TIMEOUT)
	client, err := eth.Dial(dialCtx, cfg.RPCURL, cfg.TargetChainID, cfg.RPCRateLimit)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("RPC unavailable")
		fmt.Fprintf(os.Stderr, "Cannot use %s: %v\n", cfg.RPCURL, err)
		os.Exit(1)
	}

	vault := eth.NewVault(client, cfg.Contracts())
	sess := session.New(b, cfg.TargetChainID)

	svc := position.NewService(cfg, vault, b)
	go svc.Loop(ctx)

	watcher := eth.NewWatcher(client, cfg.TargetChainID, cfg.PollEvery(), b)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("block watcher stopped")
		}
	}()

	submitter := deposit.NewSubmitter(cfg, vault, sess, b)

	if cfg.WSEnabled {
		srv := ws.NewServer(cfg, b, svc, submitter)
		go srv.Loop(ctx)
		go srv.Start(ctx)
	}

	command.Init(&command.Env{
		Ctx:      ctx,
		Out:      os.Stdout,
		Config:   cfg,
		Position: svc,
		Deposit:  submitter,
		Session:  sess,
		Signers:  vault,
		RPC:      client,
		Head:     watcher,
	})
	go command.Loop(ctx, b)

	if !cfg.Contracts().Ready() {
		fmt.Println(cmn.NOT_READY_WARNING)
	}
	fmt.Println("Type 'help' for commands.")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			shutdown()
			return
		case line, ok := <-lines:
			if !ok {
				shutdown()
				return
			}
			if line == "exit" || line == "quit" {
				shutdown()
				return
			}
			command.Process(line)
		}
	}
}

func shutdown() {
	if err := cmn.SaveConfig(); err != nil {
		log.Error().Err(err).Msg("error saving config")
	}
	log.Info().Msg("Bye")
}
