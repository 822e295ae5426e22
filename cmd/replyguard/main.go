// Copyright 2026 The replyguard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command replyguard runs the reply guard as a standalone development
// harness. Lines read from stdin are treated as outgoing bot replies
// and fed through the pipeline against an in-memory host, which makes
// it easy to exercise keyword switching, reverts and error blocking
// without a live chat platform.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/replyguard/internal/api"
	"github.com/traylinx/replyguard/internal/buildinfo"
	"github.com/traylinx/replyguard/internal/config"
	"github.com/traylinx/replyguard/internal/guard"
	"github.com/traylinx/replyguard/internal/logging"
	"github.com/traylinx/replyguard/internal/platform"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("replyguard %s (commit %s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	_ = godotenv.Load()

	store, err := config.NewStore(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replyguard: %v\n", err)
		os.Exit(1)
	}
	cfg := store.Current()

	logging.SetupBaseLogger()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, ""); err != nil {
		log.Errorf("Failed to configure log output: %v", err)
	}

	if err := store.StartWatcher(); err != nil {
		log.Warnf("Config hot reload unavailable: %v", err)
	}
	defer store.StopWatcher()

	host := newDevHost()
	g := guard.New(store, guard.Deps{
		Registry:      host.registry,
		Conversations: host.conversations,
		Transport:     host.transport,
		Host:          host,
	})
	defer g.Shutdown()

	var statusSrv *api.Server
	if cfg.StatusPort > 0 {
		statusSrv = api.NewServer(store, g)
		statusSrv.Start(cfg.StatusPort)
	}

	log.Infof("replyguard %s started (config %s)", buildinfo.Version, *configPath)

	go runStdinLoop(g, host)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if statusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		statusSrv.Shutdown(ctx)
	}
	log.Info("replyguard stopped")
}

// runStdinLoop feeds each typed line through the guard as an outgoing
// reply and prints what happened to it.
func runStdinLoop(g *guard.Guard, host *devHost) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type an outgoing bot reply per line (Ctrl-D to stop input):")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ev := &platform.Event{
			SessionKey:  "dev:console",
			Platform:    "console",
			SenderID:    "1000",
			SenderName:  "dev",
			MessageText: line,
		}
		ev.SetResult(&platform.Result{Text: line})

		g.OnDecoratingResult(context.Background(), ev)

		switch {
		case ev.Stopped() && ev.Result() == nil:
			fmt.Println("-> blocked")
		case ev.Stopped():
			fmt.Printf("-> replaced: %s\n", ev.Result().PlainText())
		default:
			fmt.Printf("-> delivered: %s\n", ev.Result().PlainText())
		}
		fmt.Printf("   provider: %s\n", host.registry.currentID("dev:console"))
	}
}
