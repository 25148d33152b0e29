// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/rpc/client"
	"github.com/pingpongsneak/bamboo/safeguard"
	"github.com/pingpongsneak/bamboo/version"
	"github.com/pingpongsneak/bamboo/wallet"
)

func init() {
	// Format nested errors without newlines (better for logs).
	errors.Separator = ":: "
}

var cfg *config

func main() {
	// Create a context that is cancelled when a shutdown request is
	// received through an interrupt signal.
	ctx := withShutdownCancel(context.Background())
	go shutdownListener()

	// Run the wallet until permanent failure or shutdown is requested.
	if err := run(ctx); err != nil && err != context.Canceled {
		os.Exit(1)
	}
}

// run is the main startup and teardown logic performed by the main package.
// It is responsible for parsing the config, dialing the node, starting the
// safeguard feed, and waiting for shutdown.
func run(ctx context.Context) error {
	var err error
	cfg, _, err = loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	defer logRotator.Close()
	setLogLevels(cfg.DebugLevel)

	log.Infof("Version %s (Go version %s %s/%s)", version.String(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	log.Infof("Network: %s", activeNet.Name)

	var node wallet.NodeClient
	if cfg.NodeSealed {
		pk, _ := hex.DecodeString(cfg.NodePublicKey)
		sealed, err := client.DialSealed(cfg.NodeServer, pk)
		if err != nil {
			fatalf("cannot dial sealed node transport: %v", err)
		}
		defer sealed.Close()
		node = sealed
	} else {
		node = client.New("http://" + cfg.NodeServer)
	}

	dataDir := filepath.Join(cfg.AppDataDir, activeNet.Name)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fatalf("cannot create data directory: %v", err)
	}

	feed := safeguard.NewFeed()
	go feed.Run(ctx, time.Minute, node.Safeguard)

	w := wallet.New(&wallet.Config{
		DataDir: dataDir,
		Net:     activeNet,
		Node:    node,
		Decoys:  feed,
	})

	info, err := w.WaitForNode(ctx)
	if err != nil {
		return err
	}
	log.Infof("Connected to node %s (version %s, height %d)",
		info.Name, info.Version, info.BlockHeight)

	if cfg.WalletListen != "" {
		log.Warnf("Wallet API bind address %s configured, but this build "+
			"does not serve the HTTP surface", cfg.WalletListen)
	}

	<-ctx.Done()
	log.Info("Shutdown complete")
	return ctx.Err()
}
