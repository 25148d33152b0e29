// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/netparams"
	"github.com/pingpongsneak/bamboo/version"
)

const (
	defaultConfigFilename = "bamboo.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "bamboo.log"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("bamboo", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

// activeNet is set by loadConfig and selects main or test network
// parameters.
var activeNet = &netparams.MainNetParams

type config struct {
	// General application behavior
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	AppDataDir  string `short:"A" long:"appdata" description:"Application data directory for wallet config, databases and logs"`
	TestNet     bool   `long:"testnet" description:"Use the test network"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogDir      string `long:"logdir" description:"Directory to log output."`

	// Wallet API
	WalletListen string `long:"walletlisten" description:"Bind address of the wallet API"`

	// Remote node
	NodeServer    string `long:"noderpcserver" description:"Address of the bamboo node HTTP endpoint"`
	NodePublicKey string `long:"nodepublickey" description:"Hex-encoded public key of the node, required for the sealed transport"`
	NodeSealed    bool   `long:"nodesealed" description:"Use the encrypted NNG transport instead of plain HTTP"`
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", homeDir, 1)
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, []string, error) {
	const op errors.Op = "main.loadConfig"

	cfg := config{
		ConfigFile: defaultConfigFile,
		AppDataDir: defaultAppDataDir,
		DebugLevel: defaultLogLevel,
		LogDir:     defaultLogDir,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, errors.E(op, errors.Config, err)
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := cleanAndExpandPath(preCfg.ConfigFile)
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, nil, errors.E(op, errors.Config, err)
		}
		// Missing config file is fine when the default path was used.
		if preCfg.ConfigFile != defaultConfigFile {
			return nil, nil, errors.E(op, errors.Config, err)
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, errors.E(op, errors.Config, err)
	}

	if cfg.TestNet {
		activeNet = &netparams.TestNetParams
	}

	cfg.AppDataDir = cleanAndExpandPath(cfg.AppDataDir)
	if cfg.LogDir == defaultLogDir {
		cfg.LogDir = filepath.Join(cfg.AppDataDir, defaultLogDirname, activeNet.Name)
	} else {
		cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	}

	if cfg.NodeServer == "" {
		return nil, nil, errors.E(op, errors.Config, "a node RPC server address is required")
	}
	cfg.NodeServer = normalizeAddress(cfg.NodeServer, activeNet.DefaultNodePort)

	if cfg.WalletListen != "" {
		cfg.WalletListen = normalizeAddress(cfg.WalletListen, activeNet.DefaultWalletPort)
	}

	if cfg.NodeSealed {
		pk, err := hex.DecodeString(cfg.NodePublicKey)
		if err != nil || len(pk) != 33 {
			return nil, nil, errors.E(op, errors.Config,
				"the sealed transport requires a 33-byte hex node public key")
		}
	}

	return &cfg, remainingArgs, nil
}
