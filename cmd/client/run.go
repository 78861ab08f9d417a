package main

import (
	"fmt"
	"io"

	"github.com/ZentaChain/zentalk-chat/pkg/config"
	"github.com/ZentaChain/zentalk-chat/pkg/crypto"
	"github.com/ZentaChain/zentalk-chat/pkg/history"
	"github.com/ZentaChain/zentalk-chat/pkg/log"
	"github.com/ZentaChain/zentalk-chat/pkg/network"
)

func runClient(opts options, in io.Reader, out io.Writer) error {
	src, err := config.LoadFile(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if opts.historyPath != "" {
		src.Set(config.KeyHistoryPath, opts.historyPath)
	}
	if opts.logFile != "" {
		src.Set(config.KeyLogFile, opts.logFile)
	}

	// Without a log file, only warnings would interleave with the shell
	logFile := src.String(config.KeyLogFile, "")
	level := "WARNING"
	if logFile != "" {
		level = src.String(config.KeyLogLevel, config.DefaultLogLevel)
	}
	backend, err := log.New(logFile, level, false)
	if err != nil {
		return err
	}
	defer backend.Close()
	src.SetLogger(backend.GetLogger("config"))

	keyHex, err := src.Require(config.KeyCryptoKey)
	if err != nil {
		return err
	}
	key, err := crypto.ParseKeyHex(keyHex)
	if err != nil {
		return err
	}

	pepper, err := crypto.ParseHex(src.String(config.KeyPasswordPepper, config.DefaultPepper))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", config.KeyPasswordPepper, err)
	}

	address := opts.server
	if address == "" {
		address = network.JoinHostPort(
			src.String(config.KeyClientHost, config.DefaultClientHost),
			src.Int(config.KeyClientPort, config.DefaultPort),
		)
	}

	var hist *history.Store
	if path := src.String(config.KeyHistoryPath, ""); path != "" {
		hist, err = history.Open(path)
		if err != nil {
			return err
		}
		defer hist.Close()
	}

	client, err := network.NewClient(network.ClientConfig{
		Address:           address,
		Key:               key,
		Pepper:            pepper,
		InitialAttempts:   src.Int(config.KeyInitialAttempts, config.DefaultInitialAttempts),
		ReconnectAttempts: src.Int(config.KeyReconnectAttempts, 0),
	}, backend)
	if err != nil {
		return err
	}
	defer client.Dispose()

	if hist != nil {
		client.AttachHistory(hist)
	}

	sh := newShell(client, hist, out)
	client.SetObserver(sh)

	fmt.Fprintf(out, "Connecting to %s ...\n", address)
	client.Start()

	return sh.run(in)
}
