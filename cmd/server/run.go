package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/api"
	"github.com/ZentaChain/zentalk-chat/pkg/config"
	"github.com/ZentaChain/zentalk-chat/pkg/crypto"
	"github.com/ZentaChain/zentalk-chat/pkg/log"
	"github.com/ZentaChain/zentalk-chat/pkg/metrics"
	"github.com/ZentaChain/zentalk-chat/pkg/network"
	"github.com/ZentaChain/zentalk-chat/pkg/storage"
)

func (o options) apply(src *config.Source) {
	if o.listen != "" {
		src.Set(config.KeyServerListen, o.listen)
	}
	if o.apiListen != "" {
		src.Set(config.KeyAPIListen, o.apiListen)
	}
	if o.dbURL != "" {
		src.Set(config.KeyDBURL, o.dbURL)
	}
	if o.logLevel != "" {
		src.Set(config.KeyLogLevel, o.logLevel)
	}
}

func runServer(opts options) error {
	src, err := config.LoadFile(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	opts.apply(src)

	backend, err := log.New(src.String(config.KeyLogFile, ""), src.String(config.KeyLogLevel, config.DefaultLogLevel), false)
	if err != nil {
		return err
	}
	defer backend.Close()
	src.SetLogger(backend.GetLogger("config"))
	mainLog := backend.GetLogger("main")

	keyHex, err := src.Require(config.KeyCryptoKey)
	if err != nil {
		return err
	}
	key, err := crypto.ParseKeyHex(keyHex)
	if err != nil {
		return err
	}

	listen := src.String(config.KeyServerListen, "")
	if listen == "" {
		listen = network.JoinHostPort(
			src.String(config.KeyServerHost, config.DefaultServerHost),
			src.Int(config.KeyServerPort, config.DefaultPort),
		)
	}

	db, err := storage.Open(storage.Config{
		Driver:   src.String(config.KeyDBDriver, config.DefaultDBDriver),
		URL:      src.String(config.KeyDBURL, config.DefaultDBURL),
		User:     src.String(config.KeyDBUser, ""),
		Password: src.String(config.KeyDBPassword, ""),
	}, backend.GetLogger("storage"))
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()

	srv, err := network.NewServer(network.ServerConfig{
		Address:               listen,
		Key:                   key,
		MaxPendingConnections: src.Int(config.KeyMaxPendingConnections, config.DefaultMaxPendingConnections),
		AuthTimeout:           time.Duration(src.Int(config.KeyAuthTimeout, config.DefaultAuthTimeoutSeconds)) * time.Second,
	}, db, backend, m)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	var apiSrv *api.Server
	if apiListen := src.String(config.KeyAPIListen, ""); apiListen != "" {
		apiCfg := api.DefaultConfig()
		apiCfg.Listen = apiListen
		apiSrv = api.NewServer(apiCfg, srv, db, m, backend)
		if err := apiSrv.Start(); err != nil {
			return err
		}
	}

	printStatus(srv, db, apiSrv)

	haltCh := make(chan os.Signal, 1)
	signal.Notify(haltCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(haltCh)

	for sig := range haltCh {
		if sig == syscall.SIGHUP {
			if err := backend.Rotate(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to reopen log: %v\n", err)
			}
			continue
		}
		mainLog.Noticef("Received %v, shutting down", sig)
		break
	}

	if apiSrv != nil {
		if err := apiSrv.Stop(); err != nil {
			mainLog.Warningf("Admin API shutdown: %v", err)
		}
	}
	return nil
}

func printStatus(srv *network.Server, db *storage.DB, apiSrv *api.Server) {
	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("Zentalk Chat Server")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("   Listening: %s\n", srv.Addr())
	fmt.Printf("   Database: %s\n", db.Driver())
	if apiSrv != nil {
		fmt.Printf("   Admin API: http://%s/api/v1/stats\n", apiSrv.Addr())
	} else {
		fmt.Printf("   Admin API: disabled\n")
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()
}
