package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.io/infrasutra/chainmail/internal/api"
	"github.io/infrasutra/chainmail/internal/auth"
	"github.io/infrasutra/chainmail/internal/config"
	"github.io/infrasutra/chainmail/internal/gateway"
	"github.io/infrasutra/chainmail/internal/logger"
	"github.io/infrasutra/chainmail/internal/smtpserver"
	"github.io/infrasutra/chainmail/internal/sse"
	"github.io/infrasutra/chainmail/internal/store"
	"github.io/infrasutra/chainmail/internal/wallet"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("migrate database", "error", err)
		os.Exit(1)
	}
	if cfg.DBPath == "" {
		log.Info("transaction journal kept in memory; set DB_PATH to persist it")
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		log.Error("dial rpc", "url", cfg.RPCURL, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	chainID := wallet.ChainIDFunc(client.ChainID)
	if cfg.ChainID > 0 {
		chainID = wallet.FixedChainID(cfg.ChainID)
	}
	provider, err := wallet.Detect(cfg.WalletPrivateKey, cfg.WalletKeystoreDir, cfg.WalletKeystorePassphrase, chainID)
	if err != nil {
		log.Error("load wallet", "error", err)
		os.Exit(1)
	}
	wallets := wallet.NewManager(provider, log)
	if !wallets.Detected() {
		log.Warn("no wallet configured; connect is disabled", "hint", "set WALLET_PRIVATE_KEY or WALLET_KEYSTORE_DIR")
	}
	if !cfg.DemoMode {
		log.Warn("DEMO_MODE is off; sending is disabled")
	}

	authManager, err := auth.New(cfg.AuthSecret, cfg.SessionTTL)
	if err != nil {
		log.Error("init auth", "error", err)
		os.Exit(1)
	}
	if cfg.AuthSecret == "" {
		log.Warn("AUTH_SECRET not set; sessions reset on restart")
	}

	hub := sse.NewHub()
	connector := gateway.NewWalletConnector(wallets, client, cfg.ContractAddress,
		gateway.WithDemoMode(cfg.DemoMode),
		gateway.WithJournal(db),
		gateway.WithNotifier(hub),
		gateway.WithLogger(log),
	)

	apiServer, err := api.NewServer(cfg, connector, db, authManager, hub, log)
	if err != nil {
		log.Error("init http server", "error", err)
		os.Exit(1)
	}
	go apiServer.ExpireSessions(ctx, 10*time.Minute)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var smtpSrv *smtpserver.Server
	if cfg.SMTPRelayEnabled {
		relay, err := connector.Connect(ctx, "")
		if err != nil {
			log.Warn("smtp relay disabled", "error", err)
		} else {
			smtpAuthCfg := smtpserver.AuthConfig{
				Enabled:  cfg.SMTPAuthEnabled,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
			}
			if !smtpAuthCfg.Enabled {
				log.Warn("smtp auth disabled; relay accepts unauthenticated connections")
			}
			smtpAddr := fmt.Sprintf(":%d", cfg.SMTPPort)
			smtpSrv = smtpserver.New(relay, log, smtpAddr, cfg.SMTPDomain, smtpAuthCfg)
			log.Info("smtp relay sends as", "account", relay.Account(), "domain", cfg.SMTPDomain)
			go func() {
				if err := smtpSrv.ListenAndServe(); err != nil {
					log.Error("smtp relay stopped", "error", err)
				}
			}()
		}
	}

	go func() {
		log.Info("http server listening", "addr", httpAddr, "base_path", cfg.BasePath)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown http", "error", err)
	}
	if smtpSrv != nil {
		if err := smtpSrv.Close(); err != nil {
			log.Error("shutdown smtp", "error", err)
		}
	}
}
