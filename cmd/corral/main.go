// Package main: corral backend service.
//
// The service relays unsigned contract calls through a transaction-execution engine, assembles and signs swap
// payloads for pooled positions, and keeps the off-chain chat state of the groups in PostgreSQL.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/corralhq/corral/lib/chain"
	"github.com/corralhq/corral/lib/config"
	"github.com/corralhq/corral/lib/engine"
	"github.com/corralhq/corral/lib/payload"
	"github.com/corralhq/corral/lib/store/postgres"
	"github.com/corralhq/corral/lib/swap"
	"github.com/corralhq/corral/lib/wallet"
	"github.com/corralhq/corral/server"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100")
	flag.Parse()

	// .env overrides are picked up by ExtractConfiguration through the CRL_ variables
	_ = godotenv.Load()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log := newLogger(conf)
	log.WithField("config", conf.RestfulEndpoint+":"+conf.Port).Info("Configuration loaded")

	// connect to database
	db, err := postgres.New(conf.DbConn)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err = db.Migrate(ctx); err != nil {
		cancel()
		panic(err)
	}

	cancel()
	log.WithField("dbconn", conf.DbConn).Info("Connected to database")

	// connect to the blockchain node for on-chain reads
	reader, err := chain.Dial(conf.Node, common.HexToAddress(conf.Corral))
	if err != nil {
		panic(err)
	}

	log.WithField("node", conf.Node).Info("Blockchain client loaded")

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Info("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			_ = http.ListenAndServe(":9100", h)
		}()
	}

	// external service clients
	eng := engine.New(conf.EngineURL, conf.EngineToken, conf.EngineWallet)
	quote := swap.New(conf.QuoteURL, conf.QuoteAPIKey, conf.ChainID)
	prov := wallet.New(conf.WalletURL, conf.WalletAppID, conf.WalletAppSecret)
	builder := payload.New(reader, eng, common.HexToAddress(conf.Corral), conf.ChainID,
		time.Duration(conf.BuyDeadline)*time.Second, time.Duration(conf.ExitDeadline)*time.Second)

	// create the service
	s := server.New(conf, db, eng, quote, reader, builder, prov, log)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan

		log.Info("Shutting down the service")
		s.Stop()
		reader.Close()

		if err := db.ClosePostgres(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()

	// start serving the RESTful API, blocking until shutdown
	log.Info(s.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))
}

// newLogger builds the service logger from the configured level and format.
func newLogger(conf config.ServiceConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	log.SetLevel(level)

	if conf.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}
