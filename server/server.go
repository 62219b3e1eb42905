// Package server implements the corral backend service.
//
// This service implements a RESTful API for a group-chat DeFi application: clients create groups whose on-chain
// spaces pool funds in a treasury, relay unsigned calls through a transaction-execution engine, and request signed
// swap payloads for entering and exiting pooled positions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/corralhq/corral/lib/chain"
	"github.com/corralhq/corral/lib/config"
	"github.com/corralhq/corral/lib/engine"
	"github.com/corralhq/corral/lib/payload"
	"github.com/corralhq/corral/lib/store"
	"github.com/corralhq/corral/lib/swap"
	"github.com/corralhq/corral/lib/wallet"
)

const timeout = 60

// Server contains the data necessary to deliver the service.
type Server struct {
	db      store.DB            // off-chain state
	eng     *engine.Engine      // transaction-execution engine client
	quote   *swap.Client        // swap-quote service client
	reader  chain.Reader        // on-chain reads
	builder *payload.Builder    // swap-intent assembly and signing
	prov    *wallet.Provisioner // phone-number wallet provisioning
	rooms   *hub                // websocket rooms, one per group
	log     *logrus.Logger

	chainID   uint64
	polls     int
	slippage  int
	corral    common.Address
	factory   common.Address
	baseToken common.Address

	s  *http.Server  // http server
	ss *http.Server  // https server
	sc chan struct{} // http server channel used for graceful shutdowns
}

// New returns a pointer to a new Server service.
func New(conf config.ServiceConfig, db store.DB, eng *engine.Engine, quote *swap.Client, reader chain.Reader,
	builder *payload.Builder, prov *wallet.Provisioner, log *logrus.Logger,
) *Server {
	return &Server{
		db:        db,
		eng:       eng,
		quote:     quote,
		reader:    reader,
		builder:   builder,
		prov:      prov,
		rooms:     newHub(log),
		log:       log,
		chainID:   conf.ChainID,
		polls:     conf.RelayPolls,
		slippage:  conf.SlippageBps,
		corral:    common.HexToAddress(conf.Corral),
		factory:   common.HexToAddress(conf.Factory),
		baseToken: common.HexToAddress(conf.BaseToken),
	}
}

// router builds the API definition.
func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metricsMiddleware)
	r.HandleFunc("/", s.homeHandler)
	r.HandleFunc("/relay", s.relayHandler).Methods("POST")            // relay a call on the default chain
	r.HandleFunc("/relay/chain", s.relayChainHandler).Methods("POST") // relay a call on an explicit chain
	r.HandleFunc("/quote", s.quoteHandler).Methods("GET")             // get a swap quote for a space treasury
	r.HandleFunc("/payload/buy", s.payloadBuyHandler).Methods("GET")  // signed payload to enter a position
	r.HandleFunc("/payload/exit", s.payloadExitHandler).Methods("GET") // signed payload to exit a position
	r.HandleFunc("/user", s.userCreateHandler).Methods("POST")
	r.HandleFunc("/user", s.userGetHandler).Methods("GET")
	r.HandleFunc("/group", s.groupCreateHandler).Methods("POST") // deploy, register and persist a space
	r.HandleFunc("/groups", s.groupListHandler).Methods("GET")
	r.HandleFunc("/groups/member/{userId}", s.groupsOfMemberHandler).Methods("GET")
	r.HandleFunc("/group/member", s.memberAddHandler).Methods("POST") // join a member on-chain and persist
	r.HandleFunc("/group/{id}", s.groupGetHandler).Methods("GET")
	r.HandleFunc("/group/{id}/members", s.membersHandler).Methods("GET") // on-chain member enumeration
	r.HandleFunc("/group/{id}/messages", s.messagesHandler).Methods("GET")
	r.HandleFunc("/message", s.messageAddHandler).Methods("POST")
	r.HandleFunc("/message/notify", s.messageNotifyHandler).Methods("POST")
	r.HandleFunc("/message/{id}", s.messageGetHandler).Methods("GET")
	r.HandleFunc("/wallet/phone", s.walletPhoneHandler).Methods("GET")
	r.HandleFunc("/ws/{groupId}", s.wsHandler) // websocket room of the group

	return r
}

// Init sets up and starts the http/https server to service the RESTful API. If sslPort, sslCert and sslKey are
// informed, it will start an https (TLS) server on the specified endpoint.
func (s *Server) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	r := s.router()

	// setup shutdown channel
	s.sc = make(chan struct{})

	// start http server
	if port != "" {
		s.s = &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + port,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = s.s.ListenAndServe()
		}()

		s.log.WithFields(logrus.Fields{"endpoint": endpoint, "port": port}).Info("Listening to API http requests")
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		s.ss = &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + sslPort,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			errTLS = s.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		s.log.WithFields(logrus.Fields{"endpoint": endpoint, "port": sslPort}).Info("Listening to API https requests")
	}
	// wait for servers to be shutdown
	<-s.sc

	return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
}

// Stop shuts down the http servers implementing the RESTful API and the websocket rooms.
func (s *Server) Stop() {
	if s.s != nil {
		if err := s.s.Shutdown(context.Background()); err != nil {
			s.log.WithError(err).Error("Error in http server shutdown")
		}
	}

	if s.ss != nil {
		if err := s.ss.Shutdown(context.Background()); err != nil {
			s.log.WithError(err).Error("Error in https server shutdown")
		}
	}

	s.rooms.closeAll()
	close(s.sc) // indicate shutdown has finished
}
