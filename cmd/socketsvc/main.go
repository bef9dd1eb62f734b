package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/avvvet/wordclash-services/internal/nats"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/wordclash-services/configs"

	"github.com/avvvet/wordclash-services/internal/comm"
	gamecfg "github.com/avvvet/wordclash-services/internal/gamesvc/config"
	"github.com/avvvet/wordclash-services/internal/socketsvc/broker"
	"github.com/avvvet/wordclash-services/internal/socketsvc/routes"
	"github.com/avvvet/wordclash-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME, instanceId)
}

func main() {
	cfg := gamecfg.Load()

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Initialize websocket handler
	s := ws.NewWs()

	// Initialize routes
	routes.SetRoutes(r, s, cfg.JWTSecret, cfg.SocketPort)

	// Initialize broker, replies go to one socket and events to a session room
	b := broker.NewBroker(n.Conn, s.Send, s.GetRoomSockets)
	s.Broker = b // set broker reference for websocket handler logic

	subReplies, err := b.SubscribeReplies(comm.TopicGameService)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.TopicGameService, err)
		os.Exit(1)
	}
	subEvents, err := b.SubscribeEvents(comm.TopicGameEvents)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.TopicGameEvents, err)
		os.Exit(1)
	}

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.SocketPort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	subReplies.Unsubscribe()
	subEvents.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
