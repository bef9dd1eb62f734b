package main

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/wordclash-services/configs"
	"github.com/avvvet/wordclash-services/internal/gamesvc/app"
	gamecfg "github.com/avvvet/wordclash-services/internal/gamesvc/config"
	"github.com/avvvet/wordclash-services/internal/gamesvc/maintenance"
	natscli "github.com/avvvet/wordclash-services/internal/nats"
)

const SERVICE_NAME = "sweep"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME, instanceId)
}

func main() {
	cfg := gamecfg.Load()

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, app.EventPublisher(n.Conn))
	if err != nil {
		log.Fatalf("Failed to start game engine: %v", err)
	}
	defer a.Close()

	s := maintenance.NewSweeper(a.Engine, a.Timer, a.Mirror, a.Store, nil)

	// one pass right away, then on every tick
	if rep, err := s.Sweep(ctx); err != nil {
		log.Errorf("sweep: %s", err)
	} else {
		log.Infof("initial sweep: expired=%d penalized=%d cleared=%d orphans=%d",
			rep.Expired, rep.Penalized, rep.Cleared, rep.Orphans)
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx, cfg.SweepInterval)
		close(done)
	}()
	log.Infof("%s service running every %s", SERVICE_NAME, cfg.SweepInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	cancel()
	<-done
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
