package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/wordclash-services/configs"
	"github.com/avvvet/wordclash-services/internal/archive"
	"github.com/avvvet/wordclash-services/internal/comm"
	mongodb "github.com/avvvet/wordclash-services/internal/db"
	gamecfg "github.com/avvvet/wordclash-services/internal/gamesvc/config"
	"github.com/avvvet/wordclash-services/internal/gamesvc/db"
	"github.com/avvvet/wordclash-services/internal/gamesvc/store"
	natscli "github.com/avvvet/wordclash-services/internal/nats"
)

const SERVICE_NAME = "archive"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME, instanceId)
}

func main() {
	cfg := gamecfg.Load()

	// pg connection
	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	mdb, err := mongodb.ConnectToDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mdb.Client().Disconnect(context.Background())
	log.Printf("mongodb connection established successfully")

	sink := archive.NewMongoSink(mdb.Collection(archive.Collection))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sink.EnsureIndexes(ctx); err != nil {
		log.Warnf("archive indexes: %s", err)
	}
	cancel()

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	a := archive.NewArchiver(store.NewPgStore(dbpool), sink, cfg.ArchiveRetention)
	sub, err := a.QueueSubscribe(n.Conn, comm.TopicGameEvents, "archive")
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}
	log.Infof("%s service listening on %s", SERVICE_NAME, comm.TopicGameEvents)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
