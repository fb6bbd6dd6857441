package main

import (
	"context"
	"log"
	"time"

	"github.com/polyglot-chat/polyglot-server/internal/config"
	"github.com/polyglot-chat/polyglot-server/internal/db"
	"github.com/polyglot-chat/polyglot-server/internal/httpapi"
	"github.com/polyglot-chat/polyglot-server/internal/store/rabbitmq"
	"github.com/polyglot-chat/polyglot-server/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rds.Ping(ctx); err != nil {
		log.Printf("redis ping failed: %v", err)
	}
	cancel()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit connect: %v", err)
	}
	defer pub.Close()

	r := httpapi.NewRouter(gdb, cfg, rds, pub)

	log.Printf("server listening on %s", cfg.ServerAddr)
	if err := r.Run(cfg.ServerAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
