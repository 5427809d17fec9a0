package main

import (
	"context"
	"flag"

	"github.com/civicline/civicline-relay/config"
	"github.com/civicline/civicline-relay/relay"
	"github.com/civicline/civicline-relay/server"
	"github.com/civicline/civicline-relay/sms"
	"github.com/civicline/civicline-relay/storage"
	"github.com/civicline/civicline-relay/verification"
)

func main() {
	var cfgFile string
	flag.StringVar(&cfgFile, "config", "config.json", "config file")
	flag.Parse()

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		panic(err)
	}

	registry := relay.NewRegistry(cfg.Session.TTL())
	hub := relay.NewHub()

	var recorder relay.Recorder
	if cfg.RedisServer.Addr != "" {
		redisRecorder, err := storage.NewRedisRecorder(cfg.RedisServer)
		if err != nil {
			panic(err)
		}
		defer func() {
			_ = redisRecorder.Close()
		}()
		recorder = redisRecorder
	}

	smsClient := sms.NewClient(cfg.SMSGateway)
	verifier := verification.NewStore(smsClient, cfg.Verification.CodeTTL(), cfg.Verification.DispatchTimeout())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.StartJanitor(ctx, cfg.Session.SweepInterval(), func(expired []string) {
		for _, id := range expired {
			hub.DropGroup(id)
			if recorder != nil {
				_ = recorder.RecordTermination(ctx, id)
			}
		}
	})

	s := server.NewServer(cfg.Port, server.Deps{
		Registry:    registry,
		Hub:         hub,
		Broadcaster: relay.NewBroadcaster(registry, hub, recorder),
		Signaler:    relay.NewSignaler(registry, hub),
		Verifier:    verifier,
		Announcer:   smsClient,
		Recorder:    recorder,
	})
	if err := s.StartServer(); err != nil {
		panic(err)
	}
}
