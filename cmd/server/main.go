package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbodonnell/gravwell/pkg/clients"
	"github.com/cbodonnell/gravwell/pkg/game"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/queue"
	"github.com/cbodonnell/gravwell/pkg/servers"
	"github.com/cbodonnell/gravwell/pkg/version"
	"github.com/cbodonnell/gravwell/pkg/workers"
)

// A local match server that plays a scripted match for clients to watch.
func main() {
	wsPort := flag.Int("ws-port", 8888, "WebSocket port to listen on")
	udpPort := flag.Int("udp-port", 8889, "UDP port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	players := flag.String("players", "you,alice,bob,carol", "Comma-separated player names. The first one is tracked for the outcome")
	planets := flag.Int("planets", 4, "Number of planets")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for the match")
	rematchDelay := flag.Duration("rematch-delay", 10*time.Second, "Time between the end of a match and the next countdown (0 plays one match)")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel).WithComponent("server")
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connectionEventQueue := queue.NewInMemoryQueue(1000)
	clientEventManager := clients.NewClientEventManager()
	clientEventManager.RegisterHandler(func(event clients.ClientEvent) {
		if err := connectionEventQueue.Enqueue(event); err != nil {
			log.Error("Failed to enqueue %s event for client %d: %v", event.Type, event.ClientID, err)
		}
	})
	clientManager := clients.NewClientManager(clientEventManager)

	wsServer := servers.NewWSServer(servers.NewWSServerOptions{
		ClientManager: clientManager,
		Port:          *wsPort,
	})
	go func() {
		if err := wsServer.Start(ctx); err != nil {
			log.Error("%v", err)
			cancel()
		}
	}()

	udpServer := servers.NewUDPServer(servers.NewUDPServerOptions{
		ClientManager: clientManager,
		Port:          *udpPort,
	})
	go func() {
		if err := udpServer.Start(ctx); err != nil {
			log.Error("UDP server error: %v", err)
			cancel()
		}
	}()

	broadcastMessageChan := make(chan workers.BroadcastMessage, 1024)
	broadcastMessageWorker := workers.NewBroadcastMessageWorker(workers.NewBroadcastMessageWorkerOptions{
		ClientManager:        clientManager,
		BroadcastMessageChan: broadcastMessageChan,
	})
	go broadcastMessageWorker.Start(ctx)

	gameLoopInterval := 50 * time.Millisecond // 20 TPS
	matchManager, err := game.NewMatchManager(game.NewMatchManagerOptions{
		BroadcastMessageChan: broadcastMessageChan,
		ConnectionEventQueue: connectionEventQueue,
		GameLoopInterval:     gameLoopInterval,
		Players:              strings.Split(*players, ","),
		Planets:              *planets,
		Seed:                 *seed,
		RematchDelay:         *rematchDelay,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create match manager: %v", err))
	}

	log.Info("Starting match manager")
	if err := matchManager.Start(ctx); err != nil {
		log.Error("Match manager error: %v", err)
	}
	log.Info("Server stopped")
}
