package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cbodonnell/gravwell/client/network"
	"github.com/cbodonnell/gravwell/client/render"
	"github.com/cbodonnell/gravwell/pkg/api"
	gametypes "github.com/cbodonnell/gravwell/pkg/game/types"
	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/queue"
	"github.com/cbodonnell/gravwell/pkg/repositories"
	"github.com/cbodonnell/gravwell/pkg/state"
	"github.com/cbodonnell/gravwell/pkg/version"
	"github.com/cbodonnell/gravwell/pkg/workers"
	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	logLevel := flag.String("log-level", "info", "Log level")
	serverHost := flag.String("server-host", network.DefaultServerHostname, "Game server hostname")
	wsPort := flag.Int("ws-port", network.DefaultServerWSPort, "Game server WebSocket port")
	udpPort := flag.Int("udp-port", network.DefaultServerUDPPort, "Game server UDP port (0 to disable)")
	debugPort := flag.Int("debug-port", 9090, "Debug API port (0 to disable)")
	saveInterval := flag.Duration("save-interval", workers.DefaultSaveInterval, "How often to check for a finished match to save")
	queueSize := flag.Int("queue-size", queue.DefaultQueueSize, "Server message queue capacity")
	debug := flag.Bool("debug", false, "Show the debug overlay")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel).WithComponent("client")
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting client version %s", version.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	databaseURL := os.Getenv("GRAVWELL_DATABASE_URL")
	if databaseURL == "" {
		databaseURL = repositories.DefaultDatabaseURL
	}
	repository, err := repositories.Open(ctx, databaseURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to open repository: %v", err))
	}
	defer repository.Close(context.Background())

	gameState := state.NewSharedGameState()
	log.Info("Tracking match %s", gameState.MatchID())

	serverMessageQueue := queue.NewInMemoryQueue(*queueSize)
	var udpAddr string
	if *udpPort > 0 {
		udpAddr = net.JoinHostPort(*serverHost, strconv.Itoa(*udpPort))
	}
	networkManager, err := network.NewNetworkManager(network.NewNetworkManagerOptions{
		WSURL:        fmt.Sprintf("ws://%s/ws", net.JoinHostPort(*serverHost, strconv.Itoa(*wsPort))),
		UDPAddr:      udpAddr,
		MessageQueue: serverMessageQueue,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create network manager: %v", err))
	}
	if err := networkManager.Start(ctx); err != nil {
		panic(fmt.Sprintf("Failed to start network manager: %v", err))
	}

	workerWaitGroup := &sync.WaitGroup{}
	finishedMatches := make(chan *gametypes.GameState, 4)

	serverMessageWorker := workers.NewServerMessageWorker(workers.NewServerMessageWorkerOptions{
		ServerMessageQueue: serverMessageQueue,
		GameState:          gameState,
		FinishedMatches:    finishedMatches,
	})
	workerWaitGroup.Add(1)
	go func() {
		defer workerWaitGroup.Done()
		serverMessageWorker.Start(ctx)
	}()

	saveMatchWorker := workers.NewSaveMatchWorker(workers.NewSaveMatchWorkerOptions{
		Repository:      repository,
		GameState:       gameState,
		FinishedMatches: finishedMatches,
		Interval:        *saveInterval,
	})
	workerWaitGroup.Add(1)
	go func() {
		defer workerWaitGroup.Done()
		saveMatchWorker.Start(ctx)
	}()

	var apiServer *api.APIServer
	if *debugPort > 0 {
		apiServer = api.NewAPIServer(api.NewAPIServerOptions{
			Port:       *debugPort,
			GameState:  gameState,
			Repository: repository,
		})
		go apiServer.Start()
	}

	game, err := render.NewGame(render.NewGameOptions{
		Debug:     *debug,
		GameState: gameState,
		Network:   networkManager,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create game: %v", err))
	}

	ebiten.SetWindowSize(render.DefaultScreenWidth, render.DefaultScreenHeight)
	ebiten.SetWindowTitle("Gravwell")
	if err := ebiten.RunGame(game); err != nil && err != ebiten.Termination {
		log.Error("Failed to run game: %v", err)
	}

	log.Info("Shutting down")
	if err := networkManager.Stop(); err != nil {
		log.Error("Failed to stop network manager: %v", err)
	}
	cancel()
	workerWaitGroup.Wait()

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop API server: %v", err)
		}
	}
}
