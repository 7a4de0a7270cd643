package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/lorenzolrom/dvmconsole/pkg/audio"
	"github.com/lorenzolrom/dvmconsole/pkg/config"
	"github.com/lorenzolrom/dvmconsole/pkg/crypto"
	"github.com/lorenzolrom/dvmconsole/pkg/dispatch"
	"github.com/lorenzolrom/dvmconsole/pkg/events"
	"github.com/lorenzolrom/dvmconsole/pkg/history"
	"github.com/lorenzolrom/dvmconsole/pkg/logger"
	"github.com/lorenzolrom/dvmconsole/pkg/network"
	"github.com/lorenzolrom/dvmconsole/pkg/vocoder"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// levelSink is the default audio sink: it meters decoded audio per
// talkgroup for the console level display
type levelSink struct {
	log *logger.Logger
}

func (s *levelSink) PushDecodedAudio(talkgroupID uint32, pcm []byte) {
	peak := audio.Peak(audio.BytesToSamples(pcm))
	s.log.Debug("decoded audio",
		logger.Uint32("talkgroup_id", talkgroupID),
		logger.Int("peak", peak))
}

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("DVM Console %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load configuration first so logging honors the configured level
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// Validate only mode
	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	log.Info("Starting DVM Console",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.String("config_file", *configFile))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	// Load key material
	keys := crypto.NewKeyStore()
	for _, entry := range cfg.Keys {
		material, err := entry.KeyBytes()
		if err != nil {
			log.Error("Failed to decode key", logger.Error(err))
			os.Exit(1)
		}
		keys.Add(entry.AlgID, entry.KeyID, material)
	}
	if keys.Len() > 0 {
		log.Info("Key material loaded", logger.Int("keys", keys.Len()))
	}

	// Initialize call history store if enabled
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.NewStore(history.Config{Path: cfg.History.Path}, log)
		if err != nil {
			log.Error("Failed to open call history", logger.Error(err))
			os.Exit(1)
		}
		defer store.Close()
	}

	// Start the websocket event feed if enabled
	var hub *events.Hub
	if cfg.Events.Enabled {
		hub = events.NewHub(log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Run(ctx)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hub.Serve(ctx, cfg.Events.Host, cfg.Events.Port); err != nil && err != context.Canceled {
				log.Error("Event feed server error", logger.Error(err))
			}
		}()
		log.Info("Event feed started",
			logger.String("host", cfg.Events.Host),
			logger.Int("port", cfg.Events.Port))
	}

	manager := dispatch.NewManager(log, hub, store)
	sink := &levelSink{log: log.WithComponent("audio")}

	// Bring up each configured channel
	var peers []network.Peer
	for _, chCfg := range cfg.Channels {
		sys, ok := cfg.Systems[chCfg.System]
		if !ok || !sys.Enabled {
			log.Warn("Skipping channel, system disabled or missing",
				logger.String("channel", chCfg.Name),
				logger.String("system", chCfg.System))
			continue
		}

		mode := vocoder.ModeIMBE
		if strings.EqualFold(sys.Mode, "DMR") {
			mode = vocoder.ModeAMBE
		}
		codec, err := vocoder.New(sys.Vocoder, mode, sys.VocoderAddress)
		if err != nil {
			log.Error("Failed to create vocoder backend",
				logger.String("channel", chCfg.Name),
				logger.Error(err))
			os.Exit(1)
		}

		address := fmt.Sprintf("%s:%d", sys.Address, sys.Port)
		peer, err := network.NewUDPPeer(address, sys.PeerID, log)
		if err != nil {
			log.Error("Failed to connect system",
				logger.String("channel", chCfg.Name),
				logger.String("address", address),
				logger.Error(err))
			os.Exit(1)
		}
		peers = append(peers, peer)

		ch := dispatch.NewChannel(chCfg.Name, sys, peer, codec, crypto.NewEngine(keys), sink, log)
		manager.Add(ch)

		if err := peer.Start(ctx); err != nil {
			log.Error("Failed to start peer", logger.Error(err))
			os.Exit(1)
		}

		wg.Add(1)
		go func(p network.Peer) {
			defer wg.Done()
			manager.Run(ctx, p.Events())
		}(peer)

		log.Info("Channel up",
			logger.String("channel", chCfg.Name),
			logger.String("system", chCfg.System),
			logger.String("mode", sys.Mode),
			logger.String("address", address),
			logger.Uint32("talkgroup_id", sys.TalkgroupID))
	}

	// Call timeout supervisor
	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.RunSupervisor(ctx)
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received signal, shutting down", logger.String("signal", sig.String()))

	cancel()
	for _, p := range peers {
		if err := p.Close(); err != nil {
			log.Warn("Peer close error", logger.Error(err))
		}
	}
	wg.Wait()

	log.Info("Shutdown complete")
}
