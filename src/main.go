package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"

	"github.com/hearthward/floorctl/src/control"
	"github.com/hearthward/floorctl/src/relay"
)

func main() {
	configPath := flag.String("config", "zone.yaml", "zone configuration file")
	dbPath := flag.String("db", "floorctl.db", "state database file")
	listenAddr := flag.String("listen", ":9191", "diagnostics HTTP listen address (empty disables)")
	debug := flag.Bool("debug", false, "run the interactive debug console")
	flag.Parse()

	log.Println("Starting floorctl...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v\n", err)
	}

	mqttUsername := os.Getenv("MQTT_USERNAME")
	mqttPassword := os.Getenv("MQTT_PASSWORD")
	if mqttUsername == "" || mqttPassword == "" {
		log.Fatal("MQTT_USERNAME and MQTT_PASSWORD must be set in .env file")
	}
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = "homeassistant.lan"
	}

	cfg, err := LoadZoneConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load zone config: %v", err)
	}
	log.Printf("Loaded zone %q with %d heaters\n", cfg.Name, len(cfg.Heaters))

	store, err := OpenStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close()

	loopConfig := cfg.LoopConfig()
	restorePersistedState(store, &loopConfig)

	loop, err := control.NewControlLoop(loopConfig)
	if err != nil {
		log.Fatalf("Failed to build control loop: %v", err)
	}
	log.Printf("Control loop ready: target %.1f, mode %s\n", loop.TargetTemp(), loop.Mode())

	// Optional local GPIO backend for directly wired heaters
	var commander relay.Commander
	if pinned := cfg.GPIOPins(); len(pinned) > 0 {
		pins := make([]relay.Pin, 0, len(pinned))
		for _, h := range pinned {
			pins = append(pins, relay.Pin{HeaterID: h.ID, Offset: *h.GPIOPin, ActiveLow: h.ActiveLow})
		}
		gpio, err := relay.NewGPIOCommander(cfg.GPIOChip, pins)
		if err != nil {
			log.Fatalf("Failed to open gpio relays: %v", err)
		}
		defer gpio.Close()
		commander = gpio
		log.Printf("GPIO backend ready on %s (%d relays)\n", cfg.GPIOChip, len(pins))
	}

	topics := NewZoneTopics(cfg.Slug())
	metrics := NewMetrics(cfg.Slug())

	// Create context for lifecycle management
	ctx, cancel := context.WithCancel(context.Background())

	// Create channels for communication between workers
	msgChan := make(chan SensorMessage, 100)
	zoneCmdChan := make(chan SensorMessage, 16)
	snapshotChan := make(chan SensorSnapshot, 10)
	mqttOutgoingChan := make(chan MQTTMessage, 100) // Larger buffer for queuing
	mqttClientChan := make(chan mqtt.Client, 1)     // Buffered to prevent blocking onConnect
	diagChan := make(chan control.Diagnostics, 1)

	// Launch MQTT sender worker (receives client updates via channel)
	SafeGo(ctx, cancel, "mqtt-sender-worker", func(ctx context.Context) {
		mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan)
	})
	log.Println("MQTT sender worker started")

	mqttSender := NewMQTTSender(mqttOutgoingChan)

	log.Println("Creating Home Assistant entities...")
	if err := createZoneEntities(mqttSender, cfg, topics); err != nil {
		cancel()
		log.Fatalf("Failed to create Home Assistant entities: %v", err)
	}
	log.Println("Home Assistant entities created")

	// Launch readings worker (folds sensor messages into snapshots)
	sensorTimeout := cfg.SensorTimeout.Std()
	SafeGo(ctx, cancel, "readings-worker", func(ctx context.Context) {
		readingsWorker(ctx, msgChan, snapshotChan, sensorTimeout)
	})
	log.Println("Readings worker started")

	// Launch zone worker (the control cadence)
	zoneWorkerConfig := ZoneWorkerConfig{
		Zone:      cfg,
		Topics:    topics,
		Loop:      loop,
		Sender:    mqttSender,
		Commander: commander,
		Store:     store,
		Metrics:   metrics,
	}
	SafeGo(ctx, cancel, "zone-worker", func(ctx context.Context) {
		zoneWorker(ctx, zoneWorkerConfig, snapshotChan, zoneCmdChan, diagChan)
	})
	log.Println("Zone worker started")

	// Launch MQTT worker
	sensorTopics := cfg.SensorTopics()
	commandTopics := topics.CommandTopics()
	SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
		mqttWorker(ctx, broker, sensorTopics, commandTopics,
			mqttUsername, mqttPassword, msgChan, zoneCmdChan, mqttClientChan)
	})
	log.Println("MQTT worker started")

	// Launch diagnostics HTTP server
	if *listenAddr != "" {
		server := &http.Server{
			Addr:              *listenAddr,
			Handler:           newRouter(cfg.Slug(), loop, metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		SafeGo(ctx, cancel, "http-server", func(ctx context.Context) {
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = server.Shutdown(shutdownCtx)
			}()
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP server failed: %v\n", err)
				cancel()
			}
		})
		log.Printf("Diagnostics HTTP server listening on %s\n", *listenAddr)
	}

	// Launch debug console
	if *debug {
		SafeGo(ctx, cancel, "debug-worker", func(ctx context.Context) {
			debugWorker(ctx, cancel, topics, diagChan, zoneCmdChan)
		})
	}

	// Wait for interrupt signal or context cancellation (from panic)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("\nShutting down...")
	case <-ctx.Done():
		log.Println("\nShutting down due to error...")
	}
	cancel()
}

// restorePersistedState layers the persisted setpoint, mode, and toggle
// counters onto a fresh loop config.
func restorePersistedState(store *Store, cfg *control.LoopConfig) {
	if target, ok, err := store.LoadTarget(); err != nil {
		log.Printf("Warning: could not restore target: %v\n", err)
	} else if ok {
		cfg.InitialTarget = target
		log.Printf("Restored target %.1f\n", target)
	}

	if mode, ok, err := store.LoadMode(); err != nil {
		log.Printf("Warning: could not restore mode: %v\n", err)
	} else if ok {
		cfg.InitialMode = mode
		log.Printf("Restored mode %s\n", mode)
	}

	counts, err := store.LoadToggleCounts()
	if err != nil {
		log.Printf("Warning: could not restore toggle counts: %v\n", err)
		return
	}
	if len(counts) > 0 {
		cfg.InitialToggleCounts = counts
	}
}
