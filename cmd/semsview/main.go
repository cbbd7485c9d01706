package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"semsview/internal/api"
	"semsview/internal/config"
	"semsview/internal/control"
	"semsview/internal/events"
	"semsview/internal/mqtt"
	"semsview/internal/series"
	"semsview/internal/session"
	"semsview/internal/storage"
	"semsview/internal/telemetry"
	"semsview/internal/ws"
)

func main() {
	// Command line flags
	configDir := flag.String("config", ".", "Directory containing config.yaml")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	broker := flag.String("broker", "", "MQTT broker URL (overrides config)")
	dbPath := flag.String("db", "", "Telemetry database path (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *broker != "" {
		cfg.MQTT.BrokerURL = *broker
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}

	store, err := storage.NewBoltStorage(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	hub := ws.NewHub(logger)
	go hub.Run()

	eventLog := events.NewStore(200)
	surface := events.NewRecorder(eventLog, hub)

	cache := telemetry.NewCache(hub)
	charts := series.NewStore(cfg.Charts.Capacity, hub, logger)

	sess := session.New(store, cache, charts, surface, cfg.Rooms.Names, cfg.Rooms.Live, cfg.Location(), logger)

	client, err := mqtt.New(mqtt.Config{
		BrokerURL:      cfg.MQTT.BrokerURL,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ReconnectDelay: cfg.ReconnectDelay(),
	}, sess, sess, logger)
	if err != nil {
		log.Fatalf("Failed to create MQTT client: %v", err)
	}

	pipeline := control.New(client, store, surface, sess, cfg.Debounce(), logger)
	sess.BindAcks(pipeline)
	defer pipeline.Stop()

	if err := sess.Start(cfg.Rooms.Default); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	client.Start()
	defer client.Close()

	server := api.NewServer(sess, pipeline, charts, cache, store, eventLog, hub, client, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	go func() {
		fmt.Printf("SemsView starting on %s\n", cfg.Server.Addr)
		printAccessURLs(cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
}

// getLocalIPs returns all local IP addresses
func getLocalIPs() []string {
	var ips []string

	interfaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	for _, iface := range interfaces {
		// Skip down or loopback interfaces
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			// Skip loopback and IPv6
			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}

			ips = append(ips, ip.String())
		}
	}

	return ips
}

// printAccessURLs prints all available access URLs
func printAccessURLs(addr string) {
	port := addr
	if strings.HasPrefix(port, ":") {
		port = port[1:]
	} else if idx := strings.LastIndex(port, ":"); idx != -1 {
		port = port[idx+1:]
	}

	ips := getLocalIPs()
	if len(ips) == 0 {
		fmt.Printf("\nOpen http://localhost:%s in your browser\n", port)
		return
	}

	fmt.Println("\nAccess URLs:")
	for _, ip := range ips {
		fmt.Printf("  http://%s:%s\n", ip, port)
	}
	fmt.Println()
}
