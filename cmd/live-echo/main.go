// ABOUTME: Entry point for the local echo endpoint
// ABOUTME: Parses CLI flags and serves mock live sessions
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/livewave-go/internal/echo"
)

var (
	port      = flag.Int("port", 8930, "WebSocket server port")
	name      = flag.String("name", "", "Relay friendly name (default: hostname-livewave-echo)")
	path      = flag.String("path", "/live", "WebSocket path")
	apiKey    = flag.String("api-key", "", "Require clients to present this key")
	logFile   = flag.String("log-file", "live-echo.log", "Log file path")
	debug     = flag.Bool("debug", false, "Enable debug logging")
	noMDNS    = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	pause     = flag.Duration("pause", 800*time.Millisecond, "Input silence that ends a turn")
	threshold = flag.Float64("threshold", 0.02, "RMS level that counts as speech")
)

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-livewave-echo", hostname)
	}

	log.Printf("Starting echo endpoint: %s on port %d", serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Connect with: livewave -endpoint ws://localhost:%d%s", *port, *path)
	log.Printf("Press Ctrl-C to stop")

	srv := echo.New(echo.Config{
		Port:       *port,
		Name:       serverName,
		Path:       *path,
		APIKey:     *apiKey,
		EnableMDNS: !*noMDNS,
		Debug:      *debug,
		Pause:      *pause,
		Threshold:  *threshold,
	})

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	st := srv.Stats()
	log.Printf("Server stopped after %d connections, %d turns, %d interrupts", st.Connections, st.Turns, st.Interrupts)
}
