// ABOUTME: Entry point for the livewave voice client
// ABOUTME: Parses CLI flags and runs a live session with the TUI
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/livewave-go/internal/config"
	"github.com/harperreed/livewave-go/internal/discovery"
	"github.com/harperreed/livewave-go/internal/metrics"
	"github.com/harperreed/livewave-go/internal/ui"
	"github.com/harperreed/livewave-go/internal/version"
	"github.com/harperreed/livewave-go/pkg/audio/capture"
	"github.com/harperreed/livewave-go/pkg/audio/output"
	"github.com/harperreed/livewave-go/pkg/live"
	"github.com/harperreed/livewave-go/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	configPath  = flag.String("config", "", "YAML config file")
	apiKey      = flag.String("api-key", "", "API key (default: $GEMINI_API_KEY)")
	endpoint    = flag.String("endpoint", "", "Live websocket endpoint or relay URL")
	model       = flag.String("model", "", "Model name")
	voice       = flag.String("voice", "", "Prebuilt output voice")
	instruction = flag.String("system", "", "System instruction")
	captureName = flag.String("capture", "", "Capture backend: malgo, portaudio")
	outputName  = flag.String("output", "", "Output backend: oto, malgo, portaudio, null")
	inputFile   = flag.String("input-file", "", "Stream an audio file (MP3, FLAC, WAV) instead of the microphone")
	loopInput   = flag.Bool("loop", false, "Loop -input-file")
	tone        = flag.Float64("tone", 0, "Stream a test tone of this frequency instead of the microphone")
	volume      = flag.Int("volume", 0, "Initial volume 0-100")
	logFile     = flag.String("log-file", "", "Log file path (default: livewave.log)")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	discover    = flag.Bool("discover", false, "Find a relay with mDNS even when an API key is set")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.UserAgent())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	useTUI := cfg.UI.Enabled

	// Set up logging
	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.UserAgent())

	if *discover || cfg.NeedsDiscovery() {
		relay, err := findRelay(cfg.Discovery.GetDiscoveryTimeout())
		if err != nil {
			log.Fatalf("No API key configured and %v (set %s or -endpoint)", err, config.APIKeyEnv)
		}
		cfg.Live.Endpoint = relay.URL()
		cfg.Live.APIKey = ""
		log.Printf("Using relay %s at %s", relay.Name, cfg.Live.Endpoint)
	}

	source, err := captureSource(cfg.Audio)
	if err != nil {
		log.Fatalf("Failed to create capture source: %v", err)
	}
	speaker, err := output.New(cfg.Audio.Output)
	if err != nil {
		log.Fatalf("Failed to create audio output: %v", err)
	}

	// TUI setup
	var tuiProg *tea.Program
	send := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	session, err := live.NewSession(live.Config{
		Client: protocol.Config{
			Endpoint:          cfg.Live.Endpoint,
			APIKey:            cfg.Live.APIKey,
			Model:             cfg.Live.Model,
			Voice:             cfg.Live.Voice,
			SystemInstruction: cfg.Live.SystemInstruction,
			UserAgent:         version.UserAgent(),
			HandshakeTimeout:  cfg.Live.GetConnectTimeout(),
		},
		Capture: source,
		Output:  speaker,
		Volume:  cfg.Audio.Volume,
		OnTranscript: func(entry live.TranscriptEntry) {
			if !useTUI {
				log.Printf("[%s] %s", entry.Speaker, entry.Text)
			}
			send(ui.TranscriptMsg(entry))
		},
		OnTranscriptFragment: func(speaker live.Speaker, text string) {
			send(ui.FragmentMsg{Speaker: speaker, Text: text})
		},
		OnStatus: func(status live.Status) {
			log.Printf("Session %s %s", status.State, status.Reason)
			send(ui.StatusMsg(status))
		},
		OnError: func(err error) {
			log.Printf("Session error: %v", err)
			send(ui.ErrorMsg{Err: err})
		},
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	if cfg.Metrics.Address != "" {
		go serveMetrics(cfg.Metrics.Address, session)
	}

	tuiDone := make(chan struct{})
	if useTUI {
		tuiProg = ui.Run(ui.NewModel(session, session.InputAnalyzer(), session.OutputAnalyzer()))
		go func() {
			defer close(tuiDone)
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Live.GetConnectTimeout())
	err = session.Start(ctx)
	cancel()
	if err != nil {
		if errors.Is(err, capture.ErrPermissionDenied) {
			log.Printf("Microphone access was denied")
		}
		if !useTUI {
			log.Fatalf("Failed to start session: %v", err)
		}
		// The TUI shows the error and offers reconnect
	}

	if !useTUI {
		go statsLogLoop(session)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-tuiDone:
		log.Printf("Received quit from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
		if tuiProg != nil {
			tuiProg.Quit()
			<-tuiDone
		}
	}

	if err := session.Close(); err != nil {
		log.Printf("Error closing session: %v", err)
	}

	log.Printf("Session stopped")
}

// applyFlags overrides config values with flags given on the command line
func applyFlags(cfg *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "api-key":
			cfg.Live.APIKey = *apiKey
		case "endpoint":
			cfg.Live.Endpoint = *endpoint
		case "model":
			cfg.Live.Model = *model
		case "voice":
			cfg.Live.Voice = *voice
		case "system":
			cfg.Live.SystemInstruction = *instruction
		case "capture":
			cfg.Audio.Capture = *captureName
		case "output":
			cfg.Audio.Output = *outputName
		case "input-file":
			cfg.Audio.InputFile = *inputFile
		case "loop":
			cfg.Audio.LoopInput = *loopInput
		case "tone":
			cfg.Audio.Tone = *tone
		case "volume":
			cfg.Audio.Volume = *volume
		case "log-file":
			cfg.Logging.File = *logFile
		case "no-tui":
			cfg.UI.Enabled = !*noTUI
		case "metrics-addr":
			cfg.Metrics.Address = *metricsAddr
		}
	})
}

// captureSource picks the file, tone or device source
func captureSource(cfg config.AudioConfig) (capture.Source, error) {
	switch {
	case cfg.InputFile != "":
		log.Printf("Streaming %s instead of the microphone", cfg.InputFile)
		return capture.NewFile(cfg.InputFile, cfg.LoopInput), nil
	case cfg.Tone > 0:
		log.Printf("Streaming %.0f Hz test tone instead of the microphone", cfg.Tone)
		return capture.NewTone(cfg.Tone), nil
	default:
		return capture.New(cfg.Capture)
	}
}

// findRelay browses mDNS for a relay until timeout
func findRelay(timeout time.Duration) (*discovery.RelayInfo, error) {
	log.Printf("Starting relay discovery...")
	disc := discovery.NewManager(discovery.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	relay, err := disc.FindRelay(ctx)
	if err != nil {
		return nil, fmt.Errorf("no relay found after %s", timeout)
	}
	return relay, nil
}

// serveMetrics exposes session metrics for Prometheus
func serveMetrics(addr string, session *live.Session) {
	reg := prometheus.NewRegistry()
	metrics.New(reg, session)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	log.Printf("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server error: %v", err)
	}
}

// statsLogLoop periodically logs session statistics in streaming mode
func statsLogLoop(session *live.Session) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		st := session.Stats()
		if session.Status().State != live.StateLive {
			continue
		}
		log.Printf("Stats: sent=%d dropped=%d scheduled=%d ended=%d in_flight=%d gaps=%d interrupts=%d turns=%d",
			st.Capture.Sent, st.Capture.Dropped, st.Playback.Enqueued, st.Playback.Ended,
			st.InFlight, st.Playback.Gaps, st.Interrupts, st.Turns)
	}
}
