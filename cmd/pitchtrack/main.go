package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/stdio2016/pitchtrack"
	"github.com/stdio2016/pitchtrack/server"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = analyze(os.Args[2:], os.Stdout)
	case "serve":
		err = serve(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error(os.Args[1]+" failed", "err", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: pitchtrack <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  analyze [-config f] [-json] <wav>...   print the processed pitch contour")
	fmt.Println("  serve   [-config f] [-addr :1606]      start the HTTP server")
}

func loadConfig(path string) (pitchtrack.Config, error) {
	if path == "" {
		return pitchtrack.DefaultConfig(), nil
	}
	return pitchtrack.LoadConfig(path)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func analyze(args []string, out io.Writer) error {
	cmd := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := cmd.String("config", os.Getenv("PITCHTRACK_CONFIG"), "YAML config file")
	asJSON := cmd.Bool("json", false, "print contours as JSON")
	cmd.Parse(args)
	if cmd.NArg() < 1 {
		return errors.New("analyze: need at least one wav file")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	start := time.Now()
	contours, err := pitchtrack.AnalyzeFiles(context.Background(), cmd.Args(), cfg)
	if err != nil {
		return err
	}
	logger.Info("analyzed files", "count", len(contours), "elapsed", time.Since(start))

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(contours)
	}
	for _, c := range contours {
		fmt.Fprintf(out, "# %s (%d Hz, hop %d, %d segments)\n", c.Source, c.SampleRate, c.HopLength, len(c.Segments()))
		fmt.Fprintf(out, "%8s %9s %6s %6s %9s %5s\n", "time", "raw", "conf", "energy", "pitch", "note")
		for _, f := range c.Frames {
			note := "-"
			if f.Pitch > 0 {
				note = pitchtrack.NoteName(pitchtrack.FreqToMidi(f.Pitch))
			}
			fmt.Fprintf(out, "%8.3f %9.2f %6.3f %6.3f %9.2f %5s\n",
				f.Time, f.RawFrequency, f.Confidence, f.Energy, f.Pitch, note)
		}
	}
	return nil
}

func serve(args []string) error {
	cmd := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := cmd.String("config", os.Getenv("PITCHTRACK_CONFIG"), "YAML config file")
	addr := cmd.String("addr", envOr("PITCHTRACK_ADDR", ":1606"), "listen address")
	melodies := cmd.String("melodies", os.Getenv("PITCHTRACK_MELODIES"), "melody library file (id<TAB>name<TAB>notes)")
	cmd.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	lib := pitchtrack.NewLibrary()
	if *melodies != "" {
		n, err := lib.AddFromFile(*melodies)
		if err != nil {
			logger.Error("error while loading melody library", "err", err)
		} else {
			logger.Info("loaded melodies", "count", n)
		}
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.New(cfg, lib, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("started server", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
