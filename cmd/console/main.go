package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roadwatch/dashcall/internal/adapters/capture"
	"github.com/roadwatch/dashcall/internal/adapters/httpapi"
	"github.com/roadwatch/dashcall/internal/adapters/relay"
	"github.com/roadwatch/dashcall/internal/adapters/rtc"
	"github.com/roadwatch/dashcall/internal/call"
	"github.com/roadwatch/dashcall/internal/config"
	"github.com/roadwatch/dashcall/internal/core"
	"github.com/roadwatch/dashcall/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	device, err := domain.NewDeviceID(cfg.DeviceID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid device id")
	}

	mic, err := capture.NewMicrophone()
	if err != nil {
		log.Fatal().Err(err).Msg("microphone setup")
	}

	client, err := relay.Dial(ctx, cfg.RelayURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.RelayURL).Msg("relay dial")
	}

	factory := func(mode domain.CallMode) (core.MediaConnection, error) {
		return rtc.NewConnection(rtc.Options{
			ICEServers: cfg.ICEServers,
			Mode:       mode,
			Tuner:      mic,
		})
	}

	ctl := call.NewController(client, mic, factory, device, cfg.SamplePeriod, cfg.StatusResetDelay)
	client.Bind(ctl)
	client.Start(ctx)

	r := httpapi.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("device", cfg.DeviceID).Msg("Dashcall console started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	ctl.EndCall()
	client.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Console exited gracefully")
}
