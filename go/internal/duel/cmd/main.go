package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/mcdev12/quickdraw/go/internal/duel/arena"
	"github.com/mcdev12/quickdraw/go/internal/duel/config"
	"github.com/mcdev12/quickdraw/go/internal/duel/gateway"
	"github.com/mcdev12/quickdraw/go/internal/duel/publisher"
	"github.com/mcdev12/quickdraw/go/internal/duel/scoreboard"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())

	duelCfg := cfg.DuelConfig()
	log.Info().
		Str("port", cfg.Gateway.Port).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Dur("min_wait", duelCfg.MinWait).
		Dur("max_wait", duelCfg.MaxWait).
		Int("max_ammo", cfg.Arena.MaxAmmo).
		Msg("starting quickdraw duel")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Props and the side-effect sinks
	gun := arena.NewGun(cfg.Arena.MaxAmmo)
	target := arena.NewTarget()
	stage := arena.NewStage(gun, target)
	board := scoreboard.New()

	state := &coordinatorState{}
	gatewayService := gateway.NewService(gateway.DefaultConnectionConfig(), stage, state, board)

	actuators := duel.Actuators{stage, board, duel.LogActuator{}, gatewayService.Broadcaster()}

	publisherDone := make(chan struct{})
	if cfg.NATS.Enabled {
		js, err := publisher.NewJetStreamPublisher(ctx, cfg.JetStreamConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event publisher")
		}
		defer js.Close()

		gatewayService.WatchBus(js)

		eventActuator := publisher.NewActuator(js, 0)
		actuators = append(actuators, eventActuator)
		go func() {
			defer close(publisherDone)
			if err := eventActuator.Run(ctx); err != nil {
				log.Error().Err(err).Msg("event publisher stopped")
			}
		}()
	} else {
		close(publisherDone)
	}

	coordinator, err := duel.NewCoordinator(duelCfg, duel.Deps{
		Actuator:        actuators,
		PrematureAction: gun.Grabbed(),
		TargetResolved:  target.Struck(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create duel coordinator")
	}
	state.Coordinator = coordinator

	// Start gateway connection manager
	go gatewayService.Start(ctx)

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	server := gateway.NewServer(cfg.Gateway.Port, mux)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	duelDone := make(chan error, 1)
	go func() {
		duelDone <- coordinator.Run(ctx)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	if err := <-duelDone; err != nil {
		log.Error().Err(err).Msg("duel stopped with error")
	}
	// queued events go out before the deferred NATS close
	<-publisherDone

	summary := board.Summary()
	log.Info().
		Int("rounds", summary.Rounds).
		Int("wins", summary.Wins).
		Int("best_streak", summary.BestStreak).
		Msg("quickdraw duel shutdown complete")
}

// coordinatorState lets the gateway be built before the coordinator it reports on
type coordinatorState struct {
	*duel.Coordinator
}
