package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"fricon-core/internal/config"
	"fricon-core/internal/core"
	"fricon-core/internal/handlers"
	"fricon-core/internal/observability"
	"fricon-core/internal/rabbitmq"
	"fricon-core/internal/telemetry"
)

const auditRoutingKey = "audit.log"

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Connect to FriCon and serve the local API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug routes"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return serve(c.Context, cfg, c.Bool("debug"))
		},
	}
}

func serve(parent context.Context, cfg *config.Config, debug bool) error {
	observability.SetupLogger(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		shutdownTracer = func(context.Context) error { return nil }
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	emitter := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.Telemetry.ServiceName, cfg.Telemetry.Environment)

	app, err := core.New(*cfg)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start core: %w", err)
	}
	emitter.Emit(ctx, "INFO", "messaging core connected", "", &cfg.User.ID)

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(app, handlers.RouterOptions{
		ServiceName: cfg.Telemetry.ServiceName,
		UserID:      cfg.User.ID,
		APIKey:      cfg.HTTP.APIKey,
		PageSize:    cfg.Core.PageSize,
		Debug:       debug,
		Emitter:     emitter,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("local api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("local api stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("local api shutdown")
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("core shutdown")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if err := config.InitConfig(path); err != nil {
						return err
					}
					fmt.Printf("Configuration written to %s\n", path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Load and validate the configuration",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if err := config.Validate(cfg); err != nil {
						return err
					}
					fmt.Println("Configuration is valid")
					return nil
				},
			},
		},
	}
}
