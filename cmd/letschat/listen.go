package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hilthontt/letschat/client"
	"github.com/hilthontt/letschat/client/delivery"
	"github.com/hilthontt/letschat/client/state"
	"github.com/hilthontt/letschat/infrastructure/config"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// heartbeatInterval matches the presence cadence of the browser client.
const heartbeatInterval = time.Minute

var (
	listenServer   string
	listenUsername string
	listenToken    string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Log in and apply events from your queue as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadListenConfig()

		log, err := logger.NewLogger(cfg.Logger)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		server := listenServer
		if server == "" {
			server = cfg.Client.BaseURL
		}
		if server == "" {
			return errors.New("no server given: pass --server or set client.baseUrl")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		gateway := client.NewClient(server, log)
		switch {
		case listenToken != "":
			gateway.WithToken(listenToken)
		case listenUsername != "":
			if _, err := gateway.Login(ctx, listenUsername); err != nil {
				return err
			}
			defer logout(gateway, log)
		default:
			return errors.New("pass --username to log in or --token to reuse a session")
		}

		store := state.NewStore()
		loop := delivery.New(gateway, &loggingHandler{store: store, log: log}, delivery.Options{
			PollInterval:    cfg.Client.PollInterval,
			MaxMessages:     cfg.Client.MaxMessages,
			WaitTimeSeconds: int64(cfg.Sqs.LongPollingPeriod),
			RefreshMargin:   cfg.Client.RefreshMargin,
			Endpoint:        cfg.Sqs.Endpoint,
		}, log)

		go heartbeat(ctx, gateway, log)

		log.Info("listening", zap.String("server", server))
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("stopped listening", zap.Int("rooms", len(store.Rooms())))
		return nil
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenServer, "server", "", "gateway base URL (defaults to client.baseUrl)")
	listenCmd.Flags().StringVar(&listenUsername, "username", "", "log in as this user")
	listenCmd.Flags().StringVar(&listenToken, "token", "", "reuse an existing session token")
}

// loadListenConfig reads the config file when there is one. The listener
// needs none of the server sections, so a missing file is not an error.
func loadListenConfig() *config.Config {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return config.Defaults()
	}
	return cfg
}

func heartbeat(ctx context.Context, gateway *client.Client, log *logger.Logger) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		if err := gateway.Heartbeat(ctx); err != nil && ctx.Err() == nil {
			log.Warn("heartbeat failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func logout(gateway *client.Client, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gateway.Logout(ctx); err != nil {
		log.Warn("logout failed", zap.Error(err))
	}
}

type loggingHandler struct {
	store *state.Store
	log   *logger.Logger
}

func (h *loggingHandler) Apply(event, room string, body []byte) error {
	if err := h.store.Apply(event, room, body); err != nil {
		return err
	}
	h.log.Info("event", zap.String("event", event), zap.String("room", room))
	return nil
}
