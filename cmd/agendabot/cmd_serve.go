package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/user/agendabot/internal/auth"
	"github.com/user/agendabot/internal/bridge"
	"github.com/user/agendabot/internal/calendar"
	ctxengine "github.com/user/agendabot/internal/context"
	"github.com/user/agendabot/internal/delivery"
	"github.com/user/agendabot/internal/gateway"
	"github.com/user/agendabot/internal/httpapi"
	"github.com/user/agendabot/internal/runtime"
	"github.com/user/agendabot/internal/runtime/tools"
	"github.com/user/agendabot/internal/scheduler"
	"github.com/user/agendabot/internal/session"
	"github.com/user/agendabot/internal/state"
	"github.com/user/agendabot/internal/telegram"
	"github.com/user/agendabot/internal/types"
	"github.com/user/agendabot/pkg/llm"
	"github.com/user/agendabot/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agendabot daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is not configured (set AGENDABOT_SECRET or run `agendabot setup`)")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is not configured (set DATABASE_URL or run `agendabot setup`)")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	dbBridge := bridge.New(cfg.Database.Workers, cfg.Database.QueueSize)
	defer dbBridge.Close()

	calStore := calendar.NewStore(pool, dbBridge)
	if err := calStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	sessions := session.NewStore()
	verifier := auth.New(cfg.Auth.Secret, calStore)

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	// Context engine
	engine, err := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create context engine: %w", err)
	}

	// Tool registry
	deps := tools.Deps{Verifier: verifier, Store: calStore}
	registry := runtime.NewRegistry()
	registry.Register(tools.NewCurrentDate())
	registry.Register(tools.NewListSchedules(deps))
	registry.Register(tools.NewListSchedulesByDate(deps))
	registry.Register(tools.NewAddSchedule(deps))
	registry.Register(tools.NewRemoveSchedulesByDate(deps))
	registry.Register(tools.NewRemoveAllSchedules(deps))
	registry.Register(tools.NewRemoveScheduleByID(deps))

	// Runtime
	rt := runtime.New(provider, engine, sessions, runtime.NewHost(registry), cfg.MaxToolRounds)

	// Gateway
	gw := gateway.New(sessions, gateway.Options{
		MaxConcurrent: int64(cfg.MaxConcurrent),
		TurnTimeout:   time.Duration(cfg.TurnTimeout) * time.Second,
	})
	gw.Queue.SetProcessor(rt.ProcessRun)
	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("agendabot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"listen", cfg.Listen,
		"max_concurrent", cfg.MaxConcurrent,
		"max_tool_rounds", cfg.MaxToolRounds,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
	)

	// Delivery registry for reminder replies
	deliveryReg := delivery.NewRegistry()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, sessions, cfg.Telegram.Chats)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started", "linked_chats", len(cfg.Telegram.Chats))

		deliveryReg.Register("telegram:", func(sessionKey, message string) error {
			return adapter.SendTo(sessionKey, message)
		})
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Reminders run with the credential of the chat their session belongs
	// to; a reminder pointed at an unlinked session gets no credential and
	// its calendar tools will refuse.
	processReminder := func(sessionKey, prompt string) (string, error) {
		done := make(chan string, 1)
		fail := make(chan error, 1)
		msg := &types.InboundMessage{
			Source:     "reminder",
			SessionKey: types.SessionKey(sessionKey),
			Credential: chatCredential(cfg.Telegram.Chats, sessionKey),
			Text:       prompt,
		}
		err := gw.HandleInbound(ctx, msg,
			gateway.WithOnComplete(func(response string) { done <- response }),
			gateway.WithOnError(func(err error) { fail <- err }))
		if err != nil {
			return "", err
		}
		select {
		case response := <-done:
			return response, nil
		case err := <-fail:
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	reminderStore := state.NewReminderStore(filepath.Join(cfg.DataDir, "reminders.json"))
	sched := scheduler.New(reminderStore, func(sessionKey, prompt string) {
		response, err := processReminder(sessionKey, prompt)
		if err != nil {
			slog.Error("reminder failed", "session_key", sessionKey, "error", err)
			return
		}
		if response == "" {
			return
		}
		if err := deliveryReg.Deliver(sessionKey, response); err != nil {
			slog.Error("reminder delivery failed", "session_key", sessionKey, "error", err)
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// HTTP API
	apiSrv := httpapi.NewServer(verifier, gw, sessions)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: apiSrv,
	}
	go func() {
		slog.Info("http api started", "listen", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("shutting down", "signal", sig)
	return nil
}

// chatCredential resolves the configured credential for a telegram session
// key ("telegram:<user>:<chat>"). Other key shapes have no credential.
func chatCredential(chats map[string]string, sessionKey string) string {
	parts := strings.Split(sessionKey, ":")
	if len(parts) != 3 || parts[0] != "telegram" {
		return ""
	}
	return chats[parts[2]]
}
