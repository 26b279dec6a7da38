package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/roomwise/internal/profile"
	"github.com/hrygo/roomwise/internal/roomapi"
	"github.com/hrygo/roomwise/plugin/ai"
	"github.com/hrygo/roomwise/server/assistant"
	apiv1 "github.com/hrygo/roomwise/server/router/api/v1"
	"github.com/hrygo/roomwise/store"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "roomwise",
	Short: "Conversational meeting-room booking assistant",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:       viper.GetString("mode"),
			Addr:       viper.GetString("addr"),
			Port:       viper.GetInt("port"),
			Data:       viper.GetString("data"),
			BackendURL: viper.GetString("backend-url"),
			Version:    version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return fmt.Errorf("invalid profile: %w", err)
		}
		return run(instanceProfile)
	},
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("backend-url", "http://localhost:8000", "base URL of the room booking backend")

	for _, flag := range []string{"mode", "addr", "port", "data", "backend-url"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("roomwise")
	viper.AutomaticEnv()
}

func run(instanceProfile *profile.Profile) error {
	if !instanceProfile.IsAIEnabled() {
		return fmt.Errorf("no LLM configured, set ROOMWISE_AI_API_KEY")
	}

	llmConfig := &ai.LLMConfig{
		Provider: instanceProfile.AILLMProvider,
		APIKey:   instanceProfile.AIAPIKey,
		BaseURL:  instanceProfile.AIBaseURL,
		Model:    instanceProfile.AILLMModel,
	}
	handle := ai.NewHandle(func() (ai.LLMService, error) {
		return ai.NewLLMService(llmConfig)
	})

	history := store.NewHistory(instanceProfile.Data)
	history.Restore()

	availability := roomapi.NewAvailabilityClient(instanceProfile.BackendURL)
	booking := roomapi.NewBookingClient(instanceProfile.BackendURL,
		instanceProfile.CallerID, instanceProfile.ContactID, availability)

	session := assistant.NewSession(history, handle, availability, booking,
		instanceProfile.SummaryTokenCeiling)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	apiv1.NewChatService(session, version).Register(e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port)
	go func() {
		slog.Info("roomwise server started",
			"address", address,
			"mode", instanceProfile.Mode,
			"backend", instanceProfile.BackendURL,
			"version", version)
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := history.Persist(); err != nil {
		slog.Error("final history flush failed", "error", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
