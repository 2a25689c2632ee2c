package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voicecode/mentor/internal/profile"
	"github.com/voicecode/mentor/server"
	"github.com/voicecode/mentor/internal/observability"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "mentor",
	Short: "AI coding mentor backend with voice and chat interfaces",
	RunE: func(_ *cobra.Command, _ []string) error {
		p := &profile.Profile{
			Mode:                viper.GetString("mode"),
			Addr:                viper.GetString("addr"),
			Port:                viper.GetInt("port"),
			Version:             version,
			Origins:             viper.GetStringSlice("origins"),
			ElevenLabsAPIKey:    viper.GetString("elevenlabs-api-key"),
			ElevenLabsAgentID:   viper.GetString("elevenlabs-agent-id"),
			OpenAIAPIKey:        viper.GetString("openai-api-key"),
			OpenAIBaseURL:       viper.GetString("openai-base-url"),
			ChatModel:           viper.GetString("chat-model"),
			ChatRateLimit:       viper.GetInt("chat-rate-limit"),
			ChatRateLimitWindow: viper.GetInt("chat-rate-limit-window"),
			MaxVoiceConnections: viper.GetInt64("max-voice-connections"),
		}
		if err := p.Validate(); err != nil {
			return err
		}

		logger := observability.NewLogger(p.IsDev())
		logger.Info("starting voicecode mentor", "profile", p.String(), "version", version)
		if !p.IsVoiceConfigured() {
			logger.Warn("voice upstream not configured, relay connections will be refused")
		}
		if !p.IsChatConfigured() {
			logger.Warn("chat backend not configured, chat endpoint will be unavailable")
		}

		s := server.NewServer(p, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			return s.Shutdown(context.Background())
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8080, "port of server")
	flags.StringSlice("origins", nil, "allowed CORS origins")
	flags.String("elevenlabs-api-key", "", "ElevenLabs API key for the voice relay")
	flags.String("elevenlabs-agent-id", "", "ElevenLabs conversational agent id")
	flags.String("openai-api-key", "", "API key for the chat completion backend")
	flags.String("openai-base-url", "", "base URL for the chat completion backend")
	flags.String("chat-model", "", "chat completion model")
	flags.Int("chat-rate-limit", 10, "chat requests allowed per window per IP")
	flags.Int("chat-rate-limit-window", 60, "chat rate limit window in seconds")
	flags.Int64("max-voice-connections", 32, "maximum concurrent voice relay connections")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("voicecode")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
