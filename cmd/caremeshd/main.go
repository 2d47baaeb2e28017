// Command caremeshd runs the care-coordination assistant HTTP service.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/caremesh/config"
	"github.com/hupe1980/caremesh/directory"
	"github.com/hupe1980/caremesh/dispatch"
	"github.com/hupe1980/caremesh/logging"
	"github.com/hupe1980/caremesh/model"
	anthropicmodel "github.com/hupe1980/caremesh/model/anthropic"
	openaimodel "github.com/hupe1980/caremesh/model/openai"
	"github.com/hupe1980/caremesh/server"
	"github.com/hupe1980/caremesh/session"
	"github.com/hupe1980/caremesh/tool"
)

const defaultSystemPrompt = `You are a care coordinator assistant, tasked with helping
a provider/nurse take the correct next steps when helping a patient. You are given
the relevant patient information and are expected to use the tools provided to
assist the provider/nurse in taking the correct next steps.
You should not advise on medical care or treatment. You should be polite, professional, and concise.
Do not suggest actions that you cannot explicitly perform using the tools provided and don't go beyond scope.
Do not answer questions that are irrelevant to care coordination and the tools provided.
If you can't answer a question, say:

"I'm sorry, but I can't answer that question. Please try again with a different question."

If greeting the user, say:
"Hello! I'm here to help you with care coordination for <patient name>. How can I assist you?"

Please conform to the following business rules related to booking appointments:
    Times:
        - Appointments can only be booked within a provider's office hours on available days
    Booking:
        - Ask for the user's confirmation on suggested appointment details before calling the book_appointment tool
    Types:
        - NEW appointment is 30 minutes long, ESTABLISHED appointment is 15 minutes long.
        Please infer whether the appointment is NEW or ESTABLISHED based on the patient's information and don't
        explicitly state the appointment type to the user.
        - An appointment is ESTABLISHED if the patient has seen the provider in the last 5 years
        - otherwise the appointment type is NEW`

// Config is populated from CAREMESH_* environment variables.
type Config struct {
	Addr             string        `envconfig:"ADDR" default:":8080"`
	ModelProvider    string        `envconfig:"MODEL_PROVIDER" default:"openai"`
	ModelName        string        `envconfig:"MODEL_NAME"`
	ModelTemperature float64       `envconfig:"MODEL_TEMPERATURE" default:"0.0"`
	ModelTimeout     time.Duration `envconfig:"MODEL_TIMEOUT" default:"60s"`
	MaxToolRounds    int           `envconfig:"MAX_TOOL_ROUNDS" default:"10"`
	StreamDelay      time.Duration `envconfig:"STREAM_DELAY" default:"20ms"`
	SystemPrompt     string        `envconfig:"SYSTEM_PROMPT"`
	CatalogPath      string        `envconfig:"CATALOG_PATH"`
	ContextualAPIURL string        `envconfig:"CONTEXTUAL_API_URL" default:"http://localhost:5000/patient"`
	AnthropicAPIKey  string        `envconfig:"ANTHROPIC_API_KEY"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat        string        `envconfig:"LOG_FORMAT" default:"json"`
}

func main() {
	cfg := config.MustNew[Config]("CAREMESH")

	logger := logging.New(&logging.Config{
		Level:  parseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
	})

	dir := directory.New()
	var err error
	if cfg.CatalogPath != "" {
		err = dir.LoadFile(cfg.CatalogPath)
	} else {
		err = dir.LoadDefault()
	}
	if err != nil {
		logger.Error("main.catalog.load_failed", "error", err.Error())
		os.Exit(1)
	}

	llm, err := buildModel(cfg)
	if err != nil {
		logger.Error("main.model.setup_failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("main.model.ready", "provider", llm.Info().Provider, "model", llm.Info().Name)

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	store := session.NewInMemoryStore()
	dispatcher := dispatch.New(store, llm, tool.CareTools(dir, nil), prompt, func(o *dispatch.Options) {
		o.MaxRounds = cfg.MaxToolRounds
		o.ModelTimeout = cfg.ModelTimeout
		o.StreamDelay = cfg.StreamDelay
		o.Logger = logger
	})

	srv := server.New(dispatcher, store, func(o *server.Options) {
		o.ContextualAPIURL = cfg.ContextualAPIURL
		o.Logger = logger
	})

	logger.Info("main.server.listening", "addr", cfg.Addr)
	if err := srv.Run(cfg.Addr); err != nil {
		logger.Error("main.server.failed", "error", err.Error())
		os.Exit(1)
	}
}

func buildModel(cfg *Config) (model.Model, error) {
	switch strings.ToLower(cfg.ModelProvider) {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
			o.Temperature = cfg.ModelTemperature
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.ModelName != "" {
				o.Model = anthropic.Model(cfg.ModelName)
			}
			o.Temperature = cfg.ModelTemperature
			o.APIKey = cfg.AnthropicAPIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
