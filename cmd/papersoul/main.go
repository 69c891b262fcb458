// Command papersoul chats with characters grounded in their books.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/papersoul/internal/adapters/driven/ai"
	"github.com/custodia-labs/papersoul/internal/adapters/driven/config/env"
	"github.com/custodia-labs/papersoul/internal/adapters/driven/config/file"
	"github.com/custodia-labs/papersoul/internal/adapters/driven/index"
	profilefile "github.com/custodia-labs/papersoul/internal/adapters/driven/profile/file"
	"github.com/custodia-labs/papersoul/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/papersoul/internal/adapters/driving/cli"
	"github.com/custodia-labs/papersoul/internal/core/services"
	"github.com/custodia-labs/papersoul/internal/logger"
	"github.com/custodia-labs/papersoul/internal/normalisers"
	"github.com/custodia-labs/papersoul/internal/normalisers/html"
	"github.com/custodia-labs/papersoul/internal/normalisers/markdown"
	"github.com/custodia-labs/papersoul/internal/normalisers/plaintext"
	"github.com/custodia-labs/papersoul/internal/postprocessors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// A .env file in the working directory is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)

	closeAll, err := wire()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeAll()

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

// wire builds every adapter and service and installs them in the CLI.
// Failures that only affect some commands are recorded with
// cli.SetSetupError instead of aborting, so settings and session
// management keep working while a provider is misconfigured.
func wire() (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(env.NewOverlay(configStore), ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	dataDir := settings.DataDir
	logger.SetFile(filepath.Join(dataDir, "logs", "papersoul.log"))
	closers = append(closers, func() { logger.SetFile("") })

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open database: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	profiles, err := profilefile.NewStore(filepath.Join(dataDir, "profiles"))
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open profiles: %w", err)
	}
	if err := profiles.Watch(); err != nil {
		logger.Warn("Profile changes will not be picked up until restart: %v", err)
	}
	closers = append(closers, func() { _ = profiles.Close() })

	prompts, err := file.NewPromptStore(filepath.Join(dataDir, "prompts"), services.DefaultPrompts())
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	var setupErrs []error

	aiServices, aiErr := ai.Init(settings)
	if aiErr != nil {
		setupErrs = append(setupErrs, aiErr)
		aiServices = &ai.InitResult{}
	}
	closers = append(closers, aiServices.Close)

	indexes := index.NewStore(dataDir)
	retrievers := services.NewRetrieverRegistry(indexes, aiServices.EmbeddingService, settings.Retrieval)
	closers = append(closers, func() { _ = retrievers.Close() })

	processors := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(processors)
	pipeline, err := postprocessors.DefaultPipeline(processors, settings.Index)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("build chunking pipeline: %w", err)
	}
	indexer := services.NewIndexService(
		filepath.Join(dataDir, "corpora"),
		normalisers.NewDispatcher(plaintext.New(), markdown.New(), html.New()),
		pipeline,
		aiServices.EmbeddingService,
		indexes,
		indexes,
		settings.Index,
	)
	indexer.OnBuilt(retrievers.Invalidate)

	memory := services.NewMemoryService(store.FactStore())
	renderer := services.NewPromptRenderer(prompts)

	sessions := services.NewSessionService(
		store.SessionStore(), store.FactStore(), profiles, filepath.Join(dataDir, "exports"))

	cliServices := cli.Services{
		Sessions:  sessions,
		Profiles:  services.NewProfileService(profiles),
		Retrieval: retrievers,
		Memory:    memory,
		Index:     indexer,
		Settings:  settingsService,
	}

	if aiServices.LLMService != nil {
		chat, err := services.NewChatService(services.ChatServiceConfig{
			Sessions:  store.SessionStore(),
			Profiles:  profiles,
			Retriever: retrievers,
			Memory:    memory,
			Extractor: services.NewFactExtractor(aiServices.LLMService, prompts, settings.Chat.ExtractionTimeout),
			LLM:       aiServices.LLMService,
			Renderer:  renderer,
			Settings:  settings.Chat,
		})
		if err != nil {
			setupErrs = append(setupErrs, err)
		} else {
			cliServices.Chat = chat
		}
	} else if aiErr == nil {
		setupErrs = append(setupErrs, errors.New("no LLM provider configured; run 'papersoul settings llm'"))
	}

	cli.SetServices(cliServices)
	if len(setupErrs) > 0 {
		cli.SetSetupError(errors.Join(setupErrs...))
	}
	return closeAll, nil
}
