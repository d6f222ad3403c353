package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/config"
	"github.com/fmuoria/candidate-screener/internal/ingestion"
	"github.com/fmuoria/candidate-screener/internal/kv"
	"github.com/fmuoria/candidate-screener/internal/llm"
	"github.com/fmuoria/candidate-screener/internal/logger"
	"github.com/fmuoria/candidate-screener/internal/models"
	"github.com/fmuoria/candidate-screener/internal/notify"
	"github.com/fmuoria/candidate-screener/internal/pipeline"
	"github.com/fmuoria/candidate-screener/internal/scoring"
	"github.com/fmuoria/candidate-screener/internal/settings"
	"github.com/fmuoria/candidate-screener/internal/store"
)

// runtime holds the wired components shared by the subcommands
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	queue    *notify.Queue
	store    *store.Store
	settings *settings.Model

	closers []func()
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.ApplyToEnv()
	return cfg, nil
}

func newRuntime(ctx context.Context) (*runtime, error) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log.Debug("configuration loaded",
		zap.String("storage", cfg.StorageBackend),
		zap.String("provider", cfg.LLMProvider),
		zap.Int("max_upload_mb", cfg.MaxUploadMB))

	rt := &runtime{cfg: cfg, logger: log}

	backend, err := rt.openBackend(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.queue = notify.NewQueue(log, cfg.NotificationTTL)
	rt.closers = append(rt.closers, rt.queue.Close)
	rt.store = store.Open(ctx, backend, log, store.WithNotifier(rt.queue))
	rt.settings = settings.New(backend, log)
	rt.settings.Load(ctx)

	return rt, nil
}

func (rt *runtime) openBackend(ctx context.Context) (kv.Store, error) {
	switch rt.cfg.StorageBackend {
	case config.StorageMemory:
		return kv.NewMemoryStore(), nil
	case config.StorageFile:
		return kv.NewFileStore(rt.cfg.DataDir)
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     rt.cfg.RedisAddr,
			Password: rt.cfg.RedisPassword,
			DB:       rt.cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", rt.cfg.RedisAddr, err)
		}
		rt.closers = append(rt.closers, func() { client.Close() })
		return kv.NewRedisStore(client, ""), nil
	case config.StoragePostgres:
		pg, pool, err := kv.ConnectPostgres(ctx, rt.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", rt.cfg.StorageBackend)
	}
}

// newScorer builds the configured scorer. LLM clients are closed with the runtime.
func (rt *runtime) newScorer(ctx context.Context) (scoring.Scorer, error) {
	var gen llm.Generator
	switch rt.cfg.LLMProvider {
	case config.ProviderReference:
		seed := rt.cfg.ReferenceSeed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		return scoring.NewReferenceScorer(seed), nil
	case config.ProviderVertex:
		client, err := llm.NewVertexAIClient(ctx, rt.cfg.GoogleCloudProject, rt.cfg.GoogleCloudLocation, rt.cfg.VertexModel)
		if err != nil {
			return nil, err
		}
		gen = client
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, rt.cfg.GeminiAPIKey, rt.cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		gen = client
	default:
		return nil, fmt.Errorf("unknown llm provider %q", rt.cfg.LLMProvider)
	}

	rt.closers = append(rt.closers, func() {
		if err := gen.Close(); err != nil {
			rt.logger.Warn("closing llm client", zap.Error(err))
		}
	})
	return scoring.NewLLMScorer(gen, rt.logger), nil
}

func (rt *runtime) newPipeline(ctx context.Context, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	scorer, err := rt.newScorer(ctx)
	if err != nil {
		return nil, err
	}
	opts = append([]pipeline.Option{pipeline.WithValidator(ingestion.NewValidator(rt.cfg.MaxUploadBytes()))}, opts...)
	return pipeline.New(scorer, rt.store, rt.settings, rt.queue, rt.logger, opts...), nil
}

// printNotifications echoes every pushed notification to w
func (rt *runtime) printNotifications(w io.Writer) {
	unsubscribe := rt.queue.Subscribe(func(ev notify.Event) {
		if ev.Kind != notify.EventPushed {
			return
		}
		fmt.Fprintf(w, "[%s] %s\n", ev.Notification.Type, ev.Notification.Message)
	})
	rt.closers = append(rt.closers, unsubscribe)
}

func (rt *runtime) gmailSource(ctx context.Context) (*ingestion.GmailSource, error) {
	return ingestion.NewGmailSource(ctx, ingestion.GmailOptions{
		CredentialsPath: rt.cfg.GmailCredentialsPath,
		TokenPath:       rt.cfg.GmailTokenPath,
		Prompt:          promptAuthCode,
	}, rt.logger)
}

func promptAuthCode(authURL string) (string, error) {
	fmt.Printf("Go to the following link in your browser:\n%v\n", authURL)
	prompt := promptui.Prompt{
		Label: "Authorization code",
		Validate: func(s string) error {
			if s == "" {
				return errors.New("authorization code is required")
			}
			return nil
		},
	}
	return prompt.Run()
}

// Close releases resources in reverse order of acquisition
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

func weightsSummary(w models.ScoringWeights) string {
	return fmt.Sprintf("mode=%s skills=%d%% experience=%d%% education=%d%% min=%d auto-shortlist=%t",
		w.ProcessingMode, w.SkillsWeight, w.ExperienceWeight, w.EducationWeight, w.MinScoreThreshold, w.AutoShortlist)
}
