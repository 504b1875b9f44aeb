package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"writeway/handler"
	"writeway/internal/config"
	"writeway/internal/integrations/anthropic"
	"writeway/internal/integrations/fake"
	"writeway/internal/integrations/gemini"
	"writeway/internal/integrations/openai"
	"writeway/internal/integrations/paramstore"
	"writeway/internal/repository"
	"writeway/internal/usecase"
)

type app struct {
	handler *handler.Handler
	closers []func() error
	logger  *slog.Logger
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", "err", err)
		}
	}
}

// awsLoader loads the default AWS config at most once, and only when a
// component needs it.
type awsLoader struct {
	once sync.Once
	cfg  aws.Config
	err  error
}

func (l *awsLoader) load(ctx context.Context) (aws.Config, error) {
	l.once.Do(func() {
		l.cfg, l.err = awsconfig.LoadDefaultConfig(ctx)
		if l.err != nil {
			l.err = fmt.Errorf("load AWS config: %w", l.err)
		}
	})
	return l.cfg, l.err
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}
	lazyAWS := &awsLoader{}

	store, closer, err := openStore(ctx, cfg.Store, lazyAWS)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	llm, err := newCompleter(ctx, cfg.LLM, lazyAWS)
	if err != nil {
		a.Close()
		return nil, err
	}

	chat, err := usecase.NewChatService(llm, store, cfg.ChatHistoryWindow, cfg.LLM.MaxTokens)
	if err != nil {
		a.Close()
		return nil, err
	}
	ideation, err := usecase.NewIdeationService(llm, store, cfg.LLM.MaxTokens)
	if err != nil {
		a.Close()
		return nil, err
	}
	diagnose, err := usecase.NewDiagnoseService(llm, cfg.LLM.MaxTokens)
	if err != nil {
		a.Close()
		return nil, err
	}
	plans, err := usecase.NewPlanService(store)
	if err != nil {
		a.Close()
		return nil, err
	}

	h, err := handler.NewHandler(chat, ideation, diagnose, plans, handler.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.handler = h
	return a, nil
}

func openStore(ctx context.Context, cfg config.Store, lazyAWS *awsLoader) (repository.Store, func() error, error) {
	var (
		store  repository.Store
		closer func() error
	)
	switch cfg.Backend {
	case config.StoreMemory:
		store = repository.NewMemory()
	case config.StoreFile:
		fs, err := repository.OpenFile(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	case config.StoreSQLite:
		dsn := cfg.DatabaseURL
		if dsn == "" {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(cfg.DataDir, "writeway.db")
		}
		db, err := repository.OpenSQL(ctx, repository.DriverSQLite, dsn)
		if err != nil {
			return nil, nil, err
		}
		store, closer = db, db.Close
	case config.StorePostgres:
		db, err := repository.OpenSQL(ctx, repository.DriverPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, closer = db, db.Close
	case config.StoreDynamoDB:
		awsCfg, err := lazyAWS.load(ctx)
		if err != nil {
			return nil, nil, err
		}
		dynamo, err := repository.NewDynamo(awsdynamodb.NewFromConfig(awsCfg), cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		store = dynamo
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if cfg.CacheSize > 0 {
		cached, err := repository.NewCached(store, cfg.CacheSize)
		if err != nil {
			if closer != nil {
				_ = closer()
			}
			return nil, nil, err
		}
		store = cached
	}
	return store, closer, nil
}

type keySource interface {
	APIKey(ctx context.Context) (string, error)
}

// newKeySource prefers a configured key and falls back to the SSM parameter
// <prefix>/<provider>-token.
func newKeySource(ctx context.Context, cfg config.LLMConfig, lazyAWS *awsLoader) (keySource, error) {
	if cfg.APIKey != "" {
		return paramstore.StaticKey(cfg.APIKey), nil
	}
	if cfg.ParamPrefix == "" {
		return nil, errors.New("no API key configured: set LLM_API_KEY or PARAM_PREFIX")
	}
	awsCfg, err := lazyAWS.load(ctx)
	if err != nil {
		return nil, err
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return paramstore.NewTokenSource(ssmClient, paramstore.TokenParameterName(cfg.ParamPrefix, cfg.Provider))
}

func newCompleter(ctx context.Context, cfg config.LLMConfig, lazyAWS *awsLoader) (usecase.Completer, error) {
	if cfg.Provider == config.ProviderMock {
		return fake.New(), nil
	}

	keys, err := newKeySource(ctx, cfg, lazyAWS)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(keys,
			anthropic.WithBaseURL(cfg.BaseURL),
			anthropic.WithModel(cfg.Model),
			anthropic.WithHTTPClient(httpClient),
		)
	case config.ProviderOpenAI:
		return openai.NewClient(keys,
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithModel(cfg.Model),
			openai.WithHTTPClient(httpClient),
		)
	case config.ProviderGemini:
		key, err := keys.APIKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve gemini key: %w", err)
		}
		return gemini.New(ctx, key,
			gemini.WithBaseURL(cfg.BaseURL),
			gemini.WithModel(cfg.Model),
			gemini.WithHTTPClient(httpClient),
		)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
