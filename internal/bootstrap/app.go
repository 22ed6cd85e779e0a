// Package bootstrap builds the engine's services from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"assistant-engine/handler"
	"assistant-engine/internal/config"
	"assistant-engine/internal/extract"
	"assistant-engine/internal/integrations/blob"
	"assistant-engine/internal/integrations/mailer"
	"assistant-engine/internal/integrations/openai"
	"assistant-engine/internal/integrations/paramstore"
	"assistant-engine/internal/integrations/vision"
	"assistant-engine/internal/report/pending"
	"assistant-engine/internal/repository"
	"assistant-engine/internal/retrieval"
	"assistant-engine/internal/usecase"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger

	Chat     *usecase.ChatService
	Reports  *usecase.ReportService
	Ingest   *usecase.IngestService
	Ask      *usecase.AskService
	Sessions *usecase.SessionService
	Contact  *usecase.ContactService

	Index *retrieval.Index
	Redis *redis.Client

	StartedAt time.Time
}

// New wires every service. Optional backends are chosen by configuration:
// DynamoDB when a table is set (memory otherwise), Redis for pending reports
// when an address is set, S3 when a bucket is set, Rekognition when vision
// is enabled and SMTP when a mail host is set.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	var awsCfg aws.Config
	if needsAWS(cfg) {
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWS.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
		}
		loaded, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		awsCfg = loaded
	}

	store, err := sessionStore(cfg, awsCfg, log)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Index.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bootstrap: create index dir: %w", err)
		}
	}
	app.Index, err = retrieval.Open(ctx, cfg.Index.Path)
	if err != nil {
		return nil, err
	}

	keys, err := llmKeys(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	llmOpts := []openai.Option{
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithModel(cfg.LLM.Model),
		openai.WithTemperature(cfg.LLM.Temperature),
	}
	if cfg.LLM.MaxTokens > 0 {
		llmOpts = append(llmOpts, openai.WithMaxTokens(cfg.LLM.MaxTokens))
	}
	llm, err := openai.NewClient(keys, llmOpts...)
	if err != nil {
		return nil, err
	}

	reportStore, err := app.pendingStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Reports, err = usecase.NewReportService(llm, reportStore, "", log.Named("reports"))
	if err != nil {
		return nil, err
	}

	deps := usecase.ChatDeps{
		Store:     store,
		LLM:       llm,
		Extractor: extract.Local{},
		Index:     app.Index,
		Reports:   app.Reports,
		Logger:    log.Named("chat"),
	}
	var blobs usecase.BlobStore
	if cfg.Blob.Bucket != "" {
		c, err := blob.New(s3.NewFromConfig(awsCfg), cfg.Blob.Bucket, awsCfg.Region, cfg.Blob.BaseURL)
		if err != nil {
			return nil, err
		}
		blobs = c
		deps.Blobs = c
	}
	if cfg.AWS.Vision {
		v, err := vision.New(rekognition.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		deps.Images = v
	}

	app.Chat, err = usecase.NewChatService(deps, usecase.ChatOptions{
		HistoryWindow:     cfg.Engine.HistoryWindow,
		MaxNoteChars:      cfg.Engine.MaxNoteChars,
		ChunkSize:         cfg.Engine.ChunkSize,
		IngestConcurrency: cfg.Engine.IngestConcurrency,
		TopK:              cfg.Index.TopK,
		IDAttempts:        cfg.Engine.IDAttempts,
		IDBackoff:         cfg.IDBackoff(),
	})
	if err != nil {
		return nil, err
	}
	app.Ingest, err = usecase.NewIngestService(extract.Local{}, app.Index, cfg.Engine.ChunkSize, cfg.Engine.IngestConcurrency, log.Named("ingest"))
	if err != nil {
		return nil, err
	}
	app.Ask, err = usecase.NewAskService(app.Index, llm, cfg.Index.TopK, 0, log.Named("ask"))
	if err != nil {
		return nil, err
	}
	app.Sessions, err = usecase.NewSessionService(store, blobs, app.Index, log.Named("sessions"))
	if err != nil {
		return nil, err
	}

	var mail usecase.Mailer = mailer.LogOnly{Log: log.Named("mail")}
	if cfg.Mail.Host != "" {
		smtp, err := mailer.NewSMTP(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
		if err != nil {
			return nil, err
		}
		mail = smtp
	}
	app.Contact, err = usecase.NewContactService(mail, cfg.Mail.ContactTo, log.Named("contact"))
	if err != nil {
		return nil, err
	}

	log.Info("engine wired",
		zap.Bool("dynamodb", cfg.Store.Table != ""),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("blobs", blobs != nil),
		zap.Bool("vision", cfg.AWS.Vision),
		zap.String("index", cfg.Index.Path),
		zap.String("model", llm.Model()),
	)
	ok = true
	return app, nil
}

// Services exposes the wired use cases to the transports.
func (a *App) Services() handler.Services {
	return handler.Services{
		Chat:     a.Chat,
		Reports:  a.Reports,
		Ingest:   a.Ingest,
		Ask:      a.Ask,
		Sessions: a.Sessions,
		Contact:  a.Contact,
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			closeErr = err
		}
	}
	_ = a.Log.Sync()
	return closeErr
}

func needsAWS(cfg *config.Config) bool {
	return cfg.Store.Table != "" || cfg.Blob.Bucket != "" || cfg.AWS.Vision || cfg.LLM.APIKey == ""
}

func sessionStore(cfg *config.Config, awsCfg aws.Config, log *zap.Logger) (usecase.SessionStore, error) {
	if cfg.Store.Table == "" {
		log.Warn("no sessions table configured, sessions are kept in memory")
		return repository.NewMemory(), nil
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Store.Table)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func llmKeys(cfg *config.Config, awsCfg aws.Config) (openai.KeySource, error) {
	if cfg.LLM.APIKey != "" {
		return openai.StaticKey(cfg.LLM.APIKey), nil
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.AWS.ParamPrefix)
	if err != nil {
		return nil, err
	}
	tokens, err := paramstore.NewTokenSource(params, cfg.LLM.APIKeyParam)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (a *App) pendingStore(ctx context.Context, cfg *config.Config) (pending.Store, error) {
	if cfg.Redis.Addr == "" {
		return pending.NewMemoryStore(cfg.ReportTTL()), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bootstrap: ping redis: %w", err)
	}
	a.Redis = client
	return pending.NewRedisStore(client, cfg.ReportTTL()), nil
}
