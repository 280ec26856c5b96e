package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"projectdb-go/internal/blob"
	"projectdb-go/internal/config"
	"projectdb-go/internal/database"
	"projectdb-go/internal/docstore"
	"projectdb-go/internal/encryption"
	"projectdb-go/internal/envelope"
	"projectdb-go/internal/projectdb"
)

// App is the application layer between the CLI and the Service.
// It constructs the backend from config, exposes the operations that need
// raw input (files, request streams) and releases everything on Close.
type App struct {
	cfg     *config.Config
	backend projectdb.Backend
	service *projectdb.Service
	router  *projectdb.Router
	session *Session
	logger  *slog.Logger
	logFile *os.File
}

// Options tune NewApp.
type Options struct {
	Command     string // CLI command being run, e.g. "item save"
	Credentials Credentials
	Verbose     bool
}

// NewApp creates a fully wired App from cfg. The backend schema is created
// if it is missing. The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	session := NewSession(opts.Command, time.Now())
	var (
		logger  *slog.Logger
		logFile *os.File
	)
	if cfg.LogDir == "" {
		level := slog.LevelInfo
		if opts.Verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(&logHandler{w: os.Stderr, session: session.ID, level: level})
	} else {
		var err error
		if logger, logFile, err = newLogger(cfg.LogDir, session.ID, opts.Verbose); err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}

	backend, err := NewBackend(ctx, cfg, opts.Credentials)
	if err != nil {
		closeFile(logFile)
		return nil, err
	}
	if err := backend.Initialize(ctx); err != nil {
		backend.Close()
		closeFile(logFile)
		return nil, fmt.Errorf("initializing %s backend: %w", cfg.Backend, err)
	}

	svc := projectdb.NewService(backend, &slogAdapter{l: logger}, projectdb.SystemClock{}, projectdb.UUIDGenerator{})
	logger.Debug("session started", "command", opts.Command, "backend", cfg.Backend)

	return &App{
		cfg:     cfg,
		backend: backend,
		service: svc,
		router:  projectdb.NewRouter(svc),
		session: session,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// NewBackend opens the backend selected by cfg.Backend without
// initializing it.
func NewBackend(ctx context.Context, cfg *config.Config, creds Credentials) (projectdb.Backend, error) {
	switch cfg.Backend {
	case config.BackendRelational, "":
		dbCfg := cfg.Database
		creds.Apply(&dbCfg)
		db, err := database.NewDatabaseFromConfig(dbCfg, cfg.RemoveOrphans)
		if err != nil {
			return nil, fmt.Errorf("creating database: %w", err)
		}
		return db, nil
	case config.BackendDocument:
		store, err := blob.NewStoreFromConfig(ctx, cfg.Documents, creds.S3)
		if err != nil {
			return nil, fmt.Errorf("creating document store: %w", err)
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Documents.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			return nil, fmt.Errorf("encryption keys are missing: run 'projectdb keys init'")
		}
		dec, err := enc.Unlock(creds.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking encryption keys: %w", err)
		}
		return docstore.New(store, enc, dec, cfg.Documents.Root, cfg.RemoveOrphans), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", cfg.Backend)
	}
}

// InitKeys creates the age key pair used to encrypt stored documents.
func InitKeys(cfg config.EncryptionConfig, passphrase string) error {
	if cfg.Type != "age" {
		return fmt.Errorf("documents.encryption.type is %q, not age", cfg.Type)
	}
	if err := encryption.NewAgeEncryptor(cfg).Setup(passphrase); err != nil {
		return fmt.Errorf("creating keys: %w", err)
	}
	return nil
}

// Service returns the wired Service.
func (a *App) Service() *projectdb.Service {
	return a.service
}

// Session returns the session of this invocation.
func (a *App) Session() *Session {
	return a.session
}

// SaveFile stores the envelope read from path. The uuid is taken from the
// envelope itself.
func (a *App) SaveFile(ctx context.Context, domain, path string, overwrite bool) (*projectdb.SaveResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	it, err := envelope.Parse(string(data))
	if err != nil {
		return nil, projectdb.Wrap(projectdb.KindParse, "reading "+path, err)
	}
	return a.service.SaveItem(ctx, domain, it.UUID, string(data), overwrite)
}

// HandleRequest reads one JSON request from r and writes the reply to w.
func (a *App) HandleRequest(ctx context.Context, r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading request: %w", err)
	}
	reply, err := a.router.HandleJSON(ctx, data)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(reply, '\n')); err != nil {
		return fmt.Errorf("writing reply: %w", err)
	}
	return nil
}

// Fail records err against the session so that Close reports it.
func (a *App) Fail(err error) {
	a.session.Fail()
	a.logger.Error("command failed", "command", a.session.Command, "error", err)
}

// Close closes the backend and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.backend.Close(); err != nil {
		firstErr = fmt.Errorf("closing backend: %w", err)
	}
	a.logger.Debug("session finished",
		"command", a.session.Command,
		"status", a.session.Status,
		"elapsed", time.Since(a.session.Started).Round(time.Millisecond))
	closeFile(a.logFile)
	return firstErr
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}
