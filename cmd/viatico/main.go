package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/vbonduro/viatico/internal/archive/local"
	"github.com/vbonduro/viatico/internal/catalog"
	"github.com/vbonduro/viatico/internal/config"
	"github.com/vbonduro/viatico/internal/db"
	"github.com/vbonduro/viatico/internal/logging"
	"github.com/vbonduro/viatico/internal/memo"
	claudememo "github.com/vbonduro/viatico/internal/memo/claude"
	"github.com/vbonduro/viatico/internal/metrics"
	"github.com/vbonduro/viatico/internal/notify"
	"github.com/vbonduro/viatico/internal/notify/emailjs"
	"github.com/vbonduro/viatico/internal/notify/logmail"
	"github.com/vbonduro/viatico/internal/service"
	"github.com/vbonduro/viatico/internal/store"
	"github.com/vbonduro/viatico/internal/web"
	"github.com/vbonduro/viatico/internal/web/templates"
)

func main() {
	cfg := config.Load()
	if err := config.ApplyFlags(cfg, os.Args[1:]); err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		cat, err = catalog.Load(cfg.CatalogFile)
		if err != nil {
			logger.Error("failed to load catalog", "path", cfg.CatalogFile, "error", err)
			return
		}
	}
	logger.Info("catalog loaded",
		"personnel", len(cat.Personnel),
		"roles", len(cat.Roles),
		"expense_types", len(cat.ExpenseTypes),
	)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	arch, err := local.NewLocalArchive(cfg.ArchivePath)
	if err != nil {
		logger.Error("failed to initialize archive", "error", err)
		return
	}

	mailer := newMailer(cfg, logger)
	if mailer == nil {
		return
	}
	memoWriter := newMemoWriter(cfg, logger)
	if memoWriter == nil {
		return
	}

	m := metrics.New()
	requestService := service.NewRequestService(
		cat,
		store.NewDraftStore(database),
		store.NewSubmissionStore(database),
		mailer,
		memoWriter,
		arch,
		m,
		service.MailSettings{To: cfg.MailTo, Subject: cfg.MailSubject},
		logger,
	)
	server := web.NewServer(requestService, templates.FS, m, logger)

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func newMailer(cfg *config.Config, logger *slog.Logger) notify.Mailer {
	switch cfg.MailBackend {
	case "emailjs":
		if cfg.EmailJSServiceID == "" || cfg.EmailJSTemplateID == "" || cfg.EmailJSPublicKey == "" {
			logger.Error("EMAILJS_SERVICE_ID, EMAILJS_TEMPLATE_ID and EMAILJS_PUBLIC_KEY are required when MAIL_BACKEND=emailjs")
			return nil
		}
		logger.Info("using EmailJS mail backend", "to", cfg.MailTo)
		return emailjs.NewEmailJSMailer(emailjs.Config{
			URL:         cfg.EmailJSURL,
			ServiceID:   cfg.EmailJSServiceID,
			TemplateID:  cfg.EmailJSTemplateID,
			PublicKey:   cfg.EmailJSPublicKey,
			AccessToken: cfg.EmailJSAccessToken,
		})
	case "log":
		logger.Info("using log mail backend; requests are not delivered")
		return logmail.NewLogMailer(logger)
	default:
		logger.Error("unknown MAIL_BACKEND", "backend", cfg.MailBackend)
		return nil
	}
}

func newMemoWriter(cfg *config.Config, logger *slog.Logger) memo.Writer {
	switch cfg.MemoBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			logger.Error("CLAUDE_API_KEY is required when MEMO_BACKEND=claude")
			return nil
		}
		logger.Info("using Claude memo backend", "model", cfg.ClaudeModel)
		return claudememo.NewClaudeWriter(cfg.ClaudeAPIKey, cfg.ClaudeModel, "")
	case "none":
		return memo.None{}
	case "static":
		return memo.Static{}
	default:
		logger.Error("unknown MEMO_BACKEND", "backend", cfg.MemoBackend)
		return nil
	}
}
