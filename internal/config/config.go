package config

import (
	"os"

	"github.com/spf13/pflag"
)

type Config struct {
	ListenAddr  string
	DBPath      string
	CatalogFile string
	ArchivePath string

	MailBackend string
	MailTo      string
	MailSubject string

	EmailJSURL         string
	EmailJSServiceID   string
	EmailJSTemplateID  string
	EmailJSPublicKey   string
	EmailJSAccessToken string

	MemoBackend  string
	ClaudeAPIKey string
	ClaudeModel  string

	LogLevel  string
	LogFile   string
	LogFormat string
}

func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		DBPath:      getEnv("DB_PATH", "/data/viatico.db"),
		CatalogFile: getEnv("CATALOG_FILE", ""),
		ArchivePath: getEnv("ARCHIVE_PATH", "/data/archive"),

		MailBackend: getEnv("MAIL_BACKEND", "log"),
		MailTo:      getEnv("MAIL_TO", "viaticos@example.com"),
		MailSubject: getEnv("MAIL_SUBJECT", "Solicitud de Viático"),

		EmailJSURL:         getEnv("EMAILJS_URL", ""),
		EmailJSServiceID:   getEnv("EMAILJS_SERVICE_ID", ""),
		EmailJSTemplateID:  getEnv("EMAILJS_TEMPLATE_ID", ""),
		EmailJSPublicKey:   getEnv("EMAILJS_PUBLIC_KEY", ""),
		EmailJSAccessToken: getEnv("EMAILJS_ACCESS_TOKEN", ""),

		MemoBackend:  getEnv("MEMO_BACKEND", "static"),
		ClaudeAPIKey: getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:  getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// ApplyFlags overrides cfg with any command-line flags present in args.
// Flags that are not given leave the environment value in place.
func ApplyFlags(cfg *Config, args []string) error {
	fs := pflag.NewFlagSet("viatico", pflag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to listen on")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite database")
	fs.StringVar(&cfg.CatalogFile, "catalog", cfg.CatalogFile, "personnel catalog file (.yaml or .jsonc)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	return fs.Parse(args)
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
