package cli

import (
	"os"

	"github.com/getsentry/sentry-go"

	mayus "github.com/CarlosCaoLopez/Redes-Practica3"
	"github.com/CarlosCaoLopez/Redes-Practica3/pkg/log"
)

func loadServerConfig() (*mayus.ServerConfig, error) {
	if ConfigPath != "" {
		return mayus.LoadServerConfig(ConfigPath)
	}
	cfg := &mayus.ServerConfig{
		Listen:         ListenAddr,
		Lang:           Lang,
		Charset:        Charset,
		Legacy:         Legacy,
		IdleTimeoutSec: IdleTimeoutSec,
		MaxSessions:    MaxSessions,
		PeerRate:       PeerRate,
		PeerBurst:      PeerBurst,
		MirrorDir:      MirrorDir,
		ReportPath:     ReportPath,
		DSCP:           DSCP,
		WebPort:        WebPort,
		LogLevel:       LogLevel,
	}
	return cfg, cfg.Validate()
}

func loadClientConfig() (*mayus.ClientConfig, error) {
	cfg := &mayus.ClientConfig{
		Listen:           ClientListen,
		Remote:           RemoteAddr,
		OutputDir:        OutputDir,
		ReplyTimeoutMs:   ReplyTimeoutMs,
		MaxRetries:       MaxRetries,
		BackoffInitialMs: BackoffInitialMs,
		BackoffMaxMs:     BackoffMaxMs,
		LinesPerSecond:   LinesPerSecond,
		DSCP:             DSCP,
	}
	return cfg, cfg.Validate()
}

func initSentry() error {
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		cliLogger.Infof("init sentry with dsn:%s", dsn)
		return sentry.Init(sentry.ClientOptions{Dsn: dsn, Release: mayus.Version})
	}
	return nil
}

func initComponents(logLevel string) error {
	if err := log.InitGlobalLogger(logLevel); err != nil {
		return err
	}
	return initSentry()
}
