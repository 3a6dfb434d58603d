package common

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/leptonai/edgeprobe/pkg/config"
	"github.com/leptonai/edgeprobe/pkg/log"
)

// Setup loads the config named by the global --config flag, or the default
// config file when it exists, applies the global logging flags and installs
// the global logger.
func Setup(cliContext *cli.Context) (*config.Config, error) {
	cfg, err := loadConfig(cliContext.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	if lvl := cliContext.GlobalString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if f := cliContext.GlobalString("log-file"); f != "" {
		cfg.LogFile = f
	}

	zapLvl, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetLogger(log.CreateLogger(zapLvl, cfg.LogFile))

	if zapLvl.Level() > zap.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	return cfg, nil
}

func loadConfig(file string) (*config.Config, error) {
	if file != "" {
		return config.Load(file)
	}

	def, err := config.DefaultConfigFile()
	if err == nil {
		if _, serr := os.Stat(def); serr == nil {
			log.Logger.Debugw("loading default config", "file", def)
			return config.Load(def)
		}
	}
	return config.DefaultConfig()
}

// AuditLogger returns an audit logger next to the log file, or a nop
// logger when logging to stderr.
func AuditLogger(cfg *config.Config) log.AuditLogger {
	if cfg.LogFile == "" {
		return log.NewNopAuditLogger()
	}
	return log.NewAuditLogger(log.CreateAuditLogFilepath(cfg.LogFile))
}
