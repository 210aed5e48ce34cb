package logs

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger — общий логгер процесса. Init настраивает его по конфигу.
var Logger = logrus.New()

type Options struct {
	Level  string // debug|info|warn|error
	Format string // text|json
	File   string // путь к файлу; пусто — stderr
}

func Init(o Options) {
	lvl, err := logrus.ParseLevel(o.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	switch o.Format {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if o.File != "" {
		f, err := os.OpenFile(o.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Logger.Warnf("log file %s: %v (falling back to stderr)", o.File, err)
			return
		}
		// пишем и в файл, и в stderr
		Logger.SetOutput(io.MultiWriter(os.Stderr, f))
	}
}
