package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	log  *logrus.Logger
)

// Get returns the process-wide logger.
func Get() *logrus.Logger {
	once.Do(func() {
		log = logrus.New()
		log.Out = os.Stdout
		log.SetLevel(logrus.InfoLevel)
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			PadLevelText:  true,
		})
	})
	return log
}

// SetLevel parses level and applies it, falling back to info.
func SetLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Get().SetLevel(lvl)
	return lvl
}
