package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log общий логгер приложения. До Init пишет текстом в stderr.
var Log = logrus.New()

// Init настраивает уровень и формат: text для development, JSON для остальных окружений.
func Init(level string, development bool) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if development {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// Silence отключает вывод логов (используется в тестах).
func Silence() {
	Log.SetOutput(io.Discard)
}
