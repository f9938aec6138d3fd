package logger

import (
	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Используем JSON формат для production, text для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// Get возвращает глобальный логгер, а до Init - стандартный логгер logrus.
// Сервисы и тесты могут логировать, не заботясь о порядке инициализации.
func Get() *logrus.Logger {
	if Log != nil {
		return Log
	}
	return logrus.StandardLogger()
}

// WithFields - запись с полями поверх глобального логгера.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Get().WithFields(fields)
}
