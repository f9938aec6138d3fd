package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/logger"
)

// RecoveryHandler обрабатывает panic в фоновых задачах
type RecoveryHandler struct {
	log func() *logrus.Logger
}

// NewRecoveryHandler создает обработчик, пишущий в переданный логгер
func NewRecoveryHandler(l *logrus.Logger) *RecoveryHandler {
	return &RecoveryHandler{log: func() *logrus.Logger { return l }}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	go func() {
		defer rh.recover(name)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer rh.recover(name)
		fn(ctx)
	}()
}

// Run выполняет fn в текущей горутине и превращает panic в запись лога.
// Возвращает true, если fn завершилась без panic.
func (rh *RecoveryHandler) Run(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rh.log().WithFields(logrus.Fields{"task": name, "panic": r}).
				Errorf("panic в фоновой задаче\n%s", debug.Stack())
			ok = false
		}
	}()
	fn()
	return true
}

func (rh *RecoveryHandler) recover(name string) {
	if r := recover(); r != nil {
		rh.log().WithFields(logrus.Fields{"task": name, "panic": r}).
			Errorf("panic в горутине\n%s", debug.Stack())
	}
}

// DefaultRecoveryHandler пишет в глобальный логгер приложения
var DefaultRecoveryHandler = &RecoveryHandler{log: logger.Get}

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(name string, fn func()) {
	DefaultRecoveryHandler.SafeGo(name, fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, name, fn)
}

// Run - выполнение задачи с перехватом panic через глобальный обработчик
func Run(name string, fn func()) bool {
	return DefaultRecoveryHandler.Run(name, fn)
}
