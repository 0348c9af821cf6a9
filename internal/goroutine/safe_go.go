package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ignatzorin/escrow-market/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go rh.run(fn)
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go rh.run(func() { fn(ctx) })
}

// run выполняет fn в текущей горутине и гасит panic.
func (rh *RecoveryHandler) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rh.logger.Errorf("Panic in goroutine: %v\nStack trace:\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// globalLogger берёт logger.Log в момент вызова, после logger.Init это уже настроенный логгер.
type globalLogger struct{}

func (globalLogger) Errorf(format string, args ...interface{}) {
	logger.Log.Errorf(format, args...)
}

// DefaultRecoveryHandler - глобальный обработчик, пишет в общий logrus логгер
var DefaultRecoveryHandler = NewRecoveryHandler(globalLogger{})

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}
