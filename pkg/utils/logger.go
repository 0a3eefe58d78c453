// Package utils содержит структурное логирование на базе zap.
package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig - настройки логирования
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json или text
	Output      string // путь к файлу; пусто/stderr/stdout - консоль
	Development bool   // человекочитаемый вывод и caller для разработки
}

// Logger оборачивает zap.Logger со структурными и printf-style методами
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// parseLevel разбирает уровень логирования, дефолт - info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger создает логгер по конфигурации. Недоступный файл вывода
// не фатален: происходит fallback на stderr.
func InitLogger(config LogConfig) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if config.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	if strings.ToLower(config.Format) == "text" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer
	switch config.Output {
	case "", "stderr":
		sink = zapcore.AddSync(os.Stderr)
	case "stdout":
		sink = zapcore.AddSync(os.Stdout)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			sink = zapcore.AddSync(os.Stderr)
		} else {
			sink = zapcore.AddSync(file)
		}
	}

	core := zapcore.NewCore(encoder, sink, parseLevel(config.Level))

	var opts []zap.Option
	if config.Development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}

	logger := zap.New(core, opts...)
	return &Logger{Logger: logger, sugar: logger.Sugar()}
}

// ============================================================
// Глобальный логгер
// ============================================================

// InitGlobalLogger инициализирует и устанавливает глобальный логгер
func InitGlobalLogger(config LogConfig) *Logger {
	logger := InitLogger(config)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger заменяет глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер, лениво создавая дефолтный
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// ============================================================
// Методы Logger
// ============================================================

// With возвращает дочерний логгер с постоянными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{Logger: child, sugar: child.Sugar()}
}

// WithComponent помечает логи именем компонента
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithEnv помечает логи окружением биржи
func (l *Logger) WithEnv(env string) *Logger {
	return l.With(Env(env))
}

// WithSymbol помечает логи торгуемым символом
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// Sugar возвращает printf-style логгер
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Глобальные функции логирования
// ============================================================

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetGlobalLogger().Logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetGlobalLogger().Logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { GetGlobalLogger().Logger.Fatal(msg, fields...) }

func Debugf(template string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { GetGlobalLogger().sugar.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { GetGlobalLogger().sugar.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(template, args...) }

// ============================================================
// Конструкторы доменных полей
// ============================================================

func Env(env string) zap.Field           { return zap.String("env", env) }
func Symbol(symbol string) zap.Field     { return zap.String("symbol", symbol) }
func OrderID(id string) zap.Field        { return zap.String("order_id", id) }
func TradeID(id string) zap.Field        { return zap.String("trade_id", id) }
func Price(p float64) zap.Field          { return zap.Float64("price", p) }
func Size(s float64) zap.Field           { return zap.Float64("size", s) }
func Spread(s float64) zap.Field         { return zap.Float64("spread", s) }
func PNL(v float64) zap.Field            { return zap.Float64("pnl", v) }
func Inventory(v float64) zap.Field      { return zap.Float64("inventory_usd", v) }
func Side(side string) zap.Field         { return zap.String("side", side) }
func State(state string) zap.Field       { return zap.String("state", state) }
func Latency(ms float64) zap.Field       { return zap.Float64("latency_ms", ms) }
func RequestID(id string) zap.Field      { return zap.String("request_id", id) }
func UserID(id int) zap.Field            { return zap.Int("user_id", id) }
func Component(name string) zap.Field    { return zap.String("component", name) }

// Переэкспорт базовых конструкторов zap, чтобы вызывающим не нужен
// прямой импорт
var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Float64 = zap.Float64
	Bool    = zap.Bool
	Err     = zap.Error
	Any     = zap.Any
)

// fieldsToInterface конвертирует zap-поля в плоский список ключ/значение
// для printf-style API
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key)
		switch {
		case f.Interface != nil:
			out = append(out, f.Interface)
		case f.String != "":
			out = append(out, f.String)
		default:
			out = append(out, f.Integer)
		}
	}
	return out
}
