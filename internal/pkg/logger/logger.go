package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数
type LogOption struct {
	Format   string // "console"（开发调试）或 "json"（结构化，生产）
	LogDir   string // 日志目录，空表示只输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩旧日志文件
}

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	// 未显式初始化前提供一个开发用 logger，避免空指针
	log, _ = zap.NewDevelopment(zap.AddCallerSkip(1))
	sugar = log.Sugar()
}

// InitLogger 按配置重建全局 logger
func InitLogger(opt LogOption) {
	level := parseLevel(opt.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoder(func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	})

	var encoder zapcore.Encoder
	if opt.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opt.LogDir != "" {
		// 按大小滚动，保留近期文件
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, "perp-core-svc.log"),
			MaxSize:    256, // MB
			MaxBackups: 10,
			MaxAge:     7, // days
			Compress:   opt.Compress,
			LocalTime:  true,
		}
		syncers = append(syncers, zapcore.AddSync(rotator))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = log.Sugar()
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync 刷新缓冲日志，进程退出前调用
func Sync() {
	_ = log.Sync()
}

func Debugf(format string, args ...any) { sugar.Debugf(format, args...) }
func Infof(format string, args ...any)  { sugar.Infof(format, args...) }
func Warnf(format string, args ...any)  { sugar.Warnf(format, args...) }
func Errorf(format string, args ...any) { sugar.Errorf(format, args...) }

func Debug(args ...any) { sugar.Debug(args...) }
func Info(args ...any)  { sugar.Info(args...) }
func Warn(args ...any)  { sugar.Warn(args...) }
func Error(args ...any) { sugar.Error(args...) }

// ZapWriter 将 go-zero logx 的输出桥接到 zap
type ZapWriter struct{}

func (ZapWriter) Alert(v any)                        { sugar.Warn(v) }
func (ZapWriter) Close() error                       { return log.Sync() }
func (ZapWriter) Debug(v any, _ ...logx.LogField)    { sugar.Debug(v) }
func (ZapWriter) Error(v any, _ ...logx.LogField)    { sugar.Error(v) }
func (ZapWriter) Info(v any, _ ...logx.LogField)     { sugar.Info(v) }
func (ZapWriter) Severe(v any)                       { sugar.Error(v) }
func (ZapWriter) Slow(v any, _ ...logx.LogField)     { sugar.Warn(v) }
func (ZapWriter) Stack(v any)                        { sugar.Error(v) }
func (ZapWriter) Stat(v any, _ ...logx.LogField)     { sugar.Info(v) }
