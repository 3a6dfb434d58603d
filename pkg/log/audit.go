package log

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Audit stages for edge event stream traffic.
const (
	StageSent     = "Sent"
	StageReceived = "Received"
)

// AuditLog is one audited message on an edge event stream.
type AuditLog struct {
	Kind      string `json:"kind"`
	AuditID   string `json:"auditID"`
	SessionID string `json:"sessionID"`
	Stage     string `json:"stage"`
	Endpoint  string `json:"endpoint"`
	EventType string `json:"eventType"`
	Data      any    `json:"data"`
}

type AuditOption func(*AuditLog)

func (al *AuditLog) applyOpts(opts []AuditOption) {
	for _, opt := range opts {
		opt(al)
	}

	if al.Kind == "" {
		al.Kind = "EdgeEvent"
	}
	if al.AuditID == "" {
		al.AuditID = uuid.New().String()
	}
}

func WithKind(kind string) AuditOption {
	return func(al *AuditLog) { al.Kind = kind }
}

func WithAuditID(auditID string) AuditOption {
	return func(al *AuditLog) { al.AuditID = auditID }
}

// WithSessionID tags the entry with the stream it belongs to.
func WithSessionID(sessionID string) AuditOption {
	return func(al *AuditLog) { al.SessionID = sessionID }
}

func WithStage(stage string) AuditOption {
	return func(al *AuditLog) { al.Stage = stage }
}

func WithEndpoint(endpoint string) AuditOption {
	return func(al *AuditLog) { al.Endpoint = endpoint }
}

func WithEventType(eventType string) AuditOption {
	return func(al *AuditLog) { al.EventType = eventType }
}

func WithData(data any) AuditOption {
	return func(al *AuditLog) { al.Data = data }
}

type AuditLogger interface {
	Log(...AuditOption)
}

func NewNopAuditLogger() AuditLogger {
	return &auditLogger{logger: zap.NewNop()}
}

// NewAuditLogger writes one JSON line per entry, to stdout when logFile is empty.
func NewAuditLogger(logFile string) AuditLogger {
	var w zapcore.WriteSyncer
	if logFile != "" {
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    64, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		})
	} else {
		w = zapcore.AddSync(os.Stdout)
	}
	return newAuditLogger(w)
}

func newAuditLogger(w zapcore.WriteSyncer) *auditLogger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.LevelKey = ""
	encoderConfig.MessageKey = ""
	encoderConfig.CallerKey = ""
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		w,
		zap.NewAtomicLevelAt(zap.InfoLevel),
	)
	return &auditLogger{logger: zap.New(core)}
}

type auditLogger struct {
	logger *zap.Logger
}

func (l *auditLogger) Log(opts ...AuditOption) {
	al := &AuditLog{}
	al.applyOpts(opts)

	l.logger.Log(zapcore.InfoLevel, "",
		zap.String("kind", al.Kind),
		zap.String("auditID", al.AuditID),
		zap.String("sessionID", al.SessionID),
		zap.String("stage", al.Stage),
		zap.String("endpoint", al.Endpoint),
		zap.String("eventType", al.EventType),
		zap.Any("data", al.Data),
	)
}

// CreateAuditLogFilepath derives the audit log path from the main log path,
// e.g. "/var/log/edgeprobe.log" becomes "/var/log/edgeprobe.audit".
func CreateAuditLogFilepath(logFile string) string {
	return strings.TrimSuffix(logFile, ".log") + ".audit"
}
