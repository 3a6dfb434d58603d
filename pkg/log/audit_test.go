package log

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestAuditLogApplyOpts(t *testing.T) {
	t.Run("all options", func(t *testing.T) {
		al := &AuditLog{}
		al.applyOpts([]AuditOption{
			WithKind("Stream"),
			WithAuditID("audit-1"),
			WithSessionID("session-1"),
			WithStage(StageSent),
			WithEndpoint("edge.example.com:443"),
			WithEventType("EVENT_LATENCY_SAMPLES"),
			WithData(map[string]string{"k": "v"}),
		})

		assert.Equal(t, "Stream", al.Kind)
		assert.Equal(t, "audit-1", al.AuditID)
		assert.Equal(t, "session-1", al.SessionID)
		assert.Equal(t, StageSent, al.Stage)
		assert.Equal(t, "edge.example.com:443", al.Endpoint)
		assert.Equal(t, "EVENT_LATENCY_SAMPLES", al.EventType)
		assert.Equal(t, map[string]string{"k": "v"}, al.Data)
	})

	t.Run("defaults", func(t *testing.T) {
		al := &AuditLog{}
		al.applyOpts(nil)

		assert.Equal(t, "EdgeEvent", al.Kind)
		_, err := uuid.Parse(al.AuditID)
		assert.NoError(t, err)
	})
}

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

var _ zapcore.WriteSyncer = (*bufferSyncer)(nil)

func TestAuditLoggerWritesJSONLine(t *testing.T) {
	buf := &bufferSyncer{}
	l := newAuditLogger(buf)
	l.Log(
		WithSessionID("s"),
		WithStage(StageReceived),
		WithEventType("EVENT_CLOUDLET_STATE"),
		WithData(map[string]int{"n": 1}),
	)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "EdgeEvent", got["kind"])
	assert.Equal(t, "s", got["sessionID"])
	assert.Equal(t, StageReceived, got["stage"])
	assert.Equal(t, "EVENT_CLOUDLET_STATE", got["eventType"])
	assert.NotEmpty(t, got["auditID"])
	assert.NotEmpty(t, got["ts"])
}

func TestNewAuditLoggerToFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "edgeprobe.audit")
	l := NewAuditLogger(f)
	require.NotNil(t, l)
	l.Log(WithStage(StageSent))

	NewNopAuditLogger().Log(WithStage(StageSent))
}

func TestCreateAuditLogFilepath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/var/log/edgeprobe.log", "/var/log/edgeprobe.audit"},
		{"/tmp/edgeprobe", "/tmp/edgeprobe.audit"},
		{"", ".audit"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CreateAuditLogFilepath(tt.in))
		})
	}
}
