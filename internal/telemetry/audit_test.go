package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	routingKey string
	event      any
	headers    map[string]string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.routingKey = routingKey
	p.event = event
	p.headers = headers
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestAuditEmitterEmit(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.log", "fricon-core", "test")

	user := "u-1"
	emitter.Emit(context.Background(), "INFO", "reconnected", "req-9", &user)

	require.Equal(t, "audit.log", pub.routingKey)
	env, ok := pub.event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", env.EventType)
	assert.Equal(t, "fricon-core", env.Service)
	assert.Equal(t, "reconnected", env.Payload.Text)
	assert.Equal(t, &user, env.UserID)
	assert.Equal(t, "req-9", pub.headers["x-request-id"])
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "INFO", "ignored", "", nil)
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "fricon-core", "test", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
