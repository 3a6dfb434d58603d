package events

import (
	"context"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/config"
)

func newCLIContext(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("events", flag.ContinueOnError)
	set.String("host", "", "")
	set.Int("port", 0, "")
	set.String("session-cookie", "", "")
	set.String("edge-events-cookie", "", "")
	for k, v := range args {
		require.NoError(t, set.Set(k, v))
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestResolveTargetFromFlags(t *testing.T) {
	cfg, err := config.DefaultConfig()
	require.NoError(t, err)

	tgt, err := resolveTarget(context.Background(), newCLIContext(t, map[string]string{
		"host":               "edge.example.com",
		"session-cookie":     "session",
		"edge-events-cookie": "edge",
	}), cfg)
	require.NoError(t, err)

	assert.Equal(t, "edge.example.com", tgt.host)
	assert.Equal(t, cfg.EdgeEvents.Port, tgt.port)
	assert.Equal(t, "session", tgt.sessionCookie)
	assert.Equal(t, "edge", tgt.edgeEventsCookie)
	assert.Equal(t, "edge.example.com", tgt.testHost)
	assert.Zero(t, tgt.testPort)
}

func TestResolveTargetWithoutHost(t *testing.T) {
	cfg, err := config.DefaultConfig()
	require.NoError(t, err)

	_, err = resolveTarget(context.Background(), newCLIContext(t, map[string]string{
		"session-cookie":     "session",
		"edge-events-cookie": "edge",
	}), cfg)
	assert.ErrorIs(t, err, ErrNoEdgeEventsEndpoint)
}

func TestFollow(t *testing.T) {
	cfg, err := config.DefaultConfig()
	require.NoError(t, err)
	cur := &target{host: "old.example.com", port: 443, sessionCookie: "session", edgeEventsCookie: "old"}

	tests := []struct {
		name     string
		reply    *apiv1.FindCloudletReply
		wantOK   bool
		wantHost string
		wantPort int
	}{
		{name: "nil reply"},
		{name: "no cookie", reply: &apiv1.FindCloudletReply{Fqdn: "new.example.com"}},
		{name: "no fqdn", reply: &apiv1.FindCloudletReply{EdgeEventsCookie: "new"}},
		{
			name: "tcp port",
			reply: &apiv1.FindCloudletReply{
				Fqdn:             "new.example.com",
				EdgeEventsCookie: "new",
				Ports: []apiv1.AppPort{
					{Proto: apiv1.LProtoUDP, PublicPort: 53},
					{Proto: apiv1.LProtoTCP, PublicPort: 2016, FqdnPrefix: "tcp-"},
				},
			},
			wantOK:   true,
			wantHost: "tcp-new.example.com",
			wantPort: 2016,
		},
		{
			name:     "no testable port",
			reply:    &apiv1.FindCloudletReply{Fqdn: "new.example.com", EdgeEventsCookie: "new"},
			wantOK:   true,
			wantHost: "new.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := cur.follow(tt.reply, cfg)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				assert.Same(t, cur, next)
				return
			}
			assert.Equal(t, "new.example.com", next.host)
			assert.Equal(t, cfg.EdgeEvents.Port, next.port)
			assert.Equal(t, "session", next.sessionCookie)
			assert.Equal(t, "new", next.edgeEventsCookie)
			assert.Equal(t, tt.wantHost, next.testHost)
			assert.Equal(t, tt.wantPort, next.testPort)
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, 1, firstNonZero(1, 2))
	assert.Equal(t, 2, firstNonZero(0, 2))
}
