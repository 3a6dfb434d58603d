package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
)

func newDiscoveryServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(URLPathRegisterClient, func(w http.ResponseWriter, r *http.Request) {
		var req apiv1.RegisterClientRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.AppName == "" {
			http.Error(w, "missing app name", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(apiv1.RegisterClientReply{Status: apiv1.RStatusSuccess, SessionCookie: "session-" + req.AppName})
	})
	mux.HandleFunc(URLPathAppInstList, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req apiv1.AppInstListRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.CarrierName == "fail" {
			_ = json.NewEncoder(w).Encode(apiv1.AppInstListReply{Status: apiv1.AIStatusFail})
			return
		}
		_ = json.NewEncoder(w).Encode(apiv1.AppInstListReply{
			Status: apiv1.AIStatusSuccess,
			Cloudlets: []apiv1.CloudletLocation{{
				CarrierName:  req.CarrierName,
				CloudletName: "cloudlet-a",
				AppInstances: []apiv1.AppInstance{{AppName: "app", Fqdn: "app.example.com"}},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegisterClient(t *testing.T) {
	var calls atomic.Int32
	srv := newDiscoveryServer(t, &calls)

	cli, err := New(srv.URL)
	require.NoError(t, err)

	reply, err := cli.RegisterClient(context.Background(), &apiv1.RegisterClientRequest{AppName: "game"})
	require.NoError(t, err)
	assert.Equal(t, "session-game", reply.SessionCookie)

	_, err = cli.RegisterClient(context.Background(), &apiv1.RegisterClientRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestGetAppInstList(t *testing.T) {
	var calls atomic.Int32
	srv := newDiscoveryServer(t, &calls)

	cli, err := New(srv.URL)
	require.NoError(t, err)

	req := &apiv1.AppInstListRequest{CarrierName: "tdg"}
	reply, err := cli.GetAppInstList(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, reply.Cloudlets, 1)
	assert.Equal(t, "cloudlet-a", reply.Cloudlets[0].CloudletName)

	_, err = cli.GetAppInstList(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "no cache configured")

	_, err = cli.GetAppInstList(context.Background(), &apiv1.AppInstListRequest{CarrierName: "fail"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_FAIL")
}

func TestGetAppInstListCached(t *testing.T) {
	var calls atomic.Int32
	srv := newDiscoveryServer(t, &calls)

	cli, err := New(srv.URL, WithCacheTTL(time.Minute))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := cli.GetAppInstList(context.Background(), &apiv1.AppInstListRequest{CarrierName: "tdg"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err = cli.GetAppInstList(context.Background(), &apiv1.AppInstListRequest{CarrierName: "att"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewInvalidEndpoint(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestReadAppInstList(t *testing.T) {
	yml := `
status: AI_SUCCESS
cloudlets:
- carrier_name: tdg
  cloudlet_name: berlin
  gps_location:
    latitude: 52.52
    longitude: 13.405
  appinstances:
  - app_name: game
    fqdn: game.berlin.example.com
    ports:
    - proto: L_PROTO_TCP
      public_port: 8008
`
	reply, err := ReadAppInstList(strings.NewReader(yml))
	require.NoError(t, err)
	require.Len(t, reply.Cloudlets, 1)
	assert.Equal(t, 52.52, reply.Cloudlets[0].GpsLocation.Latitude)
	assert.Equal(t, int32(8008), reply.Cloudlets[0].AppInstances[0].Ports[0].PublicPort)

	_, err = ReadAppInstList(strings.NewReader(`{"status":"AI_SUCCESS","cloudlets":[]}`))
	assert.True(t, errors.Is(err, ErrNoCandidates))

	_, err = ReadAppInstList(strings.NewReader(`{not yaml`))
	assert.Error(t, err)
}
