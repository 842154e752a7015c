package rucio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rucio-tools/internal/config"
)

type recorded struct {
	method string
	path   string
	token  string
	body   map[string]any
}

// fakeServer answers the handful of endpoints the client uses.
func fakeServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.EscapedPath(), token: r.Header.Get("X-Rucio-Auth-Token")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		calls = append(calls, rec)
		if h, ok := routes[r.Method+" "+rec.path]; ok {
			h(w, r)
			return
		}
		w.Header().Set("ExceptionClass", "DataIdentifierNotFound")
		w.Header().Set("ExceptionMessage", "not here")
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, srv *httptest.Server, cfg config.Rucio) *Client {
	t.Helper()
	cfg.Host = srv.URL
	c, err := New(cfg, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(config.Rucio{})
	assert.ErrorIs(t, err, ErrNoHost)
}

func TestUserpassAuthentication(t *testing.T) {
	srv, calls := fakeServer(t, map[string]http.HandlerFunc{
		"GET /auth/userpass": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Rucio-Username") != "jdoe" || r.Header.Get("X-Rucio-Password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("X-Rucio-Auth-Token", "tok-1")
		},
		"GET /rses/EIC-XRD": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"rse":"EIC-XRD","deterministic":true,"availability_write":false}`))
		},
	})
	c := newTestClient(t, srv, config.Rucio{Account: "eicprod", Username: "jdoe", Password: "secret"})

	info, err := c.GetRSE(context.Background(), "EIC-XRD")
	require.NoError(t, err)
	assert.Equal(t, RSEInfo{Name: "EIC-XRD", Deterministic: true, AvailabilityWrite: false}, info)

	require.Len(t, *calls, 2)
	assert.Equal(t, "tok-1", (*calls)[1].token)
}

func TestAuthenticationFailure(t *testing.T) {
	srv, _ := fakeServer(t, map[string]http.HandlerFunc{
		"GET /auth/userpass": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	})
	c := newTestClient(t, srv, config.Rucio{Username: "jdoe", Password: "wrong"})
	_, err := c.GetRSE(context.Background(), "EIC-XRD")
	assert.ErrorIs(t, err, ErrCannotAuthenticate)

	c = newTestClient(t, srv, config.Rucio{})
	_, err = c.GetRSE(context.Background(), "EIC-XRD")
	assert.ErrorIs(t, err, ErrCannotAuthenticate)
}

func TestLegacyAvailability(t *testing.T) {
	srv, _ := fakeServer(t, map[string]http.HandlerFunc{
		"GET /rses/OLD": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"rse":"OLD","availability":5}`))
		},
		"GET /rses/NEW": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"rse":"NEW","availability":7}`))
		},
	})
	c := newTestClient(t, srv, config.Rucio{Token: "tok"})

	info, err := c.GetRSE(context.Background(), "OLD")
	require.NoError(t, err)
	assert.False(t, info.AvailabilityWrite)

	info, err = c.GetRSE(context.Background(), "NEW")
	require.NoError(t, err)
	assert.True(t, info.AvailabilityWrite)
}

func TestGetMetadataEscapesName(t *testing.T) {
	srv, calls := fakeServer(t, map[string]http.HandlerFunc{
		"GET /dids/epic/RECO%2F26.10%2Fa.root/meta": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"scope":"epic","name":"RECO/26.10/a.root","bytes":11,"adler32":"1a0b045d","md5":"5eb63bbbe01eeed093cb22bb8f5acdc3"}`))
		},
	})
	c := newTestClient(t, srv, config.Rucio{Token: "tok"})

	meta, err := c.GetMetadata(context.Background(), "epic", "RECO/26.10/a.root")
	require.NoError(t, err)
	assert.Equal(t, int64(11), meta.Bytes)
	assert.Equal(t, "1a0b045d", meta.Adler32)
	assert.Equal(t, "tok", (*calls)[0].token)

	_, err = c.GetMetadata(context.Background(), "epic", "missing.root")
	assert.ErrorIs(t, err, ErrDataIdentifierNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not here", apiErr.Message)
}

func TestWriteCalls(t *testing.T) {
	created := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }
	srv, calls := fakeServer(t, map[string]http.HandlerFunc{
		"POST /dids/epic/RECO%2F26.10":      created,
		"POST /replicas":                    created,
		"POST /dids/epic/RECO%2F26.10/dids": created,
	})
	c := newTestClient(t, srv, config.Rucio{Token: "tok"})
	ctx := context.Background()

	require.NoError(t, c.AddDataset(ctx, "epic", "RECO/26.10"))
	require.NoError(t, c.AddReplicas(ctx, "EIC-XRD", []ReplicaFile{{Scope: "epic", Name: "RECO/26.10/a.root", Bytes: 11, Adler32: "1a0b045d"}}))
	require.NoError(t, c.Attach(ctx, "epic", "RECO/26.10", []DIDRef{{Scope: "epic", Name: "RECO/26.10/a.root"}}))

	require.Len(t, *calls, 3)
	assert.Equal(t, "DATASET", (*calls)[0].body["type"])
	assert.Equal(t, "EIC-XRD", (*calls)[1].body["rse"])
	files := (*calls)[1].body["files"].([]any)
	assert.Equal(t, "1a0b045d", files[0].(map[string]any)["adler32"])
	dids := (*calls)[2].body["dids"].([]any)
	assert.Equal(t, "RECO/26.10/a.root", dids[0].(map[string]any)["name"])
}

func TestErrorFromBody(t *testing.T) {
	srv, _ := fakeServer(t, map[string]http.HandlerFunc{
		"POST /dids/epic/ds": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"ExceptionClass":"DataIdentifierAlreadyExists","ExceptionMessage":"Data Identifier Already Exists."}`))
		},
		"POST /replicas": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})
	c := newTestClient(t, srv, config.Rucio{Token: "tok"})

	err := c.AddDataset(context.Background(), "epic", "ds")
	assert.ErrorIs(t, err, ErrDataIdentifierAlreadyExists)

	err = c.AddReplicas(context.Background(), "X", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "", apiErr.Class)
}
