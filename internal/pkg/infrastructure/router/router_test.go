package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/matryer/is"
)

func TestControlEndpoints(t *testing.T) {
	is := is.New(t)

	var unhealthy atomic.Bool

	r := New("iot-sensor-storage")
	Control(r, func(ctx context.Context) error {
		if unhealthy.Load() {
			return errors.New("database is locked")
		}
		return nil
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("sensor_storage_records 0\n"))
	}))

	server := httptest.NewServer(r)
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNoContent)

	unhealthy.Store(true)
	resp, err = http.Get(server.URL + "/health")
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusServiceUnavailable)

	resp, err = http.Get(server.URL + "/metrics")
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)
}
