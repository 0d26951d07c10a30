package main

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/Trackfy/internal/api/codesapi"
	"github.com/BearBump/Trackfy/internal/models"
	"github.com/BearBump/Trackfy/internal/services/codes"
	"github.com/BearBump/Trackfy/internal/services/sweeper"
	"github.com/BearBump/Trackfy/internal/simulation"
	"github.com/BearBump/Trackfy/internal/storage/filestore"
	"github.com/stretchr/testify/require"
)

// Поднимает весь стек на файловом сторе и проходит create → get → delete.
func TestRunTrackfyAPI_EndToEnd(t *testing.T) {
	sim := simulation.New()
	st := filestore.New(filepath.Join(t.TempDir(), "data.json"), sim)
	svc := codes.New(st, sim, nil, 0)
	sw := sweeper.New(svc, nil, "").WithSettings(time.Hour, time.Hour)
	api := codesapi.New(svc, sw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runTrackfyAPI(ctx, trackfyAPIOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(a string) { addrCh <- a },
		}, api, sw)
	}()

	var base string
	select {
	case a := <-addrCh:
		base = "http://" + a
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Post(base+"/api/codes", "application/json",
		strings.NewReader(`{"cities":["São Paulo","Recife"]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created struct {
		Generation models.Generation `json:"generation"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	_ = resp.Body.Close()
	require.Equal(t, 2, created.Generation.TotalCodes)

	code := created.Generation.Codes[0].Code
	resp, err = http.Get(base + "/api/codes/" + code)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.TrackingCode
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	_ = resp.Body.Close()
	require.Equal(t, 0, got.CurrentStatus.Day)

	req, err := http.NewRequest(http.MethodDelete, base+"/api/codes/"+created.Generation.Codes[0].ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(base + "/api/stats")
	require.NoError(t, err)
	var stats models.StatsResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	_ = resp.Body.Close()
	require.Equal(t, 1, stats.Total)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
