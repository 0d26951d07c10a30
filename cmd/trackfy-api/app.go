package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/Trackfy/internal/api/codesapi"
	"github.com/BearBump/Trackfy/internal/services/sweeper"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type trackfyAPIOpts struct {
	httpAddr string

	onListen func(httpAddr string)
}

// runTrackfyAPI поднимает HTTP-сервер и стартует ретенцию в соседней
// горутине; оба живут до отмены контекста.
func runTrackfyAPI(ctx context.Context, opts trackfyAPIOpts, api *codesapi.CodesAPI, sw *sweeper.Sweeper) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	api.Register(r)

	srv := &http.Server{Handler: r}
	httpErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()

	sweepErr := make(chan error, 1)
	go func() {
		sweepErr <- sw.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-sweepErr:
		return err
	}
}
