/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/tunebox/games"
	"github.com/Seednode/tunebox/sources"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const (
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, log zerolog.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("tunebox v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("client", realIP(r)).
			Int("bytes", written).
			Dur("elapsed", time.Since(startTime)).
			Msg("served version")
	}
}

// newSources wires up whichever playlist backends the configuration
// enables. Clips fall back to yt-dlp only when a binary is configured.
func newSources(ctx context.Context, cfg *Config, log zerolog.Logger) (games.PlaylistProvider, games.ClipResolver, error) {
	var playlists sources.Playlists

	if cfg.spotifyClientID != "" {
		spotify, err := sources.NewSpotify(ctx, cfg.spotifyClientID, cfg.spotifyClientSecret)
		if err != nil {
			return nil, nil, err
		}
		playlists.Spotify = spotify
		log.Info().Msg("spotify playlists enabled")
	}

	if cfg.manifestDir != "" {
		playlists.Manifest = sources.NewManifest(cfg.manifestDir)
		log.Info().Str("dir", cfg.manifestDir).Msg("manifest playlists enabled")
	}

	if playlists.Spotify == nil && playlists.Manifest == nil {
		log.Warn().Msg("no playlist backend configured, rooms cannot be created")
	}

	var clips sources.Clips
	if cfg.ytDlp != "" {
		clips.Downloader = &sources.YtDlp{
			Binary:    cfg.ytDlp,
			Dir:       cfg.audioDir,
			URLPrefix: cfg.prefix + "/audio",
			Length:    cfg.clipLength,
			Log:       log.With().Str("component", "yt-dlp").Logger(),
		}
		log.Info().Str("binary", cfg.ytDlp).Str("dir", cfg.audioDir).Msg("clip downloads enabled")
	}

	return playlists, clips, nil
}

func newRegistry(cfg *Config, playlists games.PlaylistProvider, clips games.ClipResolver, log zerolog.Logger) *games.Registry {
	return games.NewRegistry(games.Options{
		Playlists:   playlists,
		Clips:       clips,
		Logger:      log,
		Durations:   cfg.roundDurations(),
		MaxRounds:   cfg.maxRounds,
		RevealPause: cfg.revealPause,
		EmptyGrace:  cfg.emptyRoomGrace,
		ClipTimeout: cfg.clipTimeout,
		IdleTimeout: cfg.sessionTimeout,
	})
}

func newRouter(cfg *Config, reg *games.Registry, log zerolog.Logger, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, log, errs))

	if cfg.ytDlp != "" {
		mux.GET(cfg.prefix+"/audio/*filepath", serveAudio(cfg))
	}

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	registerRooms(cfg, reg, log, mux, errs)

	return mux
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log := newLogger(cfg)

	log.Info().Msgf("starting tunebox v%s", releaseVersion)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	playlists, clips, err := newSources(ctx, cfg, log)
	if err != nil {
		return err
	}

	reg := newRegistry(cfg, playlists, clips, log)
	defer reg.Close()

	errs := make(chan error, 64)
	go func() {
		for {
			select {
			case err := <-errs:
				log.Debug().Err(err).Msg("response write failed")
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, reg, log, errs),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: timeout,
	}

	go func() {
		var err error

		log.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	log.Info().Msg("shut down")

	return nil
}
