/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Seednode/tunebox/games"
	"github.com/rs/zerolog"
)

func newLogger(cfg *Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps room-creation failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, games.ErrInvalidDuration),
		errors.Is(err, games.ErrInvalidRounds),
		errors.Is(err, games.ErrInvalidName),
		errors.Is(err, games.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, games.ErrInvalidPlaylist):
		return http.StatusUnprocessableEntity
	case errors.Is(err, games.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, games.ErrCapacityExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) error {
	return writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Code: games.ErrorCode(err)})
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
