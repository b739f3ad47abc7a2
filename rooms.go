/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Seednode/tunebox/games"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

const (
	playerCookieName = "tunebox_id"
	maxCreateBody    = 4096
	qrSize           = 320
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type createRoomRequest struct {
	Identity          string `json:"identity"`
	PlaylistReference string `json:"playlistReference"`
	RoundDuration     int    `json:"roundDuration"`
	TotalRounds       int    `json:"totalRounds"`
}

type createRoomResponse struct {
	RoomCode     string         `json:"roomCode"`
	HostIdentity string         `json:"hostIdentity"`
	Snapshot     games.Snapshot `json:"snapshot"`
}

// playerID returns the caller's session key, minting one if the request
// carries none. The returned cookie is nil when the request already had one.
func playerID(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", nil
	}
	id := hex.EncodeToString(buf)

	return id, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func createRoom(cfg *Config, reg *games.Registry, log zerolog.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		var req createRoomRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBody)).Decode(&req); err != nil {
			if err := writeError(w, fmt.Errorf("%w: %v", games.ErrMalformed, err)); err != nil {
				errs <- err
			}
			return
		}

		code, snap, err := reg.Create(r.Context(), games.RoomConfig{
			HostIdentity:      req.Identity,
			PlaylistReference: req.PlaylistReference,
			RoundDuration:     time.Duration(req.RoundDuration) * time.Second,
			TotalRounds:       req.TotalRounds,
		})
		if err != nil {
			log.Info().Err(err).Str("client", realIP(r)).Msg("room creation rejected")

			if err := writeError(w, err); err != nil {
				errs <- err
			}
			return
		}

		if _, cookie := playerID(r); cookie != nil {
			http.SetCookie(w, cookie)
		}

		err = writeJSON(w, http.StatusCreated, createRoomResponse{
			RoomCode:     code,
			HostIdentity: snap.HostIdentity,
			Snapshot:     snap,
		})
		if err != nil {
			errs <- err
		}
	}
}

func roomSnapshot(cfg *Config, reg *games.Registry, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(cfg, w)

		room, err := reg.Get(p.ByName("code"))
		if err != nil {
			if err := writeError(w, err); err != nil {
				errs <- err
			}
			return
		}

		snap, err := room.Snapshot()
		if err != nil {
			err = fmt.Errorf("%w: %s", games.ErrRoomNotFound, room.Code())
			if err := writeError(w, err); err != nil {
				errs <- err
			}
			return
		}

		if err := writeJSON(w, http.StatusOK, snap); err != nil {
			errs <- err
		}
	}
}

func serveRoomSocket(reg *games.Registry, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		session, cookie := playerID(r)

		var header http.Header
		if cookie != nil {
			header = http.Header{"Set-Cookie": {cookie.String()}}
		}

		ws, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			log.Debug().Err(err).Str("client", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		conn := games.NewConn(ws, log.With().Str("client", realIP(r)).Logger())

		room, err := reg.Get(p.ByName("code"))
		if err != nil {
			conn.Reject(err)
			return
		}

		conn.Serve(room, session, r.URL.Query().Get("identity"))
	}
}

// joinURL is the link players scan to join a room. Only the socket and
// the JSON snapshot live under /rooms/, so the link points at the web
// client, which is served in front of this API and reads the room code
// from the query string.
func joinURL(cfg *Config, r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + cfg.prefix + "/?room=" + code
}

// serveQR renders a PNG QR code of the room's join link.
func serveQR(cfg *Config, reg *games.Registry, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		room, err := reg.Get(p.ByName("code"))
		if err != nil {
			securityHeaders(cfg, w)
			if err := writeError(w, err); err != nil {
				errs <- err
			}
			return
		}

		png, err := qrcode.Encode(joinURL(cfg, r, room.Code()), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func registerRooms(cfg *Config, reg *games.Registry, log zerolog.Logger, mux *httprouter.Router, errs chan<- error) {
	mux.POST(cfg.prefix+"/rooms", createRoom(cfg, reg, log, errs))
	mux.GET(cfg.prefix+"/rooms/:code", roomSnapshot(cfg, reg, errs))
	mux.GET(cfg.prefix+"/rooms/:code/qr", serveQR(cfg, reg, errs))
	mux.GET(cfg.prefix+"/rooms/:code/ws", serveRoomSocket(reg, log))
}
