/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/Seednode/tunebox/games"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

const partyManifest = `
name: Party Classics
owner: dj
cover: https://img.example/party.jpg
tracks:
  - id: dq
    title: Dancing Queen
    artist: ABBA
    clip: https://clips.example/dq.mp3
  - title: September
    artist: Earth, Wind & Fire
`

func TestManifestLookup(t *testing.T) {
	t.Parallel()

	m := &Manifest{fsys: fstest.MapFS{
		"party.yaml":  {Data: []byte(partyManifest)},
		"short.yml":   {Data: []byte("tracks:\n  - title: Intro\n")},
		"broken.yaml": {Data: []byte("tracks: [")},
	}}

	pl, err := m.Lookup(context.Background(), "manifest:party")
	require.NoError(t, err)
	assert.Equal(t, "Party Classics", pl.Info.Name)
	assert.Equal(t, "dj", pl.Info.Owner)
	assert.Equal(t, "https://img.example/party.jpg", pl.Info.CoverURL)
	assert.Equal(t, "manifest:party", pl.Info.Reference)
	require.Len(t, pl.Tracks, 2)
	assert.Equal(t, games.Track{ID: "dq", Title: "Dancing Queen", Artist: "ABBA", Source: "https://clips.example/dq.mp3"}, pl.Tracks[0])
	assert.Equal(t, "party-2", pl.Tracks[1].ID)
	assert.Empty(t, pl.Tracks[1].Source)

	pl, err = m.Lookup(context.Background(), "manifest:short")
	require.NoError(t, err)
	assert.Equal(t, "short", pl.Info.Name)
	assert.Len(t, pl.Tracks, 1)

	_, err = m.Lookup(context.Background(), "manifest:broken")
	assert.Error(t, err)

	_, err = m.Lookup(context.Background(), "manifest:missing")
	assert.Error(t, err)

	_, err = m.Lookup(context.Background(), "manifest:../etc/passwd")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNewManifestReadsDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "party.yaml"), []byte(partyManifest), 0o644))

	pl, err := NewManifest(dir).Lookup(context.Background(), "manifest:party")
	require.NoError(t, err)
	assert.Len(t, pl.Tracks, 2)
}

type stubPlaylists struct {
	name string
}

func (s stubPlaylists) Lookup(_ context.Context, reference string) (games.Playlist, error) {
	return games.Playlist{Info: games.PlaylistInfo{Name: s.name, Reference: reference}}, nil
}

func TestPlaylistsRouting(t *testing.T) {
	t.Parallel()

	p := Playlists{
		Spotify:  stubPlaylists{name: "spotify"},
		Manifest: stubPlaylists{name: "manifest"},
	}

	tests := []struct {
		reference string
		want      string
	}{
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc", "spotify"},
		{"https://open.spotify.com/intl-de/playlist/37i9dQZF1DXcBWIGoYBM5M", "spotify"},
		{"spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "spotify"},
		{"manifest:party", "manifest"},
	}

	for _, tt := range tests {
		pl, err := p.Lookup(context.Background(), tt.reference)
		require.NoError(t, err, tt.reference)
		assert.Equal(t, tt.want, pl.Info.Name, tt.reference)
	}

	_, err := p.Lookup(context.Background(), "https://example.com/my-playlist")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Playlists{}.Lookup(context.Background(), "manifest:party")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Playlists{}.Lookup(context.Background(), "spotify:playlist:abc")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSpotifyPlaylistID(t *testing.T) {
	t.Parallel()

	id, err := SpotifyPlaylistID("https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc")
	require.NoError(t, err)
	assert.Equal(t, "37i9dQZF1DXcBWIGoYBM5M", id)

	id, err = SpotifyPlaylistID("spotify:playlist:abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = SpotifyPlaylistID("https://open.spotify.com/album/abc123")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSpotifyLookup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/playlists/abc123/tracks"):
			_, _ = io.WriteString(w, `{"items": [
				{"track": {"type": "track", "id": "t1", "name": "Dancing Queen", "artists": [{"name": "ABBA"}]}},
				{"track": {"type": "track", "id": "", "name": "Local File", "artists": [{"name": "Me"}]}}
			], "next": null}`)
		case strings.HasSuffix(r.URL.Path, "/playlists/abc123"):
			_, _ = io.WriteString(w, `{"id": "abc123", "name": "Disco", "owner": {"display_name": "dj"},
				"images": [{"url": "https://img.example/disco.jpg"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	s := &Spotify{client: spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))}

	pl, err := s.Lookup(context.Background(), "spotify:playlist:abc123")
	require.NoError(t, err)
	assert.Equal(t, "Disco", pl.Info.Name)
	assert.Equal(t, "dj", pl.Info.Owner)
	assert.Equal(t, "https://img.example/disco.jpg", pl.Info.CoverURL)
	require.Len(t, pl.Tracks, 1)
	assert.Equal(t, games.Track{ID: "t1", Title: "Dancing Queen", Artist: "ABBA"}, pl.Tracks[0])

	_, err = s.Lookup(context.Background(), "spotify:playlist:missing")
	assert.Error(t, err)
}

type stubClips struct {
	calls int
}

func (s *stubClips) Resolve(_ context.Context, track games.Track) (string, error) {
	s.calls++
	return "/audio/" + track.ID + ".mp3", nil
}

func TestClipsResolve(t *testing.T) {
	t.Parallel()

	ref, err := Clips{}.Resolve(context.Background(), games.Track{Title: "x", Source: "https://clips.example/x.mp3"})
	require.NoError(t, err)
	assert.Equal(t, "https://clips.example/x.mp3", ref)

	_, err = Clips{}.Resolve(context.Background(), games.Track{Title: "x"})
	assert.ErrorIs(t, err, ErrNoClip)

	downloader := &stubClips{}
	ref, err = Clips{Downloader: downloader}.Resolve(context.Background(), games.Track{ID: "y", Title: "y"})
	require.NoError(t, err)
	assert.Equal(t, "/audio/y.mp3", ref)
	assert.Equal(t, 1, downloader.calls)
}

func TestYtDlpUsesCachedClip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	track := games.Track{ID: "dq", Title: "Dancing Queen", Artist: "ABBA"}

	y := &YtDlp{
		Binary:    filepath.Join(dir, "does-not-exist"),
		Dir:       dir,
		URLPrefix: "/audio",
		Log:       zerolog.Nop(),
	}

	_, err := y.Resolve(context.Background(), track)
	require.Error(t, err, "a missing binary fails without a cached clip")

	require.NoError(t, os.WriteFile(filepath.Join(dir, clipName(track)), []byte("ID3"), 0o644))

	ref, err := y.Resolve(context.Background(), track)
	require.NoError(t, err)
	assert.Equal(t, "/audio/"+clipName(track), ref)
}

func TestClipNameIsStable(t *testing.T) {
	t.Parallel()

	a := games.Track{ID: "1", Title: "Song", Artist: "Band"}
	b := games.Track{ID: "2", Title: "Song", Artist: "Band"}

	assert.Equal(t, clipName(a), clipName(a))
	assert.NotEqual(t, clipName(a), clipName(b))
	assert.True(t, strings.HasSuffix(clipName(a), ".mp3"))
}
