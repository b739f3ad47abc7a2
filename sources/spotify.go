/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sources

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/Seednode/tunebox/games"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var spotifyPlaylist = regexp.MustCompile(`(?:open\.spotify\.com/(?:[a-z-]+/)?playlist/|spotify:playlist:)([A-Za-z0-9]+)`)

// IsSpotifyReference reports whether reference looks like a Spotify
// playlist URL or URI.
func IsSpotifyReference(reference string) bool {
	return spotifyPlaylist.MatchString(reference)
}

// SpotifyPlaylistID extracts the playlist ID from a Spotify URL or URI.
func SpotifyPlaylistID(reference string) (string, error) {
	m := spotifyPlaylist.FindStringSubmatch(reference)
	if m == nil {
		return "", fmt.Errorf("%w: not a spotify playlist: %q", ErrUnsupported, reference)
	}

	return m[1], nil
}

// Spotify looks playlists up through the Spotify Web API using the
// client-credentials flow.
type Spotify struct {
	client *spotify.Client
}

// NewSpotify fetches an initial token so bad credentials fail at startup
// rather than at the first room creation.
func NewSpotify(ctx context.Context, clientID, clientSecret string) (*Spotify, error) {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	if _, err := cfg.Token(ctx); err != nil {
		return nil, fmt.Errorf("spotify credentials: %w", err)
	}

	return &Spotify{client: spotify.New(cfg.Client(context.Background()))}, nil
}

func (s *Spotify) Lookup(ctx context.Context, reference string) (games.Playlist, error) {
	id, err := SpotifyPlaylistID(reference)
	if err != nil {
		return games.Playlist{}, err
	}

	pl, err := s.client.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		return games.Playlist{}, fmt.Errorf("fetching playlist %s: %w", id, err)
	}

	out := games.Playlist{
		Info: games.PlaylistInfo{
			Name:      pl.Name,
			Owner:     pl.Owner.DisplayName,
			Reference: reference,
		},
	}
	if len(pl.Images) > 0 {
		out.Info.CoverURL = pl.Images[0].URL
	}

	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id))
	if err != nil {
		return games.Playlist{}, fmt.Errorf("fetching tracks of %s: %w", id, err)
	}

	for {
		for _, item := range page.Items {
			t := item.Track.Track
			if t == nil || t.ID == "" || t.Name == "" || len(t.Artists) == 0 {
				continue
			}

			out.Tracks = append(out.Tracks, games.Track{
				ID:     string(t.ID),
				Title:  t.Name,
				Artist: t.Artists[0].Name,
			})
		}

		err := s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return games.Playlist{}, fmt.Errorf("paging tracks of %s: %w", id, err)
		}
	}

	return out, nil
}
