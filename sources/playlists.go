/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sources holds the playlist and clip collaborators a room is
// built from.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Seednode/tunebox/games"
)

var ErrUnsupported = errors.New("unsupported playlist reference")

// Playlists routes a reference to the backend that understands it.
// Either backend may be nil, in which case its references are rejected.
type Playlists struct {
	Spotify  games.PlaylistProvider
	Manifest games.PlaylistProvider
}

func (p Playlists) Lookup(ctx context.Context, reference string) (games.Playlist, error) {
	switch {
	case IsSpotifyReference(reference):
		if p.Spotify == nil {
			return games.Playlist{}, fmt.Errorf("%w: spotify is not configured", ErrUnsupported)
		}
		return p.Spotify.Lookup(ctx, reference)
	case strings.HasPrefix(reference, manifestScheme):
		if p.Manifest == nil {
			return games.Playlist{}, fmt.Errorf("%w: manifests are not configured", ErrUnsupported)
		}
		return p.Manifest.Lookup(ctx, reference)
	default:
		return games.Playlist{}, fmt.Errorf("%w: %q", ErrUnsupported, reference)
	}
}
