/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Seednode/tunebox/games"
	"go.yaml.in/yaml/v3"
)

const manifestScheme = "manifest:"

var manifestName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type manifestFile struct {
	Name   string          `yaml:"name"`
	Owner  string          `yaml:"owner"`
	Cover  string          `yaml:"cover"`
	Tracks []manifestTrack `yaml:"tracks"`
}

type manifestTrack struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Artist string `yaml:"artist"`
	Clip   string `yaml:"clip"`
}

// Manifest serves playlists from YAML files in a directory. The
// reference "manifest:party" reads party.yaml (or party.yml).
type Manifest struct {
	fsys fs.FS
}

func NewManifest(dir string) *Manifest {
	return &Manifest{fsys: os.DirFS(dir)}
}

func (m *Manifest) Lookup(_ context.Context, reference string) (games.Playlist, error) {
	name := strings.TrimPrefix(reference, manifestScheme)
	if !manifestName.MatchString(name) {
		return games.Playlist{}, fmt.Errorf("%w: bad manifest name %q", ErrUnsupported, name)
	}

	var (
		data []byte
		err  error
	)
	for _, ext := range []string{".yaml", ".yml"} {
		data, err = fs.ReadFile(m.fsys, name+ext)
		if !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	if err != nil {
		return games.Playlist{}, fmt.Errorf("reading manifest %s: %w", name, err)
	}

	return parseManifest(data, reference, name)
}

func parseManifest(data []byte, reference, name string) (games.Playlist, error) {
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return games.Playlist{}, fmt.Errorf("parsing manifest %s: %w", name, err)
	}

	out := games.Playlist{
		Info: games.PlaylistInfo{
			Name:      mf.Name,
			Owner:     mf.Owner,
			CoverURL:  mf.Cover,
			Reference: reference,
		},
	}
	if out.Info.Name == "" {
		out.Info.Name = name
	}

	for i, t := range mf.Tracks {
		id := t.ID
		if id == "" {
			id = name + "-" + strconv.Itoa(i+1)
		}

		out.Tracks = append(out.Tracks, games.Track{
			ID:     id,
			Title:  t.Title,
			Artist: t.Artist,
			Source: filepath.ToSlash(t.Clip),
		})
	}

	return out, nil
}
