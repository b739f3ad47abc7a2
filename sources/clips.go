/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Seednode/tunebox/games"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrNoClip = errors.New("no clip source for track")

// Clips uses a track's own clip reference when it has one and falls
// back to Downloader otherwise.
type Clips struct {
	Downloader games.ClipResolver
}

func (c Clips) Resolve(ctx context.Context, track games.Track) (string, error) {
	if track.Source != "" {
		return track.Source, nil
	}

	if c.Downloader == nil {
		return "", fmt.Errorf("%w: %s - %s", ErrNoClip, track.Artist, track.Title)
	}

	return c.Downloader.Resolve(ctx, track)
}

// YtDlp downloads a short audio segment for a track by searching for it
// with the yt-dlp binary. Finished clips are cached in Dir and served
// under URLPrefix.
type YtDlp struct {
	Binary    string
	Dir       string
	URLPrefix string
	Length    time.Duration
	Log       zerolog.Logger

	locks sync.Map // clip file name -> *sync.Mutex
}

func (y *YtDlp) Resolve(ctx context.Context, track games.Track) (string, error) {
	name := clipName(track)
	target := filepath.Join(y.Dir, name)
	url := path.Join(y.URLPrefix, name)

	lock, _ := y.locks.LoadOrStore(name, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		return url, nil
	}

	if err := os.MkdirAll(y.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating clip dir: %w", err)
	}

	start := 20 + rand.IntN(51)
	length := int(y.Length / time.Second)
	if length <= 0 {
		length = 30
	}

	args := []string{
		"--quiet",
		"--no-playlist",
		"--default-search", "ytsearch1",
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--download-sections", "*" + strconv.Itoa(start) + "-" + strconv.Itoa(start+length),
		"--output", filepath.Join(y.Dir, clipStem(track)) + ".%(ext)s",
		track.Artist + " - " + track.Title + " audio",
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, y.Binary, args...)
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp %q: %w: %s", track.Title, err, bytes.TrimSpace(stderr.Bytes()))
	}

	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		return "", fmt.Errorf("yt-dlp %q: no output written", track.Title)
	}

	y.Log.Info().Str("track", track.Title).Dur("took", time.Since(started)).Msg("clip downloaded")

	return url, nil
}

// clipStem is a file-system safe, stable name for a track's clip.
func clipStem(track games.Track) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(track.ID+"\x00"+track.Artist+"\x00"+track.Title)).String()
}

func clipName(track games.Track) string {
	return clipStem(track) + ".mp3"
}
