package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	audioDir            string
	bind                string
	clipLength          time.Duration
	clipTimeout         time.Duration
	durations           []int
	emptyRoomGrace      time.Duration
	manifestDir         string
	maxRounds           int
	port                int
	prefix              string
	profile             bool
	revealPause         time.Duration
	sessionTimeout      time.Duration
	spotifyClientID     string
	spotifyClientSecret string
	tlsCert             string
	tlsKey              string
	verbose             bool
	version             bool
	ytDlp               string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if (c.spotifyClientID == "") != (c.spotifyClientSecret == "") {
		return errors.New("both --spotify-client-id and --spotify-client-secret must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if len(c.durations) == 0 {
		return errors.New("at least one round duration must be allowed")
	}
	for _, d := range c.durations {
		if d < 1 {
			return fmt.Errorf("invalid round duration (must be positive): %d", d)
		}
	}
	if c.maxRounds < 1 {
		return fmt.Errorf("invalid max rounds (must be positive): %d", c.maxRounds)
	}
	if c.revealPause <= 0 || c.clipTimeout <= 0 || c.clipLength <= 0 {
		return errors.New("--reveal-pause, --clip-timeout and --clip-length must be positive")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) roundDurations() []time.Duration {
	out := make([]time.Duration, 0, len(c.durations))
	for _, d := range c.durations {
		out = append(out, time.Duration(d)*time.Second)
	}
	return out
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TUNEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "tunebox",
		Short:         "A multiplayer guess-the-song party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.audioDir, "audio-dir", "audio", "directory downloaded clips are stored in and served from (env: TUNEBOX_AUDIO_DIR)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TUNEBOX_BIND)")
	fs.DurationVar(&cfg.clipLength, "clip-length", 30*time.Second, "length of downloaded clips (env: TUNEBOX_CLIP_LENGTH)")
	fs.DurationVar(&cfg.clipTimeout, "clip-timeout", 2*time.Minute, "time allowed to resolve a single clip (env: TUNEBOX_CLIP_TIMEOUT)")
	fs.IntSliceVar(&cfg.durations, "durations", []int{15, 20, 30, 60}, "allowed round durations, in seconds (env: TUNEBOX_DURATIONS)")
	fs.DurationVar(&cfg.emptyRoomGrace, "empty-room-grace", 2*time.Minute, "time before rooms with nobody connected are closed (env: TUNEBOX_EMPTY_ROOM_GRACE)")
	fs.StringVar(&cfg.manifestDir, "manifest-dir", "", "directory of YAML playlists, used for manifest: references (env: TUNEBOX_MANIFEST_DIR)")
	fs.IntVar(&cfg.maxRounds, "max-rounds", 20, "maximum rounds per game (env: TUNEBOX_MAX_ROUNDS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TUNEBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TUNEBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TUNEBOX_PROFILE)")
	fs.DurationVar(&cfg.revealPause, "reveal-pause", 3*time.Second, "time the answer is shown between rounds (env: TUNEBOX_REVEAL_PAUSE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are ended (env: TUNEBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.spotifyClientID, "spotify-client-id", "", "spotify client id, enables spotify playlists (env: TUNEBOX_SPOTIFY_CLIENT_ID)")
	fs.StringVar(&cfg.spotifyClientSecret, "spotify-client-secret", "", "spotify client secret (env: TUNEBOX_SPOTIFY_CLIENT_SECRET)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TUNEBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TUNEBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TUNEBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TUNEBOX_VERSION)")
	fs.StringVar(&cfg.ytDlp, "yt-dlp", "", "path to yt-dlp, enables downloading clips for tracks without one (env: TUNEBOX_YT_DLP)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tunebox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
