// Package config loads the service settings from defaults, an optional
// config file, ANIZONE_* environment variables and bound CLI flags.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable
const EnvPrefix = "anizone"

// Keys
const (
	KeyListen         = "server.listen"
	KeyDebug          = "debug"
	KeyJSONLogs       = "log.json"
	KeyAnimeWorldURL  = "sites.animeworld"
	KeyAnimeSaturnURL = "sites.animesaturn"
	KeyMangaWorldURL  = "sites.mangaworld"
	KeyIndexURL       = "index.url"
	KeyIndexTimeout   = "index.timeout"
	KeyProbeTimeout   = "index.probe_timeout"
	KeyHomeCacheTTL   = "cache.home_ttl"
	KeyBackendURL     = "backend.url"
	KeyDBPath         = "storage.db_path"
	KeyProxyAllow     = "proxy.allow"
	KeyProxyPath      = "proxy.path"
)

// EnvKeyReplacer maps config keys to environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Default holds the factory value of every key
var Default = map[string]any{
	KeyListen:         ":8080",
	KeyDebug:          false,
	KeyJSONLogs:       false,
	KeyAnimeWorldURL:  "https://www.animeworld.ac",
	KeyAnimeSaturnURL: "https://www.animesaturn.cx",
	KeyMangaWorldURL:  "https://www.mangaworld.cx",
	KeyIndexURL:       "",
	KeyIndexTimeout:   10 * time.Second,
	KeyProbeTimeout:   5 * time.Second,
	KeyHomeCacheTTL:   2 * time.Minute,
	KeyBackendURL:     "",
	KeyDBPath:         "anizone.db",
	KeyProxyAllow:     []string{"sweetpixel.org", "animeworld.ac", "animesaturn.cx", "mangaworld.cx", "cdnmangaworld.com"},
	KeyProxyPath:      "/proxy",
}

// Config is the resolved settings of one run
type Config struct {
	Listen   string
	Debug    bool
	JSONLogs bool

	AnimeWorldURL  string
	AnimeSaturnURL string
	MangaWorldURL  string

	IndexURL     string
	IndexTimeout time.Duration
	ProbeTimeout time.Duration
	HomeCacheTTL time.Duration

	BackendURL string
	DBPath     string

	ProxyAllow []string
	ProxyPath  string
}

// New returns a viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	v.SetTypeByDefaultValue(true)
	for key, value := range Default {
		v.SetDefault(key, value)
	}
	return v
}

// ReadFile merges the given config file, or anizone.{yaml,toml,json} from
// the working directory when path is empty. A missing default file is not
// an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		return errors.Wrapf(v.ReadInConfig(), "failed to read config %s", path)
	}
	v.SetConfigName(EnvPrefix)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config")
	}
	return nil
}

// Load resolves a Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Listen:         v.GetString(KeyListen),
		Debug:          v.GetBool(KeyDebug),
		JSONLogs:       v.GetBool(KeyJSONLogs),
		AnimeWorldURL:  strings.TrimRight(v.GetString(KeyAnimeWorldURL), "/"),
		AnimeSaturnURL: strings.TrimRight(v.GetString(KeyAnimeSaturnURL), "/"),
		MangaWorldURL:  strings.TrimRight(v.GetString(KeyMangaWorldURL), "/"),
		IndexURL:       strings.TrimRight(v.GetString(KeyIndexURL), "/"),
		IndexTimeout:   v.GetDuration(KeyIndexTimeout),
		ProbeTimeout:   v.GetDuration(KeyProbeTimeout),
		HomeCacheTTL:   v.GetDuration(KeyHomeCacheTTL),
		BackendURL:     strings.TrimRight(v.GetString(KeyBackendURL), "/"),
		DBPath:         v.GetString(KeyDBPath),
		ProxyAllow:     v.GetStringSlice(KeyProxyAllow),
		ProxyPath:      v.GetString(KeyProxyPath),
	}

	if cfg.AnimeWorldURL == "" {
		return Config{}, errors.New("sites.animeworld must be set")
	}
	if cfg.IndexTimeout <= 0 || cfg.ProbeTimeout <= 0 {
		return Config{}, errors.New("index timeouts must be positive")
	}
	if cfg.HomeCacheTTL < time.Second {
		return Config{}, errors.Errorf("cache.home_ttl %s must be at least 1s", cfg.HomeCacheTTL)
	}
	if !strings.HasPrefix(cfg.ProxyPath, "/") {
		return Config{}, errors.Errorf("proxy.path %q must start with /", cfg.ProxyPath)
	}
	return cfg, nil
}
