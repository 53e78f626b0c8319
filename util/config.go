package util

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config_default.yaml
var embeddedDefaultConfig string

// Conf holds every tunable of the running instance. Fields are grouped the
// way the original microblog fork grouped them: transport, federation,
// instance metadata, and developer toggles.
type Conf struct {
	// Transport
	Host     string `yaml:"host"`
	SshPort  int    `yaml:"ssh_port"`
	HttpPort int    `yaml:"http_port"`

	// Federation: these four are the contract the rest of the engine is
	// built against.
	HostURLActivityPub string `yaml:"host_url_activitypub"`
	HostURLApi          string `yaml:"host_url_api"`
	DatabaseURL         string `yaml:"database_url"`
	ApubProxyRewrites   bool   `yaml:"apub_proxy_rewrites"`

	SslDomain       string `yaml:"ssl_domain"`
	WithAp          bool   `yaml:"with_ap"`
	Single          bool   `yaml:"single"`
	Closed          bool   `yaml:"closed"`
	NodeDescription string `yaml:"node_description"`
	WithJournald    bool   `yaml:"with_journald"`
	WithPprof       bool   `yaml:"with_pprof"`
	MaxChars        int    `yaml:"max_chars"`
	ShowGlobal      bool   `yaml:"show_global"`
	SshOnly         bool   `yaml:"ssh_only"`
	ShowTos         bool   `yaml:"show_tos"`

	// DeliveryWorkers sets the size of the outbound delivery queue's
	// worker pool (§4.6). Default 4.
	DeliveryWorkers int `yaml:"delivery_workers"`
	// MaxDeliveryAttempts bounds task retries (§4.6). Default 8.
	MaxDeliveryAttempts int `yaml:"max_delivery_attempts"`
}

// AppConfig is the top-level configuration document.
type AppConfig struct {
	Conf Conf `yaml:"conf"`
}

// ReadConf loads the embedded default configuration, writes it to the
// user's config directory on first run, and applies environment overrides.
// Mirrors the predecessor service's go:embed + yaml.v3 pattern.
func ReadConf() (*AppConfig, error) {
	conf := &AppConfig{}
	if err := yaml.Unmarshal([]byte(embeddedDefaultConfig), conf); err != nil {
		return nil, fmt.Errorf("failed to parse embedded default config: %w", err)
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		configPath := filepath.Join(configDir, "forumfed", "config.yaml")
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			if mkErr := os.MkdirAll(filepath.Dir(configPath), 0o755); mkErr == nil {
				_ = os.WriteFile(configPath, []byte(embeddedDefaultConfig), 0o644)
			}
		} else if statErr == nil {
			if data, readErr := os.ReadFile(configPath); readErr == nil {
				fileConf := &AppConfig{}
				if yaml.Unmarshal(data, fileConf) == nil {
					conf = fileConf
				}
			}
		}
	}

	applyEnvOverrides(conf)
	return conf, nil
}

func applyEnvOverrides(conf *AppConfig) {
	if v := os.Getenv("HOST_URL_ACTIVITYPUB"); v != "" {
		conf.Conf.HostURLActivityPub = v
	}
	if v := os.Getenv("HOST_URL_API"); v != "" {
		conf.Conf.HostURLApi = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		conf.Conf.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			conf.Conf.HttpPort = p
		}
	}
	if v := os.Getenv("APUB_PROXY_REWRITES"); v != "" {
		conf.Conf.ApubProxyRewrites = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("FORUMFED_SSL_DOMAIN"); v != "" {
		conf.Conf.SslDomain = v
	}
	if v := os.Getenv("FORUMFED_SSH_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			conf.Conf.SshPort = p
		}
	}
	if v := os.Getenv("FORUMFED_WITH_JOURNALD"); v != "" {
		conf.Conf.WithJournald = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FORUMFED_WITH_PPROF"); v != "" {
		conf.Conf.WithPprof = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FORUMFED_MAX_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if n < 1 {
				n = 1
			}
			if n > 300 {
				n = 300
			}
			conf.Conf.MaxChars = n
		}
	}

	if conf.Conf.HttpPort == 0 {
		conf.Conf.HttpPort = 3333
	}
	if conf.Conf.DeliveryWorkers <= 0 {
		conf.Conf.DeliveryWorkers = 4
	}
	if conf.Conf.MaxDeliveryAttempts <= 0 {
		conf.Conf.MaxDeliveryAttempts = 8
	}
	if conf.Conf.MaxChars <= 0 {
		conf.Conf.MaxChars = 300
	}
}

// ResolveFilePath returns a path for an instance-local file, preferring the
// current working directory and falling back to the user's config dir.
func ResolveFilePath(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	dir := filepath.Join(configDir, "forumfed")
	_ = os.MkdirAll(dir, 0o755)
	return filepath.Join(dir, name)
}

// ResolveFilePathWithSubdir resolves a path under a named subdirectory of
// the instance's config directory (used for the SSH host key).
func ResolveFilePathWithSubdir(subdir, name string) string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(subdir, name)
	}
	dir := filepath.Join(configDir, "forumfed", subdir)
	_ = os.MkdirAll(dir, 0o755)
	return filepath.Join(dir, name)
}
