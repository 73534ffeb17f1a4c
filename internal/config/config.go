// Package config loads the YAML configuration root (spec §6): sections
// for api, working_dir, log, user_access_control, reverse_proxy,
// hdhomerun, proxy, ipcheck, video, schedules, and sources. Environment
// variable overrides are resolved via ${VAR} interpolation, generalizing
// the teacher's per-field getEnv helpers into a single text-level pass
// applied before YAML parsing.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full YAML configuration root.
type Config struct {
	API               APIConfig          `yaml:"api"`
	WorkingDir        string             `yaml:"working_dir"`
	Log               LogConfig          `yaml:"log"`
	UserAccessControl UserAccessControl  `yaml:"user_access_control"`
	ConnectTimeoutSec int                `yaml:"connect_timeout_secs"`
	WebUI             WebUIConfig        `yaml:"web_ui"`
	Messaging         MessagingConfig    `yaml:"messaging"`
	ReverseProxy      ReverseProxyConfig `yaml:"reverse_proxy"`
	HDHomeRun         []HDHomeRunDevice  `yaml:"hdhomerun"`
	Proxy             ProxyConfig        `yaml:"proxy"`
	IPCheck           IPCheckConfig      `yaml:"ipcheck"`
	Video             VideoConfig        `yaml:"video"`
	Schedules         []ScheduleConfig   `yaml:"schedules"`
	Sources           SourcesConfig      `yaml:"sources"`
	ResolveEnv        bool               `yaml:"resolve_env"`
}

// APIConfig is the management/streaming HTTP API's bind settings.
type APIConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	JWTKey string `yaml:"jwt_key"`

	// Protocol/Timezone/Message feed the Xtream server_info block and
	// login message (spec §6's "matches XtreamCodes bit-exactly"); they
	// describe how this gateway presents itself to Xtream clients, not
	// how it binds.
	Protocol string `yaml:"protocol,omitempty"` // "http" | "https"; defaults to "http"
	Timezone string `yaml:"timezone,omitempty"` // defaults to "UTC"
	Message  string `yaml:"message,omitempty"`  // shown to clients as user_info.message
}

// LogConfig controls the ambient logger.
type LogConfig struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	File  string `yaml:"file"`  // empty = stderr
}

// UserAccessControl gates credential admission beyond status/exp_date.
type UserAccessControl struct {
	GracePeriodMillis      int `yaml:"grace_period_millis"`
	GracePeriodTimeoutSecs int `yaml:"grace_period_timeout_secs"`
}

// WebUIConfig is the external Web UI collaborator's static mount point.
type WebUIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MessagingConfig describes the external notification collaborators
// (Telegram/Discord/Pushover/REST webhooks); the gateway only holds
// their addresses, it does not implement delivery.
type MessagingConfig struct {
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	Discord  *DiscordConfig  `yaml:"discord,omitempty"`
	Pushover *PushoverConfig `yaml:"pushover,omitempty"`
	Webhooks []string        `yaml:"webhooks,omitempty"`
}

type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type PushoverConfig struct {
	Token string `yaml:"token"`
	User  string `yaml:"user"`
}

// ReverseProxyConfig groups the reverse-proxy handler's streaming,
// caching, rate-limiting, and geoip sub-settings.
type ReverseProxyConfig struct {
	Stream    StreamConfig    `yaml:"stream"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	GeoIP     GeoIPConfig     `yaml:"geoip"`
}

// StreamConfig carries the reverse-proxy handler's timeouts and
// shared-stream fan-out sizing (spec §4.11, §4.12).
type StreamConfig struct {
	GracePeriodMillis       int `yaml:"grace_period_millis"`
	GracePeriodTimeoutSecs  int `yaml:"grace_period_timeout_secs"`
	ForcedRetryIntervalSecs int `yaml:"forced_retry_interval_secs"`
	BufferChunks            int `yaml:"buffer_chunks"` // default 2048
	ThrottleKbps            int `yaml:"throttle_kbps"` // 0 = unthrottled
}

// CacheConfig controls optional asset caching.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	MaxAgeSecs int    `yaml:"max_age_secs"`
}

// RateLimitConfig throttles admission per client.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// GeoIPConfig is the external geoip collaborator's database location.
type GeoIPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Database string `yaml:"database"`
}

// HDHomeRunDevice is one emulated tuner device (spec §4.8, §6).
type HDHomeRunDevice struct {
	Name         string `yaml:"name"`
	DeviceID     string `yaml:"device_id"`
	Port         int    `yaml:"port"`
	TunerCount   int    `yaml:"tuner_count"`
	FriendlyName string `yaml:"friendly_name"`
	Target       string `yaml:"target"`
}

// ProxyConfig is the outbound HTTP proxy used for upstream fetches.
type ProxyConfig struct {
	URL string `yaml:"url,omitempty"`
}

// IPCheckConfig is the external IP-reachability collaborator.
type IPCheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
}

// VideoConfig is default video quality/extension settings for emitters.
type VideoConfig struct {
	Extension     string   `yaml:"extension"`
	QualitySuffix []string `yaml:"quality_suffix,omitempty"`
}

// ScheduleConfig is one cron job entry (spec §4.13).
type ScheduleConfig struct {
	Name    string   `yaml:"name"`
	Cron    string   `yaml:"cron"`
	Targets []string `yaml:"targets,omitempty"`
}

// SourcesConfig carries the named pattern templates and the list of
// input/target groups that make up the processing graph.
type SourcesConfig struct {
	Templates []Template    `yaml:"templates,omitempty"`
	Groups    []SourceGroup `yaml:"groups,omitempty"`
}

// Template is a named filter/mapper pattern fragment (spec §4.5).
type Template struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// SourceGroup pairs a set of inputs with the targets that consume them.
type SourceGroup struct {
	Inputs  []InputConfig  `yaml:"inputs"`
	Targets []TargetConfig `yaml:"targets"`
}

// InputConfig is one upstream playlist source.
type InputConfig struct {
	Name               string            `yaml:"name"`
	Kind               string            `yaml:"kind"` // "m3u" | "xtream"
	URL                string            `yaml:"url,omitempty"`
	XtreamBaseURL      string            `yaml:"xtream_base_url,omitempty"`
	Username           string            `yaml:"username,omitempty"`
	Password           string            `yaml:"password,omitempty"`
	Headers            map[string]string `yaml:"headers,omitempty"`
	CacheDurationSecs  int               `yaml:"cache_duration_secs"`
	Batch              []BatchAlias      `yaml:"batch,omitempty"`
	VODInfoConcurrency int               `yaml:"vod_info_concurrency"`
	VODInfoDelayMillis int               `yaml:"vod_info_delay_millis"`
}

// BatchAlias expands one input into multiple virtual inputs sharing
// base config but distinct credentials/URLs (spec §4.6 step 4).
type BatchAlias struct {
	AliasID        string `yaml:"alias_id"`
	URL            string `yaml:"url,omitempty"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	Priority       int    `yaml:"priority"`
	MaxConnections int    `yaml:"max_connections"`
}

// TargetConfig is one output target: which inputs it consumes, the
// filter/rename/map order, sort rules, and which emitters run.
type TargetConfig struct {
	Name            string       `yaml:"name"`
	ProcessingOrder []string     `yaml:"processing_order,omitempty"` // subset/order of {filter,rename,map}
	MatchAsASCII    bool         `yaml:"match_as_ascii"`
	Filter          string       `yaml:"filter,omitempty"`
	Rename          []RenameRule `yaml:"rename,omitempty"`
	Mapper          string       `yaml:"mapper,omitempty"`
	Sort            SortConfig   `yaml:"sort"`
	Output          OutputConfig `yaml:"output"`
}

// RenameRule is a simple field-substitution step, distinct from the
// general mapper stage (spec §4.5).
type RenameRule struct {
	Field   string `yaml:"field"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

// SortConfig configures group and channel ordering (spec §4.7).
type SortConfig struct {
	MatchAsASCII bool                `yaml:"match_as_ascii"`
	Groups       *SortGroupConfig    `yaml:"groups,omitempty"`
	Channels     []SortChannelConfig `yaml:"channels,omitempty"`
}

// SortGroupConfig orders playlist groups within a cluster.
type SortGroupConfig struct {
	Order    string   `yaml:"order"` // "asc" | "desc"
	Sequence []string `yaml:"sequence,omitempty"`
}

// SortChannelConfig orders channels within groups matching GroupPattern.
type SortChannelConfig struct {
	Field        string   `yaml:"field"`
	GroupPattern string   `yaml:"group_pattern"`
	Order        string   `yaml:"order"`
	Sequence     []string `yaml:"sequence,omitempty"`
}

// OutputConfig selects which emitters run for a target and their options.
type OutputConfig struct {
	Xtream    *XtreamOutputConfig    `yaml:"xtream,omitempty"`
	M3U       *M3UOutputConfig       `yaml:"m3u,omitempty"`
	HDHomeRun *HDHomeRunOutputConfig `yaml:"hdhomerun,omitempty"`
	Strm      *StrmOutputConfig      `yaml:"strm,omitempty"`
}

type XtreamOutputConfig struct {
	Enabled bool `yaml:"enabled"`
}

type M3UOutputConfig struct {
	Enabled      bool `yaml:"enabled"`
	IncludeType  bool `yaml:"include_type"`
	MaskRedirect bool `yaml:"mask_redirect"`
}

type HDHomeRunOutputConfig struct {
	Enabled bool `yaml:"enabled"`
}

type StrmOutputConfig struct {
	Enabled        bool `yaml:"enabled"`
	PerCategoryDir bool `yaml:"per_category_dir"`
	PerShowDir     bool `yaml:"per_show_dir"`
	QualitySuffix  bool `yaml:"quality_suffix"`
	Cleanup        bool `yaml:"cleanup"`
}

// ConnectTimeout returns the configured connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// resolveEnv substitutes every ${VAR} reference in data with the
// corresponding environment variable's value. References to unset
// variables are left untouched.
func resolveEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := envRef.FindSubmatch(m)
		name := string(sub[1])
		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		return m
	})
}

// peekResolveEnv checks the top-level resolve_env flag without running
// full env substitution first, so Load knows whether to apply it.
func peekResolveEnv(data []byte) bool {
	var probe struct {
		ResolveEnv bool `yaml:"resolve_env"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.ResolveEnv
}

// Load reads and parses the YAML config at path. When the document's
// top-level resolve_env is true, ${VAR} references are substituted from
// the process environment before parsing proceeds.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if peekResolveEnv(raw) {
		raw = resolveEnv(raw)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
