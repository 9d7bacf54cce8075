// TriageBot - Slack support triage bot
// License: MIT
//
// Copyright (c) 2026 TriageBot contributors

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/titanous/json5"
)

// Duration is a time.Duration that reads "3s" / "1h" style strings from config files
// and environment variables.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must be >= 0", raw)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return d.UnmarshalText([]byte(raw[1 : len(raw)-1]))
	}
	// Bare numbers are taken as seconds.
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	if secs < 0 {
		return fmt.Errorf("duration %s must be >= 0", string(data))
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

type Config struct {
	Slack      SlackConfig      `json:"slack"`
	Gateway    GatewayConfig    `json:"gateway"`
	Triage     TriageConfig     `json:"triage"`
	Classifier ClassifierConfig `json:"classifier"`
	Notify     NotifyConfig     `json:"notify"`
	Ticket     TicketConfig     `json:"ticket"`
	Log        LogConfig        `json:"log"`
}

type SlackConfig struct {
	BotToken      string `json:"bot_token" env:"SLACK_BOT_TOKEN"`
	SigningSecret string `json:"signing_secret" env:"SLACK_SIGNING_SECRET"`
	// AppToken enables Socket Mode instead of the HTTP Events API.
	AppToken      string `json:"app_token,omitempty" env:"SLACK_APP_TOKEN"`
	WorkspaceURL  string `json:"workspace_url,omitempty" env:"TRIAGEBOT_SLACK_WORKSPACE_URL"`
	APIURL        string `json:"api_url,omitempty" env:"TRIAGEBOT_SLACK_API_URL"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"TRIAGEBOT_HOST"`
	Port int    `json:"port" env:"TRIAGEBOT_PORT"`
}

func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

type TriageConfig struct {
	QuietWindow      Duration `json:"quiet_window" env:"TRIAGEBOT_QUIET_WINDOW"`
	BatchSize        int      `json:"batch_size" env:"TRIAGEBOT_BATCH_SIZE"`
	Cooldown         Duration `json:"cooldown" env:"TRIAGEBOT_COOLDOWN"`
	ExcludedSenders  []string `json:"excluded_senders,omitempty" env:"TRIAGEBOT_EXCLUDED_SENDERS" envSeparator:","`
	ClassifyTimeout  Duration `json:"classify_timeout" env:"TRIAGEBOT_CLASSIFY_TIMEOUT"`
	ClassifyRPS      float64  `json:"classify_rps" env:"TRIAGEBOT_CLASSIFY_RPS"`
	ClassifyBurst    int      `json:"classify_burst" env:"TRIAGEBOT_CLASSIFY_BURST"`
	DedupRetention   Duration `json:"dedup_retention" env:"TRIAGEBOT_DEDUP_RETENTION"`
	JanitorSchedule  string   `json:"janitor_schedule" env:"TRIAGEBOT_JANITOR_SCHEDULE"`
	InboundQueueSize int      `json:"inbound_queue_size" env:"TRIAGEBOT_INBOUND_QUEUE_SIZE"`
}

type ClassifierConfig struct {
	// Provider is "anthropic" or "openai".
	Provider      string `json:"provider" env:"TRIAGEBOT_CLASSIFIER_PROVIDER"`
	Model         string `json:"model" env:"TRIAGEBOT_CLASSIFIER_MODEL"`
	FallbackModel string `json:"fallback_model,omitempty" env:"TRIAGEBOT_CLASSIFIER_FALLBACK_MODEL"`
	APIKey        string `json:"api_key,omitempty" env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey  string `json:"openai_api_key,omitempty" env:"OPENAI_API_KEY"`
	APIBase       string `json:"api_base,omitempty" env:"TRIAGEBOT_CLASSIFIER_API_BASE"`
	MaxTokens     int    `json:"max_tokens" env:"TRIAGEBOT_CLASSIFIER_MAX_TOKENS"`
	// PromptFile replaces the built-in system prompt when set.
	PromptFile string `json:"prompt_file,omitempty" env:"TRIAGEBOT_CLASSIFIER_PROMPT_FILE"`
}

type NotifyConfig struct {
	PingUserIDs       []string `json:"ping_user_ids,omitempty" env:"TRIAGEBOT_PING_USER_IDS" envSeparator:","`
	PingMessage       string   `json:"ping_message" env:"TRIAGEBOT_PING_MESSAGE"`
	EscalationChannel string   `json:"escalation_channel,omitempty" env:"TRIAGEBOT_ESCALATION_CHANNEL"`
}

type TicketConfig struct {
	Enabled           bool     `json:"enabled" env:"TRIAGEBOT_TICKET_ENABLED"`
	BaseURL           string   `json:"base_url" env:"TRIAGEBOT_TICKET_BASE_URL"`
	AuthToken         string   `json:"auth_token,omitempty" env:"THENA_AUTH_TOKEN"`
	AssigneeID        string   `json:"assignee_id,omitempty" env:"TRIAGEBOT_TICKET_ASSIGNEE_ID"`
	WeekendAssigneeID string   `json:"weekend_assignee_id,omitempty" env:"TRIAGEBOT_TICKET_WEEKEND_ASSIGNEE_ID"`
	RequesterEmail    string   `json:"requester_email,omitempty" env:"TRIAGEBOT_TICKET_REQUESTER_EMAIL"`
	Timeout           Duration `json:"timeout" env:"TRIAGEBOT_TICKET_TIMEOUT"`
}

type LogConfig struct {
	Level string `json:"level" env:"TRIAGEBOT_LOG_LEVEL"`
	JSON  bool   `json:"json" env:"TRIAGEBOT_LOG_JSON"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8800,
		},
		Triage: TriageConfig{
			QuietWindow:      Duration(3 * time.Second),
			BatchSize:        5,
			Cooldown:         Duration(time.Hour),
			ClassifyTimeout:  Duration(60 * time.Second),
			ClassifyRPS:      1,
			ClassifyBurst:    5,
			DedupRetention:   Duration(24 * time.Hour),
			JanitorSchedule:  "*/10 * * * *",
			InboundQueueSize: 100,
		},
		Classifier: ClassifierConfig{
			Provider:      "anthropic",
			Model:         "claude-3-5-sonnet-latest",
			FallbackModel: "claude-3-5-haiku-latest",
			MaxTokens:     512,
		},
		Notify: NotifyConfig{
			PingMessage: "please take a look 😊",
		},
		Ticket: TicketConfig{
			BaseURL: "https://bolt.thena.ai",
			Timeout: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path (JSON5, or YAML by extension) over the defaults, then overlays
// environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			data, _, err = coerceToJSONBytes(path, data)
			if err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
			if err := json5.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration that would stop the bot from serving.
func (c *Config) Validate() error {
	var errs []error
	if c.Slack.BotToken == "" {
		errs = append(errs, errors.New("slack.bot_token is required"))
	}
	if c.Slack.AppToken == "" && c.Slack.SigningSecret == "" {
		errs = append(errs, errors.New("slack.signing_secret is required for the Events API"))
	}
	if c.Triage.QuietWindow <= 0 {
		errs = append(errs, errors.New("triage.quiet_window must be > 0"))
	}
	if c.Triage.BatchSize <= 0 {
		errs = append(errs, errors.New("triage.batch_size must be > 0"))
	}
	for _, pattern := range c.Triage.ExcludedSenders {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			errs = append(errs, fmt.Errorf("triage.excluded_senders %q: %w", pattern, err))
		}
	}
	switch strings.ToLower(c.Classifier.Provider) {
	case "anthropic", "claude":
		if c.Classifier.APIKey == "" {
			errs = append(errs, errors.New("classifier.api_key is required for anthropic"))
		}
	case "openai":
		if c.Classifier.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("classifier.openai_api_key is required for openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("classifier.provider %q is not supported", c.Classifier.Provider))
	}
	if c.Ticket.Enabled && c.Ticket.AuthToken == "" {
		errs = append(errs, errors.New("ticket.auth_token is required when tickets are enabled"))
	}
	return errors.Join(errs...)
}

const secretMask = "***"

// MaskedCopy returns a copy safe to print.
func (c *Config) MaskedCopy() *Config {
	cp := *c
	maskNonEmpty(&cp.Slack.BotToken)
	maskNonEmpty(&cp.Slack.SigningSecret)
	maskNonEmpty(&cp.Slack.AppToken)
	maskNonEmpty(&cp.Classifier.APIKey)
	maskNonEmpty(&cp.Classifier.OpenAIAPIKey)
	maskNonEmpty(&cp.Ticket.AuthToken)
	return &cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return home
}
