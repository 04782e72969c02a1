// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// DryRunEnvironment is the environment name used when dry-run is enabled
// and no environment is configured.
const DryRunEnvironment = "dry_run"

// EveryDay as send_day sends the report on every run.
const EveryDay = "*"

// Config is the top-level application configuration.
type Config struct {
	Environment    string               `yaml:"environment"`
	DryRun         Switch               `yaml:"dry_run"`
	StoreOnly      Switch               `yaml:"store_only"`
	MetricsBackend MetricsBackendConfig `yaml:"metrics_backend"`
	Instances      InstancesConfig      `yaml:"instances"`
	Namespaces     NamespacesConfig     `yaml:"namespaces"`
	Window         WindowConfig         `yaml:"window"`
	Storage        StorageConfig        `yaml:"storage"`
	Pushgateway    PushgatewayConfig    `yaml:"pushgateway"`
	Email          EmailConfig          `yaml:"email"`
	Indicators     IndicatorsConfig     `yaml:"indicators"`
	Report         ReportConfig         `yaml:"report"`
	Server         ServerConfig         `yaml:"server"`
	Schedule       ScheduleConfig       `yaml:"schedule"`
	Logging        LoggingConfig        `yaml:"logging"`

	// offline is set for commands that never reach a backend.
	offline bool
}

// Switch is a boolean that also accepts the 0/1 form used by environment
// variables. An empty value is false.
type Switch bool

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Switch) UnmarshalYAML(node *yaml.Node) error {
	v := strings.TrimSpace(node.Value)
	if v == "" {
		*s = false
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("line %d: invalid boolean %q", node.Line, node.Value)
	}
	*s = Switch(b)
	return nil
}

// MetricsBackendConfig defines the Thanos/Prometheus query API settings.
type MetricsBackendConfig struct {
	URL                string          `yaml:"url"`
	Token              string          `yaml:"token"`
	InsecureSkipVerify Switch          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration   `yaml:"timeout"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines query rate limiting against the metrics backend.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// InstancesConfig holds the instance label values used by indicator queries.
type InstancesConfig struct {
	MetricsExporter string `yaml:"metrics_exporter"`
	UserAPI         string `yaml:"user_api"`
}

// NamespacesConfig holds the deployment namespaces of the observed system.
type NamespacesConfig struct {
	Backend        string `yaml:"backend"`
	Middletier     string `yaml:"middletier"`
	AmunInspection string `yaml:"amun_inspection"`
}

// Resolve maps a namespace key (backend, middletier, amun_inspection) to its
// configured value. Unknown keys are returned unchanged.
func (n *NamespacesConfig) Resolve(key string) string {
	switch key {
	case "backend":
		return n.Backend
	case "middletier":
		return n.Middletier
	case "amun_inspection":
		return n.AmunInspection
	default:
		return key
	}
}

// WindowConfig defines the evaluation window.
type WindowConfig struct {
	Days int           `yaml:"days"`
	Step time.Duration `yaml:"step"`
}

// StorageConfig defines the object store buckets.
type StorageConfig struct {
	Private BucketConfig  `yaml:"private"`
	Public  *BucketConfig `yaml:"public"`
}

// BucketConfig defines one S3-compatible bucket.
type BucketConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Enabled reports whether the bucket has a name.
func (b *BucketConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// PushgatewayConfig defines the Prometheus Pushgateway target. An empty URL
// disables publishing.
type PushgatewayConfig struct {
	URL string `yaml:"url"`
	Job string `yaml:"job"`
}

// EmailConfig defines SMTP delivery settings.
type EmailConfig struct {
	SMTPServer    string   `yaml:"smtp_server"`
	SMTPPort      int      `yaml:"smtp_port"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	StartTLS      Switch   `yaml:"starttls"`
	Sender        string   `yaml:"sender"`
	RecipientList string   `yaml:"recipients"` // comma separated
	Recipients    []string `yaml:"-"`
	SendDay       string   `yaml:"send_day"`
	Subject       string   `yaml:"subject"`
}

// Addr returns the host:port of the SMTP server.
func (e *EmailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", e.SMTPServer, e.SMTPPort)
}

// SendsOn reports whether the report is mailed on the given weekday.
func (e *EmailConfig) SendsOn(day time.Weekday) bool {
	return e.SendDay == EveryDay || strings.EqualFold(e.SendDay, day.String())
}

// IndicatorsConfig parameterizes the indicator classes.
type IndicatorsConfig struct {
	Workflows      []WorkflowConfig `yaml:"workflows"`
	WorkflowTasks  []WorkflowConfig `yaml:"workflow_tasks"`
	LatencyBuckets []string         `yaml:"latency_buckets"`
	Integrations   []string         `yaml:"integrations"`
	LearningRate   time.Duration    `yaml:"learning_rate_interval"`
	// AdviserDays is how many daily advise-reporter files the adviser
	// input and output classes summarize.
	AdviserDays int `yaml:"adviser_days"`
}

// WorkflowConfig identifies one Argo workflow observed by the quality and
// latency indicators.
type WorkflowConfig struct {
	Component string `yaml:"component"`
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
	Instance  string `yaml:"instance"`
}

// ReportConfig defines report rendering and dry-run output settings.
type ReportConfig struct {
	OutputDir  string `yaml:"output_dir"`
	GrafanaURL string `yaml:"grafana_url"`
	Open       Switch `yaml:"open"`
}

// ServerConfig defines the Echo HTTP server settings for serve mode.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ScheduleConfig defines when serve mode runs the report.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, console
}

// Override adjusts the parsed configuration before defaults and validation.
type Override func(*Config)

// WithDryRun forces dry-run mode on or off.
func WithDryRun(on bool) Override {
	return func(c *Config) { c.DryRun = Switch(on) }
}

// WithStoreOnly forces store-only mode on or off.
func WithStoreOnly(on bool) Override {
	return func(c *Config) { c.StoreOnly = Switch(on) }
}

// Offline loads the configuration for a command that talks to no backend at
// all. It implies dry-run and skips the metrics backend requirement.
func Offline() Override {
	return func(c *Config) {
		c.DryRun = true
		c.offline = true
	}
}

// WithLogLevel overrides the configured log level when level is non-empty.
func WithLogLevel(level string) Override {
	return func(c *Config) {
		if level != "" {
			c.Logging.Level = level
		}
	}
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation. An empty path loads the embedded default,
// which is built entirely from environment variables.
func Load(path string, overrides ...Override) (*Config, error) {
	data := defaultYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return Parse(data, overrides...)
}

// Parse builds a Config from raw YAML.
func Parse(data []byte, overrides ...Override) (*Config, error) {
	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	for _, o := range overrides {
		o(cfg)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" && cfg.DryRun {
		cfg.Environment = DryRunEnvironment
	}
	applyMetricsBackendDefaults(&cfg.MetricsBackend)
	applyWindowDefaults(&cfg.Window)
	applyStorageDefaults(&cfg.Storage)
	applyPushgatewayDefaults(&cfg.Pushgateway)
	applyEmailDefaults(&cfg.Email)
	applyIndicatorsDefaults(&cfg.Indicators)
	applyReportDefaults(&cfg.Report)
	applyServerDefaults(&cfg.Server)
	applyScheduleDefaults(&cfg.Schedule)
	applyLoggingDefaults(&cfg.Logging)
}

func applyMetricsBackendDefaults(m *MetricsBackendConfig) {
	if m.Timeout == 0 {
		m.Timeout = 30 * time.Second
	}
	if m.RateLimit.PerSecond == 0 {
		m.RateLimit.PerSecond = 5.0
	}
	if m.RateLimit.Burst == 0 {
		m.RateLimit.Burst = 10
	}
}

func applyWindowDefaults(w *WindowConfig) {
	if w.Days == 0 {
		w.Days = 7
	}
	if w.Step == 0 {
		w.Step = time.Hour
	}
}

func applyStorageDefaults(s *StorageConfig) {
	if s.Private.Region == "" {
		s.Private.Region = "us-east-1"
	}
	if s.Public != nil && s.Public.Bucket == "" {
		s.Public = nil
	}
	if s.Public == nil {
		return
	}
	// The public bucket lives next to the private one unless told otherwise.
	if s.Public.Endpoint == "" {
		s.Public.Endpoint = s.Private.Endpoint
	}
	if s.Public.Region == "" {
		s.Public.Region = s.Private.Region
	}
	if s.Public.AccessKeyID == "" {
		s.Public.AccessKeyID = s.Private.AccessKeyID
		s.Public.SecretAccessKey = s.Private.SecretAccessKey
	}
}

func applyPushgatewayDefaults(p *PushgatewayConfig) {
	if p.Job == "" {
		p.Job = "thoth-slo-reporter"
	}
}

func applyEmailDefaults(e *EmailConfig) {
	if e.SMTPPort == 0 {
		e.SMTPPort = 25
	}
	if e.SendDay == "" {
		e.SendDay = time.Monday.String()
	}
	if e.Subject == "" {
		e.Subject = "Thoth Service Level Indicators"
	}
	e.Recipients = splitList(e.RecipientList)
}

func applyIndicatorsDefaults(i *IndicatorsConfig) {
	if len(i.LatencyBuckets) == 0 {
		i.LatencyBuckets = []string{"30", "60", "120", "180", "300", "600", "900", "+Inf"}
	}
	if i.LearningRate == 0 {
		i.LearningRate = time.Hour
	}
	if i.AdviserDays == 0 {
		i.AdviserDays = 7
	}
}

func applyReportDefaults(r *ReportConfig) {
	if r.OutputDir == "" {
		r.OutputDir = os.TempDir()
	}
	if r.GrafanaURL == "" {
		r.GrafanaURL = "https://grafana.datahub.redhat.com"
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.Cron == "" {
		s.Cron = "0 7 * * *"
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var weekdays = []string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Window.Days < 1 {
		errs = append(errs, fmt.Errorf("window.days must be positive (got %d)", cfg.Window.Days))
	}
	if cfg.Indicators.AdviserDays < 1 {
		errs = append(errs, fmt.Errorf("indicators.adviser_days must be positive (got %d)", cfg.Indicators.AdviserDays))
	}
	if cfg.Email.SendDay != EveryDay && !slices.Contains(weekdays, strings.ToLower(cfg.Email.SendDay)) {
		errs = append(errs, fmt.Errorf("email.send_day must be a weekday name or %q (got %q)", EveryDay, cfg.Email.SendDay))
	}
	if !slices.Contains(cfg.Indicators.LatencyBuckets, "+Inf") {
		errs = append(errs, fmt.Errorf("indicators.latency_buckets must include +Inf"))
	}
	for _, b := range cfg.Indicators.LatencyBuckets {
		if b == "+Inf" {
			continue
		}
		if _, err := strconv.ParseFloat(b, 64); err != nil {
			errs = append(errs, fmt.Errorf("indicators.latency_buckets: %q is not a number", b))
		}
	}
	for i, w := range slices.Concat(cfg.Indicators.Workflows, cfg.Indicators.WorkflowTasks) {
		if w.Component == "" || w.Name == "" {
			errs = append(errs, fmt.Errorf("indicators workflow %d: component and name are required", i))
		}
	}

	if cfg.offline {
		return errors.Join(errs...)
	}

	// Dry-run still queries and pings the metrics backend.
	if cfg.MetricsBackend.URL == "" {
		errs = append(errs, fmt.Errorf("metrics_backend.url is required"))
	}

	// Everything below is only needed to store and deliver.
	if cfg.DryRun {
		return errors.Join(errs...)
	}

	if cfg.Environment == "" {
		errs = append(errs, fmt.Errorf("environment is required"))
	}
	if cfg.Instances.MetricsExporter == "" {
		errs = append(errs, fmt.Errorf("instances.metrics_exporter is required"))
	}
	if cfg.Instances.UserAPI == "" {
		errs = append(errs, fmt.Errorf("instances.user_api is required"))
	}
	if cfg.Storage.Private.Bucket == "" {
		errs = append(errs, fmt.Errorf("storage.private.bucket is required"))
	}

	if !cfg.StoreOnly {
		if cfg.Email.SMTPServer == "" {
			errs = append(errs, fmt.Errorf("email.smtp_server is required"))
		}
		if cfg.Email.Sender == "" {
			errs = append(errs, fmt.Errorf("email.sender is required"))
		}
		if len(cfg.Email.Recipients) == 0 {
			errs = append(errs, fmt.Errorf("email.recipients is required"))
		}
		if cfg.Email.Username != "" && !cfg.Email.StartTLS {
			errs = append(errs, fmt.Errorf("email.username requires email.starttls"))
		}
	}

	return errors.Join(errs...)
}
