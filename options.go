package samplez

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"
)

// DefaultMaxSpans bounds the number of child spans a transaction records.
const DefaultMaxSpans = 1000

// ErrInvalidDSN is returned when a DSN cannot be parsed.
var ErrInvalidDSN = errors.New("invalid dsn")

var orgIDHostPattern = regexp.MustCompile(`^o(\d+)\.`)

// TracesSampler returns the sample rate for a transaction about to start.
type TracesSampler func(ctx SamplingContext) float64

// Options configures sampling and the identity published in the dynamic sampling context.
//
//nolint:govet // Field order follows the configuration file layout
type Options struct {
	DSN         string `yaml:"dsn"`
	OrgID       string `yaml:"org_id"`
	Release     string `yaml:"release"`
	Environment string `yaml:"environment"`

	// TracesSampleRate is the static rate applied when no sampler or parent decides.
	// Nil disables tracing unless TracesSampler is set.
	TracesSampleRate   *float64 `yaml:"traces_sample_rate"`
	ProfilesSampleRate *float64 `yaml:"profiles_sample_rate"`
	MaxSpans           int      `yaml:"max_spans"`

	TracesSampler TracesSampler `yaml:"-"`
	Logger        logr.Logger   `yaml:"-"`
}

// OptionsProvider exposes read-only configuration.
type OptionsProvider interface {
	Options() Options
}

// ScopeProvider exposes the current scope data used to enrich the dynamic sampling context.
type ScopeProvider interface {
	UserSegment() string
}

// StaticScope is a ScopeProvider with a fixed user segment.
type StaticScope struct {
	Segment string
}

// UserSegment returns the configured segment.
func (s StaticScope) UserSegment() string { return s.Segment }

// Options lets an Options value act as its own provider.
func (o Options) Options() Options { return o }

// TracingEnabled reports whether any sampling input is configured.
func (o Options) TracingEnabled() bool {
	return o.TracesSampleRate != nil || o.TracesSampler != nil
}

// SpanLimit returns MaxSpans or DefaultMaxSpans when unset.
func (o Options) SpanLimit() int {
	if o.MaxSpans <= 0 {
		return DefaultMaxSpans
	}
	return o.MaxSpans
}

// PublicKey returns the public key of the DSN, or "" when the DSN is unset or invalid.
func (o Options) PublicKey() string {
	dsn, err := ParseDSN(o.DSN)
	if err != nil {
		return ""
	}
	return dsn.PublicKey
}

// EffectiveOrgID returns OrgID, falling back to the org id encoded in the DSN host.
func (o Options) EffectiveOrgID() string {
	if o.OrgID != "" {
		return o.OrgID
	}
	dsn, err := ParseDSN(o.DSN)
	if err != nil {
		return ""
	}
	return dsn.OrgID
}

func (o Options) logger() logr.Logger {
	if o.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return o.Logger
}

// DSN is the parsed form of a client key URL such as
// https://public@o1.ingest.example.com/42.
type DSN struct {
	Scheme    string
	PublicKey string
	Host      string
	ProjectID string
	OrgID     string
}

// ParseDSN parses raw. An empty string is an error.
func ParseDSN(raw string) (DSN, error) {
	if raw == "" {
		return DSN{}, fmt.Errorf("%w: empty", ErrInvalidDSN)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return DSN{}, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return DSN{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDSN, u.Scheme)
	}
	if u.User == nil || u.User.Username() == "" {
		return DSN{}, fmt.Errorf("%w: missing public key", ErrInvalidDSN)
	}
	projectID := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(projectID, "/"); i >= 0 {
		projectID = projectID[i+1:]
	}
	if projectID == "" {
		return DSN{}, fmt.Errorf("%w: missing project id", ErrInvalidDSN)
	}
	dsn := DSN{
		Scheme:    u.Scheme,
		PublicKey: u.User.Username(),
		Host:      u.Hostname(),
		ProjectID: projectID,
	}
	if m := orgIDHostPattern.FindStringSubmatch(dsn.Host); m != nil {
		dsn.OrgID = m[1]
	}
	return dsn, nil
}

// LoadOptions decodes YAML configuration from r.
func LoadOptions(r io.Reader) (Options, error) {
	var opts Options
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}
	if opts.DSN != "" {
		if _, err := ParseDSN(opts.DSN); err != nil {
			return Options{}, err
		}
	}
	for name, rate := range map[string]*float64{
		"traces_sample_rate":   opts.TracesSampleRate,
		"profiles_sample_rate": opts.ProfilesSampleRate,
	} {
		if rate != nil && !isValidRate(*rate) {
			return Options{}, fmt.Errorf("%s must be within [0, 1], got %v", name, *rate)
		}
	}
	return opts, nil
}

// LoadOptionsFile reads YAML configuration from path.
func LoadOptionsFile(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return Options{}, err
	}
	defer f.Close()
	return LoadOptions(f)
}

// Float returns a pointer to v, for populating optional rates.
func Float(v float64) *float64 { return &v }
