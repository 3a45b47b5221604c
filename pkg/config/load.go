package config

import (
	"bytes"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/synergy/pkg/errors"
)

// Named overrides. Each is read from the environment under its upper-case
// spelling and from a YAML file under the lower-case key.
const (
	KeyProjectID            = "FIREBASE_PROJECT_ID"
	KeyCollection           = "FIREBASE_COLLECTION"
	KeySynergyCollection    = "SYNERGY_COLLECTION"
	KeyStoreURI             = "STORE_URI"
	KeyCredentialsFile      = "STORE_CREDENTIALS_FILE"
	KeyStoreTimeout         = "STORE_TIMEOUT_SECONDS"
	KeyFinancialInterval    = "FINANCIAL_INTERVAL"
	KeySocialInterval       = "SOCIAL_INTERVAL"
	KeyIoTInterval          = "IOT_INTERVAL"
	KeyWindowSize           = "WINDOW_SIZE"
	KeyCorrelationThreshold = "CORRELATION_THRESHOLD"
	KeyMinClusterSize       = "MIN_CLUSTER_SIZE"
	KeyAnomalyThreshold     = "ANOMALY_THRESHOLD"
	KeyBatchSize            = "BATCH_SIZE"
	KeyEnableRealTime       = "ENABLE_REAL_TIME"
	KeyLogLevel             = "LOG_LEVEL"
)

// Keys lists every named override
var Keys = []string{
	KeyProjectID, KeyCollection, KeySynergyCollection, KeyStoreURI, KeyCredentialsFile,
	KeyStoreTimeout, KeyFinancialInterval, KeySocialInterval, KeyIoTInterval, KeyWindowSize,
	KeyCorrelationThreshold, KeyMinClusterSize, KeyAnomalyThreshold, KeyBatchSize,
	KeyEnableRealTime, KeyLogLevel,
}

type loadOptions struct {
	dotEnv []string
	file   string
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithDotEnv loads the given .env files into the process environment before
// reading overrides. Variables already set in the environment win. Missing
// files are ignored.
func WithDotEnv(paths ...string) LoadOption {
	return func(o *loadOptions) {
		o.dotEnv = append(o.dotEnv, paths...)
	}
}

// WithFile reads overrides from a YAML file. ${VAR} references in the file
// are substituted from the environment. Environment variables take
// precedence over file values.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.file = path
	}
}

// Load reads every named override, falling back to the documented defaults,
// and coerces each to its declared type. A value that cannot be coerced
// yields a config_parse error naming the key. Load does not validate; call
// Snapshot.Validate or Snapshot.Check before use.
func Load(opts ...LoadOption) (Snapshot, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	for _, path := range o.dotEnv {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return Snapshot{}, errors.Wrap(err, errors.ErrorTypeConfigParse, "failed to read env file").
				WithDetail("path", path)
		}
	}

	v := viper.New()
	setDefaults(v, Default())
	v.AutomaticEnv()
	// A variable set to the empty string is an override, not an absent one.
	v.AllowEmptyEnv(true)

	if o.file != "" {
		if err := readFile(v, o.file); err != nil {
			return Snapshot{}, err
		}
	}

	p := parser{v: v}
	snap := Snapshot{
		Connection: ConnectionConfig{
			ProjectID:         p.str(KeyProjectID),
			Collection:        p.str(KeyCollection),
			SynergyCollection: p.str(KeySynergyCollection),
			URI:               p.str(KeyStoreURI),
			CredentialsFile:   p.str(KeyCredentialsFile),
			Timeout:           p.seconds(KeyStoreTimeout),
		},
		Domains: DomainConfig{
			FinancialInterval:    p.seconds(KeyFinancialInterval),
			SocialInterval:       p.seconds(KeySocialInterval),
			IoTInterval:          p.seconds(KeyIoTInterval),
			WindowSize:           p.int(KeyWindowSize),
			CorrelationThreshold: p.float(KeyCorrelationThreshold),
		},
		Synergy: SynergyConfig{
			MinClusterSize:   p.int(KeyMinClusterSize),
			AnomalyThreshold: p.float(KeyAnomalyThreshold),
			BatchSize:        p.int(KeyBatchSize),
			EnableRealTime:   p.bool(KeyEnableRealTime),
		},
		LogLevel: p.str(KeyLogLevel),
	}
	if p.err != nil {
		return Snapshot{}, p.err
	}
	return snap, nil
}

func setDefaults(v *viper.Viper, d Snapshot) {
	v.SetDefault(KeyProjectID, d.Connection.ProjectID)
	v.SetDefault(KeyCollection, d.Connection.Collection)
	v.SetDefault(KeySynergyCollection, d.Connection.SynergyCollection)
	v.SetDefault(KeyStoreURI, d.Connection.URI)
	v.SetDefault(KeyCredentialsFile, d.Connection.CredentialsFile)
	v.SetDefault(KeyStoreTimeout, int(d.Connection.Timeout/time.Second))
	v.SetDefault(KeyFinancialInterval, int(d.Domains.FinancialInterval/time.Second))
	v.SetDefault(KeySocialInterval, int(d.Domains.SocialInterval/time.Second))
	v.SetDefault(KeyIoTInterval, int(d.Domains.IoTInterval/time.Second))
	v.SetDefault(KeyWindowSize, d.Domains.WindowSize)
	v.SetDefault(KeyCorrelationThreshold, d.Domains.CorrelationThreshold)
	v.SetDefault(KeyMinClusterSize, d.Synergy.MinClusterSize)
	v.SetDefault(KeyAnomalyThreshold, d.Synergy.AnomalyThreshold)
	v.SetDefault(KeyBatchSize, d.Synergy.BatchSize)
	v.SetDefault(KeyEnableRealTime, d.Synergy.EnableRealTime)
	v.SetDefault(KeyLogLevel, d.LogLevel)
}

func readFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfigParse, "failed to read config file").
			WithDetail("path", path)
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader([]byte(substituteEnvVars(string(data))))); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfigParse, "failed to parse config file").
			WithDetail("path", path)
	}
	return nil
}

// parser coerces raw override values and remembers the first failure.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) fail(key string, raw interface{}, cause error) {
	if p.err != nil {
		return
	}
	p.err = errors.Wrap(cause, errors.ErrorTypeConfigParse, "cannot coerce "+key).
		WithDetail("key", key).
		WithDetail("value", raw)
}

func (p *parser) str(key string) string {
	raw := p.v.Get(key)
	s, err := cast.ToStringE(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return strings.TrimSpace(s)
}

// int accepts base-10 integers only: "010" is ten, "60.0" and "" fail.
func (p *parser) int(key string) int {
	raw := p.v.Get(key)
	var (
		n   int
		err error
	)
	switch v := raw.(type) {
	case string:
		n, err = strconv.Atoi(strings.TrimSpace(v))
	case float32, float64:
		err = errors.Newf(errors.ErrorTypeConfigParse, "%v is not an integer", v)
	default:
		n, err = cast.ToIntE(v)
	}
	if err != nil {
		p.fail(key, raw, err)
		return 0
	}
	return n
}

func (p *parser) float(key string) float64 {
	raw := p.v.Get(key)
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return f
}

// maxSeconds is the largest whole number of seconds a time.Duration holds.
const maxSeconds = math.MaxInt64 / int64(time.Second)

func (p *parser) seconds(key string) time.Duration {
	n := int64(p.int(key))
	if n > maxSeconds || n < -maxSeconds {
		p.fail(key, p.v.Get(key), errors.Newf(errors.ErrorTypeConfigParse, "%d seconds overflows a duration", n))
		return 0
	}
	return time.Duration(n) * time.Second
}

// bool treats a case-insensitive "true" as true and anything else as false.
func (p *parser) bool(key string) bool {
	switch raw := p.v.Get(key).(type) {
	case bool:
		return raw
	case nil:
		return false
	default:
		return strings.EqualFold(strings.TrimSpace(cast.ToString(raw)), "true")
	}
}
