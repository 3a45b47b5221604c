// Package synergy stores the application's domain data points and detected
// synergies on top of a store.Manager, in the two collections named by the
// connection configuration.
package synergy

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/ajitpratap0/synergy/pkg/config"
	"github.com/ajitpratap0/synergy/pkg/errors"
	"github.com/ajitpratap0/synergy/pkg/store"
)

// Domain identifies the source of a data point
type Domain string

const (
	DomainFinancial Domain = "financial"
	DomainSocial    Domain = "social"
	DomainIoT       Domain = "iot"
)

// Domains lists every known domain
var Domains = []Domain{DomainFinancial, DomainSocial, DomainIoT}

// ParseDomain parses a case-insensitive domain name
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", errors.Newf(errors.ErrorTypeValidation, "unknown domain %q", s)
	}
	return d, nil
}

// Valid reports whether d is a known domain
func (d Domain) Valid() bool {
	switch d {
	case DomainFinancial, DomainSocial, DomainIoT:
		return true
	}
	return false
}

// Interval returns the configured collection interval for d, or zero for an
// unknown domain.
func (d Domain) Interval(cfg config.DomainConfig) time.Duration {
	switch d {
	case DomainFinancial:
		return cfg.FinancialInterval
	case DomainSocial:
		return cfg.SocialInterval
	case DomainIoT:
		return cfg.IoTInterval
	}
	return 0
}

// DataPoint is one observation collected from a domain
type DataPoint struct {
	ID        string             `json:"id"`
	Domain    Domain             `json:"domain"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
}

// SynergyResult is a cluster of correlated activity detected across domains
type SynergyResult struct {
	ID          string    `json:"id"`
	Domains     []Domain  `json:"domains"`
	Score       float64   `json:"score"`
	ClusterSize int       `json:"cluster_size"`
	Anomaly     bool      `json:"anomaly"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Record field names
const (
	fieldDomain      = "domain"
	fieldTimestamp   = "timestamp"
	fieldValues      = "values"
	fieldMetadata    = "metadata"
	fieldDomains     = "domains"
	fieldScore       = "score"
	fieldClusterSize = "cluster_size"
	fieldAnomaly     = "anomaly"
	fieldDetectedAt  = "detected_at"
)

func (p DataPoint) fields() store.Fields {
	values := make(map[string]any, len(p.Values))
	for k, v := range p.Values {
		values[k] = v
	}
	f := store.Fields{
		fieldDomain:    string(p.Domain),
		fieldTimestamp: p.Timestamp.UTC(),
		fieldValues:    values,
	}
	if len(p.Metadata) > 0 {
		meta := make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
		f[fieldMetadata] = meta
	}
	return f
}

func (r SynergyResult) fields() store.Fields {
	domains := make([]any, len(r.Domains))
	for i, d := range r.Domains {
		domains[i] = string(d)
	}
	return store.Fields{
		fieldDomains:     domains,
		fieldScore:       r.Score,
		fieldClusterSize: r.ClusterSize,
		fieldAnomaly:     r.Anomaly,
		fieldDetectedAt:  r.DetectedAt.UTC(),
	}
}

// decoder reads typed values out of record fields, keeping the first failure.
// Values are coerced with cast so records written through the CLI (JSON
// numbers, RFC 3339 strings) and those returned by the live backend decode
// alike.
type decoder struct {
	rec store.Record
	err error
}

func (d *decoder) fail(field string, cause error) {
	if d.err == nil {
		d.err = errors.Wrap(cause, errors.ErrorTypeInternal, fmt.Sprintf("malformed field %q", field)).
			WithDetail("key", d.rec.Key)
	}
}

func (d *decoder) string(field string) string {
	v, err := cast.ToStringE(d.rec.Fields[field])
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) float(field string) float64 {
	v, err := cast.ToFloat64E(d.rec.Fields[field])
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) int(field string) int {
	v, err := cast.ToIntE(d.rec.Fields[field])
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) bool(field string) bool {
	v, err := cast.ToBoolE(d.rec.Fields[field])
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) time(field string) time.Time {
	v, err := cast.ToTimeE(d.rec.Fields[field])
	if err != nil {
		d.fail(field, err)
	}
	return v.UTC()
}

func (d *decoder) floatMap(field string) map[string]float64 {
	raw, ok := d.rec.Fields[field]
	if !ok || raw == nil {
		return map[string]float64{}
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		d.fail(field, err)
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			d.fail(field+"."+k, err)
			return nil
		}
		out[k] = f
	}
	return out
}

func (d *decoder) stringMap(field string) map[string]string {
	raw, ok := d.rec.Fields[field]
	if !ok || raw == nil {
		return nil
	}
	m, err := cast.ToStringMapStringE(raw)
	if err != nil {
		d.fail(field, err)
		return nil
	}
	return m
}

func (d *decoder) domain(field string) Domain {
	s := d.string(field)
	dom, err := ParseDomain(s)
	if err != nil && d.err == nil {
		d.fail(field, err)
	}
	return dom
}

func (d *decoder) domains(field string) []Domain {
	raw, err := cast.ToStringSliceE(d.rec.Fields[field])
	if err != nil {
		d.fail(field, err)
		return nil
	}
	out := make([]Domain, 0, len(raw))
	for _, s := range raw {
		dom, err := ParseDomain(s)
		if err != nil {
			d.fail(field, err)
			return nil
		}
		out = append(out, dom)
	}
	return out
}

func dataPointFromRecord(rec store.Record) (DataPoint, error) {
	d := decoder{rec: rec}
	p := DataPoint{
		ID:        rec.Key,
		Domain:    d.domain(fieldDomain),
		Timestamp: d.time(fieldTimestamp),
		Values:    d.floatMap(fieldValues),
		Metadata:  d.stringMap(fieldMetadata),
	}
	return p, d.err
}

func synergyFromRecord(rec store.Record) (SynergyResult, error) {
	d := decoder{rec: rec}
	r := SynergyResult{
		ID:          rec.Key,
		Domains:     d.domains(fieldDomains),
		Score:       d.float(fieldScore),
		ClusterSize: d.int(fieldClusterSize),
		Anomaly:     d.bool(fieldAnomaly),
		DetectedAt:  d.time(fieldDetectedAt),
	}
	return r, d.err
}
