package synergy

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ajitpratap0/synergy/pkg/config"
	"github.com/ajitpratap0/synergy/pkg/errors"
	"github.com/ajitpratap0/synergy/pkg/store"
)

// Store is the subset of store.Manager the repository needs
type Store interface {
	Put(ctx context.Context, collection, key string, fields store.Fields) error
	Get(ctx context.Context, collection, key string) (store.Record, bool, error)
	Query(ctx context.Context, collection string, filter store.Filter) iter.Seq2[store.Record, error]
}

// Repository reads and writes domain data points and synergy results.
type Repository struct {
	store          Store
	logger         *zap.Logger
	dataCollection string
	synCollection  string
	minClusterSize int
	now            func() time.Time
	newID          func() string
}

// NewRepository binds a repository to the collections and cluster threshold
// of snap.
func NewRepository(s Store, snap config.Snapshot, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		store:          s,
		logger:         logger.With(zap.String("component", "repository")),
		dataCollection: snap.Connection.Collection,
		synCollection:  snap.Connection.SynergyCollection,
		minClusterSize: snap.Synergy.MinClusterSize,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// SaveDataPoint stores p and returns it as stored. An empty ID is replaced
// by a new UUID and a zero timestamp by the current time.
func (r *Repository) SaveDataPoint(ctx context.Context, p DataPoint) (DataPoint, error) {
	if !p.Domain.Valid() {
		return DataPoint{}, errors.Newf(errors.ErrorTypeValidation, "unknown domain %q", p.Domain)
	}
	if p.ID == "" {
		p.ID = r.newID()
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = r.now()
	}
	p.Timestamp = p.Timestamp.UTC()

	if err := r.store.Put(ctx, r.dataCollection, p.ID, p.fields()); err != nil {
		return DataPoint{}, err
	}
	r.logger.Debug("data point saved", zap.String("id", p.ID), zap.String("domain", string(p.Domain)))
	return p, nil
}

// DataPoint returns the data point stored under id
func (r *Repository) DataPoint(ctx context.Context, id string) (DataPoint, bool, error) {
	rec, found, err := r.store.Get(ctx, r.dataCollection, id)
	if err != nil || !found {
		return DataPoint{}, false, err
	}
	p, err := dataPointFromRecord(rec)
	if err != nil {
		return DataPoint{}, false, err
	}
	return p, true, nil
}

// RecentDataPoints returns the data points of domain observed at or after
// since, oldest first. Records that cannot be decoded are logged and skipped.
func (r *Repository) RecentDataPoints(ctx context.Context, domain Domain, since time.Time) ([]DataPoint, error) {
	filter := store.And(
		store.FieldEquals(fieldDomain, string(domain)),
		func(rec store.Record) bool {
			ts, err := cast.ToTimeE(rec.Fields[fieldTimestamp])
			return err == nil && !ts.Before(since)
		},
	)

	var out []DataPoint
	for rec, err := range r.store.Query(ctx, r.dataCollection, filter) {
		if err != nil {
			return nil, err
		}
		p, err := dataPointFromRecord(rec)
		if err != nil {
			r.logger.Warn("skipping malformed data point", zap.String("id", rec.Key), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b DataPoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

// SaveSynergy stores res and returns it as stored. Results whose cluster is
// smaller than the configured minimum are rejected with a validation error.
func (r *Repository) SaveSynergy(ctx context.Context, res SynergyResult) (SynergyResult, error) {
	if res.ClusterSize < r.minClusterSize {
		return SynergyResult{}, errors.Newf(errors.ErrorTypeValidation,
			"cluster size %d is below the minimum of %d", res.ClusterSize, r.minClusterSize)
	}
	for _, d := range res.Domains {
		if !d.Valid() {
			return SynergyResult{}, errors.Newf(errors.ErrorTypeValidation, "unknown domain %q", d)
		}
	}
	if res.ID == "" {
		res.ID = r.newID()
	}
	if res.DetectedAt.IsZero() {
		res.DetectedAt = r.now()
	}
	res.DetectedAt = res.DetectedAt.UTC()

	if err := r.store.Put(ctx, r.synCollection, res.ID, res.fields()); err != nil {
		return SynergyResult{}, err
	}
	r.logger.Info("synergy saved",
		zap.String("id", res.ID),
		zap.Float64("score", res.Score),
		zap.Int("cluster_size", res.ClusterSize),
		zap.Bool("anomaly", res.Anomaly))
	return res, nil
}

// Synergies returns stored results scoring at least minScore, highest first.
func (r *Repository) Synergies(ctx context.Context, minScore float64) ([]SynergyResult, error) {
	filter := func(rec store.Record) bool {
		score, err := cast.ToFloat64E(rec.Fields[fieldScore])
		return err == nil && score >= minScore
	}

	var out []SynergyResult
	for rec, err := range r.store.Query(ctx, r.synCollection, filter) {
		if err != nil {
			return nil, err
		}
		res, err := synergyFromRecord(rec)
		if err != nil {
			r.logger.Warn("skipping malformed synergy", zap.String("id", rec.Key), zap.Error(err))
			continue
		}
		out = append(out, res)
	}
	slices.SortStableFunc(out, func(a, b SynergyResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out, nil
}
