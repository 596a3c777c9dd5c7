// Package labels keeps the label table in step with the class names a
// model can predict.
package labels

import (
	"context"
	"strings"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

// Registry is the subset of the label repository the reconciler needs.
type Registry interface {
	GetOrCreate(ctx context.Context, name string) (*entities.Label, error)
}

// Reconciler maps class names to label IDs, creating missing labels.
// The name to ID map lives for the lifetime of the Reconciler, which is
// one auto-label run.
type Reconciler struct {
	registry Registry
	ids      *cache.Cache
	log      logger.Logger
}

// NewReconciler returns a Reconciler backed by registry.
func NewReconciler(registry Registry, log logger.Logger) *Reconciler {
	if log == nil {
		log = GetLogger()
	}
	return &Reconciler{
		registry: registry,
		ids:      cache.New(cache.NoExpiration, 0),
		log:      log,
	}
}

// Normalize trims name and converts it to Unicode NFC so visually equal
// names from different sources map to one label.
func Normalize(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Ensure makes sure a label exists for every name and returns the name to
// ID map keyed by the names as given. Blank names are skipped. Calling
// Ensure again with the same names creates nothing new.
func (r *Reconciler) Ensure(ctx context.Context, names []string) (map[string]uint, error) {
	out := make(map[string]uint, len(names))
	for _, raw := range names {
		key := Normalize(raw)
		if key == "" {
			continue
		}
		id, err := r.resolve(ctx, key)
		if err != nil {
			return nil, err
		}
		out[raw] = id
	}
	r.log.Debug("labels reconciled", logger.Int("names", len(names)), logger.Int("resolved", len(out)))
	return out, nil
}

// ID returns the cached label ID for name.
func (r *Reconciler) ID(name string) (uint, bool) {
	v, ok := r.ids.Get(Normalize(name))
	if !ok {
		return 0, false
	}
	return v.(uint), true
}

func (r *Reconciler) resolve(ctx context.Context, key string) (uint, error) {
	if v, ok := r.ids.Get(key); ok {
		return v.(uint), nil
	}
	label, err := r.registry.GetOrCreate(ctx, key)
	if err != nil {
		return 0, errors.New(err).
			Component("labels").
			Category(errors.CategoryDatabase).
			Context("label", key).
			Build()
	}
	r.ids.Set(key, label.ID, cache.NoExpiration)
	return label.ID, nil
}
