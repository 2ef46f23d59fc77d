package directory

import (
	"context"
	"log/slog"

	"patientflow/internal/verification/models"
	id "patientflow/pkg/domain"
)

// Remote is the subset of Client the caching layer wraps.
type Remote interface {
	FindByNationalID(ctx context.Context, nid id.NationalID) (*models.PatientIdentity, error)
	Get(ctx context.Context, pid id.PatientID) (*models.PatientIdentity, error)
	RequestToken(ctx context.Context, pid id.PatientID) (models.SessionToken, error)
}

// CachingDirectory writes every successful remote lookup through to a Cache
// and answers local-only queries for the OCR path.
type CachingDirectory struct {
	remote Remote
	cache  *Cache
	logger *slog.Logger
}

func NewCachingDirectory(remote Remote, cache *Cache, logger *slog.Logger) *CachingDirectory {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingDirectory{remote: remote, cache: cache, logger: logger}
}

func (d *CachingDirectory) FindByNationalID(ctx context.Context, nid id.NationalID) (*models.PatientIdentity, error) {
	p, err := d.remote.FindByNationalID(ctx, nid)
	if err != nil {
		return nil, err
	}
	d.cache.Put(*p)
	return p, nil
}

func (d *CachingDirectory) Get(ctx context.Context, pid id.PatientID) (*models.PatientIdentity, error) {
	p, err := d.remote.Get(ctx, pid)
	if err != nil {
		return nil, err
	}
	d.cache.Put(*p)
	return p, nil
}

func (d *CachingDirectory) RequestToken(ctx context.Context, pid id.PatientID) (models.SessionToken, error) {
	return d.remote.RequestToken(ctx, pid)
}

// CachedByNationalID consults only the local cache.
func (d *CachingDirectory) CachedByNationalID(_ context.Context, nid id.NationalID) (*models.PatientIdentity, bool) {
	p, ok := d.cache.FindByNationalID(nid)
	if !ok {
		return nil, false
	}
	d.logger.Debug("patient cache hit", "national_id", nid.Masked(), "patient_id", p.ID.String())
	return &p, true
}

func (d *CachingDirectory) Cache() *Cache {
	return d.cache
}
