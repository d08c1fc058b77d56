package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/telehealth-scheduling/internal/storage"
	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

const profilesCollection = "availability_profiles"

// ProfileRepository persists availability profiles, with an optional
// read-through cache in front of the document store. Cache failures are
// logged and never fail the read; the store stays authoritative.
type ProfileRepository struct {
	profiles *storage.Repository[Profile]
	cache    *ProfileCache
	logger   *logging.Logger
}

// NewProfileRepository creates a repository over the document store. The
// cache may be nil.
func NewProfileRepository(store storage.Store, cache *ProfileCache, logger *logging.Logger) *ProfileRepository {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProfileRepository{
		profiles: storage.NewRepository[Profile](store, profilesCollection),
		cache:    cache,
		logger:   logger,
	}
}

// GetByDoctor returns the doctor's availability profile.
// Fails with storage.ErrNotFound when the doctor has none.
func (r *ProfileRepository) GetByDoctor(ctx context.Context, doctorID string) (*Profile, error) {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, doctorID)
		if err != nil {
			r.logger.Warn("availability: profile cache read failed", "error", err, "doctor_id", doctorID)
		} else if cached != nil {
			return cached, nil
		}
	}

	profile, err := r.profiles.FindOne(ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("doctorId", doctorID)},
	})
	if err != nil {
		return nil, fmt.Errorf("availability: load profile for doctor %s: %w", doctorID, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, profile); err != nil {
			r.logger.Warn("availability: profile cache write failed", "error", err, "doctor_id", doctorID)
		}
	}
	return profile, nil
}

// Get fetches a profile by its own id.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*Profile, error) {
	return r.profiles.Get(ctx, id)
}

// Save upserts a profile, assigning an id and creation timestamp on first
// write, and invalidates the doctor's cache entry.
func (r *ProfileRepository) Save(ctx context.Context, profile *Profile) error {
	now := time.Now().UTC()
	if profile.ID == "" {
		profile.ID = uuid.New().String()
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	if err := r.profiles.Put(ctx, profile.ID, profile); err != nil {
		return fmt.Errorf("availability: save profile: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, profile.DoctorID); err != nil {
			r.logger.Warn("availability: profile cache invalidate failed", "error", err, "doctor_id", profile.DoctorID)
		}
	}
	return nil
}
