// Package resolvers maps portal reference data to stored row ids, creating rows
// on first sight. Lookups go through the run's caches before touching the database.
package resolvers

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/JustJay7/pje-capture/internal/cache"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/normalize"
	"gorm.io/gorm"
)

// Third party markers used for court experts
const (
	ExpertType = "PERITO"
	ExpertPole = "TERCEIRO"
)

// Resolver belongs to one run; its caches are dropped with it
type Resolver struct {
	db     *gorm.DB
	caches *cache.RunCaches
}

func New(db *gorm.DB, caches *cache.RunCaches) *Resolver {
	if caches == nil {
		caches = cache.NewRunCaches()
	}
	return &Resolver{db: db, caches: caches}
}

func (r *Resolver) Caches() *cache.RunCaches { return r.caches }

func lookupOrCreate[T any](ctx context.Context, db *gorm.DB, c cache.EntityCache, key string, where map[string]any, build func() *T, id func(*T) uint) (uint, error) {
	if cached, ok := c.Get(key); ok {
		return cached, nil
	}

	var row T
	err := db.WithContext(ctx).Where(where).First(&row).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := build()
		if err := db.WithContext(ctx).Create(created).Error; err != nil {
			return 0, err
		}
		row = *created
	default:
		return 0, err
	}

	c.Set(key, id(&row))
	return id(&row), nil
}

func (r *Resolver) CourtDivision(ctx context.Context, court, instance string, externalID int64, description string) (uint, error) {
	if externalID == 0 {
		return 0, nil
	}
	id, err := lookupOrCreate(ctx, r.db, r.caches.CourtDivisions,
		cache.Key(court, instance, externalID),
		map[string]any{"external_id": externalID, "court": court, "instance": instance},
		func() *database.CourtDivision {
			return &database.CourtDivision{ExternalID: externalID, Court: court, Instance: instance, Description: description}
		},
		func(d *database.CourtDivision) uint { return d.ID },
	)
	if err != nil {
		return 0, fmt.Errorf("resolve court division %d: %w", externalID, err)
	}
	return id, nil
}

// CourtDivisionByDescription resolves a division known only by its description.
// Rows created here carry a negative external id derived from the description.
func (r *Resolver) CourtDivisionByDescription(ctx context.Context, court, instance, description string) (uint, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, nil
	}

	key := cache.Key(court, instance, description)
	if cached, ok := r.caches.CourtDivisions.Get(key); ok {
		return cached, nil
	}

	var existing database.CourtDivision
	err := r.db.WithContext(ctx).
		Where("court = ? AND instance = ? AND description = ?", court, instance, description).
		Order("external_id DESC").
		First(&existing).Error
	if err == nil {
		r.caches.CourtDivisions.Set(key, existing.ID)
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("resolve court division %q: %w", description, err)
	}

	id, err := r.CourtDivision(ctx, court, instance, syntheticID(description), description)
	if err != nil {
		return 0, err
	}
	r.caches.CourtDivisions.Set(key, id)
	return id, nil
}

func syntheticID(s string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToUpper(s)))
	return -int64(h.Sum32()) - 1
}

func (r *Resolver) CaseClass(ctx context.Context, court, instance string, externalID int64, code, description string) (uint, error) {
	if externalID == 0 {
		return 0, nil
	}
	id, err := lookupOrCreate(ctx, r.db, r.caches.CaseClasses,
		cache.Key(court, instance, externalID),
		map[string]any{"external_id": externalID, "court": court, "instance": instance},
		func() *database.CaseClass {
			return &database.CaseClass{ExternalID: externalID, Court: court, Instance: instance, Code: code, Description: description}
		},
		func(c *database.CaseClass) uint { return c.ID },
	)
	if err != nil {
		return 0, fmt.Errorf("resolve case class %d: %w", externalID, err)
	}
	return id, nil
}

func (r *Resolver) HearingType(ctx context.Context, court, instance string, externalID int64, description, code string) (uint, error) {
	if externalID == 0 {
		return 0, nil
	}
	id, err := lookupOrCreate(ctx, r.db, r.caches.HearingTypes,
		cache.Key(court, instance, externalID),
		map[string]any{"external_id": externalID, "court": court, "instance": instance},
		func() *database.HearingType {
			return &database.HearingType{ExternalID: externalID, Court: court, Instance: instance, Code: code, Description: description}
		},
		func(t *database.HearingType) uint { return t.ID },
	)
	if err != nil {
		return 0, fmt.Errorf("resolve hearing type %d: %w", externalID, err)
	}
	return id, nil
}

// HearingRoom is keyed by court division and room name; rooms without a name are not stored
func (r *Resolver) HearingRoom(ctx context.Context, court, instance string, courtDivisionID uint, externalID int64, name string) (uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil
	}
	id, err := lookupOrCreate(ctx, r.db, r.caches.HearingRooms,
		cache.Key(court, instance, courtDivisionID, name),
		map[string]any{"court": court, "instance": instance, "court_division_id": courtDivisionID, "name": name},
		func() *database.HearingRoom {
			return &database.HearingRoom{ExternalID: externalID, Court: court, Instance: instance, CourtDivisionID: courtDivisionID, Name: name}
		},
		func(h *database.HearingRoom) uint { return h.ID },
	)
	if err != nil {
		return 0, fmt.Errorf("resolve hearing room %q: %w", name, err)
	}
	return id, nil
}

func (r *Resolver) Specialty(ctx context.Context, court, instance string, externalID int64, description string) (uint, error) {
	if externalID == 0 {
		return 0, nil
	}
	id, err := lookupOrCreate(ctx, r.db, r.caches.Specialties,
		cache.Key(court, instance, externalID),
		map[string]any{"external_id": externalID, "court": court, "instance": instance},
		func() *database.Specialty {
			return &database.Specialty{ExternalID: externalID, Court: court, Instance: instance, Description: description}
		},
		func(s *database.Specialty) uint { return s.ID },
	)
	if err != nil {
		return 0, fmt.Errorf("resolve specialty %d: %w", externalID, err)
	}
	return id, nil
}

// Expert resolves a court expert, stored as a third party without a tax id
func (r *Resolver) Expert(ctx context.Context, court, instance string, externalID int64, name string) (uint, error) {
	if externalID == 0 {
		return 0, nil
	}
	id, err := lookupOrCreate(ctx, r.db, r.caches.Experts,
		cache.Key(court, instance, externalID),
		map[string]any{"external_id": externalID, "court": court, "instance": instance, "type": ExpertType},
		func() *database.ThirdParty {
			return &database.ThirdParty{ExternalID: externalID, Court: court, Instance: instance, Type: ExpertType, Pole: ExpertPole, Name: name}
		},
		func(t *database.ThirdParty) uint { return t.ID },
	)
	if err != nil {
		return 0, fmt.Errorf("resolve expert %d: %w", externalID, err)
	}
	return id, nil
}

// Attorney finds or creates the capturing attorney by CPF
func (r *Resolver) Attorney(ctx context.Context, taxID, name, externalID string) (uint, error) {
	doc := normalize.NormalizeTaxID(taxID)
	if doc == "" {
		return 0, errors.New("attorney has no tax id")
	}

	var row database.Attorney
	err := r.db.WithContext(ctx).Where("tax_id = ?", doc).First(&row).Error
	switch {
	case err == nil:
		if row.ExternalID == "" && externalID != "" {
			if err := r.db.WithContext(ctx).Model(&row).Update("external_id", externalID).Error; err != nil {
				return 0, fmt.Errorf("update attorney: %w", err)
			}
		}
		return row.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = database.Attorney{TaxID: doc, Name: name, ExternalID: externalID}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return 0, fmt.Errorf("create attorney: %w", err)
		}
		return row.ID, nil
	default:
		return 0, fmt.Errorf("find attorney: %w", err)
	}
}
