package postgres

import (
	"context"
	"database/sql"

	"rental/internal/domain"
)

// locationStore persists ride location snapshots. It is only used inside
// ride transactions.
type locationStore struct {
	q Querier
}

func (s *locationStore) create(ctx context.Context, loc *domain.Location) error {
	if loc == nil {
		return nil
	}

	query := `
		INSERT INTO locations (id, latitude, longitude, geohash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.q.ExecContext(ctx, query,
		loc.ID,
		loc.Latitude,
		loc.Longitude,
		loc.Geohash,
		loc.CreatedAt,
	)

	return err
}

// locationScan receives a LEFT JOINed location.
type locationScan struct {
	id        sql.NullString
	lat       sql.NullFloat64
	lng       sql.NullFloat64
	geohash   sql.NullString
	createdAt sql.NullTime
}

func (l *locationScan) targets() []any {
	return []any{&l.id, &l.lat, &l.lng, &l.geohash, &l.createdAt}
}

func (l *locationScan) location() *domain.Location {
	if !l.id.Valid {
		return nil
	}
	return &domain.Location{
		ID:        l.id.String,
		Latitude:  l.lat.Float64,
		Longitude: l.lng.Float64,
		Geohash:   l.geohash.String,
		CreatedAt: l.createdAt.Time,
	}
}

func locationID(loc *domain.Location) sql.NullString {
	if loc == nil {
		return sql.NullString{}
	}
	return toNullString(loc.ID)
}
