package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"rental/internal/domain"
	"rental/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q  Querier
	db *sql.DB
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db, db: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideSelect = `
	SELECT r.id, r.device_code, r.platform_id, r.franchise_id, r.region_id,
		r.user_id, r.real_name, r.phone, r.birthday, r.insurance_id, r.photo_url,
		r.discount_group_id, r.discount_id, r.terminated_type, r.monitoring_status,
		r.price, r.started_at, r.terminated_at, r.created_at, r.updated_at,
		sp.id, sp.latitude, sp.longitude, sp.geohash, sp.created_at,
		sd.id, sd.latitude, sd.longitude, sd.geohash, sd.created_at,
		tp.id, tp.latitude, tp.longitude, tp.geohash, tp.created_at,
		td.id, td.latitude, td.longitude, td.geohash, td.created_at,
		rc.id, rc.standard_price, rc.standard_discount, rc.standard_total,
		rc.per_minute_price, rc.per_minute_discount, rc.per_minute_total,
		rc.surcharge_price, rc.surcharge_discount, rc.surcharge_total,
		rc.is_nightly, rc.price, rc.discount, rc.total, rc.created_at
	FROM rides r
	LEFT JOIN locations sp ON sp.id = r.started_phone_location_id
	LEFT JOIN locations sd ON sd.id = r.started_device_location_id
	LEFT JOIN locations tp ON tp.id = r.terminated_phone_location_id
	LEFT JOIN locations td ON td.id = r.terminated_device_location_id
	LEFT JOIN receipts rc ON rc.ride_id = r.id
`

var rideOrderColumns = map[domain.RideOrderField]string{
	domain.RideOrderByPrice:        "r.price",
	domain.RideOrderByStartedAt:    "r.started_at",
	domain.RideOrderByTerminatedAt: "r.terminated_at",
	domain.RideOrderByCreatedAt:    "r.created_at",
	domain.RideOrderByUpdatedAt:    "r.updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var birthday, terminatedAt sql.NullTime
	var insuranceID, photoURL, discountGroupID, discountID, terminatedType sql.NullString
	var startedPhone, startedDevice, terminatedPhone, terminatedDevice locationScan
	var receipt receiptScan

	dest := []any{
		&ride.ID,
		&ride.DeviceCode,
		&ride.PlatformID,
		&ride.FranchiseID,
		&ride.RegionID,
		&ride.UserID,
		&ride.RealName,
		&ride.Phone,
		&birthday,
		&insuranceID,
		&photoURL,
		&discountGroupID,
		&discountID,
		&terminatedType,
		&ride.MonitoringStatus,
		&ride.Price,
		&ride.StartedAt,
		&terminatedAt,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	}
	dest = append(dest, startedPhone.targets()...)
	dest = append(dest, startedDevice.targets()...)
	dest = append(dest, terminatedPhone.targets()...)
	dest = append(dest, terminatedDevice.targets()...)
	dest = append(dest, receipt.targets()...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	ride.Birthday = birthday.Time
	ride.TerminatedAt = terminatedAt.Time
	ride.InsuranceID = insuranceID.String
	ride.PhotoURL = photoURL.String
	ride.DiscountGroupID = discountGroupID.String
	ride.DiscountID = discountID.String
	ride.TerminatedType = domain.TerminatedType(terminatedType.String)
	ride.StartedPhoneLocation = startedPhone.location()
	ride.StartedDeviceLocation = startedDevice.location()
	ride.TerminatedPhoneLocation = terminatedPhone.location()
	ride.TerminatedDeviceLocation = terminatedDevice.location()
	ride.Receipt = receipt.receipt(ride.ID)

	return &ride, nil
}

// Create persists a new ride together with its start locations.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	return runInTx(ctx, r.db, r.q, func(q Querier) error {
		locations := &locationStore{q: q}
		if err := locations.create(ctx, ride.StartedPhoneLocation); err != nil {
			return err
		}
		if err := locations.create(ctx, ride.StartedDeviceLocation); err != nil {
			return err
		}

		query := `
			INSERT INTO rides (id, device_code, platform_id, franchise_id, region_id,
				user_id, real_name, phone, birthday, insurance_id,
				discount_group_id, discount_id, started_phone_location_id, started_device_location_id,
				monitoring_status, price, started_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`

		_, err := q.ExecContext(ctx, query,
			ride.ID,
			ride.DeviceCode,
			ride.PlatformID,
			ride.FranchiseID,
			ride.RegionID,
			ride.UserID,
			ride.RealName,
			ride.Phone,
			toNullTime(ride.Birthday),
			toNullString(ride.InsuranceID),
			toNullString(ride.DiscountGroupID),
			toNullString(ride.DiscountID),
			locationID(ride.StartedPhoneLocation),
			locationID(ride.StartedDeviceLocation),
			ride.MonitoringStatus,
			ride.Price,
			ride.StartedAt,
			ride.CreatedAt,
			ride.UpdatedAt,
		)

		return err
	})
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	ride, err := scanRide(r.q.QueryRowContext(ctx, rideSelect+`WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// GetLatestByDevice retrieves the most recently created ride of a device.
func (r *RideRepository) GetLatestByDevice(ctx context.Context, deviceCode string) (*domain.Ride, error) {
	query := rideSelect + `WHERE r.device_code = $1 ORDER BY r.created_at DESC LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, deviceCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// GetActiveByDevice retrieves the non-terminated ride of a device.
func (r *RideRepository) GetActiveByDevice(ctx context.Context, deviceCode string) (*domain.Ride, error) {
	query := rideSelect + `WHERE r.device_code = $1 AND r.terminated_at IS NULL ORDER BY r.created_at DESC LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, deviceCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// List retrieves rides matching the filter and the total match count.
func (r *RideRepository) List(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, int, error) {
	where := rideWhere(filter)

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides r`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := rideOrderColumns[filter.OrderBy]
	if !ok {
		column = "r.started_at"
	}
	query := rideSelect + where.sql() + " ORDER BY " + column + " " + orderDirection(filter.OrderDesc)
	query += where.page(filter.Take, filter.Skip)

	rows, err := r.q.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, 0, err
		}
		rides = append(rides, ride)
	}

	return rides, total, rows.Err()
}

func rideWhere(f domain.RideFilter) *whereBuilder {
	w := &whereBuilder{}

	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.add(`(r.id::text ILIKE ? OR r.user_id ILIKE ? OR r.real_name ILIKE ? OR r.phone ILIKE ? OR r.device_code ILIKE ?)`,
			like, like, like, like, like)
	}
	if len(f.PlatformIDs) > 0 {
		w.add("r.platform_id = ANY(?)", pq.Array(f.PlatformIDs))
	}
	if len(f.FranchiseIDs) > 0 {
		w.add("r.franchise_id = ANY(?)", pq.Array(f.FranchiseIDs))
	}
	if len(f.RegionIDs) > 0 {
		w.add("r.region_id = ANY(?)", pq.Array(f.RegionIDs))
	}
	if len(f.DiscountGroupIDs) > 0 {
		w.add("r.discount_group_id = ANY(?)", pq.Array(f.DiscountGroupIDs))
	}
	if len(f.TerminatedTypes) > 0 {
		types := make([]string, len(f.TerminatedTypes))
		for i, t := range f.TerminatedTypes {
			types[i] = string(t)
		}
		w.add("r.terminated_type = ANY(?)", pq.Array(types))
	}
	if len(f.DeviceCodes) > 0 {
		w.add("r.device_code = ANY(?)", pq.Array(f.DeviceCodes))
	}
	if len(f.MonitoringStatus) > 0 {
		statuses := make([]string, len(f.MonitoringStatus))
		for i, s := range f.MonitoringStatus {
			statuses[i] = string(s)
		}
		w.add("r.monitoring_status = ANY(?)", pq.Array(statuses))
	}
	if !f.StartedAtFrom.IsZero() {
		w.add("r.started_at >= ?", f.StartedAtFrom)
	}
	if !f.StartedAtTo.IsZero() {
		w.add("r.started_at <= ?", f.StartedAtTo)
	}
	if !f.TerminatedBefore.IsZero() {
		w.add("r.terminated_at < ?", f.TerminatedBefore)
	}
	if f.OnlyTerminated {
		w.add("r.terminated_at IS NOT NULL")
	} else if !f.ShowTerminated {
		w.add("r.terminated_at IS NULL")
	}
	if f.OnlyPhoto {
		w.add("r.photo_url IS NOT NULL")
	}
	if f.OnlyMissingPhoto {
		w.add("r.photo_url IS NULL")
	}

	return w
}

// Update updates the mutable, non-terminal fields of a ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET discount_group_id = $1, discount_id = $2, photo_url = $3, monitoring_status = $4,
			insurance_id = $5, updated_at = NOW()
		WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query,
		toNullString(ride.DiscountGroupID),
		toNullString(ride.DiscountID),
		toNullString(ride.PhotoURL),
		ride.MonitoringStatus,
		toNullString(ride.InsuranceID),
		ride.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePrice stores the recomputed running price.
func (r *RideRepository) UpdatePrice(ctx context.Context, id string, price float64) error {
	query := `UPDATE rides SET price = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, price, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Terminate stores the end locations, the terminate fields and the receipt
// in one transaction. The update only matches a ride that is still active,
// so a concurrent terminate fails before its receipt is written.
func (r *RideRepository) Terminate(ctx context.Context, ride *domain.Ride) error {
	return runInTx(ctx, r.db, r.q, func(q Querier) error {
		locations := &locationStore{q: q}
		if err := locations.create(ctx, ride.TerminatedPhoneLocation); err != nil {
			return err
		}
		if err := locations.create(ctx, ride.TerminatedDeviceLocation); err != nil {
			return err
		}

		query := `
			UPDATE rides
			SET terminated_at = $1, terminated_type = $2,
				terminated_phone_location_id = $3, terminated_device_location_id = $4,
				updated_at = NOW()
			WHERE id = $5 AND terminated_at IS NULL
		`

		result, err := q.ExecContext(ctx, query,
			ride.TerminatedAt,
			ride.TerminatedType,
			locationID(ride.TerminatedPhoneLocation),
			locationID(ride.TerminatedDeviceLocation),
			ride.ID,
		)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if rowsAffected == 0 {
			return repository.ErrConflict
		}

		if ride.Receipt == nil {
			return nil
		}
		receipts := &receiptStore{q: q}
		return receipts.create(ctx, ride.Receipt)
	})
}

// Ensure RideRepository implements repository.RideRepository.
var _ repository.RideRepository = (*RideRepository)(nil)
