// README: Fleet store backed by PostgreSQL (users, profiles, vehicles, documents).
package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"naqlo/internal/types"
)

var ErrNotFound = errors.New("fleet: not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetUser(ctx context.Context, id types.ID) (User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, role, status, created_at FROM users WHERE id = $1`, string(id))
	var u User
	err := row.Scan(&u.ID, &u.Role, &u.Status, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetDriverProfile(ctx context.Context, userID types.ID) (DriverProfile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, status, license_hash, created_at
		FROM driver_profiles WHERE user_id = $1`, string(userID))
	var p DriverProfile
	err := row.Scan(&p.UserID, &p.Status, &p.LicenseHash, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DriverProfile{}, ErrNotFound
	}
	if err != nil {
		return DriverProfile{}, err
	}
	return p, nil
}

// ActiveVehicle returns the driver's most recently registered ACTIVE vehicle.
func (s *Store) ActiveVehicle(ctx context.Context, ownerID types.ID) (Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT v.id, v.owner_id, v.truck_type, v.capacity_kg, v.brand, v.model, v.status, v.registration_hash,
		       (SELECT COUNT(*) FROM vehicle_photos p WHERE p.vehicle_id = v.id), v.created_at
		FROM vehicles v
		WHERE v.owner_id = $1 AND v.status = 'ACTIVE'
		ORDER BY v.created_at DESC
		LIMIT 1`, string(ownerID))
	return scanVehicle(row)
}

// ActiveVehicleTruckType satisfies the matching engine's fleet dependency.
func (s *Store) ActiveVehicleTruckType(ctx context.Context, driverID types.ID) (types.TruckType, error) {
	v, err := s.ActiveVehicle(ctx, driverID)
	if err != nil {
		return "", err
	}
	return v.TruckType, nil
}

func (s *Store) GetVehicle(ctx context.Context, id types.ID) (Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT v.id, v.owner_id, v.truck_type, v.capacity_kg, v.brand, v.model, v.status, v.registration_hash,
		       (SELECT COUNT(*) FROM vehicle_photos p WHERE p.vehicle_id = v.id), v.created_at
		FROM vehicles v
		WHERE v.id = $1`, string(id))
	return scanVehicle(row)
}

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.OwnerID, &v.TruckType, &v.CapacityKg, &v.Brand, &v.Model,
		&v.Status, &v.RegistrationHash, &v.PhotoCount, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vehicle{}, ErrNotFound
	}
	if err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

// EligibleDrivers filters candidate driver IDs down to those who may be
// matched right now: active DRIVER account, APPROVED profile, and at least one
// ACTIVE vehicle of the truck type with enough capacity and >=3 photos.
// Eligibility is computed fresh on every call; it is never cached.
func (s *Store) EligibleDrivers(ctx context.Context, ids []types.ID, truckType types.TruckType, weightKg int) ([]types.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT u.id
		FROM users u
		JOIN driver_profiles dp ON dp.user_id = u.id
		WHERE u.id = ANY($1)
		  AND u.role = 'DRIVER'
		  AND u.status = 'ACTIVE'
		  AND dp.status = 'APPROVED'
		  AND EXISTS (
			SELECT 1 FROM vehicles v
			WHERE v.owner_id = u.id
			  AND v.status = 'ACTIVE'
			  AND v.truck_type = $2
			  AND v.capacity_kg >= $3
			  AND (SELECT COUNT(*) FROM vehicle_photos p WHERE p.vehicle_id = v.id) >= 3
		  )`,
		raw, string(truckType), weightKg,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, types.ID(id))
	}
	return out, rows.Err()
}

func (s *Store) CreateVehicle(ctx context.Context, v *Vehicle) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vehicles (id, owner_id, truck_type, capacity_kg, brand, model, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(v.ID), string(v.OwnerID), string(v.TruckType), v.CapacityKg,
		v.Brand, v.Model, string(v.Status), v.CreatedAt,
	)
	return err
}

func (s *Store) AddVehiclePhotos(ctx context.Context, vehicleID types.ID, fileURLs []string) error {
	for _, u := range fileURLs {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO vehicle_photos (id, vehicle_id, file_url, created_at)
			VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), string(vehicleID), u, time.Now().UTC(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SetVehicleStatus(ctx context.Context, id types.ID, status VehicleStatus) error {
	_, err := s.db.Exec(ctx, `UPDATE vehicles SET status = $1 WHERE id = $2`, string(status), string(id))
	return err
}

func (s *Store) SetVehicleRegistrationHash(ctx context.Context, id types.ID, hash string) error {
	_, err := s.db.Exec(ctx, `UPDATE vehicles SET registration_hash = $1 WHERE id = $2`, hash, string(id))
	return err
}

func (s *Store) GetDocument(ctx context.Context, id types.ID) (Document, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_id, type, file_url, status, reviewed_by_id, reviewed_at, created_at
		FROM documents WHERE id = $1`, string(id))
	var d Document
	var reviewedBy *string
	err := row.Scan(&d.ID, &d.OwnerID, &d.Type, &d.FileURL, &d.Status, &reviewedBy, &d.ReviewedAt, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if reviewedBy != nil {
		id := types.ID(*reviewedBy)
		d.ReviewedByID = &id
	}
	return d, nil
}

func (s *Store) CreateDocument(ctx context.Context, d *Document) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (id, owner_id, type, file_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(d.ID), string(d.OwnerID), string(d.Type), d.FileURL, string(d.Status), d.CreatedAt,
	)
	return err
}

func (s *Store) SetDocumentReview(ctx context.Context, id types.ID, status DocumentStatus, reviewerID types.ID, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE documents SET status = $1, reviewed_by_id = $2, reviewed_at = $3 WHERE id = $4`,
		string(status), string(reviewerID), at, string(id),
	)
	return err
}

// UpsertDriverLicenseHash stores the HMAC of an approved license on the
// driver's profile, creating the profile when missing.
func (s *Store) UpsertDriverLicenseHash(ctx context.Context, userID types.ID, hash string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_profiles (user_id, status, license_hash, created_at)
		VALUES ($1, 'PENDING', $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET license_hash = EXCLUDED.license_hash`,
		string(userID), hash,
	)
	return err
}
