// README: Shared value types used across modules.
package types

// ID is an opaque entity identifier (UUID string).
type ID string

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies inside the WGS84 coordinate range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// TruckType enumerates the vehicle classes a city fleet can carry.
type TruckType string

const (
	TruckMini   TruckType = "MINI"
	TruckSmall  TruckType = "SMALL"
	TruckMedium TruckType = "MEDIUM"
	TruckLarge  TruckType = "LARGE"
)

// Role is the marketplace-facing account role.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleDriver   Role = "DRIVER"
	RoleAdmin    Role = "ADMIN"
)

// Meta is a free-form payload attached to events and audit entries.
type Meta map[string]any
