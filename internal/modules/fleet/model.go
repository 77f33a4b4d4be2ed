// README: User, driver profile, vehicle and document definitions.
package fleet

import (
	"time"

	"naqlo/internal/types"
)

type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
	UserBanned    UserStatus = "BANNED"
)

type DriverStatus string

const (
	DriverPending   DriverStatus = "PENDING"
	DriverApproved  DriverStatus = "APPROVED"
	DriverSuspended DriverStatus = "SUSPENDED"
	DriverBanned    DriverStatus = "BANNED"
)

type VehicleStatus string

const (
	VehicleDraft    VehicleStatus = "DRAFT"
	VehiclePending  VehicleStatus = "PENDING"
	VehicleActive   VehicleStatus = "ACTIVE"
	VehicleRejected VehicleStatus = "REJECTED"
)

type DocumentType string

const (
	DocDriverLicense       DocumentType = "DRIVER_LICENSE"
	DocVehicleRegistration DocumentType = "VEHICLE_REGISTRATION"
)

type DocumentStatus string

const (
	DocPending  DocumentStatus = "PENDING"
	DocApproved DocumentStatus = "APPROVED"
	DocRejected DocumentStatus = "REJECTED"
	DocFraud    DocumentStatus = "FRAUD"
)

type User struct {
	ID        types.ID
	Role      types.Role
	Status    UserStatus
	CreatedAt time.Time
}

type DriverProfile struct {
	UserID      types.ID
	Status      DriverStatus
	LicenseHash *string
	CreatedAt   time.Time
}

type Vehicle struct {
	ID               types.ID
	OwnerID          types.ID
	TruckType        types.TruckType
	CapacityKg       int
	Brand            string
	Model            string
	Status           VehicleStatus
	RegistrationHash *string
	PhotoCount       int
	CreatedAt        time.Time
}

type Document struct {
	ID           types.ID
	OwnerID      types.ID
	Type         DocumentType
	FileURL      string
	Status       DocumentStatus
	ReviewedByID *types.ID
	ReviewedAt   *time.Time
	CreatedAt    time.Time
}
