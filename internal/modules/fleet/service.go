// README: Fleet service covers vehicle onboarding and document review,
// including the identity-hash deny-list checks that feed the ban cascade.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"naqlo/internal/audit"
	"naqlo/internal/types"
)

var (
	ErrBadRequest = errors.New("fleet: bad request")
	ErrForbidden  = errors.New("fleet: forbidden")
	// ErrIdentityBanned reports that an identity hash is on the deny list;
	// the triggering action is rejected and the owner has been banned.
	ErrIdentityBanned = errors.New("fleet: identity is banned")
)

// DenyList is the fraud-module surface the fleet needs: ban lookups by
// identity hash and the user-ban cascade. Kept as an interface so document
// and vehicle flows are testable without the fraud store.
type DenyList interface {
	IsLicenseHashBanned(ctx context.Context, hash string) (bool, error)
	IsRegistrationHashBanned(ctx context.Context, hash string) (bool, error)
	BanUserForHash(ctx context.Context, userID types.ID, licenseHash, registrationHash, reason, note string) error
}

// Hasher mirrors fraud.IdentityHasher; raw identifiers never reach storage.
type Hasher interface {
	Hash(raw string) string
}

type Service struct {
	store    *Store
	denyList DenyList
	hasher   Hasher
	audit    *audit.Log
}

func NewService(store *Store, denyList DenyList, hasher Hasher, auditLog *audit.Log) *Service {
	return &Service{store: store, denyList: denyList, hasher: hasher, audit: auditLog}
}

type CreateVehicleCommand struct {
	OwnerID    types.ID
	TruckType  types.TruckType
	CapacityKg int
	Brand      string
	Model      string
}

func (s *Service) CreateVehicle(ctx context.Context, cmd CreateVehicleCommand) (Vehicle, error) {
	if cmd.CapacityKg <= 0 {
		return Vehicle{}, fmt.Errorf("%w: capacityKg must be positive", ErrBadRequest)
	}
	if cmd.Brand == "" || cmd.Model == "" {
		return Vehicle{}, fmt.Errorf("%w: brand and model required", ErrBadRequest)
	}
	v := Vehicle{
		ID:         types.ID(uuid.NewString()),
		OwnerID:    cmd.OwnerID,
		TruckType:  cmd.TruckType,
		CapacityKg: cmd.CapacityKg,
		Brand:      cmd.Brand,
		Model:      cmd.Model,
		Status:     VehicleDraft,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateVehicle(ctx, &v); err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

func (s *Service) AddPhotos(ctx context.Context, ownerID, vehicleID types.ID, fileURLs []string) error {
	if len(fileURLs) == 0 {
		return fmt.Errorf("%w: no files", ErrBadRequest)
	}
	v, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	if v.OwnerID != ownerID {
		return ErrForbidden
	}
	return s.store.AddVehiclePhotos(ctx, vehicleID, fileURLs)
}

func (s *Service) SubmitForVerification(ctx context.Context, ownerID, vehicleID types.ID) error {
	v, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	if v.OwnerID != ownerID {
		return ErrForbidden
	}
	if v.PhotoCount < 3 {
		return fmt.Errorf("%w: minimum 3 photos required", ErrBadRequest)
	}
	return s.store.SetVehicleStatus(ctx, vehicleID, VehiclePending)
}

type VehicleDecision string

const (
	DecisionActivate VehicleDecision = "ACTIVATE"
	DecisionReject   VehicleDecision = "REJECT"
)

// DecideVehicle applies an admin activation decision. Activation of a vehicle
// whose registration hash is on the deny list bans the owner and fails; this
// is how a previously banned identity is blocked from re-registering.
func (s *Service) DecideVehicle(ctx context.Context, adminID, vehicleID types.ID, decision VehicleDecision) error {
	v, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	if decision == DecisionReject {
		return s.store.SetVehicleStatus(ctx, vehicleID, VehicleRejected)
	}
	if decision != DecisionActivate {
		return fmt.Errorf("%w: unknown decision %q", ErrBadRequest, decision)
	}
	if v.PhotoCount < 3 {
		return fmt.Errorf("%w: cannot activate with fewer than 3 photos", ErrBadRequest)
	}
	if v.RegistrationHash != nil {
		banned, err := s.denyList.IsRegistrationHashBanned(ctx, *v.RegistrationHash)
		if err != nil {
			return err
		}
		if banned {
			if err := s.denyList.BanUserForHash(ctx, v.OwnerID, "", *v.RegistrationHash, "FRAUD",
				"attempted to activate a vehicle with banned registration hash"); err != nil {
				return err
			}
			return ErrIdentityBanned
		}
	}
	if err := s.store.SetVehicleStatus(ctx, vehicleID, VehicleActive); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: adminID, Action: "vehicle.activate", Entity: "Vehicle", EntityID: vehicleID,
	})
	return nil
}

type UploadDocumentCommand struct {
	OwnerID types.ID
	Type    DocumentType
	FileURL string
}

func (s *Service) UploadDocument(ctx context.Context, cmd UploadDocumentCommand) (Document, error) {
	if cmd.FileURL == "" {
		return Document{}, fmt.Errorf("%w: fileUrl required", ErrBadRequest)
	}
	d := Document{
		ID:        types.ID(uuid.NewString()),
		OwnerID:   cmd.OwnerID,
		Type:      cmd.Type,
		FileURL:   cmd.FileURL,
		Status:    DocPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateDocument(ctx, &d); err != nil {
		return Document{}, err
	}
	return d, nil
}

type ReviewDocumentCommand struct {
	AdminID    types.ID
	DocumentID types.ID
	Decision   DocumentStatus // DocApproved | DocRejected | DocFraud
	// Extracted identifiers from the document; hashed immediately, raw
	// values are never persisted.
	LicenseNumber      string
	RegistrationNumber string
	VehicleID          types.ID
}

// ReviewDocument applies a review decision. Approval persists identity hashes
// and consults the deny list; a hit bans the owner and refuses the approval.
// A FRAUD decision bans the owner together with whatever hashes the document
// carried.
func (s *Service) ReviewDocument(ctx context.Context, cmd ReviewDocumentCommand) error {
	doc, err := s.store.GetDocument(ctx, cmd.DocumentID)
	if err != nil {
		return err
	}

	var licenseHash, registrationHash string
	if cmd.LicenseNumber != "" {
		licenseHash = s.hasher.Hash(cmd.LicenseNumber)
	}
	if cmd.RegistrationNumber != "" {
		registrationHash = s.hasher.Hash(cmd.RegistrationNumber)
	}

	switch cmd.Decision {
	case DocApproved:
		if doc.Type == DocDriverLicense && licenseHash != "" {
			if err := s.store.UpsertDriverLicenseHash(ctx, doc.OwnerID, licenseHash); err != nil {
				return err
			}
			banned, err := s.denyList.IsLicenseHashBanned(ctx, licenseHash)
			if err != nil {
				return err
			}
			if banned {
				if err := s.denyList.BanUserForHash(ctx, doc.OwnerID, licenseHash, "", "FRAUD",
					"banned license hash resurfaced on document approval"); err != nil {
					return err
				}
				return ErrIdentityBanned
			}
		}
		if doc.Type == DocVehicleRegistration && registrationHash != "" {
			if cmd.VehicleID != "" {
				if err := s.store.SetVehicleRegistrationHash(ctx, cmd.VehicleID, registrationHash); err != nil {
					return err
				}
			}
			banned, err := s.denyList.IsRegistrationHashBanned(ctx, registrationHash)
			if err != nil {
				return err
			}
			if banned {
				if err := s.denyList.BanUserForHash(ctx, doc.OwnerID, "", registrationHash, "FRAUD",
					"banned registration hash resurfaced on document approval"); err != nil {
					return err
				}
				return ErrIdentityBanned
			}
		}
	case DocRejected:
		// review stamp only
	case DocFraud:
		if err := s.denyList.BanUserForHash(ctx, doc.OwnerID, licenseHash, registrationHash, "FRAUD",
			"document marked as fraud"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown decision %q", ErrBadRequest, cmd.Decision)
	}

	if err := s.store.SetDocumentReview(ctx, cmd.DocumentID, cmd.Decision, cmd.AdminID, time.Now().UTC()); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: cmd.AdminID, Action: "document.review", Entity: "Document", EntityID: cmd.DocumentID,
		Meta: types.Meta{"decision": string(cmd.Decision)},
	})
	return nil
}
