// README: Fraud service: ban creation and lifting, penalty invoices, and the
// identity-hash deny list consumed by fleet and settlement flows.
package fraud

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
	ErrBadRequest = errors.New("fraud: bad request")
	// ErrUnpaidPenalties gates ban lifting while penalty invoices are open.
	ErrUnpaidPenalties = errors.New("fraud: unpaid penalty invoices exist")
)

type Service struct {
	store *Store
	audit *audit.Log
}

func NewService(store *Store, auditLog *audit.Log) *Service {
	return &Service{store: store, audit: auditLog}
}

type CreateBanCommand struct {
	UserID           types.ID
	LicenseHash      string
	RegistrationHash string
	DeviceHash       string
	Reason           BanReason
	Note             string
}

// CreateBan records a ban. A user-scoped ban cascades BANNED onto the account
// and driver profile immediately, so the next matching read excludes them.
func (s *Service) CreateBan(ctx context.Context, actorID types.ID, cmd CreateBanCommand) (Ban, error) {
	if cmd.UserID == "" && cmd.LicenseHash == "" && cmd.RegistrationHash == "" && cmd.DeviceHash == "" {
		return Ban{}, fmt.Errorf("%w: at least one ban target must be provided", ErrBadRequest)
	}
	reason := cmd.Reason
	if reason == "" {
		reason = ReasonOther
	}

	b := Ban{
		ID:        types.ID(uuid.NewString()),
		Reason:    reason,
		Note:      cmd.Note,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if cmd.UserID != "" {
		id := cmd.UserID
		b.UserID = &id
	}
	if cmd.LicenseHash != "" {
		h := cmd.LicenseHash
		b.LicenseHash = &h
	}
	if cmd.RegistrationHash != "" {
		h := cmd.RegistrationHash
		b.RegistrationHash = &h
	}
	if cmd.DeviceHash != "" {
		h := cmd.DeviceHash
		b.DeviceHash = &h
	}

	if err := s.store.CreateBan(ctx, &b); err != nil {
		return Ban{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actorID, Action: "ban.create", Entity: "Ban", EntityID: b.ID,
		Meta: types.Meta{"userId": string(cmd.UserID), "reason": string(reason)},
	})
	return b, nil
}

// LiftBan deactivates a ban. It refuses while the targeted user holds any
// UNPAID penalty invoice; lifting an already-inactive ban is a no-op.
func (s *Service) LiftBan(ctx context.Context, actorID, banID types.ID) error {
	ban, err := s.store.GetBan(ctx, banID)
	if err != nil {
		return err
	}
	if !ban.IsActive {
		return nil
	}
	if ban.UserID != nil {
		unpaid, err := s.store.CountUnpaidInvoices(ctx, *ban.UserID)
		if err != nil {
			return err
		}
		if unpaid > 0 {
			return ErrUnpaidPenalties
		}
	}
	if err := s.store.Lift(ctx, banID, actorID, time.Now().UTC()); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actorID, Action: "ban.lift", Entity: "Ban", EntityID: banID,
	})
	return nil
}

func (s *Service) IsLicenseHashBanned(ctx context.Context, hash string) (bool, error) {
	n, err := s.store.CountActiveBansForHash(ctx, "license_hash", hash)
	return n > 0, err
}

func (s *Service) IsRegistrationHashBanned(ctx context.Context, hash string) (bool, error) {
	n, err := s.store.CountActiveBansForHash(ctx, "registration_hash", hash)
	return n > 0, err
}

// BanUserForHash is the cascade entry point used by document review, vehicle
// activation and settlement fraud rulings: one transaction banning the user
// together with the offending identity hashes.
func (s *Service) BanUserForHash(ctx context.Context, userID types.ID, licenseHash, registrationHash, reason, note string) error {
	_, err := s.CreateBan(ctx, "", CreateBanCommand{
		UserID:           userID,
		LicenseHash:      licenseHash,
		RegistrationHash: registrationHash,
		Reason:           BanReason(reason),
		Note:             note,
	})
	return err
}

// MarkPenaltyPaid settles an invoice; already-paid invoices are a no-op.
func (s *Service) MarkPenaltyPaid(ctx context.Context, actorID, invoiceID types.ID) error {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status == InvoicePaid {
		return nil
	}
	if err := s.store.MarkInvoicePaid(ctx, invoiceID, actorID, time.Now().UTC()); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actorID, Action: "penalty.markPaid", Entity: "PenaltyInvoice", EntityID: invoiceID,
		Meta: types.Meta{"userId": string(inv.UserID), "amount": inv.Amount},
	})
	return nil
}
