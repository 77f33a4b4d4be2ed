// README: Ban and penalty invoice definitions.
package fraud

import (
	"time"

	"naqlo/internal/types"
)

type BanReason string

const (
	ReasonFraud      BanReason = "FRAUD"
	ReasonNonPayment BanReason = "NON_PAYMENT"
	ReasonOther      BanReason = "OTHER"
)

// Ban revokes marketplace access. It targets a user and/or content-addressed
// identity hashes; at least one target must be present.
type Ban struct {
	ID               types.ID
	UserID           *types.ID
	LicenseHash      *string
	RegistrationHash *string
	DeviceHash       *string
	Reason           BanReason
	Note             string
	IsActive         bool
	LiftedAt         *time.Time
	LiftedByID       *types.ID
	CreatedAt        time.Time
}

type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "UNPAID"
	InvoicePaid   InvoiceStatus = "PAID"
)

// PenaltyInvoice is issued at 10x a settlement's amountDue when its proof is
// ruled fraudulent. An unpaid invoice gates lifting the associated ban.
type PenaltyInvoice struct {
	ID             types.ID
	UserID         types.ID
	SettlementID   types.ID
	Amount         int64
	Status         InvoiceStatus
	PaidAt         *time.Time
	MarkedPaidByID *types.ID
	CreatedAt      time.Time
}
