// README: Weekly settlement and payment-proof definitions.
package settlement

import (
	"time"

	"naqlo/internal/types"
)

type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusProofPending Status = "PROOF_PENDING"
	StatusVerified     Status = "VERIFIED"
	StatusOverdue      Status = "OVERDUE"
	StatusFraud        Status = "FRAUD"
)

// Settlement aggregates one driver's commissions over one week. The
// (DriverID, WeekStart, WeekEnd) triple is unique, which is what makes the
// weekly batch job re-runnable.
type Settlement struct {
	ID         types.ID
	DriverID   types.ID
	WeekStart  time.Time
	WeekEnd    time.Time
	AmountDue  int64
	Status     Status
	OverdueAt  *time.Time
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

type ProofStatus string

const (
	ProofPending  ProofStatus = "PENDING"
	ProofApproved ProofStatus = "APPROVED"
	ProofRejected ProofStatus = "REJECTED"
	ProofFraud    ProofStatus = "FRAUD"
)

// Proof is a driver-uploaded payment receipt awaiting admin review.
type Proof struct {
	ID           types.ID
	SettlementID types.ID
	FileURL      string
	Status       ProofStatus
	ReviewedByID *types.ID
	ReviewedAt   *time.Time
	CreatedAt    time.Time
}

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
	DecisionFraud   Decision = "FRAUD"
)

// DriverTotal is one row of the weekly commission aggregation.
type DriverTotal struct {
	DriverID types.ID
	Amount   int64
}
