// README: Settlement service: proof uploads and admin review rulings. The
// penalty multiplier for fraud rulings matches what drivers sign up to.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"naqlo/internal/audit"
	"naqlo/internal/types"
)

// fraudPenaltyMultiplier scales a settlement's amountDue into the penalty
// invoice issued on a fraud ruling.
const fraudPenaltyMultiplier = 10

var (
	ErrBadRequest = errors.New("settlement: bad request")
	ErrForbidden  = errors.New("settlement: forbidden")
	// ErrProofReviewed means the proof already carries a ruling.
	ErrProofReviewed = errors.New("settlement: proof already reviewed")
)

type Service struct {
	store *Store
	audit *audit.Log
}

func NewService(store *Store, auditLog *audit.Log) *Service {
	return &Service{store: store, audit: auditLog}
}

func (s *Service) Get(ctx context.Context, actorID types.ID, role types.Role, id types.ID) (Settlement, error) {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return Settlement{}, err
	}
	if role != types.RoleAdmin && st.DriverID != actorID {
		return Settlement{}, ErrForbidden
	}
	return st, nil
}

func (s *Service) ListMine(ctx context.Context, driverID types.ID) ([]Settlement, error) {
	return s.store.ListByDriver(ctx, driverID)
}

func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Settlement, error) {
	return s.store.ListByStatus(ctx, status)
}

func (s *Service) Proofs(ctx context.Context, actorID types.ID, role types.Role, settlementID types.ID) ([]Proof, error) {
	if _, err := s.Get(ctx, actorID, role, settlementID); err != nil {
		return nil, err
	}
	return s.store.ListProofs(ctx, settlementID)
}

// UploadProof records a payment receipt for the driver's own settlement.
// VERIFIED and FRAUD settlements take no further uploads.
func (s *Service) UploadProof(ctx context.Context, driverID, settlementID types.ID, fileURL string) (Proof, error) {
	if fileURL == "" {
		return Proof{}, fmt.Errorf("%w: fileUrl required", ErrBadRequest)
	}
	st, err := s.store.Get(ctx, settlementID)
	if err != nil {
		return Proof{}, err
	}
	if st.DriverID != driverID {
		return Proof{}, ErrForbidden
	}
	if st.Status == StatusVerified || st.Status == StatusFraud {
		return Proof{}, fmt.Errorf("%w: settlement is %s", ErrBadRequest, st.Status)
	}

	p := Proof{
		ID:           types.ID(uuid.NewString()),
		SettlementID: settlementID,
		FileURL:      fileURL,
		Status:       ProofPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateProof(ctx, &p); err != nil {
		return Proof{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: driverID, Action: "settlement.uploadProof", Entity: "Settlement", EntityID: settlementID,
		Meta: types.Meta{"proofId": string(p.ID)},
	})
	return p, nil
}

// ReviewProof applies an admin ruling to a pending proof. Approval verifies
// the settlement and undoes a settlement-driven suspension; a fraud ruling
// bans the driver and issues a penalty invoice at ten times the amount due.
func (s *Service) ReviewProof(ctx context.Context, adminID, proofID types.ID, decision Decision) error {
	p, err := s.store.GetProof(ctx, proofID)
	if err != nil {
		return err
	}
	if p.Status != ProofPending {
		return ErrProofReviewed
	}
	st, err := s.store.Get(ctx, p.SettlementID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	switch decision {
	case DecisionApprove:
		err = s.store.Approve(ctx, proofID, st.ID, st.DriverID, adminID, now)
	case DecisionReject:
		err = s.store.Reject(ctx, proofID, adminID, now)
	case DecisionFraud:
		err = s.store.FraudRuling(ctx, proofID, st.ID, st.DriverID, adminID, st.AmountDue*fraudPenaltyMultiplier, now)
	default:
		return fmt.Errorf("%w: unknown decision %q", ErrBadRequest, decision)
	}
	if err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: adminID, Action: "settlement.reviewProof", Entity: "Settlement", EntityID: st.ID,
		Meta: types.Meta{"proofId": string(proofID), "decision": string(decision)},
	})
	return nil
}
