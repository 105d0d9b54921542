package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/accredia/stepgate/pkg/api"
)

// MemoryStore is a simple, goroutine-safe implementation of
// SnapshotStore, ParticipantStore and ApprovalStore backed by maps.
// It is non-durable and intended for tests and local development.
type MemoryStore struct {
	mu           sync.RWMutex
	snapshots    map[string]api.WorkflowSnapshot
	participants map[string]*api.Participant
	order        []string // participant IDs in admission order
	approvals    map[string][]api.Approval
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:    make(map[string]api.WorkflowSnapshot),
		participants: make(map[string]*api.Participant),
		approvals:    make(map[string][]api.Approval),
	}
}

// Ensure MemoryStore implements the interfaces.
var _ SnapshotStore = (*MemoryStore)(nil)

var _ ParticipantStore = (*MemoryStore)(nil)

var _ ApprovalStore = (*MemoryStore)(nil)

func (s *MemoryStore) SaveSnapshot(ctx context.Context, snap api.WorkflowSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[snap.ID]; ok {
		return ErrSnapshotExists
	}

	s.snapshots[snap.ID] = snap
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, id string) (api.WorkflowSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return api.WorkflowSnapshot{}, ErrSnapshotNotFound
	}

	return snap, nil
}

func (s *MemoryStore) CreateParticipant(ctx context.Context, p *api.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.participants[p.ID] = &cp
	s.order = append(s.order, p.ID)
	return nil
}

func (s *MemoryStore) GetParticipant(ctx context.Context, id string) (*api.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok || p.DeletedAt != nil {
		return nil, ErrParticipantNotFound
	}

	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdateParticipant(ctx context.Context, p *api.Participant, expectedVersion *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.participants[p.ID]
	if !ok || stored.DeletedAt != nil {
		return ErrParticipantNotFound
	}

	if expectedVersion != nil && !stored.UpdatedAt.Equal(*expectedVersion) {
		return ErrVersionConflict
	}

	cp := *p
	s.participants[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SoftDeleteParticipant(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok || p.DeletedAt != nil {
		return ErrParticipantNotFound
	}

	deleted := at
	p.DeletedAt = &deleted
	return nil
}

func (s *MemoryStore) ListSLACandidates(ctx context.Context) ([]SLACandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []SLACandidate

	for _, id := range s.order {
		p, ok := s.participants[id]
		if !ok || p.DeletedAt != nil || p.Status.IsTerminal() {
			continue
		}

		snap, ok := s.snapshots[p.SnapshotID]
		if !ok {
			continue
		}
		step, ok := snap.StepByID(p.CurrentStepID)
		if !ok || !step.HasSLA() {
			continue
		}

		entered := p.CreatedAt
		if rows := s.approvals[p.ID]; len(rows) > 0 {
			entered = rows[len(rows)-1].CreatedAt
		}

		result = append(result, SLACandidate{
			ParticipantID:      p.ID,
			TenantID:           p.TenantID,
			StepID:             step.ID,
			SLADurationMinutes: step.SLADurationMinutes,
			SLAWarningMinutes:  step.SLAWarningMinutes,
			SLAAction:          step.SLAAction,
			EnteredStepAt:      entered,
		})
	}

	return result, nil
}

func (s *MemoryStore) AppendApproval(ctx context.Context, row *api.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.approvals[row.ParticipantID] = append(s.approvals[row.ParticipantID], *row)
	return nil
}

func (s *MemoryStore) LatestApproval(ctx context.Context, participantID string) (*api.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.approvals[participantID]
	if len(rows) == 0 {
		return nil, ErrNoApprovals
	}

	cp := rows[len(rows)-1]
	return &cp, nil
}

func (s *MemoryStore) ListApprovals(ctx context.Context, participantID string) ([]api.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.approvals[participantID]
	out := make([]api.Approval, len(rows))
	copy(out, rows)
	return out, nil
}
