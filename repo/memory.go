package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
)

// MemoryProjectRepo is an in-memory ProjectRepo guarded by a RWMutex
type MemoryProjectRepo struct {
	mu       sync.RWMutex
	projects map[string]*model.Project
}

func NewMemoryProjectRepo() *MemoryProjectRepo {
	return &MemoryProjectRepo{projects: make(map[string]*model.Project)}
}

func (r *MemoryProjectRepo) Create(_ context.Context, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[p.ID]; exists {
		return fmt.Errorf("project %s already exists", p.ID)
	}
	cp := *p
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.projects[p.ID] = &cp
	return nil
}

func (r *MemoryProjectRepo) GetByID(_ context.Context, id string) (*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryProjectRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Project
	for _, p := range r.projects {
		if p.OwnerID == ownerID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryProjectRepo) UpdateStatus(_ context.Context, id, status, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.ErrorMsg = errMsg
	p.UpdatedAt = time.Now()
	return nil
}

// MemoryBidCardRepo is an in-memory BidCardRepo
type MemoryBidCardRepo struct {
	mu    sync.RWMutex
	cards map[string]*model.BidCard
}

func NewMemoryBidCardRepo() *MemoryBidCardRepo {
	return &MemoryBidCardRepo{cards: make(map[string]*model.BidCard)}
}

func (r *MemoryBidCardRepo) Create(_ context.Context, b *model.BidCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// One bid card per project; a draft may be regenerated but a final
	// card is immutable
	for _, existing := range r.cards {
		if existing.ProjectID == b.ProjectID {
			if existing.Status == model.BidCardFinal {
				return fmt.Errorf("project %s already has a final bid card", b.ProjectID)
			}
			delete(r.cards, existing.ID)
			break
		}
	}

	cp := *b
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.cards[b.ID] = &cp
	return nil
}

func (r *MemoryBidCardRepo) GetByID(_ context.Context, id string) (*model.BidCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryBidCardRepo) GetByProject(_ context.Context, projectID string) (*model.BidCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.cards {
		if b.ProjectID == projectID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryBidCardRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.cards[id]
	if !ok {
		return ErrNotFound
	}
	if b.Status == model.BidCardFinal {
		return fmt.Errorf("bid card %s is final and immutable", id)
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	return nil
}

// MemoryContractorRepo is an in-memory ContractorRepo
type MemoryContractorRepo struct {
	mu          sync.RWMutex
	contractors map[string]*model.ContractorProfile
}

func NewMemoryContractorRepo() *MemoryContractorRepo {
	return &MemoryContractorRepo{contractors: make(map[string]*model.ContractorProfile)}
}

func (r *MemoryContractorRepo) Create(_ context.Context, c *model.ContractorProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contractors[c.ID]; exists {
		return fmt.Errorf("contractor %s already exists", c.ID)
	}
	cp := *c
	cp.UpdatedAt = time.Now()
	r.contractors[c.ID] = &cp
	return nil
}

func (r *MemoryContractorRepo) GetByID(_ context.Context, id string) (*model.ContractorProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contractors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryContractorRepo) ListAll(_ context.Context) ([]*model.ContractorProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.ContractorProfile, 0, len(r.contractors))
	for _, c := range r.contractors {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryContractorRepo) ListByCategory(_ context.Context, category string) ([]*model.ContractorProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.ContractorProfile
	for _, c := range r.contractors {
		if c.HasCategory(category) {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MemoryInvitationRepo is an in-memory InvitationRepo
type MemoryInvitationRepo struct {
	mu          sync.RWMutex
	invitations map[string]*model.Invitation
}

func NewMemoryInvitationRepo() *MemoryInvitationRepo {
	return &MemoryInvitationRepo{invitations: make(map[string]*model.Invitation)}
}

func (r *MemoryInvitationRepo) Create(_ context.Context, inv *model.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invitations[inv.ID]; exists {
		return fmt.Errorf("invitation %s already exists", inv.ID)
	}
	cp := *inv
	cp.CreatedAt = time.Now()
	r.invitations[inv.ID] = &cp
	return nil
}

func (r *MemoryInvitationRepo) GetByID(_ context.Context, id string) (*model.Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *MemoryInvitationRepo) ListByProject(_ context.Context, projectID string) ([]*model.Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Invitation
	for _, inv := range r.invitations {
		if inv.ProjectID == projectID {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryInvitationRepo) UpdateDelivery(_ context.Context, id, status string, attempts int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invitations[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	inv.Attempts = attempts
	inv.LastError = lastError
	if status == model.InvitationSent || status == model.InvitationAcknowledged {
		inv.SentAt = time.Now()
	}
	return nil
}
