// Package repo defines the repository interfaces the pipeline uses for all
// entity reads and writes. The core never embeds storage-specific query
// syntax; the in-memory implementations here are the development backend
// and any database-backed collaborator satisfies the same interfaces.
package repo

import (
	"context"
	"errors"

	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
)

// ErrNotFound is returned when an entity id does not exist
var ErrNotFound = errors.New("entity not found")

// ProjectRepo persists homeowner projects. Lifecycle status is written only
// by the pipeline.
type ProjectRepo interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Project, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
}

// BidCardRepo persists bid cards, one per project
type BidCardRepo interface {
	Create(ctx context.Context, b *model.BidCard) error
	GetByID(ctx context.Context, id string) (*model.BidCard, error)
	GetByProject(ctx context.Context, projectID string) (*model.BidCard, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// ContractorRepo reads the externally maintained contractor pool
type ContractorRepo interface {
	Create(ctx context.Context, c *model.ContractorProfile) error
	GetByID(ctx context.Context, id string) (*model.ContractorProfile, error)
	ListAll(ctx context.Context) ([]*model.ContractorProfile, error)
	ListByCategory(ctx context.Context, category string) ([]*model.ContractorProfile, error)
}

// InvitationRepo persists outbound invitations and their delivery status
type InvitationRepo interface {
	Create(ctx context.Context, inv *model.Invitation) error
	GetByID(ctx context.Context, id string) (*model.Invitation, error)
	ListByProject(ctx context.Context, projectID string) ([]*model.Invitation, error)
	UpdateDelivery(ctx context.Context, id, status string, attempts int, lastError string) error
}
