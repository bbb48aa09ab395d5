package filter

import (
	"context"

	"github.com/osa030/decobox/internal/domain/track"
)

// OwnerOnlyFilter rejects owner commands sent by anyone else.
type OwnerOnlyFilter struct {
	ownerID string
}

// NewOwnerOnlyFilter creates a new owner only filter.
func NewOwnerOnlyFilter(ownerID string) *OwnerOnlyFilter {
	return &OwnerOnlyFilter{ownerID: ownerID}
}

func (f *OwnerOnlyFilter) Name() string {
	return "owner_only_filter"
}

func (f *OwnerOnlyFilter) Description() string {
	return "Restricts owner commands to the configured owner"
}

func (f *OwnerOnlyFilter) ReturnCodes() []string {
	return []string{"owner_only"}
}

func (f *OwnerOnlyFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *OwnerOnlyFilter) AppliesTo(requesterType track.RequesterType) bool {
	// The admin API is authenticated separately
	return requesterType == track.RequesterTypeUser
}

func (f *OwnerOnlyFilter) Check(ctx context.Context, req Request) Result {
	if !req.OwnerOnly {
		return Accept()
	}
	// An unset owner matches nobody.
	if f.ownerID == "" || req.Message.AuthorID != f.ownerID {
		return Reject("owner_only")
	}
	return Accept()
}

func init() {
	Register("owner_only_filter", func() Filter {
		return &OwnerOnlyFilter{}
	})
}
