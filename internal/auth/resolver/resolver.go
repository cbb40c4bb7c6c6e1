package resolver

import (
	"context"

	"github.com/yashgoel75/cleit-cdc/internal/auth"
)

// Resolver determines which internal user an external identity belongs to.
type Resolver interface {
	Resolve(ctx context.Context, identity *auth.Identity) (userID string, err error)
}
