package action

import "context"

type Repository interface {
	Create(ctx context.Context, a *Action) error
}
