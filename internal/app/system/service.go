package system

import "context"

// Service is a component whose background work the Manager starts in
// registration order and stops in reverse.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
