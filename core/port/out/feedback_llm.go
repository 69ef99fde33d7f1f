package out

import "context"

// TextCompleter sends one system+user prompt pair to a text generation
// service and returns the raw reply. Transport failures are returned as
// *domain.ClassifierTransportError.
type TextCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}
