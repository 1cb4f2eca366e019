package apiclient

import "context"

// UnauthorizedHandler resolves an Unauthorized response locally. It runs
// before the error is returned to the caller.
type UnauthorizedHandler interface {
	HandleUnauthorized(ctx context.Context, err *Error)
}

// UnauthorizedFunc adapts a function to UnauthorizedHandler.
type UnauthorizedFunc func(ctx context.Context, err *Error)

// HandleUnauthorized calls f.
func (f UnauthorizedFunc) HandleUnauthorized(ctx context.Context, err *Error) {
	f(ctx, err)
}

// Notice is a transient operator notification raised by a failed call.
type Notice struct {
	Kind      Kind
	Status    int
	Message   string
	RequestID string
}

// Notifier surfaces notices. Requests marked Silent never reach it.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notice Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) {
	f(ctx, notice)
}

type screenKey struct{}

// WithScreen records the screen the operator is on when the call is made.
func WithScreen(ctx context.Context, screen string) context.Context {
	return context.WithValue(ctx, screenKey{}, screen)
}

// ScreenFrom returns the screen recorded by WithScreen.
func ScreenFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	screen, _ := ctx.Value(screenKey{}).(string)
	return screen
}
