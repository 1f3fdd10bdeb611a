package notify

import "context"

// SystemActor tags changes made by background jobs (cleanup, seeding).
const SystemActor = "system"

type actorKey struct{}

// WithActor attaches the identity of whoever is driving the request.  The
// order services copy it onto every event they emit so subscribers can
// suppress their own echoes.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return SystemActor
}
