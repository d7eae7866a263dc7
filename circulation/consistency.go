package circulation

import "context"

// ConsistencyLevel tells a Store which database a read may be served from.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary. Every read that feeds a decision must use it.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows a replica. Only for read-only views such as availability lookups.
	EventualConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key holding the requested ConsistencyLevel.
const ConsistencyLevelKey contextKey = "circulation.consistency_level"

// WithStrongConsistency marks reads made with ctx as primary-only.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency allows reads made with ctx to be served from a replica.
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel returns the level stored in ctx, StrongConsistency if none.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
