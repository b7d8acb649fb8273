package locking

// NoOpGroup is a Group implementation that performs no locking.
// Every call executes the function immediately. Useful in tests and for
// callers that already serialize their preloads.
type NoOpGroup struct{}

// NewNoOpGroup creates a new NoOpGroup.
func NewNoOpGroup() *NoOpGroup {
	return &NoOpGroup{}
}

func (n *NoOpGroup) DoWithLock(key string, fn func() (any, error)) (v any, err error) {
	return fn()
}
