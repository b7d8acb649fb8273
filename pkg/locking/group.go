package locking

// locking.Group is an abstraction for running functions with mutual exclusion
// over sets of keys. The preloader uses it to make sure two concurrent
// preloads of the same page extract its text content only once.
type Group interface {
	// DoWithLock runs the given function with mutual exclusion over the given key.
	DoWithLock(key string, fn func() (any, error)) (v any, err error)
}
