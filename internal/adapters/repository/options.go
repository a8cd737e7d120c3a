package repository

// Default index configuration constants.
const (
	defaultPrioritySeed = 42
)

// Option applies a configuration option to the Index.
type Option func(*Index)

// WithPrioritySeed sets the seed for treap node priorities. The ranking does
// not depend on it; only the tree shape does.
func WithPrioritySeed(seed int64) Option {
	return func(ix *Index) {
		ix.seed = seed
	}
}
