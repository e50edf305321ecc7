package order

// Order is the result ordering requested by the caller.
type Order string

// Ordering constants.
const (
	// Relevance keeps the ranking produced by the search pipeline.
	Relevance Order = "relevance"
	// Recent orders by last update, newest first.
	Recent Order = "recent"
	// Name orders by display name, case-insensitive.
	Name Order = "name"
	// Random shuffles the result window.
	Random Order = "random"
)

// IsValid checks if the order is one of the supported values.
func (o Order) IsValid() bool {
	return o == Relevance || o == Recent || o == Name || o == Random
}

// Overrides reports whether o replaces the relevance ranking.
func (o Order) Overrides() bool {
	return o != Relevance
}
