package testutil

// FixedPassIDGenerator returns the same pass ID every time.
//
// Log output from scenario runs then does not depend on how many passes a
// request happened to start. Unlike resolver.FixedGenerator, which returns
// IDs in sequence and panics when exhausted, this generator never runs out.
//
// Thread-safety: FixedPassIDGenerator is stateless and safe for concurrent use.
type FixedPassIDGenerator struct {
	id string
}

// NewFixedPassIDGenerator creates a new fixed pass ID generator.
// If id is empty, Generate() returns "test-pass".
func NewFixedPassIDGenerator(id string) *FixedPassIDGenerator {
	if id == "" {
		id = "test-pass"
	}
	return &FixedPassIDGenerator{id: id}
}

// Generate returns the fixed pass ID.
//
// Implements resolver.PassIDGenerator.
func (g *FixedPassIDGenerator) Generate() string {
	return g.id
}
