package challenge

import (
	"encoding/json"
	"time"
)

// Puzzle is the material for a single challenge issuance. Display is shown
// to the client; Answers never leave the server and only round-trip through
// the session store.
type Puzzle struct {
	ID       string          `json:"id"`       // UUID identifying the puzzle
	Variant  string          `json:"variant"`  // registry name of the variant that made it
	Steps    int             `json:"steps"`    // number of answers needed to solve it
	Display  json.RawMessage `json:"display"`  // client-rendered payload, variant-specific
	Answers  []string        `json:"answers"`  // normalized expected answers, one per step
	IssuedAt time.Time       `json:"issuedAt"` // when the puzzle was generated
}
