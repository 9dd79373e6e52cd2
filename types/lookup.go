package types

// Tabulation strategies for an ElectionType.
const (
	StrategyStandard  = "standard"
	StrategyExecutive = "executive"
)

// Department is a lookup entity referenced by users, candidates and elections.
type Department struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// ElectionType defines which positions apply to an election and how its
// votes are tabulated.
type ElectionType struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// Strategy is either "standard" (most votes wins) or "executive"
	// (most departments won wins).
	Strategy string `json:"strategy" db:"strategy"`

	Positions []Position `json:"positions,omitempty"`
}

// Position is a contestable office belonging to an ElectionType.
type Position struct {
	ID             int    `json:"id" db:"id"`
	ElectionTypeID int    `json:"election_type_id" db:"election_type_id"`
	Name           string `json:"name" db:"name"`
	DisplayOrder   int    `json:"display_order" db:"display_order"`
}
