package model

// IdentityInfo maps a registered participant to its short alias.
type IdentityInfo struct {
	ObjectType      string `json:"objectType"`      // IdentityInfo
	FullID          string `json:"fullId"`          // Full X.509 identity string
	ShortName       string `json:"shortName"`       // Alias usable wherever an identity is expected
	OrganizationMSP string `json:"organizationMsp"` // MSP ID of the registering organization
	IsAdmin         bool   `json:"isAdmin"`         // Platform admin (InitLedger, alias registration)
	RegisteredBy    string `json:"registeredBy"`
	RegisteredAt    int64  `json:"registeredAt"`
	LastUpdatedAt   int64  `json:"lastUpdatedAt"`
}

// LedgerSettings holds the platform-wide parameters fixed at InitLedger time so
// that every endorsing peer evaluates transactions against the same values.
type LedgerSettings struct {
	ObjectType     string `json:"objectType"`
	MinStakeFloor  uint64 `json:"minStakeFloor"`
	VotingDelay    int64  `json:"votingDelay"` // seconds between proposal creation and voting start
	PlatformFee    uint64 `json:"platformFee"` // basis points of each asset sale kept by the platform
	EmergencyAdmin string `json:"emergencyAdmin"`
	InitializedBy  string `json:"initializedBy"`
	InitializedAt  int64  `json:"initializedAt"`
}
