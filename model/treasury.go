package model

// TreasuryAccount holds the funds of one DAO.
type TreasuryAccount struct {
	ObjectType        string `json:"objectType"` // Treasury
	DAOID             string `json:"daoId"`
	TotalBalance      uint64 `json:"totalBalance"`
	TotalDistributed  uint64 `json:"totalDistributed"`
	PaymentCount      uint64 `json:"paymentCount"`
	DistributionCount uint64 `json:"distributionCount"`
	Paused            bool   `json:"paused"`
	EmergencyAdmin    string `json:"emergencyAdmin"`
}

// PaymentDirection tells inbound funding apart from disbursements.
type PaymentDirection string

const (
	PaymentIn  PaymentDirection = "IN"
	PaymentOut PaymentDirection = "OUT"
)

// PaymentRecord is an append-only audit entry, keyed by (DAO id, sequence).
type PaymentRecord struct {
	ObjectType  string           `json:"objectType"` // Payment
	DAOID       string           `json:"daoId"`
	ID          uint64           `json:"id"`
	Direction   PaymentDirection `json:"direction"`
	Recipient   string           `json:"recipient"`
	Amount      uint64           `json:"amount"`
	Purpose     string           `json:"purpose"`
	Timestamp   int64            `json:"timestamp"`
	InitiatedBy string           `json:"initiatedBy"`
	Reference   string           `json:"reference,omitempty" metadata:",optional"` // proposal id or inbound payment reference
}

// RevenueShare is a member's slice of distributed revenue, in basis points.
type RevenueShare struct {
	ObjectType       string `json:"objectType"` // RevenueShare
	DAOID            string `json:"daoId"`
	Member           string `json:"member"`
	ShareBasisPoints uint64 `json:"shareBasisPoints"` // <= 10000
	TotalReceived    uint64 `json:"totalReceived"`
	LastDistribution int64  `json:"lastDistribution,omitempty" metadata:",optional"`
	Active           bool   `json:"active"`
}

// PayoutInstruction is an outbound transfer staged for the settlement network.
type PayoutInstruction struct {
	ObjectType string `json:"objectType"` // Payout
	DAOID      string `json:"daoId"`      // empty for platform payouts
	PaymentID  uint64 `json:"paymentId"`
	Recipient  string `json:"recipient"`
	Amount     uint64 `json:"amount"`
	Memo       string `json:"memo"`
	TxID       string `json:"txId"`
}

// PlatformAccount collects the platform fee taken from asset sales. Payouts
// staged outside any DAO treasury are numbered by PayoutCount.
type PlatformAccount struct {
	ObjectType     string `json:"objectType"` // Platform
	Balance        uint64 `json:"balance"`
	TotalCollected uint64 `json:"totalCollected"`
	TotalWithdrawn uint64 `json:"totalWithdrawn"`
	PayoutCount    uint64 `json:"payoutCount"`
}

// DistributionResult summarizes one DistributeRevenue call.
type DistributionResult struct {
	DAOID       string `json:"daoId"`
	Requested   uint64 `json:"requested"`
	Distributed uint64 `json:"distributed"`
	Remainder   uint64 `json:"remainder"` // stays in the treasury
	Recipients  int    `json:"recipients"`
}

// PaginatedPaymentResponse wraps a page of payment records.
type PaginatedPaymentResponse struct {
	Payments     []PaymentRecord `json:"payments"`
	NextBookmark string          `json:"nextBookmark"`
	FetchedCount int             `json:"fetchedCount"`
}
