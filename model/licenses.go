package model

// LicenseType is the commercial model a license was bought under.
type LicenseType string

const (
	LicenseSubscription LicenseType = "subscription"
	LicensePurchase     LicenseType = "purchase"
	LicensePayPerUse    LicenseType = "pay_per_use"
)

// AssetListing is the license catalog entry of an issued asset. Creator is
// who listed it; Owner receives sale proceeds unless the asset belongs to a
// DAO, whose treasury does.
type AssetListing struct {
	ObjectType       string `json:"objectType"` // Asset
	AssetID          string `json:"assetId"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Creator          string `json:"creator"`
	Owner            string `json:"owner"`
	DAOID            string `json:"daoId,omitempty" metadata:",optional"` // treasury credited on purchases
	ContentHash      string `json:"contentHash,omitempty" metadata:",optional"`
	CreatedAt        int64  `json:"createdAt"`
	UpdatedAt        int64  `json:"updatedAt"`
	Active           bool   `json:"active"`
	Retired          bool   `json:"retired"`     // permanent, unlike Active
	Price            uint64 `json:"price"`       // minimum payment per license; 0 accepts any amount
	BuyoutPrice      uint64 `json:"buyoutPrice"` // 0 = not for sale
	UsageCount       uint64 `json:"usageCount"`
	RevenueGenerated uint64 `json:"revenueGenerated"` // gross, before the platform fee
	OwnerRevenue     uint64 `json:"ownerRevenue"`
	PlatformRevenue  uint64 `json:"platformRevenue"`
	LicenseCount     uint64 `json:"licenseCount"`
}

// License grants a licensee use of one asset.
type License struct {
	ObjectType string      `json:"objectType"` // License
	ID         string      `json:"id"`
	AssetID    string      `json:"assetId"`
	Licensee   string      `json:"licensee"`
	Type       LicenseType `json:"licenseType"`
	StartDate  int64       `json:"startDate"`
	EndDate    int64       `json:"endDate"`    // 0 = perpetual
	UsageLimit uint64      `json:"usageLimit"` // 0 = unlimited
	UsageCount uint64      `json:"usageCount"`
	AmountPaid uint64      `json:"amountPaid"`
	Active     bool        `json:"active"`
}

// Expired reports whether the license end date has passed at now.
func (l *License) Expired(now int64) bool {
	return l.EndDate != 0 && now > l.EndDate
}

// Exhausted reports whether the usage limit has been consumed.
func (l *License) Exhausted() bool {
	return l.UsageLimit != 0 && l.UsageCount >= l.UsageLimit
}

// Usable reports whether UseLicense would succeed at now.
func (l *License) Usable(now int64) bool {
	return l.Active && !l.Expired(now) && !l.Exhausted()
}
