package model

// DAOConfig is the registry record of a DAO. MemberCount and TotalStake are
// owned by the membership registry and only move by delta.
type DAOConfig struct {
	ObjectType   string `json:"objectType"` // DAO
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Creator      string `json:"creator"`      // Full ID, also the DAO admin
	MinMembers   uint64 `json:"minMembers"`   // >= 2
	MinStake     uint64 `json:"minStake"`     // minimum stake to join
	VotingPeriod int64  `json:"votingPeriod"` // seconds, >= 86400
	Threshold    uint64 `json:"threshold"`    // percentage in [51, 100]
	CreatedAt    int64  `json:"createdAt"`
	Active       bool   `json:"active"` // false while the treasury is paused
	MemberCount  uint64 `json:"memberCount"`
	TotalStake   uint64 `json:"totalStake"`
	StakeEpoch   uint64 `json:"stakeEpoch"` // bumped by every stake change
}

// Member is keyed by (DAO id, account).
type Member struct {
	ObjectType    string `json:"objectType"` // Member
	DAOID         string `json:"daoId"`
	Account       string `json:"account"`
	Stake         uint64 `json:"stake"`
	JoinedAt      int64  `json:"joinedAt"`
	Active        bool   `json:"active"`
	LeftAt        int64  `json:"leftAt,omitempty" metadata:",optional"`
	PendingRefund uint64 `json:"pendingRefund"` // stake owed back after leaving

	// StakeHistory holds the stake after each change, oldest first.
	StakeHistory []StakeCheckpoint `json:"stakeHistory"`
}

// StakeCheckpoint is a member's stake as of a DAO stake epoch.
type StakeCheckpoint struct {
	Epoch uint64 `json:"epoch"`
	Stake uint64 `json:"stake"`
}

// RecordStake appends a checkpoint for the stake held from epoch onwards.
func (m *Member) RecordStake(epoch, stake uint64) {
	m.StakeHistory = append(m.StakeHistory, StakeCheckpoint{Epoch: epoch, Stake: stake})
}

// StakeAt returns the stake the member held at epoch, 0 if none.
func (m *Member) StakeAt(epoch uint64) uint64 {
	var stake uint64
	for _, c := range m.StakeHistory {
		if c.Epoch > epoch {
			break
		}
		stake = c.Stake
	}
	return stake
}

// DAOInfo is the read view returned by GetDAOInfo.
type DAOInfo struct {
	DAO      DAOConfig       `json:"dao"`
	Treasury TreasuryAccount `json:"treasury"`
}

// PaginatedMemberResponse wraps a page of members.
type PaginatedMemberResponse struct {
	Members      []Member `json:"members"`
	NextBookmark string   `json:"nextBookmark"`
	FetchedCount int      `json:"fetchedCount"`
}

// PaginatedDAOResponse wraps a page of DAOs.
type PaginatedDAOResponse struct {
	DAOs         []DAOConfig `json:"daos"`
	NextBookmark string      `json:"nextBookmark"`
	FetchedCount int         `json:"fetchedCount"`
}
