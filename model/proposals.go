package model

// ProposalStatus represents the lifecycle state of a proposal.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "PENDING"
	ProposalActive    ProposalStatus = "ACTIVE"
	ProposalPassed    ProposalStatus = "PASSED"
	ProposalRejected  ProposalStatus = "REJECTED"
	ProposalExecuted  ProposalStatus = "EXECUTED"
	ProposalCancelled ProposalStatus = "CANCELLED"
)

// Open reports whether the proposal still accepts votes (subject to its window).
func (s ProposalStatus) Open() bool {
	return s == ProposalPending || s == ProposalActive
}

// ExecutionKind selects the effect a passed proposal has when executed.
type ExecutionKind string

const (
	ExecutionNone         ExecutionKind = ""
	ExecutionPayment      ExecutionKind = "payment"
	ExecutionAssetLicense ExecutionKind = "asset_license"
)

// ExecutionPayload describes what ExecuteProposal does.
type ExecutionPayload struct {
	Kind ExecutionKind `json:"kind" validate:"omitempty,oneof=payment asset_license" metadata:",optional"`

	// payment
	Recipient string `json:"recipient,omitempty" validate:"required_if=Kind payment,max=512" metadata:",optional"`
	Amount    uint64 `json:"amount,omitempty" validate:"required_if=Kind payment" metadata:",optional"`
	Purpose   string `json:"purpose,omitempty" validate:"max=1024" metadata:",optional"`

	// asset_license
	AssetName        string `json:"assetName,omitempty" validate:"required_if=Kind asset_license,max=256" metadata:",optional"`
	AssetDescription string `json:"assetDescription,omitempty" validate:"max=4096" metadata:",optional"`
	Category         string `json:"category,omitempty" validate:"max=128" metadata:",optional"`
	ContentHash      string `json:"contentHash,omitempty" validate:"max=256" metadata:",optional"`
	Price            uint64 `json:"price,omitempty" metadata:",optional"`
	BuyoutPrice      uint64 `json:"buyoutPrice,omitempty" metadata:",optional"`
}

// Proposal is a governance motion scoped to one DAO.
type Proposal struct {
	ObjectType      string            `json:"objectType"` // Proposal
	ID              string            `json:"id"`
	DAOID           string            `json:"daoId"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Creator         string            `json:"creator"`
	CreatedAt       int64             `json:"createdAt"`
	VotingStart     int64             `json:"votingStart"`
	VotingEnd       int64             `json:"votingEnd"`
	VotesFor        uint64            `json:"votesFor"`
	VotesAgainst    uint64            `json:"votesAgainst"`
	VotesAbstain    uint64            `json:"votesAbstain"`
	VoterCount      uint64            `json:"voterCount"`
	RequiredVotes   uint64            `json:"requiredVotes"`  // ceil(minMembers * threshold / 100)
	EligibleStake   uint64            `json:"eligibleStake"`  // DAO total stake when the proposal was created
	QuorumPercent   uint64            `json:"quorumPercent"`  // turnout needed, as percent of EligibleStake
	StakeEpoch      uint64            `json:"stakeEpoch"`     // DAO stake epoch EligibleStake was read at
	Status          ProposalStatus    `json:"status"`
	Execution       *ExecutionPayload `json:"execution,omitempty" metadata:",optional"`
	FinalizedAt     int64             `json:"finalizedAt,omitempty" metadata:",optional"`
	ExecutedAt      int64             `json:"executedAt,omitempty" metadata:",optional"`
	ExecutedBy      string            `json:"executedBy,omitempty" metadata:",optional"`
	ExecutionResult string            `json:"executionResult,omitempty" metadata:",optional"` // payment or asset id produced by execution
}

// Turnout is the total weight cast on the proposal.
func (p *Proposal) Turnout() uint64 {
	return p.VotesFor + p.VotesAgainst + p.VotesAbstain
}

// VoteSupport is the direction of a vote.
type VoteSupport uint8

const (
	VoteAgainst VoteSupport = 0
	VoteFor     VoteSupport = 1
	VoteAbstain VoteSupport = 2
)

// Vote is immutable once recorded; keyed by (proposal id, voter).
type Vote struct {
	ObjectType string      `json:"objectType"` // Vote
	ProposalID string      `json:"proposalId"`
	Voter      string      `json:"voter"`
	Support    VoteSupport `json:"support"`
	Weight     uint64      `json:"weight"`
	Timestamp  int64       `json:"timestamp"`
}

// PaginatedProposalResponse wraps a page of proposals.
type PaginatedProposalResponse struct {
	Proposals    []Proposal `json:"proposals"`
	NextBookmark string     `json:"nextBookmark"`
	FetchedCount int        `json:"fetchedCount"`
}
