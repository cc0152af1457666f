package contract

import (
	"citadeldao/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// CastVote records the caller's vote weighted by the stake they held when the
// proposal was created. Members without stake at that point cannot vote. The
// vote and the tally change commit together.
func (s *CitadelSmartContract) CastVote(ctx contractapi.TransactionContextInterface, proposalID string, support uint8) error {
	op, err := s.begin(ctx, "CastVote")
	if err != nil {
		return err
	}
	p, err := op.loadProposal(proposalID)
	if err != nil {
		return err
	}
	if _, err := op.loadActiveDAO(p.DAOID); err != nil {
		return err
	}
	vote := model.VoteSupport(support)
	if vote > model.VoteAbstain {
		return validationError("support must be 0 (against), 1 (for) or 2 (abstain), got %d", support)
	}
	if !p.Status.Open() {
		return stateError("proposal '%s' is %s and no longer accepts votes", proposalID, p.Status)
	}
	if op.now < p.VotingStart || op.now > p.VotingEnd {
		return stateError("proposal '%s' accepts votes between %d and %d", proposalID, p.VotingStart, p.VotingEnd)
	}
	member, err := op.activeMember(p.DAOID, op.caller)
	if err != nil {
		return err
	}
	voteKey, err := op.tx.key(voteObjectType, proposalID, op.caller)
	if err != nil {
		return err
	}
	existing, err := op.tx.get(voteKey)
	if err != nil {
		return err
	}
	if existing != nil {
		return conflictError("'%s' already voted on proposal '%s'", op.caller, proposalID)
	}

	weight := member.StakeAt(p.StakeEpoch)
	if weight == 0 {
		return authorizationError("'%s' held no stake in DAO '%s' when proposal '%s' was created", op.caller, p.DAOID, proposalID)
	}
	switch vote {
	case model.VoteFor:
		p.VotesFor, err = checkedAdd(p.VotesFor, weight)
	case model.VoteAgainst:
		p.VotesAgainst, err = checkedAdd(p.VotesAgainst, weight)
	default:
		p.VotesAbstain, err = checkedAdd(p.VotesAbstain, weight)
	}
	if err != nil {
		return err
	}
	p.VoterCount++
	if p.Status == model.ProposalPending {
		p.Status = model.ProposalActive
	}

	record := model.Vote{
		ObjectType: voteObjectType,
		ProposalID: proposalID,
		Voter:      op.caller,
		Support:    vote,
		Weight:     weight,
		Timestamp:  op.now,
	}
	if err := op.tx.putJSON(voteKey, &record); err != nil {
		return err
	}
	if err := op.putJSON(p, proposalObjectType, proposalID); err != nil {
		return err
	}
	op.tx.emit("VoteCast", map[string]interface{}{"proposalId": proposalID, "voter": op.caller, "support": support, "weight": weight})
	if err := op.commit(); err != nil {
		return err
	}
	logger.Infof("CastVote: '%s' voted %d on proposal '%s' with weight %d", op.caller, support, proposalID, weight)
	return nil
}

// GetVote returns the vote of voter on a proposal.
func (s *CitadelSmartContract) GetVote(ctx contractapi.TransactionContextInterface, proposalID, voter string) (*model.Vote, error) {
	op, err := s.begin(ctx, "GetVote")
	if err != nil {
		return nil, err
	}
	account, err := op.identities().ResolveAccount(voter)
	if err != nil {
		return nil, err
	}
	var v model.Vote
	found, err := op.getJSON(&v, voteObjectType, proposalID, account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("'%s' has not voted on proposal '%s'", account, proposalID)
	}
	return &v, nil
}

// HasVoted reports whether voter has voted on a proposal.
func (s *CitadelSmartContract) HasVoted(ctx contractapi.TransactionContextInterface, proposalID, voter string) (bool, error) {
	op, err := s.begin(ctx, "HasVoted")
	if err != nil {
		return false, err
	}
	account, err := op.identities().ResolveAccount(voter)
	if err != nil {
		return false, err
	}
	k, err := op.tx.key(voteObjectType, proposalID, account)
	if err != nil {
		return false, err
	}
	raw, err := op.tx.get(k)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}
