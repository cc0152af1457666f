package contract

import (
	"encoding/json"
	"strings"

	"citadeldao/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/pkg/errors"
)

func (op *operation) loadProposal(proposalID string) (*model.Proposal, error) {
	var p model.Proposal
	found, err := op.getJSON(&p, proposalObjectType, proposalID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("proposal '%s' does not exist", proposalID)
	}
	return &p, nil
}

func parseExecutionPayload(executionJSON string) (*model.ExecutionPayload, error) {
	if strings.TrimSpace(executionJSON) == "" {
		return nil, nil
	}
	var payload model.ExecutionPayload
	dec := json.NewDecoder(strings.NewReader(executionJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, validationError("invalid executionJSON: %v", err)
	}
	if payload.Kind == model.ExecutionNone {
		return nil, nil
	}
	if err := validateArgs(payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// CreateProposal opens a proposal in a DAO. executionJSON is optional and
// describes what execution does once the proposal passes.
func (s *CitadelSmartContract) CreateProposal(ctx contractapi.TransactionContextInterface, daoID, title, description, executionJSON string) (string, error) {
	op, err := s.begin(ctx, "CreateProposal")
	if err != nil {
		return "", err
	}
	dao, err := op.loadActiveDAO(daoID)
	if err != nil {
		return "", err
	}
	if _, err := op.activeMember(daoID, op.caller); err != nil {
		return "", err
	}
	if err := validateRequiredString(title, "title", maxNameLength); err != nil {
		return "", err
	}
	if err := validateRequiredString(description, "description", maxDescriptionLength); err != nil {
		return "", err
	}
	execution, err := parseExecutionPayload(executionJSON)
	if err != nil {
		return "", err
	}
	if execution != nil && execution.Kind == model.ExecutionPayment {
		if execution.Recipient, err = op.identities().ResolveAccount(execution.Recipient); err != nil {
			return "", err
		}
	}
	settings, err := s.settings(op)
	if err != nil {
		return "", err
	}

	seq, err := op.tx.nextSequence(proposalSequence)
	if err != nil {
		return "", err
	}
	proposalID := proposalIDFor(seq)
	votingStart := op.now + settings.VotingDelay
	proposal := model.Proposal{
		ObjectType:    proposalObjectType,
		ID:            proposalID,
		DAOID:         daoID,
		Title:         title,
		Description:   description,
		Creator:       op.caller,
		CreatedAt:     op.now,
		VotingStart:   votingStart,
		VotingEnd:     votingStart + dao.VotingPeriod,
		RequiredVotes: ceilPercent(dao.MinMembers, dao.Threshold),
		EligibleStake: dao.TotalStake,
		QuorumPercent: dao.Threshold,
		StakeEpoch:    dao.StakeEpoch,
		Status:        model.ProposalPending,
		Execution:     execution,
	}
	if err := op.putJSON(&proposal, proposalObjectType, proposalID); err != nil {
		return "", err
	}
	k, err := op.tx.key(daoProposalObjectType, daoID, proposalID)
	if err != nil {
		return "", err
	}
	op.tx.put(k, []byte(proposalID))

	op.tx.emit("ProposalCreated", map[string]interface{}{"daoId": daoID, "proposalId": proposalID, "creator": op.caller, "votingEnd": proposal.VotingEnd})
	if err := op.commit(); err != nil {
		return "", err
	}
	logger.Infof("CreateProposal: '%s' opened proposal '%s' in DAO '%s' (voting %d..%d)", op.caller, proposalID, daoID, proposal.VotingStart, proposal.VotingEnd)
	return proposalID, nil
}

// FinalizeProposal closes voting once the window has ended. The proposal
// passes iff votes for exceed votes against and turnout reaches the quorum
// share of the stake eligible at creation.
func (s *CitadelSmartContract) FinalizeProposal(ctx contractapi.TransactionContextInterface, proposalID string) (model.ProposalStatus, error) {
	op, err := s.begin(ctx, "FinalizeProposal")
	if err != nil {
		return "", err
	}
	p, err := op.loadProposal(proposalID)
	if err != nil {
		return "", err
	}
	if _, err := op.loadActiveDAO(p.DAOID); err != nil {
		return "", err
	}
	if !p.Status.Open() {
		return "", stateError("proposal '%s' is already %s", proposalID, p.Status)
	}
	if op.now <= p.VotingEnd {
		return "", stateError("voting on proposal '%s' is still open until %d", proposalID, p.VotingEnd)
	}

	if p.VotesFor > p.VotesAgainst && meetsQuorum(p.Turnout(), p.EligibleStake, p.QuorumPercent) {
		p.Status = model.ProposalPassed
	} else {
		p.Status = model.ProposalRejected
	}
	p.FinalizedAt = op.now
	if err := op.putJSON(p, proposalObjectType, proposalID); err != nil {
		return "", err
	}
	op.tx.emit("ProposalFinalized", map[string]interface{}{"proposalId": proposalID, "status": p.Status, "for": p.VotesFor, "against": p.VotesAgainst, "abstain": p.VotesAbstain})
	if err := op.commit(); err != nil {
		return "", err
	}
	logger.Infof("FinalizeProposal: proposal '%s' %s (for %d, against %d, abstain %d of %d eligible)", proposalID, p.Status, p.VotesFor, p.VotesAgainst, p.VotesAbstain, p.EligibleStake)
	return p.Status, nil
}

// ExecuteProposal applies a passed proposal. If the execution effect fails
// the proposal stays passed.
func (s *CitadelSmartContract) ExecuteProposal(ctx contractapi.TransactionContextInterface, proposalID string) (*model.Proposal, error) {
	op, err := s.begin(ctx, "ExecuteProposal")
	if err != nil {
		return nil, err
	}
	p, err := op.loadProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if _, err := op.loadActiveDAO(p.DAOID); err != nil {
		return nil, err
	}
	if p.Status != model.ProposalPassed {
		return nil, stateError("proposal '%s' is %s, only passed proposals can be executed", proposalID, p.Status)
	}
	if _, err := op.activeMember(p.DAOID, op.caller); err != nil {
		return nil, err
	}

	if p.Execution != nil {
		switch p.Execution.Kind {
		case model.ExecutionPayment:
			rec, err := s.disburse(op, p.DAOID, disbursementRequest{
				recipient: p.Execution.Recipient,
				amount:    p.Execution.Amount,
				purpose:   p.Execution.Purpose,
				reference: proposalID,
			})
			if err != nil {
				return nil, err
			}
			p.ExecutionResult = sequenceAttr(rec.ID)
		case model.ExecutionAssetLicense:
			assetID, err := s.issuer.IssueAsset(op.ctx, AssetRequest{
				Name:        p.Execution.AssetName,
				Description: p.Execution.AssetDescription,
				Category:    p.Execution.Category,
				ContentHash: p.Execution.ContentHash,
			})
			if err != nil {
				return nil, errors.Wrapf(err, "asset issuance for proposal '%s'", proposalID)
			}
			listing, err := s.listAsset(op, assetListingArgs{
				AssetID:     assetID,
				Name:        p.Execution.AssetName,
				Description: p.Execution.AssetDescription,
				Category:    p.Execution.Category,
				ContentHash: p.Execution.ContentHash,
				DAOID:       p.DAOID,
				Price:       p.Execution.Price,
				BuyoutPrice: p.Execution.BuyoutPrice,
			}, p.Creator)
			if err != nil {
				return nil, err
			}
			p.ExecutionResult = listing.AssetID
		default:
			return nil, validationError("unknown execution kind '%s'", p.Execution.Kind)
		}
	}

	p.Status = model.ProposalExecuted
	p.ExecutedAt = op.now
	p.ExecutedBy = op.caller
	if err := op.putJSON(p, proposalObjectType, proposalID); err != nil {
		return nil, err
	}
	op.tx.emit("ProposalExecuted", map[string]interface{}{"proposalId": proposalID, "executedBy": op.caller, "result": p.ExecutionResult})
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("ExecuteProposal: proposal '%s' executed by '%s' (result '%s')", proposalID, op.caller, p.ExecutionResult)
	return p, nil
}

// CancelProposal withdraws a pending or active proposal. Its creator or the
// DAO admin may cancel.
func (s *CitadelSmartContract) CancelProposal(ctx contractapi.TransactionContextInterface, proposalID string) error {
	op, err := s.begin(ctx, "CancelProposal")
	if err != nil {
		return err
	}
	p, err := op.loadProposal(proposalID)
	if err != nil {
		return err
	}
	dao, err := op.loadActiveDAO(p.DAOID)
	if err != nil {
		return err
	}
	if op.caller != p.Creator && op.caller != dao.Creator {
		return authorizationError("only the proposal creator or the DAO admin may cancel proposal '%s'", proposalID)
	}
	if !p.Status.Open() {
		return stateError("proposal '%s' is already %s", proposalID, p.Status)
	}
	p.Status = model.ProposalCancelled
	p.FinalizedAt = op.now
	if err := op.putJSON(p, proposalObjectType, proposalID); err != nil {
		return err
	}
	op.tx.emit("ProposalCancelled", map[string]interface{}{"proposalId": proposalID, "by": op.caller})
	if err := op.commit(); err != nil {
		return err
	}
	logger.Infof("CancelProposal: proposal '%s' cancelled by '%s'", proposalID, op.caller)
	return nil
}

// GetProposalInfo returns a proposal with its current tallies.
func (s *CitadelSmartContract) GetProposalInfo(ctx contractapi.TransactionContextInterface, proposalID string) (*model.Proposal, error) {
	op, err := s.begin(ctx, "GetProposalInfo")
	if err != nil {
		return nil, err
	}
	return op.loadProposal(proposalID)
}

// ListProposals pages through the proposals of a DAO.
func (s *CitadelSmartContract) ListProposals(ctx contractapi.TransactionContextInterface, daoID string, pageSize int, bookmark string) (*model.PaginatedProposalResponse, error) {
	op, err := s.begin(ctx, "ListProposals")
	if err != nil {
		return nil, err
	}
	if _, err := op.loadDAO(daoID); err != nil {
		return nil, err
	}
	entries, err := op.tx.scan(daoProposalObjectType, daoID)
	if err != nil {
		return nil, err
	}
	page, next := paginate(entries, normalizePageSize(pageSize), bookmark)
	proposals := []model.Proposal{}
	for _, e := range page {
		p, err := op.loadProposal(string(e.Value))
		if err != nil {
			logger.Warningf("ListProposals: index entry '%s' points to a missing proposal: %v. Skipping.", e.Key, err)
			continue
		}
		proposals = append(proposals, *p)
	}
	return &model.PaginatedProposalResponse{Proposals: proposals, NextBookmark: next, FetchedCount: len(proposals)}, nil
}
