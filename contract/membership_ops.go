package contract

import (
	"encoding/json"

	"citadeldao/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// daoParams are the creation arguments of a DAO.
type daoParams struct {
	Name         string `json:"name" validate:"required,max=256"`
	Description  string `json:"description" validate:"max=4096"`
	MinMembers   uint64 `json:"minMembers" validate:"gte=2"`
	MinStake     uint64 `json:"minStake" validate:"gt=0"`
	VotingPeriod int64  `json:"votingPeriod" validate:"gte=86400"`
	Threshold    uint64 `json:"threshold" validate:"gte=51,lte=100"`
}

// CreateDAO registers a DAO, admits the caller as its first member with the
// attached payment as stake and opens the DAO treasury with it.
func (s *CitadelSmartContract) CreateDAO(ctx contractapi.TransactionContextInterface, name, description string, minMembers, minStake uint64, votingPeriod int64, threshold uint64) (string, error) {
	op, err := s.begin(ctx, "CreateDAO")
	if err != nil {
		return "", err
	}
	params := daoParams{Name: name, Description: description, MinMembers: minMembers, MinStake: minStake, VotingPeriod: votingPeriod, Threshold: threshold}
	if err := validateArgs(params); err != nil {
		return "", err
	}
	settings, err := s.settings(op)
	if err != nil {
		return "", err
	}
	if minStake < settings.MinStakeFloor {
		return "", validationError("minStake %d is below the ledger floor of %d", minStake, settings.MinStakeFloor)
	}
	payment, err := s.takePayment(op)
	if err != nil {
		return "", err
	}
	if payment.Amount < minStake {
		return "", paymentError("initial funds %d are below the minimum stake %d", payment.Amount, minStake)
	}

	seq, err := op.tx.nextSequence(daoSequence)
	if err != nil {
		return "", err
	}
	daoID := daoIDFor(seq)
	dao := model.DAOConfig{
		ObjectType:   daoObjectType,
		ID:           daoID,
		Name:         name,
		Description:  description,
		Creator:      op.caller,
		MinMembers:   minMembers,
		MinStake:     minStake,
		VotingPeriod: votingPeriod,
		Threshold:    threshold,
		CreatedAt:    op.now,
		Active:       true,
		MemberCount:  1,
		TotalStake:   payment.Amount,
	}
	creator := model.Member{
		ObjectType: memberObjectType,
		DAOID:      daoID,
		Account:    op.caller,
		Stake:      payment.Amount,
		JoinedAt:   op.now,
		Active:     true,
	}
	recordStakeChange(&dao, &creator)
	if err := op.putJSON(&dao, daoObjectType, daoID); err != nil {
		return "", err
	}
	if err := op.putJSON(&creator, memberObjectType, daoID, op.caller); err != nil {
		return "", err
	}

	emergencyAdmin := settings.EmergencyAdmin
	if emergencyAdmin == "" {
		emergencyAdmin = op.caller
	}
	treasury := model.TreasuryAccount{ObjectType: treasuryObjectType, DAOID: daoID, EmergencyAdmin: emergencyAdmin}
	if err := op.putJSON(&treasury, treasuryObjectType, daoID); err != nil {
		return "", err
	}
	if _, err := op.creditTreasury(daoID, op.caller, payment.Amount, "initial stake", payment.Reference); err != nil {
		return "", err
	}

	op.tx.emit("DAOCreated", map[string]interface{}{"daoId": daoID, "creator": op.caller, "stake": payment.Amount})
	if err := op.commit(); err != nil {
		return "", err
	}
	logger.Infof("CreateDAO: DAO '%s' (%s) created by '%s' with stake %d", daoID, name, op.caller, payment.Amount)
	return daoID, nil
}

// JoinDAO admits the caller with the attached payment as stake. A member who
// left may rejoin; the record is reactivated.
func (s *CitadelSmartContract) JoinDAO(ctx contractapi.TransactionContextInterface, daoID string) error {
	op, err := s.begin(ctx, "JoinDAO")
	if err != nil {
		return err
	}
	dao, err := op.loadActiveDAO(daoID)
	if err != nil {
		return err
	}
	member, found, err := op.loadMember(daoID, op.caller)
	if err != nil {
		return err
	}
	if found && member.Active {
		return conflictError("'%s' is already a member of DAO '%s'", op.caller, daoID)
	}
	payment, err := s.takePayment(op)
	if err != nil {
		return err
	}
	if payment.Amount < dao.MinStake {
		return paymentError("stake %d is below the minimum stake %d of DAO '%s'", payment.Amount, dao.MinStake, daoID)
	}

	if !found {
		member = &model.Member{ObjectType: memberObjectType, DAOID: daoID, Account: op.caller}
	}
	member.Stake = payment.Amount
	member.JoinedAt = op.now
	member.LeftAt = 0
	member.Active = true
	dao.MemberCount++
	if dao.TotalStake, err = checkedAdd(dao.TotalStake, payment.Amount); err != nil {
		return err
	}
	recordStakeChange(dao, member)
	if err := op.putJSON(member, memberObjectType, daoID, op.caller); err != nil {
		return err
	}
	if err := op.putJSON(dao, daoObjectType, daoID); err != nil {
		return err
	}
	if _, err := op.creditTreasury(daoID, op.caller, payment.Amount, "membership stake", payment.Reference); err != nil {
		return err
	}

	op.tx.emit("MemberJoined", map[string]interface{}{"daoId": daoID, "member": op.caller, "stake": payment.Amount})
	if err := op.commit(); err != nil {
		return err
	}
	logger.Infof("JoinDAO: '%s' joined DAO '%s' with stake %d", op.caller, daoID, payment.Amount)
	return nil
}

// IncreaseStake tops up the caller's stake with the attached payment and
// returns the new stake.
func (s *CitadelSmartContract) IncreaseStake(ctx contractapi.TransactionContextInterface, daoID string) (uint64, error) {
	op, err := s.begin(ctx, "IncreaseStake")
	if err != nil {
		return 0, err
	}
	dao, err := op.loadActiveDAO(daoID)
	if err != nil {
		return 0, err
	}
	member, err := op.activeMember(daoID, op.caller)
	if err != nil {
		return 0, err
	}
	payment, err := s.takePayment(op)
	if err != nil {
		return 0, err
	}
	if member.Stake, err = checkedAdd(member.Stake, payment.Amount); err != nil {
		return 0, err
	}
	if dao.TotalStake, err = checkedAdd(dao.TotalStake, payment.Amount); err != nil {
		return 0, err
	}
	recordStakeChange(dao, member)
	if err := op.putJSON(member, memberObjectType, daoID, op.caller); err != nil {
		return 0, err
	}
	if err := op.putJSON(dao, daoObjectType, daoID); err != nil {
		return 0, err
	}
	if _, err := op.creditTreasury(daoID, op.caller, payment.Amount, "stake increase", payment.Reference); err != nil {
		return 0, err
	}

	op.tx.emit("StakeIncreased", map[string]interface{}{"daoId": daoID, "member": op.caller, "stake": member.Stake})
	if err := op.commit(); err != nil {
		return 0, err
	}
	logger.Infof("IncreaseStake: '%s' in DAO '%s' now stakes %d", op.caller, daoID, member.Stake)
	return member.Stake, nil
}

// LeaveDAO deactivates the caller's membership. The stake leaves the DAO total
// and becomes a pending refund, paid out through RefundStake.
func (s *CitadelSmartContract) LeaveDAO(ctx contractapi.TransactionContextInterface, daoID string) error {
	op, err := s.begin(ctx, "LeaveDAO")
	if err != nil {
		return err
	}
	dao, err := op.loadActiveDAO(daoID)
	if err != nil {
		return err
	}
	member, found, err := op.loadMember(daoID, op.caller)
	if err != nil {
		return err
	}
	if !found || !member.Active {
		return notFoundError("'%s' is not a member of DAO '%s'", op.caller, daoID)
	}
	if op.caller == dao.Creator && dao.MemberCount == 1 {
		return invariantError("the creator cannot leave DAO '%s' as its only member", daoID)
	}

	stake := member.Stake
	if dao.TotalStake, err = checkedSub(dao.TotalStake, stake); err != nil {
		return err
	}
	if dao.MemberCount, err = checkedSub(dao.MemberCount, 1); err != nil {
		return err
	}
	if member.PendingRefund, err = checkedAdd(member.PendingRefund, stake); err != nil {
		return err
	}
	member.Stake = 0
	member.Active = false
	member.LeftAt = op.now
	recordStakeChange(dao, member)
	if err := op.putJSON(member, memberObjectType, daoID, op.caller); err != nil {
		return err
	}
	if err := op.putJSON(dao, daoObjectType, daoID); err != nil {
		return err
	}

	var share model.RevenueShare
	hasShare, err := op.getJSON(&share, revenueShareObjectType, daoID, op.caller)
	if err != nil {
		return err
	}
	if hasShare && share.Active {
		share.Active = false
		if err := op.putJSON(&share, revenueShareObjectType, daoID, op.caller); err != nil {
			return err
		}
	}

	op.tx.emit("MemberLeft", map[string]interface{}{"daoId": daoID, "member": op.caller, "pendingRefund": member.PendingRefund})
	if err := op.commit(); err != nil {
		return err
	}
	logger.Infof("LeaveDAO: '%s' left DAO '%s' (refund pending %d)", op.caller, daoID, member.PendingRefund)
	return nil
}

// RefundStake pays a departed member's pending refund out of the treasury.
func (s *CitadelSmartContract) RefundStake(ctx contractapi.TransactionContextInterface, daoID, account string) (*model.PaymentRecord, error) {
	op, err := s.begin(ctx, "RefundStake")
	if err != nil {
		return nil, err
	}
	dao, err := op.loadActiveDAO(daoID)
	if err != nil {
		return nil, err
	}
	if err := requireDAOAdmin(op, dao); err != nil {
		return nil, err
	}
	resolved, err := op.identities().ResolveAccount(account)
	if err != nil {
		return nil, err
	}
	member, found, err := op.loadMember(daoID, resolved)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("'%s' was never a member of DAO '%s'", resolved, daoID)
	}
	if member.PendingRefund == 0 {
		return nil, stateError("'%s' has no pending refund in DAO '%s'", resolved, daoID)
	}
	rec, err := s.disburse(op, daoID, disbursementRequest{recipient: resolved, amount: member.PendingRefund, purpose: "stake refund"})
	if err != nil {
		return nil, err
	}
	member.PendingRefund = 0
	if err := op.putJSON(member, memberObjectType, daoID, resolved); err != nil {
		return nil, err
	}
	op.tx.emit("StakeRefunded", rec)
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("RefundStake: DAO '%s' refunded %d to '%s'", daoID, rec.Amount, resolved)
	return rec, nil
}

// CheckMembership reports whether account is an active member.
func (s *CitadelSmartContract) CheckMembership(ctx contractapi.TransactionContextInterface, daoID, account string) (bool, error) {
	op, err := s.begin(ctx, "CheckMembership")
	if err != nil {
		return false, err
	}
	if _, err := op.loadDAO(daoID); err != nil {
		return false, err
	}
	resolved, err := op.identities().ResolveAccount(account)
	if err != nil {
		return false, err
	}
	member, found, err := op.loadMember(daoID, resolved)
	if err != nil {
		return false, err
	}
	return found && member.Active, nil
}

// GetDAOInfo returns a DAO with its treasury account.
func (s *CitadelSmartContract) GetDAOInfo(ctx contractapi.TransactionContextInterface, daoID string) (*model.DAOInfo, error) {
	op, err := s.begin(ctx, "GetDAOInfo")
	if err != nil {
		return nil, err
	}
	dao, err := op.loadDAO(daoID)
	if err != nil {
		return nil, err
	}
	treasury, err := op.loadTreasury(daoID)
	if err != nil {
		return nil, err
	}
	return &model.DAOInfo{DAO: *dao, Treasury: *treasury}, nil
}

// GetMemberInfo returns the membership record of account, active or not.
func (s *CitadelSmartContract) GetMemberInfo(ctx contractapi.TransactionContextInterface, daoID, account string) (*model.Member, error) {
	op, err := s.begin(ctx, "GetMemberInfo")
	if err != nil {
		return nil, err
	}
	resolved, err := op.identities().ResolveAccount(account)
	if err != nil {
		return nil, err
	}
	member, found, err := op.loadMember(daoID, resolved)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("'%s' is not a member of DAO '%s'", resolved, daoID)
	}
	return member, nil
}

// ListMembers pages through a DAO's membership records.
func (s *CitadelSmartContract) ListMembers(ctx contractapi.TransactionContextInterface, daoID string, pageSize int, bookmark string) (*model.PaginatedMemberResponse, error) {
	op, err := s.begin(ctx, "ListMembers")
	if err != nil {
		return nil, err
	}
	if _, err := op.loadDAO(daoID); err != nil {
		return nil, err
	}
	entries, err := op.tx.scan(memberObjectType, daoID)
	if err != nil {
		return nil, err
	}
	page, next := paginate(entries, normalizePageSize(pageSize), bookmark)
	members := []model.Member{}
	for _, e := range page {
		var m model.Member
		if err := json.Unmarshal(e.Value, &m); err != nil {
			logger.Warningf("ListMembers: failed to unmarshal member '%s': %v. Skipping.", e.Key, err)
			continue
		}
		members = append(members, m)
	}
	return &model.PaginatedMemberResponse{Members: members, NextBookmark: next, FetchedCount: len(members)}, nil
}

// ListDAOs pages through every registered DAO.
func (s *CitadelSmartContract) ListDAOs(ctx contractapi.TransactionContextInterface, pageSize int, bookmark string) (*model.PaginatedDAOResponse, error) {
	op, err := s.begin(ctx, "ListDAOs")
	if err != nil {
		return nil, err
	}
	entries, err := op.tx.scan(daoObjectType)
	if err != nil {
		return nil, err
	}
	page, next := paginate(entries, normalizePageSize(pageSize), bookmark)
	daos := []model.DAOConfig{}
	for _, e := range page {
		var dao model.DAOConfig
		if err := json.Unmarshal(e.Value, &dao); err != nil {
			logger.Warningf("ListDAOs: failed to unmarshal DAO '%s': %v. Skipping.", e.Key, err)
			continue
		}
		daos = append(daos, dao)
	}
	return &model.PaginatedDAOResponse{DAOs: daos, NextBookmark: next, FetchedCount: len(daos)}, nil
}

// recordStakeChange opens a new stake epoch for the DAO and checkpoints the
// member's stake in it. Proposals weigh votes by the checkpoint at their epoch.
func recordStakeChange(dao *model.DAOConfig, m *model.Member) {
	dao.StakeEpoch++
	m.RecordStake(dao.StakeEpoch, m.Stake)
}

// activeMembers returns the active members of a DAO in key order.
func (op *operation) activeMembers(daoID string) ([]model.Member, error) {
	entries, err := op.tx.scan(memberObjectType, daoID)
	if err != nil {
		return nil, err
	}
	members := []model.Member{}
	for _, e := range entries {
		var m model.Member
		if err := json.Unmarshal(e.Value, &m); err != nil {
			return nil, invariantError("member record '%s' is corrupt: %v", e.Key, err)
		}
		if m.Active {
			members = append(members, m)
		}
	}
	return members, nil
}
