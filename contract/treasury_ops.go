package contract

import (
	"encoding/json"

	"citadeldao/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

const maxPurposeLength = 1024

// --- Treasury internals ---

func (op *operation) loadTreasury(daoID string) (*model.TreasuryAccount, error) {
	var t model.TreasuryAccount
	found, err := op.getJSON(&t, treasuryObjectType, daoID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("treasury for DAO '%s' does not exist", daoID)
	}
	return &t, nil
}

// appendPayment assigns the next payment id of t and stages the record. The
// caller stages t afterwards.
func (op *operation) appendPayment(t *model.TreasuryAccount, rec model.PaymentRecord) (*model.PaymentRecord, error) {
	id, err := checkedAdd(t.PaymentCount, 1)
	if err != nil {
		return nil, err
	}
	t.PaymentCount = id
	rec.ObjectType = paymentObjectType
	rec.DAOID = t.DAOID
	rec.ID = id
	rec.Timestamp = op.now
	if err := op.putJSON(&rec, paymentObjectType, t.DAOID, sequenceAttr(id)); err != nil {
		return nil, err
	}
	return &rec, nil
}

// creditTreasury adds amount to the DAO balance and records the inbound payment.
func (op *operation) creditTreasury(daoID, from string, amount uint64, purpose, reference string) (*model.TreasuryAccount, error) {
	t, err := op.loadTreasury(daoID)
	if err != nil {
		return nil, err
	}
	if t.Paused {
		return nil, stateError("treasury of DAO '%s' is paused", daoID)
	}
	if t.TotalBalance, err = checkedAdd(t.TotalBalance, amount); err != nil {
		return nil, err
	}
	if _, err := op.appendPayment(t, model.PaymentRecord{
		Direction:   model.PaymentIn,
		Recipient:   daoID,
		Amount:      amount,
		Purpose:     purpose,
		InitiatedBy: from,
		Reference:   reference,
	}); err != nil {
		return nil, err
	}
	if err := op.putJSON(t, treasuryObjectType, daoID); err != nil {
		return nil, err
	}
	return t, nil
}

type disbursementRequest struct {
	recipient string
	amount    uint64
	purpose   string
	reference string
	emergency bool // bypasses the pause and is not counted as distributed
}

// disburse is the authorized-disbursement path: debit, audit record, then the
// outbound transfer. A failing transfer aborts the operation.
func (s *CitadelSmartContract) disburse(op *operation, daoID string, req disbursementRequest) (*model.PaymentRecord, error) {
	if req.amount == 0 {
		return nil, validationError("payment amount must be positive")
	}
	if err := validateRequiredString(req.recipient, "recipient", maxNameLength*2); err != nil {
		return nil, err
	}
	t, err := op.loadTreasury(daoID)
	if err != nil {
		return nil, err
	}
	if t.Paused && !req.emergency {
		return nil, stateError("treasury of DAO '%s' is paused", daoID)
	}
	if req.amount > t.TotalBalance {
		return nil, insufficientFundsError("treasury of DAO '%s' holds %d, payment needs %d", daoID, t.TotalBalance, req.amount)
	}
	t.TotalBalance -= req.amount
	if !req.emergency {
		if t.TotalDistributed, err = checkedAdd(t.TotalDistributed, req.amount); err != nil {
			return nil, err
		}
	}
	rec, err := op.appendPayment(t, model.PaymentRecord{
		Direction:   model.PaymentOut,
		Recipient:   req.recipient,
		Amount:      req.amount,
		Purpose:     req.purpose,
		InitiatedBy: op.caller,
		Reference:   req.reference,
	})
	if err != nil {
		return nil, err
	}
	if err := op.putJSON(t, treasuryObjectType, daoID); err != nil {
		return nil, err
	}
	payout := model.PayoutInstruction{DAOID: daoID, PaymentID: rec.ID, Recipient: req.recipient, Amount: req.amount, Memo: req.purpose}
	if err := s.disbursement.Transfer(op.ctx, op.tx, payout); err != nil {
		return nil, paymentError("transfer of payment %d to '%s' failed: %v", rec.ID, req.recipient, err)
	}
	return rec, nil
}

func (op *operation) activeShares(daoID string) ([]model.RevenueShare, error) {
	entries, err := op.tx.scan(revenueShareObjectType, daoID)
	if err != nil {
		return nil, err
	}
	shares := []model.RevenueShare{}
	for _, e := range entries {
		var share model.RevenueShare
		if err := json.Unmarshal(e.Value, &share); err != nil {
			return nil, invariantError("revenue share record '%s' is corrupt: %v", e.Key, err)
		}
		if share.Active {
			shares = append(shares, share)
		}
	}
	return shares, nil
}

// --- Treasury transactions ---

// ReceiveFunds credits the attached payment to the DAO treasury and returns the new balance.
func (s *CitadelSmartContract) ReceiveFunds(ctx contractapi.TransactionContextInterface, daoID, purpose string) (uint64, error) {
	op, err := s.begin(ctx, "ReceiveFunds")
	if err != nil {
		return 0, err
	}
	if len(purpose) > maxPurposeLength {
		return 0, validationError("purpose exceeds max length %d", maxPurposeLength)
	}
	if _, err := op.loadActiveDAO(daoID); err != nil {
		return 0, err
	}
	payment, err := s.takePayment(op)
	if err != nil {
		return 0, err
	}
	t, err := op.creditTreasury(daoID, op.caller, payment.Amount, purpose, payment.Reference)
	if err != nil {
		return 0, err
	}
	op.tx.emit("FundsReceived", map[string]interface{}{"daoId": daoID, "from": op.caller, "amount": payment.Amount, "balance": t.TotalBalance})
	if err := op.commit(); err != nil {
		return 0, err
	}
	logger.Infof("ReceiveFunds: DAO '%s' received %d from '%s' (balance %d)", daoID, payment.Amount, op.caller, t.TotalBalance)
	return t.TotalBalance, nil
}

// AuthorizePayment disburses treasury funds. Only the DAO admin may call it
// directly; passed payment proposals reach the same path on execution.
func (s *CitadelSmartContract) AuthorizePayment(ctx contractapi.TransactionContextInterface, daoID, recipient string, amount uint64, purpose string) (*model.PaymentRecord, error) {
	op, err := s.begin(ctx, "AuthorizePayment")
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
	if len(purpose) > maxPurposeLength {
		return nil, validationError("purpose exceeds max length %d", maxPurposeLength)
	}
	resolved, err := op.identities().ResolveAccount(recipient)
	if err != nil {
		return nil, err
	}
	rec, err := s.disburse(op, daoID, disbursementRequest{recipient: resolved, amount: amount, purpose: purpose})
	if err != nil {
		return nil, err
	}
	op.tx.emit("PaymentAuthorized", rec)
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("AuthorizePayment: DAO '%s' paid %d to '%s' (payment %d)", daoID, amount, resolved, rec.ID)
	return rec, nil
}

// DistributeRevenue splits amount across active revenue shares. Each share
// gets floor(amount*bps/10000); the rounding remainder stays in the treasury.
func (s *CitadelSmartContract) DistributeRevenue(ctx contractapi.TransactionContextInterface, daoID string, amount uint64) (*model.DistributionResult, error) {
	op, err := s.begin(ctx, "DistributeRevenue")
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
	if amount == 0 {
		return nil, validationError("distribution amount must be positive")
	}
	t, err := op.loadTreasury(daoID)
	if err != nil {
		return nil, err
	}
	if t.Paused {
		return nil, stateError("treasury of DAO '%s' is paused", daoID)
	}
	if amount > t.TotalBalance {
		return nil, insufficientFundsError("treasury of DAO '%s' holds %d, distribution needs %d", daoID, t.TotalBalance, amount)
	}
	shares, err := op.activeShares(daoID)
	if err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return nil, stateError("DAO '%s' has no active revenue shares", daoID)
	}

	result := &model.DistributionResult{DAOID: daoID, Requested: amount}
	payouts := []model.PayoutInstruction{}
	for i := range shares {
		share := &shares[i]
		delta := mulDiv(amount, share.ShareBasisPoints, basisPointsDenominator)
		if delta == 0 {
			continue
		}
		if share.TotalReceived, err = checkedAdd(share.TotalReceived, delta); err != nil {
			return nil, err
		}
		share.LastDistribution = op.now
		if err := op.putJSON(share, revenueShareObjectType, daoID, share.Member); err != nil {
			return nil, err
		}
		rec, err := op.appendPayment(t, model.PaymentRecord{
			Direction:   model.PaymentOut,
			Recipient:   share.Member,
			Amount:      delta,
			Purpose:     "revenue distribution",
			InitiatedBy: op.caller,
		})
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, model.PayoutInstruction{DAOID: daoID, PaymentID: rec.ID, Recipient: share.Member, Amount: delta, Memo: rec.Purpose})
		result.Distributed += delta
		result.Recipients++
	}
	result.Remainder = amount - result.Distributed

	t.TotalBalance -= result.Distributed
	if t.TotalDistributed, err = checkedAdd(t.TotalDistributed, result.Distributed); err != nil {
		return nil, err
	}
	t.DistributionCount++
	if err := op.putJSON(t, treasuryObjectType, daoID); err != nil {
		return nil, err
	}
	for _, payout := range payouts {
		if err := s.disbursement.Transfer(op.ctx, op.tx, payout); err != nil {
			return nil, paymentError("transfer of payment %d to '%s' failed: %v", payout.PaymentID, payout.Recipient, err)
		}
	}
	op.tx.emit("RevenueDistributed", result)
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("DistributeRevenue: DAO '%s' distributed %d of %d to %d members", daoID, result.Distributed, amount, result.Recipients)
	return result, nil
}

// SetRevenueShare sets a member's share in basis points. Active shares of a
// DAO never sum above 10000.
func (s *CitadelSmartContract) SetRevenueShare(ctx contractapi.TransactionContextInterface, daoID, member string, basisPoints uint64) error {
	op, err := s.begin(ctx, "SetRevenueShare")
	if err != nil {
		return err
	}
	dao, err := op.loadActiveDAO(daoID)
	if err != nil {
		return err
	}
	if err := requireDAOAdmin(op, dao); err != nil {
		return err
	}
	if basisPoints > basisPointsDenominator {
		return validationError("share of %d basis points exceeds %d", basisPoints, basisPointsDenominator)
	}
	account, err := op.identities().ResolveAccount(member)
	if err != nil {
		return err
	}
	m, found, err := op.loadMember(daoID, account)
	if err != nil {
		return err
	}
	if !found || !m.Active {
		return notFoundError("'%s' is not an active member of DAO '%s'", account, daoID)
	}

	shares, err := op.activeShares(daoID)
	if err != nil {
		return err
	}
	total := basisPoints
	for _, other := range shares {
		if other.Member != account {
			total += other.ShareBasisPoints
		}
	}
	if total > basisPointsDenominator {
		return invariantError("revenue shares of DAO '%s' would total %d basis points", daoID, total)
	}

	share := model.RevenueShare{ObjectType: revenueShareObjectType, DAOID: daoID, Member: account}
	if _, err := op.getJSON(&share, revenueShareObjectType, daoID, account); err != nil {
		return err
	}
	share.ShareBasisPoints = basisPoints
	share.Active = true
	if err := op.putJSON(&share, revenueShareObjectType, daoID, account); err != nil {
		return err
	}
	op.tx.emit("RevenueShareSet", map[string]interface{}{"daoId": daoID, "member": account, "basisPoints": basisPoints})
	if err := op.commit(); err != nil {
		return err
	}
	logger.Infof("SetRevenueShare: DAO '%s' member '%s' -> %d bps", daoID, account, basisPoints)
	return nil
}

// SyncRevenueShares sets every active member's share to its fraction of the
// DAO's total stake.
func (s *CitadelSmartContract) SyncRevenueShares(ctx contractapi.TransactionContextInterface, daoID string) error {
	op, err := s.begin(ctx, "SyncRevenueShares")
	if err != nil {
		return err
	}
	dao, err := op.loadActiveDAO(daoID)
	if err != nil {
		return err
	}
	if err := requireDAOAdmin(op, dao); err != nil {
		return err
	}
	members, err := op.activeMembers(daoID)
	if err != nil {
		return err
	}
	for _, m := range members {
		share := model.RevenueShare{ObjectType: revenueShareObjectType, DAOID: daoID, Member: m.Account}
		if _, err := op.getJSON(&share, revenueShareObjectType, daoID, m.Account); err != nil {
			return err
		}
		share.ShareBasisPoints = mulDiv(m.Stake, basisPointsDenominator, dao.TotalStake)
		share.Active = true
		if err := op.putJSON(&share, revenueShareObjectType, daoID, m.Account); err != nil {
			return err
		}
	}
	op.tx.emit("RevenueSharesSynced", map[string]interface{}{"daoId": daoID, "members": len(members)})
	if err := op.commit(); err != nil {
		return err
	}
	logger.Infof("SyncRevenueShares: DAO '%s' shares mirrored for %d members", daoID, len(members))
	return nil
}

// --- Emergency controls ---

func (op *operation) requireEmergencyAdmin(daoID string) (*model.TreasuryAccount, error) {
	t, err := op.loadTreasury(daoID)
	if err != nil {
		return nil, err
	}
	if op.caller != t.EmergencyAdmin {
		return nil, authorizationError("only the emergency admin of DAO '%s' may call %s", daoID, op.name)
	}
	return t, nil
}

// EmergencyPause halts every mutating operation of a DAO except unpause and
// emergency withdrawal.
func (s *CitadelSmartContract) EmergencyPause(ctx contractapi.TransactionContextInterface, daoID string) error {
	return s.setPaused(ctx, "EmergencyPause", daoID, true)
}

// EmergencyUnpause lifts an emergency pause.
func (s *CitadelSmartContract) EmergencyUnpause(ctx contractapi.TransactionContextInterface, daoID string) error {
	return s.setPaused(ctx, "EmergencyUnpause", daoID, false)
}

func (s *CitadelSmartContract) setPaused(ctx contractapi.TransactionContextInterface, name, daoID string, paused bool) error {
	op, err := s.begin(ctx, name)
	if err != nil {
		return err
	}
	t, err := op.requireEmergencyAdmin(daoID)
	if err != nil {
		return err
	}
	if t.Paused == paused {
		return stateError("treasury of DAO '%s' is already in the requested pause state", daoID)
	}
	t.Paused = paused
	if err := op.putJSON(t, treasuryObjectType, daoID); err != nil {
		return err
	}
	daoKey, err := op.tx.key(daoObjectType, daoID)
	if err != nil {
		return err
	}
	if _, err := updateState(op.tx, daoKey, notFoundError("DAO '%s' does not exist", daoID), func(dao *model.DAOConfig) error {
		dao.Active = !paused
		return nil
	}); err != nil {
		return err
	}
	op.tx.emit(name, map[string]interface{}{"daoId": daoID, "by": op.caller})
	if err := op.commit(); err != nil {
		return err
	}
	logger.Warningf("%s: DAO '%s' paused=%t by '%s'", name, daoID, paused, op.caller)
	return nil
}

// EmergencyWithdraw moves funds out of the treasury regardless of the pause.
func (s *CitadelSmartContract) EmergencyWithdraw(ctx contractapi.TransactionContextInterface, daoID, recipient string, amount uint64) (*model.PaymentRecord, error) {
	op, err := s.begin(ctx, "EmergencyWithdraw")
	if err != nil {
		return nil, err
	}
	if _, err := op.requireEmergencyAdmin(daoID); err != nil {
		return nil, err
	}
	resolved, err := op.identities().ResolveAccount(recipient)
	if err != nil {
		return nil, err
	}
	rec, err := s.disburse(op, daoID, disbursementRequest{recipient: resolved, amount: amount, purpose: "emergency withdrawal", emergency: true})
	if err != nil {
		return nil, err
	}
	op.tx.emit("EmergencyWithdraw", rec)
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Warningf("EmergencyWithdraw: %d withdrawn from DAO '%s' to '%s' by '%s'", amount, daoID, resolved, op.caller)
	return rec, nil
}

// --- Treasury queries ---

// GetBalance returns the treasury account of a DAO.
func (s *CitadelSmartContract) GetBalance(ctx contractapi.TransactionContextInterface, daoID string) (*model.TreasuryAccount, error) {
	op, err := s.begin(ctx, "GetBalance")
	if err != nil {
		return nil, err
	}
	return op.loadTreasury(daoID)
}

// GetPaymentRecord returns one audit entry.
func (s *CitadelSmartContract) GetPaymentRecord(ctx contractapi.TransactionContextInterface, daoID string, paymentID uint64) (*model.PaymentRecord, error) {
	op, err := s.begin(ctx, "GetPaymentRecord")
	if err != nil {
		return nil, err
	}
	var rec model.PaymentRecord
	found, err := op.getJSON(&rec, paymentObjectType, daoID, sequenceAttr(paymentID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("payment %d of DAO '%s' does not exist", paymentID, daoID)
	}
	return &rec, nil
}

// ListPaymentRecords pages through a DAO's audit log in payment order.
func (s *CitadelSmartContract) ListPaymentRecords(ctx contractapi.TransactionContextInterface, daoID string, pageSize int, bookmark string) (*model.PaginatedPaymentResponse, error) {
	op, err := s.begin(ctx, "ListPaymentRecords")
	if err != nil {
		return nil, err
	}
	if _, err := op.loadDAO(daoID); err != nil {
		return nil, err
	}
	entries, err := op.tx.scan(paymentObjectType, daoID)
	if err != nil {
		return nil, err
	}
	page, next := paginate(entries, normalizePageSize(pageSize), bookmark)
	payments := []model.PaymentRecord{}
	for _, e := range page {
		var rec model.PaymentRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			logger.Warningf("ListPaymentRecords: failed to unmarshal payment '%s': %v. Skipping.", e.Key, err)
			continue
		}
		payments = append(payments, rec)
	}
	return &model.PaginatedPaymentResponse{Payments: payments, NextBookmark: next, FetchedCount: len(payments)}, nil
}

// GetRevenueShare returns a member's revenue share.
func (s *CitadelSmartContract) GetRevenueShare(ctx contractapi.TransactionContextInterface, daoID, member string) (*model.RevenueShare, error) {
	op, err := s.begin(ctx, "GetRevenueShare")
	if err != nil {
		return nil, err
	}
	account, err := op.identities().ResolveAccount(member)
	if err != nil {
		return nil, err
	}
	var share model.RevenueShare
	found, err := op.getJSON(&share, revenueShareObjectType, daoID, account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("no revenue share for '%s' in DAO '%s'", account, daoID)
	}
	return &share, nil
}
