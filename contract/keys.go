package contract

import (
	"fmt"
	"strconv"
	"strings"
)

// Object types for composite keys, also stored as objectType in each document.
const (
	settingsObjectType     = "Settings"
	counterObjectType      = "Counter"
	daoObjectType          = "DAO"
	memberObjectType       = "Member"
	proposalObjectType     = "Proposal"
	daoProposalObjectType  = "DAOProposal" // index: (daoID, proposalID) -> proposalID
	voteObjectType         = "Vote"
	treasuryObjectType     = "Treasury"
	paymentObjectType      = "Payment"
	revenueShareObjectType = "RevenueShare"
	payoutObjectType       = "Payout"
	receiptObjectType      = "PaymentReceipt"
	assetObjectType        = "Asset"
	licenseObjectType      = "License"
	userLicenseObjectType  = "UserLicense" // index: (assetID, licensee) -> licenseID
	platformObjectType     = "Platform"
)

// platformPayoutScope keys payouts that leave no DAO treasury. DAO ids are
// always dao-N, so it cannot collide with one.
const platformPayoutScope = "platform"

const (
	daoSequence      = "dao"
	proposalSequence = "proposal"
	licenseSequence  = "license"
)

// key builds a composite key. Fabric separates attributes with U+0000 and
// rejects attributes containing it, so distinct tuples never share a key.
func (tx *stateTx) key(objectType string, attrs ...string) (string, error) {
	for i, a := range attrs {
		if strings.TrimSpace(a) == "" {
			return "", validationError("%s key attribute %d cannot be empty", objectType, i)
		}
	}
	k, err := tx.stub.CreateCompositeKey(objectType, attrs)
	if err != nil {
		return "", validationError("invalid %s key: %v", objectType, err)
	}
	return k, nil
}

// sequenceAttr renders a sequence number so that key order matches numeric order.
func sequenceAttr(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

// nextSequence increments the named counter inside the current transaction.
func (tx *stateTx) nextSequence(name string) (uint64, error) {
	k, err := tx.key(counterObjectType, name)
	if err != nil {
		return 0, err
	}
	raw, err := tx.get(k)
	if err != nil {
		return 0, err
	}
	var current uint64
	if raw != nil {
		current, err = strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return 0, invariantError("corrupt %s counter %q", name, string(raw))
		}
	}
	next, err := checkedAdd(current, 1)
	if err != nil {
		return 0, err
	}
	tx.put(k, []byte(strconv.FormatUint(next, 10)))
	return next, nil
}

func daoIDFor(seq uint64) string      { return fmt.Sprintf("dao-%d", seq) }
func proposalIDFor(seq uint64) string { return fmt.Sprintf("prop-%d", seq) }
func licenseIDFor(seq uint64) string  { return fmt.Sprintf("lic-%d", seq) }
