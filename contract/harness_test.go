package contract

import (
	"crypto/x509"
	"fmt"
	"testing"
	"time"

	"citadeldao/model"

	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	day       = 24 * time.Hour
	week      = 7 * day
	weekSecs  = int64(7 * 86400)
	testStake = uint64(100000)
)

// fakeIdentity stands in for the MSP-authenticated caller.
type fakeIdentity struct {
	id  string
	msp string
}

func (f *fakeIdentity) GetID() (string, error) { return f.id, nil }
func (f *fakeIdentity) GetMSPID() (string, error) { return f.msp, nil }
func (f *fakeIdentity) GetAttributeValue(string) (string, bool, error) { return "", false, nil }
func (f *fakeIdentity) AssertAttributeValue(string, string) error { return nil }
func (f *fakeIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }

// scriptedPayments attaches whatever the harness queued for the next call.
type scriptedPayments struct {
	next *Payment
}

func (p *scriptedPayments) AttachedPayment(contractapi.TransactionContextInterface) (*Payment, error) {
	return p.next, nil
}

type fakeIssuer struct {
	issued []AssetRequest
	fail   error
}

func (i *fakeIssuer) IssueAsset(_ contractapi.TransactionContextInterface, req AssetRequest) (string, error) {
	if i.fail != nil {
		return "", i.fail
	}
	i.issued = append(i.issued, req)
	return fmt.Sprintf("asset-%d", len(i.issued)), nil
}

type recordingDisbursement struct {
	fail      error
	transfers []model.PayoutInstruction
}

func (d *recordingDisbursement) Transfer(ctx contractapi.TransactionContextInterface, w StateWriter, payout model.PayoutInstruction) error {
	if d.fail != nil {
		return d.fail
	}
	d.transfers = append(d.transfers, payout)
	return LedgerDisbursement{}.Transfer(ctx, w, payout)
}

type ledgerHarness struct {
	t            *testing.T
	stub         *shimtest.MockStub
	cc           *CitadelSmartContract
	payments     *scriptedPayments
	issuer       *fakeIssuer
	disbursement *recordingDisbursement
	now          time.Time
	txSeq        int
}

func newHarness(t *testing.T) *ledgerHarness {
	t.Helper()
	h := &ledgerHarness{
		t:            t,
		stub:         shimtest.NewMockStub("citadel", nil),
		payments:     &scriptedPayments{},
		issuer:       &fakeIssuer{},
		disbursement: &recordingDisbursement{},
		now:          time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.cc = NewCitadelSmartContract(
		WithLedgerDefaults(testStake, 0),
		WithPaymentTransport(h.payments),
		WithAssetIssuer(h.issuer),
		WithDisbursement(h.disbursement),
	)
	return h
}

func fullID(name string) string {
	return "x509::CN=" + name + "::CN=ca.org1.example.com"
}

// as opens a new transaction invoked by name at the harness clock.
func (h *ledgerHarness) as(name string) contractapi.TransactionContextInterface {
	h.txSeq++
	h.drainEvents()
	h.stub.MockTransactionStart(fmt.Sprintf("tx%d", h.txSeq))
	h.stub.TxTimestamp = timestamppb.New(h.now)
	h.payments.next = nil

	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(h.stub)
	ctx.SetClientIdentity(&fakeIdentity{id: fullID(name), msp: "Org1MSP"})
	return ctx
}

// paying is as with a payment of amount attached.
func (h *ledgerHarness) paying(name string, amount uint64) contractapi.TransactionContextInterface {
	ctx := h.as(name)
	h.payments.next = &Payment{Payer: fullID(name), Amount: amount, Reference: fmt.Sprintf("ref-%d", h.txSeq)}
	return ctx
}

func (h *ledgerHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// drainEvents keeps the mock stub's buffered event channel from filling up.
func (h *ledgerHarness) drainEvents() {
	for {
		select {
		case <-h.stub.ChaincodeEventsChannel:
		default:
			return
		}
	}
}

func (h *ledgerHarness) createDAO(creator string, funds uint64) string {
	h.t.Helper()
	daoID, err := h.cc.CreateDAO(h.paying(creator, funds), "Guild", "a test guild", 2, testStake, weekSecs, 60)
	require.NoError(h.t, err)
	return daoID
}

func (h *ledgerHarness) join(daoID, name string, funds uint64) {
	h.t.Helper()
	require.NoError(h.t, h.cc.JoinDAO(h.paying(name, funds), daoID))
}

func (h *ledgerHarness) dao(daoID string) model.DAOConfig {
	h.t.Helper()
	info, err := h.cc.GetDAOInfo(h.as("observer"), daoID)
	require.NoError(h.t, err)
	return info.DAO
}

func (h *ledgerHarness) treasury(daoID string) model.TreasuryAccount {
	h.t.Helper()
	t, err := h.cc.GetBalance(h.as("observer"), daoID)
	require.NoError(h.t, err)
	return *t
}

func (h *ledgerHarness) proposal(proposalID string) model.Proposal {
	h.t.Helper()
	p, err := h.cc.GetProposalInfo(h.as("observer"), proposalID)
	require.NoError(h.t, err)
	return *p
}

// passProposal opens a proposal in daoID, has every voter vote for it and
// finalizes it after the voting window.
func (h *ledgerHarness) passProposal(daoID, creator, executionJSON string, voters ...string) string {
	h.t.Helper()
	proposalID, err := h.cc.CreateProposal(h.as(creator), daoID, "Motion", "Do the thing", executionJSON)
	require.NoError(h.t, err)
	for _, v := range voters {
		require.NoError(h.t, h.cc.CastVote(h.as(v), proposalID, uint8(model.VoteFor)))
	}
	h.advance(week + time.Second)
	status, err := h.cc.FinalizeProposal(h.as(creator), proposalID)
	require.NoError(h.t, err)
	require.Equal(h.t, model.ProposalPassed, status)
	return proposalID
}

// activeStakeSum recomputes the stake total from member records.
func (h *ledgerHarness) activeStakeSum(daoID string) uint64 {
	h.t.Helper()
	page, err := h.cc.ListMembers(h.as("observer"), daoID, maxPageSize, "")
	require.NoError(h.t, err)
	var sum uint64
	for _, m := range page.Members {
		if m.Active {
			sum += m.Stake
		}
	}
	return sum
}

// corrupt overwrites a stored document with bytes that are not JSON.
func (h *ledgerHarness) corrupt(objectType string, attrs ...string) {
	h.t.Helper()
	h.as("operator")
	k, err := h.stub.CreateCompositeKey(objectType, attrs)
	require.NoError(h.t, err)
	require.NoError(h.t, h.stub.PutState(k, []byte("{truncated")))
}
