package contract

import (
	"errors"
	"testing"
	"time"

	"citadeldao/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The end-to-end governance flow: create, join, vote, finalize, execute.
func TestGovernanceScenario(t *testing.T) {
	h := newHarness(t)

	daoID := h.createDAO("alice", 150000)
	assert.Equal(t, uint64(150000), h.treasury(daoID).TotalBalance)

	h.join(daoID, "bob", 100000)
	assert.Equal(t, uint64(250000), h.treasury(daoID).TotalBalance)
	assert.Equal(t, uint64(250000), h.dao(daoID).TotalStake)

	proposalID, err := h.cc.CreateProposal(h.as("bob"), daoID, "Fund the website", "Pay the designer", "")
	require.NoError(t, err)
	p := h.proposal(proposalID)
	assert.Equal(t, model.ProposalPending, p.Status)
	assert.Equal(t, uint64(2), p.RequiredVotes)
	assert.Equal(t, uint64(250000), p.EligibleStake)
	assert.Equal(t, p.VotingStart+weekSecs, p.VotingEnd)

	require.NoError(t, h.cc.CastVote(h.as("alice"), proposalID, uint8(model.VoteFor)))
	assert.Equal(t, model.ProposalActive, h.proposal(proposalID).Status)
	require.NoError(t, h.cc.CastVote(h.as("bob"), proposalID, uint8(model.VoteFor)))

	_, err = h.cc.FinalizeProposal(h.as("alice"), proposalID)
	assert.ErrorIs(t, err, ErrState, "finalize before voting end")

	h.advance(week + time.Second)
	status, err := h.cc.FinalizeProposal(h.as("alice"), proposalID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalPassed, status)

	executed, err := h.cc.ExecuteProposal(h.as("bob"), proposalID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalExecuted, executed.Status)
	assert.Equal(t, fullID("bob"), executed.ExecutedBy)

	_, err = h.cc.ExecuteProposal(h.as("bob"), proposalID)
	assert.ErrorIs(t, err, ErrState)

	_, err = h.cc.AuthorizePayment(h.as("alice"), daoID, fullID("vendor"), 300000, "too much")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(250000), h.treasury(daoID).TotalBalance)
}

func TestCreateProposalRequiresActiveMember(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)

	_, err := h.cc.CreateProposal(h.as("mallory"), daoID, "Title", "Body", "")
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = h.cc.CreateProposal(h.as("alice"), daoID, "", "Body", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.cc.CreateProposal(h.as("alice"), daoID, "Title", "  ", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.cc.CreateProposal(h.as("alice"), "dao-404", "Title", "Body", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProposalValidatesExecutionPayload(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)

	bad := []string{
		`{"kind":"payment","amount":10}`,
		`{"kind":"payment","recipient":"x509::CN=bob"}`,
		`{"kind":"asset_license"}`,
		`{"kind":"burn"}`,
		`{"kind":"payment","recipient":"bob","amount":1,"extra":true}`,
		`not json`,
	}
	for _, payload := range bad {
		_, err := h.cc.CreateProposal(h.as("alice"), daoID, "Title", "Body", payload)
		assert.ErrorIs(t, err, ErrValidation, payload)
	}

	proposalID, err := h.cc.CreateProposal(h.as("alice"), daoID, "Title", "Body", `{"kind":"payment","recipient":"vendor","amount":10,"purpose":"fees"}`)
	require.NoError(t, err)
	p := h.proposal(proposalID)
	require.NotNil(t, p.Execution)
	assert.Equal(t, model.ExecutionPayment, p.Execution.Kind)
	assert.Equal(t, "vendor", p.Execution.Recipient)
}

func TestVotingDelayFromLedgerSettings(t *testing.T) {
	h := newHarness(t)
	h.cc = NewCitadelSmartContract(
		WithLedgerDefaults(testStake, time.Hour),
		WithPaymentTransport(h.payments),
		WithAssetIssuer(h.issuer),
		WithDisbursement(h.disbursement),
	)
	_, err := h.cc.InitLedger(h.as("root"), "")
	require.NoError(t, err)
	daoID := h.createDAO("alice", 150000)

	proposalID, err := h.cc.CreateProposal(h.as("alice"), daoID, "Title", "Body", "")
	require.NoError(t, err)
	p := h.proposal(proposalID)
	assert.Equal(t, h.now.Unix()+3600, p.VotingStart)

	err = h.cc.CastVote(h.as("alice"), proposalID, uint8(model.VoteFor))
	assert.ErrorIs(t, err, ErrState, "vote before voting start")

	h.advance(time.Hour)
	require.NoError(t, h.cc.CastVote(h.as("alice"), proposalID, uint8(model.VoteFor)))
}

func TestFinalizeTwiceFails(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)
	h.join(daoID, "bob", 100000)
	proposalID := h.passProposal(daoID, "alice", "", "alice", "bob")
	before := h.proposal(proposalID)

	_, err := h.cc.FinalizeProposal(h.as("bob"), proposalID)
	assert.ErrorIs(t, err, ErrState)
	assert.Equal(t, before, h.proposal(proposalID))
}

func TestFinalizeOutcomes(t *testing.T) {
	cases := []struct {
		name  string
		votes map[string]model.VoteSupport
		want  model.ProposalStatus
	}{
		// stakes: alice 150000, bob 100000, carol 100000 (eligible 350000, quorum 60% = 210000)
		{"unanimous", map[string]model.VoteSupport{"alice": model.VoteFor, "bob": model.VoteFor, "carol": model.VoteFor}, model.ProposalPassed},
		{"majority with quorum", map[string]model.VoteSupport{"alice": model.VoteFor, "bob": model.VoteAgainst}, model.ProposalPassed},
		{"majority without quorum", map[string]model.VoteSupport{"alice": model.VoteFor}, model.ProposalRejected},
		{"split against a larger single stake", map[string]model.VoteSupport{"alice": model.VoteAgainst, "bob": model.VoteFor, "carol": model.VoteFor}, model.ProposalPassed},
		{"equal for and against", map[string]model.VoteSupport{"bob": model.VoteFor, "carol": model.VoteAgainst, "alice": model.VoteAbstain}, model.ProposalRejected},
		{"abstain counts toward quorum", map[string]model.VoteSupport{"bob": model.VoteFor, "alice": model.VoteAbstain}, model.ProposalPassed},
		{"against wins", map[string]model.VoteSupport{"alice": model.VoteAgainst, "bob": model.VoteFor}, model.ProposalRejected},
		{"no votes", map[string]model.VoteSupport{}, model.ProposalRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			daoID := h.createDAO("alice", 150000)
			h.join(daoID, "bob", 100000)
			h.join(daoID, "carol", 100000)

			proposalID, err := h.cc.CreateProposal(h.as("alice"), daoID, "Title", "Body", "")
			require.NoError(t, err)
			for voter, support := range tc.votes {
				require.NoError(t, h.cc.CastVote(h.as(voter), proposalID, uint8(support)))
			}
			h.advance(week + time.Second)
			status, err := h.cc.FinalizeProposal(h.as("alice"), proposalID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestFinalizeIsDeterministic(t *testing.T) {
	run := func() model.Proposal {
		h := newHarness(t)
		daoID := h.createDAO("alice", 150000)
		h.join(daoID, "bob", 100000)
		proposalID, err := h.cc.CreateProposal(h.as("alice"), daoID, "Title", "Body", "")
		require.NoError(t, err)
		require.NoError(t, h.cc.CastVote(h.as("bob"), proposalID, uint8(model.VoteFor)))
		require.NoError(t, h.cc.CastVote(h.as("alice"), proposalID, uint8(model.VoteAgainst)))
		h.advance(week + time.Second)
		_, err = h.cc.FinalizeProposal(h.as("bob"), proposalID)
		require.NoError(t, err)
		return h.proposal(proposalID)
	}
	first, second := run(), run()
	assert.Equal(t, first, second)
	assert.Equal(t, model.ProposalRejected, first.Status)
}

func TestExecutePaymentProposal(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)
	h.join(daoID, "bob", 100000)

	proposalID := h.passProposal(daoID, "bob", `{"kind":"payment","recipient":"x509::CN=vendor","amount":40000,"purpose":"design"}`, "alice", "bob")

	_, err := h.cc.ExecuteProposal(h.as("mallory"), proposalID)
	assert.ErrorIs(t, err, ErrAuthorization)

	p, err := h.cc.ExecuteProposal(h.as("alice"), proposalID)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalExecuted, p.Status)

	treasury := h.treasury(daoID)
	assert.Equal(t, uint64(210000), treasury.TotalBalance)
	assert.Equal(t, uint64(40000), treasury.TotalDistributed)

	rec, err := h.cc.GetPaymentRecord(h.as("alice"), daoID, treasury.PaymentCount)
	require.NoError(t, err)
	assert.Equal(t, "x509::CN=vendor", rec.Recipient)
	assert.Equal(t, proposalID, rec.Reference)
	assert.Equal(t, fullID("alice"), rec.InitiatedBy)
}

func TestExecuteWithInsufficientFundsLeavesProposalPassed(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)
	h.join(daoID, "bob", 100000)
	proposalID := h.passProposal(daoID, "alice", `{"kind":"payment","recipient":"vendor","amount":300000}`, "alice", "bob")

	_, err := h.cc.ExecuteProposal(h.as("alice"), proposalID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, model.ProposalPassed, h.proposal(proposalID).Status)
	treasury := h.treasury(daoID)
	assert.Equal(t, uint64(250000), treasury.TotalBalance)
	assert.Equal(t, uint64(2), treasury.PaymentCount)
	assert.Empty(t, h.disbursement.transfers)
}

func TestExecuteRollsBackWhenTransferFails(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)
	h.join(daoID, "bob", 100000)
	proposalID := h.passProposal(daoID, "alice", `{"kind":"payment","recipient":"vendor","amount":1000}`, "alice", "bob")

	h.disbursement.fail = errors.New("settlement network unavailable")
	_, err := h.cc.ExecuteProposal(h.as("alice"), proposalID)
	assert.ErrorIs(t, err, ErrPayment)

	assert.Equal(t, model.ProposalPassed, h.proposal(proposalID).Status)
	assert.Equal(t, uint64(250000), h.treasury(daoID).TotalBalance)

	h.disbursement.fail = nil
	_, err = h.cc.ExecuteProposal(h.as("alice"), proposalID)
	require.NoError(t, err)
	assert.Equal(t, uint64(249000), h.treasury(daoID).TotalBalance)
}

func TestExecuteAssetLicenseProposal(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)
	h.join(daoID, "bob", 100000)
	proposalID := h.passProposal(daoID, "bob", `{"kind":"asset_license","assetName":"Moderator","assetDescription":"community moderator","category":"moderation","contentHash":"bafy123"}`, "alice", "bob")

	p, err := h.cc.ExecuteProposal(h.as("alice"), proposalID)
	require.NoError(t, err)
	assert.Equal(t, "asset-1", p.ExecutionResult)
	require.Len(t, h.issuer.issued, 1)
	assert.Equal(t, "bafy123", h.issuer.issued[0].ContentHash)

	asset, err := h.cc.GetAssetInfo(h.as("carol"), "asset-1")
	require.NoError(t, err)
	assert.Equal(t, daoID, asset.DAOID)
	assert.Equal(t, fullID("bob"), asset.Creator)
	assert.True(t, asset.Active)
}

func TestExecuteAssetLicenseIssuerFailure(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)
	h.join(daoID, "bob", 100000)
	proposalID := h.passProposal(daoID, "bob", `{"kind":"asset_license","assetName":"Moderator"}`, "alice", "bob")

	h.issuer.fail = errors.New("mint rejected")
	_, err := h.cc.ExecuteProposal(h.as("alice"), proposalID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mint rejected")
	assert.Equal(t, model.ProposalPassed, h.proposal(proposalID).Status)
}

func TestCancelProposal(t *testing.T) {
	h := newHarness(t)
	daoID := h.createDAO("alice", 150000)
	h.join(daoID, "bob", 100000)
	h.join(daoID, "carol", 100000)

	proposalID, err := h.cc.CreateProposal(h.as("bob"), daoID, "Title", "Body", "")
	require.NoError(t, err)

	err = h.cc.CancelProposal(h.as("carol"), proposalID)
	assert.ErrorIs(t, err, ErrAuthorization)

	require.NoError(t, h.cc.CastVote(h.as("carol"), proposalID, uint8(model.VoteFor)))
	require.NoError(t, h.cc.CancelProposal(h.as("alice"), proposalID))
	assert.Equal(t, model.ProposalCancelled, h.proposal(proposalID).Status)

	err = h.cc.CancelProposal(h.as("bob"), proposalID)
	assert.ErrorIs(t, err, ErrState)

	err = h.cc.CastVote(h.as("bob"), proposalID, uint8(model.VoteFor))
	assert.ErrorIs(t, err, ErrState)

	h.advance(week + time.Second)
	_, err = h.cc.FinalizeProposal(h.as("bob"), proposalID)
	assert.ErrorIs(t, err, ErrState)
}

func TestListProposalsByDAO(t *testing.T) {
	h := newHarness(t)
	first := h.createDAO("alice", 150000)
	second := h.createDAO("bob", 150000)

	for i := 0; i < 3; i++ {
		_, err := h.cc.CreateProposal(h.as("alice"), first, "Title", "Body", "")
		require.NoError(t, err)
	}
	_, err := h.cc.CreateProposal(h.as("bob"), second, "Title", "Body", "")
	require.NoError(t, err)

	page, err := h.cc.ListProposals(h.as("carol"), first, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 3, page.FetchedCount)
	for _, p := range page.Proposals {
		assert.Equal(t, first, p.DAOID)
	}

	page, err = h.cc.ListProposals(h.as("carol"), second, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, page.FetchedCount)
}
