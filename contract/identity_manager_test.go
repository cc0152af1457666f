package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLedger(t *testing.T) {
	h := newHarness(t)

	settings, err := h.cc.GetLedgerSettings(h.as("observer"))
	require.NoError(t, err)
	assert.Equal(t, testStake, settings.MinStakeFloor)
	assert.Empty(t, settings.InitializedBy)

	settings, err = h.cc.InitLedger(h.as("root"), fullID("guardian"))
	require.NoError(t, err)
	assert.Equal(t, fullID("root"), settings.InitializedBy)
	assert.Equal(t, fullID("guardian"), settings.EmergencyAdmin)

	stored, err := h.cc.GetLedgerSettings(h.as("observer"))
	require.NoError(t, err)
	assert.Equal(t, settings, stored)

	info, err := h.cc.GetIdentityDetails(h.as("observer"), fullID("root"))
	require.NoError(t, err)
	assert.True(t, info.IsAdmin)
	assert.Equal(t, "Org1MSP", info.OrganizationMSP)

	_, err = h.cc.InitLedger(h.as("mallory"), "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInitLedgerRejectsUnknownEmergencyAlias(t *testing.T) {
	h := newHarness(t)
	_, err := h.cc.InitLedger(h.as("root"), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	// The failed call left no admin behind.
	_, err = h.cc.InitLedger(h.as("root"), "")
	require.NoError(t, err)
}

func TestLedgerSettingsOutliveContractDefaults(t *testing.T) {
	h := newHarness(t)
	_, err := h.cc.InitLedger(h.as("root"), "")
	require.NoError(t, err)

	// A peer started with different defaults still evaluates against the ledger.
	h.cc = NewCitadelSmartContract(
		WithLedgerDefaults(5*testStake, time.Hour),
		WithPaymentTransport(h.payments),
		WithAssetIssuer(h.issuer),
		WithDisbursement(h.disbursement),
	)
	settings, err := h.cc.GetLedgerSettings(h.as("observer"))
	require.NoError(t, err)
	assert.Equal(t, testStake, settings.MinStakeFloor)
	assert.Zero(t, settings.VotingDelay)
	h.createDAO("alice", 150000)
}

func TestRegisterAlias(t *testing.T) {
	h := newHarness(t)
	_, err := h.cc.InitLedger(h.as("root"), "")
	require.NoError(t, err)

	err = h.cc.RegisterAlias(h.as("mallory"), fullID("bob"), "bobby")
	assert.ErrorIs(t, err, ErrAuthorization)

	err = h.cc.RegisterAlias(h.as("root"), "bob", "bobby")
	assert.ErrorIs(t, err, ErrValidation)

	err = h.cc.RegisterAlias(h.as("root"), fullID("bob"), "  ")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, h.cc.RegisterAlias(h.as("root"), fullID("bob"), "bobby"))
	info, err := h.cc.GetIdentityDetails(h.as("observer"), "bobby")
	require.NoError(t, err)
	assert.Equal(t, fullID("bob"), info.FullID)
	assert.Equal(t, fullID("root"), info.RegisteredBy)

	err = h.cc.RegisterAlias(h.as("root"), fullID("carol"), "bobby")
	assert.ErrorIs(t, err, ErrConflict)

	// Renaming frees the old alias.
	require.NoError(t, h.cc.RegisterAlias(h.as("root"), fullID("bob"), "robert"))
	_, err = h.cc.GetIdentityDetails(h.as("observer"), "bobby")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, h.cc.RegisterAlias(h.as("root"), fullID("carol"), "bobby"))
}

func TestAliasesResolveInMemberQueries(t *testing.T) {
	h := newHarness(t)
	_, err := h.cc.InitLedger(h.as("root"), "")
	require.NoError(t, err)
	require.NoError(t, h.cc.RegisterAlias(h.as("root"), fullID("bob"), "bobby"))
	daoID := h.createDAO("alice", 150000)
	h.join(daoID, "bob", 100000)

	member, err := h.cc.CheckMembership(h.as("observer"), daoID, "bobby")
	require.NoError(t, err)
	assert.True(t, member)

	info, err := h.cc.GetMemberInfo(h.as("observer"), daoID, "bobby")
	require.NoError(t, err)
	assert.Equal(t, fullID("bob"), info.Account)

	member, err = h.cc.CheckMembership(h.as("observer"), daoID, "stranger")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestIsValidX509ID(t *testing.T) {
	assert.True(t, isValidX509ID(fullID("alice")))
	assert.True(t, isValidX509ID("eDUwOTo6Q049YWxpY2U="))
	assert.False(t, isValidX509ID("alice"))
}
