package contract

import (
	"fmt"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTx(t *testing.T) (*shimtest.MockStub, *stateTx) {
	t.Helper()
	stub := shimtest.NewMockStub("ledger", nil)
	stub.MockTransactionStart("tx-ledger")
	return stub, newStateTx(stub)
}

func TestStateTxReadsItsOwnWrites(t *testing.T) {
	stub, tx := newTestTx(t)
	require.NoError(t, stub.PutState("a", []byte("committed")))

	tx.put("a", []byte("staged"))
	got, err := tx.get("a")
	require.NoError(t, err)
	assert.Equal(t, "staged", string(got))

	raw, err := stub.GetState("a")
	require.NoError(t, err)
	assert.Equal(t, "committed", string(raw))

	tx.del("a")
	got, err = tx.get("a")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, tx.commit())
	raw, err = stub.GetState("a")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestStateTxScanMergesStagedWrites(t *testing.T) {
	stub, tx := newTestTx(t)
	for _, m := range []string{"m1", "m2", "m3"} {
		k, err := tx.key(memberObjectType, "dao-1", m)
		require.NoError(t, err)
		require.NoError(t, stub.PutState(k, []byte(m)))
	}
	other, err := tx.key(memberObjectType, "dao-2", "m1")
	require.NoError(t, err)
	require.NoError(t, stub.PutState(other, []byte("elsewhere")))

	k2, err := tx.key(memberObjectType, "dao-1", "m2")
	require.NoError(t, err)
	tx.del(k2)
	k4, err := tx.key(memberObjectType, "dao-1", "m4")
	require.NoError(t, err)
	tx.put(k4, []byte("m4"))
	k1, err := tx.key(memberObjectType, "dao-1", "m1")
	require.NoError(t, err)
	tx.put(k1, []byte("m1'"))

	entries, err := tx.scan(memberObjectType, "dao-1")
	require.NoError(t, err)
	var values []string
	for _, e := range entries {
		values = append(values, string(e.Value))
	}
	assert.Equal(t, []string{"m1'", "m3", "m4"}, values)
}

func TestStateTxKeyRejectsEmptyAttributes(t *testing.T) {
	_, tx := newTestTx(t)
	_, err := tx.key(daoObjectType, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = tx.key(memberObjectType, "dao-1", " ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateState(t *testing.T) {
	_, tx := newTestTx(t)
	type counter struct {
		N int `json:"n"`
	}
	missing := notFoundError("no counter")

	_, err := updateState(tx, "c", missing, func(c *counter) error { c.N++; return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tx.putJSON("c", &counter{N: 1}))
	got, err := updateState(tx, "c", missing, func(c *counter) error { c.N++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, got.N)

	_, err = updateState(tx, "c", missing, func(c *counter) error {
		c.N = 100
		return stateError("refused")
	})
	assert.ErrorIs(t, err, ErrState)

	var stored counter
	found, err := tx.getJSON("c", &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, stored.N, "a failed mutation is not staged")
}

func TestNextSequence(t *testing.T) {
	stub, tx := newTestTx(t)
	for want := uint64(1); want <= 3; want++ {
		got, err := tx.nextSequence(daoSequence)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.NoError(t, tx.commit())

	next, err := newStateTx(stub).nextSequence(daoSequence)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next)

	assert.Less(t, sequenceAttr(9), sequenceAttr(10))
}

func TestCommitEmitsLastEvent(t *testing.T) {
	stub, tx := newTestTx(t)
	tx.emit("First", map[string]int{"n": 1})
	tx.emit("Second", map[string]int{"n": 2})
	tx.put("k", []byte("v"))
	require.NoError(t, tx.commit())

	select {
	case ev := <-stub.ChaincodeEventsChannel:
		assert.Equal(t, "Second", ev.EventName)
		assert.JSONEq(t, `{"n":2}`, string(ev.Payload))
	default:
		t.Fatal("no event emitted")
	}
}

func TestPaginate(t *testing.T) {
	var entries []stateEntry
	for i := 1; i <= 5; i++ {
		entries = append(entries, stateEntry{Key: fmt.Sprintf("k%d", i)})
	}

	page, next := paginate(entries, 2, "")
	require.Len(t, page, 2)
	assert.Equal(t, "k2", next)

	page, next = paginate(entries, 2, next)
	require.Len(t, page, 2)
	assert.Equal(t, "k3", page[0].Key)
	assert.Equal(t, "k4", next)

	page, next = paginate(entries, 2, next)
	require.Len(t, page, 1)
	assert.Equal(t, "k5", page[0].Key)
	assert.Empty(t, next)

	page, next = paginate(entries, 10, "k9")
	assert.Empty(t, page)
	assert.Empty(t, next)
}
