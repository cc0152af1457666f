package contract

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/pkg/errors"
)

// stateTx is a write overlay over the chaincode stub. Reads observe the
// operation's own writes; nothing reaches the stub until commit, so an
// operation that fails part way leaves world state untouched.
type stateTx struct {
	stub   shim.ChaincodeStubInterface
	writes map[string][]byte // nil value marks a delete
	event  *pendingEvent
}

type pendingEvent struct {
	name    string
	payload []byte
}

type stateEntry struct {
	Key   string
	Value []byte
}

func newStateTx(stub shim.ChaincodeStubInterface) *stateTx {
	return &stateTx{stub: stub, writes: make(map[string][]byte)}
}

func (tx *stateTx) get(key string) ([]byte, error) {
	if v, ok := tx.writes[key]; ok {
		return v, nil
	}
	v, err := tx.stub.GetState(key)
	if err != nil {
		return nil, errors.Wrapf(err, "read state %q", key)
	}
	return v, nil
}

func (tx *stateTx) put(key string, value []byte) {
	tx.writes[key] = value
}

func (tx *stateTx) del(key string) {
	tx.writes[key] = nil
}

// getJSON decodes the value under key into out and reports whether it existed.
func (tx *stateTx) getJSON(key string, out interface{}) (bool, error) {
	raw, err := tx.get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrapf(err, "decode state %q", key)
	}
	return true, nil
}

func (tx *stateTx) putJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode state %q", key)
	}
	tx.put(key, raw)
	return nil
}

// updateState loads the record under key, applies mutate and stages the
// result. missing is returned when the key is absent. If mutate fails the
// record is not staged.
func updateState[T any](tx *stateTx, key string, missing error, mutate func(*T) error) (*T, error) {
	var rec T
	found, err := tx.getJSON(key, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, missing
	}
	if err := mutate(&rec); err != nil {
		return nil, err
	}
	if err := tx.putJSON(key, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// scan returns every entry under the partial composite key, merged with the
// staged writes and ordered by key.
func (tx *stateTx) scan(objectType string, attrs ...string) ([]stateEntry, error) {
	prefix, err := tx.stub.CreateCompositeKey(objectType, attrs)
	if err != nil {
		return nil, validationError("invalid key attributes for %s: %v", objectType, err)
	}
	iter, err := tx.stub.GetStateByPartialCompositeKey(objectType, attrs)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", objectType)
	}
	defer iter.Close()

	merged := make(map[string][]byte)
	for iter.HasNext() {
		kv, iterErr := iter.Next()
		if iterErr != nil {
			logger.Warningf("scan %s: failed to read next entry: %v. Skipping.", objectType, iterErr)
			continue
		}
		merged[kv.Key] = kv.Value
	}
	for k, v := range tx.writes {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}

	entries := make([]stateEntry, 0, len(merged))
	for k, v := range merged {
		entries = append(entries, stateEntry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// emit stages a chaincode event. Fabric keeps one event per transaction, so
// the last one staged wins.
func (tx *stateTx) emit(name string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emit %s: failed to marshal payload: %v", name, err)
		return
	}
	tx.event = &pendingEvent{name: name, payload: raw}
}

// commit flushes staged writes in key order, then the staged event.
func (tx *stateTx) commit() error {
	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := tx.writes[k]
		if v == nil {
			if err := tx.stub.DelState(k); err != nil {
				return errors.Wrapf(err, "delete state %q", k)
			}
			continue
		}
		if err := tx.stub.PutState(k, v); err != nil {
			return errors.Wrapf(err, "write state %q", k)
		}
	}
	if tx.event != nil {
		if err := tx.stub.SetEvent(tx.event.name, tx.event.payload); err != nil {
			return errors.Wrapf(err, "set event %s", tx.event.name)
		}
	}
	tx.writes = make(map[string][]byte)
	tx.event = nil
	return nil
}

// paginate slices key-ordered entries after bookmark (an entry key).
func paginate(entries []stateEntry, pageSize int, bookmark string) ([]stateEntry, string) {
	start := 0
	if bookmark != "" {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].Key > bookmark })
	}
	end := start + pageSize
	if pageSize <= 0 || end > len(entries) {
		end = len(entries)
	}
	next := ""
	if end < len(entries) {
		next = entries[end-1].Key
	}
	return entries[start:end], next
}
