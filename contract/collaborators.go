package contract

import (
	"encoding/json"
	"strings"

	"citadeldao/model"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/pkg/errors"
)

// Payment is a verified inbound transfer attached to an invocation.
type Payment struct {
	Payer     string `json:"payer"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
}

// PaymentTransport yields the payment attached to the current invocation, or
// nil when none is attached.
type PaymentTransport interface {
	AttachedPayment(ctx contractapi.TransactionContextInterface) (*Payment, error)
}

// AssetRequest describes an asset to be minted by the issuer.
type AssetRequest struct {
	Name        string
	Description string
	Category    string
	ContentHash string
}

// AssetIssuer mints assets and returns their unique ids.
type AssetIssuer interface {
	IssueAsset(ctx contractapi.TransactionContextInterface, req AssetRequest) (string, error)
}

// StateWriter stages a JSON document in the current operation.
type StateWriter interface {
	PutJSON(objectType string, attrs []string, v interface{}) error
}

// Disbursement dispatches outbound transfers. A returned error aborts the
// whole operation.
type Disbursement interface {
	Transfer(ctx contractapi.TransactionContextInterface, w StateWriter, payout model.PayoutInstruction) error
}

// PutJSON implements StateWriter.
func (tx *stateTx) PutJSON(objectType string, attrs []string, v interface{}) error {
	k, err := tx.key(objectType, attrs...)
	if err != nil {
		return err
	}
	return tx.putJSON(k, v)
}

// TransientPaymentTransport reads the payment from the transient map entry
// Key. Transient data is not recorded on the ledger.
type TransientPaymentTransport struct {
	Key string
}

func (t TransientPaymentTransport) AttachedPayment(ctx contractapi.TransactionContextInterface) (*Payment, error) {
	transient, err := ctx.GetStub().GetTransient()
	if err != nil {
		return nil, errors.Wrap(err, "read transient map")
	}
	raw, ok := transient[t.Key]
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, paymentError("malformed %s transient entry: %v", t.Key, err)
	}
	return &p, nil
}

// ChaincodeAssetIssuer mints through another chaincode's MintModerator function
// and expects the new asset id as the response payload.
type ChaincodeAssetIssuer struct {
	Chaincode string
	Channel   string
}

func (i ChaincodeAssetIssuer) IssueAsset(ctx contractapi.TransactionContextInterface, req AssetRequest) (string, error) {
	args := [][]byte{
		[]byte("MintModerator"),
		[]byte(req.Name),
		[]byte(req.Description),
		[]byte(req.Category),
		[]byte(req.ContentHash),
	}
	resp := ctx.GetStub().InvokeChaincode(i.Chaincode, args, i.Channel)
	if resp.Status >= shim.ERRORTHRESHOLD {
		return "", errors.Errorf("asset issuer %s failed with status %d: %s", i.Chaincode, resp.Status, resp.Message)
	}
	assetID := strings.TrimSpace(string(resp.Payload))
	if assetID == "" {
		return "", errors.Errorf("asset issuer %s returned an empty asset id", i.Chaincode)
	}
	return assetID, nil
}

// LedgerDisbursement stages a PayoutInstruction in world state for the
// settlement worker, keyed by (DAO id, payment id). Payouts without a DAO are
// keyed under the platform scope.
type LedgerDisbursement struct{}

func (LedgerDisbursement) Transfer(ctx contractapi.TransactionContextInterface, w StateWriter, payout model.PayoutInstruction) error {
	payout.ObjectType = payoutObjectType
	payout.TxID = ctx.GetStub().GetTxID()
	scope := payout.DAOID
	if scope == "" {
		scope = platformPayoutScope
	}
	return w.PutJSON(payoutObjectType, []string{scope, sequenceAttr(payout.PaymentID)}, &payout)
}
