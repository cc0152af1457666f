package contract

import (
	"reflect"
	"strings"

	"citadeldao/model"

	"github.com/go-playground/validator/v10"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/pkg/errors"
)

// operation carries what one transaction function reads once: the caller,
// the transaction time and the state overlay.
type operation struct {
	ctx    contractapi.TransactionContextInterface
	tx     *stateTx
	name   string
	caller string
	now    int64
}

func (s *CitadelSmartContract) begin(ctx contractapi.TransactionContextInterface, name string) (*operation, error) {
	tx := newStateTx(ctx.GetStub())
	caller, err := NewIdentityManager(ctx, tx).GetCurrentIdentityFullID()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to resolve caller", name)
	}
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to get transaction timestamp", name)
	}
	logger.Debugf("Chaincode Call: %s by '%s'", name, caller)
	return &operation{ctx: ctx, tx: tx, name: name, caller: caller, now: ts.AsTime().Unix()}, nil
}

func (op *operation) commit() error {
	if err := op.tx.commit(); err != nil {
		return errors.Wrapf(err, "%s: commit", op.name)
	}
	return nil
}

func (op *operation) identities() *IdentityManager {
	return NewIdentityManager(op.ctx, op.tx)
}

func (op *operation) getJSON(out interface{}, objectType string, attrs ...string) (bool, error) {
	k, err := op.tx.key(objectType, attrs...)
	if err != nil {
		return false, err
	}
	return op.tx.getJSON(k, out)
}

func (op *operation) putJSON(v interface{}, objectType string, attrs ...string) error {
	return op.tx.PutJSON(objectType, attrs, v)
}

// --- Validation ---

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateArgs checks validate tags and reports the first failure as a
// ValidationError.
func validateArgs(args interface{}) error {
	err := validate.Struct(args)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Param() != "" {
			return validationError("%s failed '%s=%s' (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return validationError("%s failed '%s'", fe.Namespace(), fe.Tag())
	}
	return validationError("%v", err)
}

func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return validationError("%s cannot be empty", field)
	}
	if len(input) > max {
		return validationError("%s exceeds max length %d", field, max)
	}
	return nil
}

func normalizePageSize(pageSize int) int {
	if pageSize <= 0 {
		return defaultPageSize
	}
	if pageSize > maxPageSize {
		return maxPageSize
	}
	return pageSize
}

// --- Payments ---

// takePayment consumes the attached payment. It must come from the caller and
// its reference can only be spent once.
func (s *CitadelSmartContract) takePayment(op *operation) (*Payment, error) {
	p, err := s.payments.AttachedPayment(op.ctx)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Amount == 0 {
		return nil, paymentError("no payment attached to %s", op.name)
	}
	if p.Payer != op.caller {
		return nil, paymentError("payment sender '%s' does not match caller", p.Payer)
	}
	if strings.TrimSpace(p.Reference) == "" {
		return nil, paymentError("payment reference is required")
	}
	receiptKey, err := op.tx.key(receiptObjectType, p.Reference)
	if err != nil {
		return nil, err
	}
	seen, err := op.tx.get(receiptKey)
	if err != nil {
		return nil, err
	}
	if seen != nil {
		return nil, conflictError("payment reference '%s' was already consumed", p.Reference)
	}
	op.tx.put(receiptKey, []byte(op.ctx.GetStub().GetTxID()))
	return p, nil
}

// --- Registry lookups shared by all components ---

func (op *operation) loadDAO(daoID string) (*model.DAOConfig, error) {
	var dao model.DAOConfig
	found, err := op.getJSON(&dao, daoObjectType, daoID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("DAO '%s' does not exist", daoID)
	}
	return &dao, nil
}

// loadActiveDAO is loadDAO for mutating operations; a paused DAO refuses them.
func (op *operation) loadActiveDAO(daoID string) (*model.DAOConfig, error) {
	dao, err := op.loadDAO(daoID)
	if err != nil {
		return nil, err
	}
	if !dao.Active {
		return nil, stateError("DAO '%s' is paused", daoID)
	}
	return dao, nil
}

func (op *operation) loadMember(daoID, account string) (*model.Member, bool, error) {
	var m model.Member
	found, err := op.getJSON(&m, memberObjectType, daoID, account)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &m, true, nil
}

// activeMember returns the caller's membership or an AuthorizationError.
func (op *operation) activeMember(daoID, account string) (*model.Member, error) {
	m, found, err := op.loadMember(daoID, account)
	if err != nil {
		return nil, err
	}
	if !found || !m.Active {
		return nil, authorizationError("'%s' is not an active member of DAO '%s'", account, daoID)
	}
	return m, nil
}

func requireDAOAdmin(op *operation, dao *model.DAOConfig) error {
	if op.caller != dao.Creator {
		return authorizationError("only the admin of DAO '%s' may call %s", dao.ID, op.name)
	}
	return nil
}
