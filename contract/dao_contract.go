package contract

import (
	"time"

	"citadeldao/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("citadel.contract")

const (
	defaultMinStakeFloor = 100000
	defaultPlatformFee   = 1000 // basis points
	secondsPerDay        = 86400
	maxNameLength        = 256
	maxDescriptionLength = 4096
	maxPageSize          = 200
	defaultPageSize      = 50
)

// CitadelSmartContract implements DAO membership, governance, treasury and
// asset licensing on one ledger.
type CitadelSmartContract struct {
	contractapi.Contract

	minStakeFloor uint64
	votingDelay   time.Duration
	platformFee   uint64
	payments      PaymentTransport
	issuer        AssetIssuer
	disbursement  Disbursement
}

// Option configures a CitadelSmartContract.
type Option func(*CitadelSmartContract)

// WithLedgerDefaults sets the values InitLedger persists as ledger settings.
func WithLedgerDefaults(minStakeFloor uint64, votingDelay time.Duration) Option {
	return func(s *CitadelSmartContract) {
		s.minStakeFloor = minStakeFloor
		s.votingDelay = votingDelay
	}
}

// WithPlatformFee sets the basis points of each asset sale InitLedger fixes
// as the platform fee.
func WithPlatformFee(basisPoints uint64) Option {
	return func(s *CitadelSmartContract) { s.platformFee = basisPoints }
}

// WithPaymentTransport replaces the transient-map payment transport.
func WithPaymentTransport(p PaymentTransport) Option {
	return func(s *CitadelSmartContract) { s.payments = p }
}

// WithAssetIssuer replaces the chaincode asset issuer.
func WithAssetIssuer(i AssetIssuer) Option {
	return func(s *CitadelSmartContract) { s.issuer = i }
}

// WithDisbursement replaces the ledger payout disbursement.
func WithDisbursement(d Disbursement) Option {
	return func(s *CitadelSmartContract) { s.disbursement = d }
}

// NewCitadelSmartContract builds the contract with the Fabric-backed
// collaborators unless overridden.
func NewCitadelSmartContract(opts ...Option) *CitadelSmartContract {
	s := &CitadelSmartContract{
		minStakeFloor: defaultMinStakeFloor,
		platformFee:   defaultPlatformFee,
		payments:      TransientPaymentTransport{Key: "payment"},
		issuer:        ChaincodeAssetIssuer{Chaincode: "moderator_nft"},
		disbursement:  LedgerDisbursement{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Instantiate is called when the chaincode is instantiated or upgraded.
func (s *CitadelSmartContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("CitadelSmartContract Instantiated/Upgraded")
}

// InitLedger makes the caller the platform admin and fixes the ledger
// settings. emergencyAdmin may be empty, in which case each DAO's creator is
// its treasury's emergency admin.
func (s *CitadelSmartContract) InitLedger(ctx contractapi.TransactionContextInterface, emergencyAdmin string) (*model.LedgerSettings, error) {
	op, err := s.begin(ctx, "InitLedger")
	if err != nil {
		return nil, err
	}
	if s.platformFee > basisPointsDenominator {
		return nil, validationError("platform fee %d exceeds %d basis points", s.platformFee, basisPointsDenominator)
	}
	im := op.identities()
	if err := im.bootstrapAdmin(op.caller, op.now); err != nil {
		return nil, err
	}
	if emergencyAdmin != "" {
		if emergencyAdmin, err = im.ResolveIdentity(emergencyAdmin); err != nil {
			return nil, err
		}
	}
	settings := model.LedgerSettings{
		ObjectType:     settingsObjectType,
		MinStakeFloor:  s.minStakeFloor,
		VotingDelay:    int64(s.votingDelay / time.Second),
		PlatformFee:    s.platformFee,
		EmergencyAdmin: emergencyAdmin,
		InitializedBy:  op.caller,
		InitializedAt:  op.now,
	}
	if err := op.tx.PutJSON(settingsObjectType, []string{"ledger"}, &settings); err != nil {
		return nil, err
	}
	op.tx.emit("LedgerInitialized", map[string]interface{}{"admin": op.caller, "emergencyAdmin": emergencyAdmin})
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("Ledger initialized by '%s' (min stake floor %d, voting delay %ds)", op.caller, settings.MinStakeFloor, settings.VotingDelay)
	return &settings, nil
}

// GetLedgerSettings returns the persisted settings, or the contract defaults
// when InitLedger has not run.
func (s *CitadelSmartContract) GetLedgerSettings(ctx contractapi.TransactionContextInterface) (*model.LedgerSettings, error) {
	op, err := s.begin(ctx, "GetLedgerSettings")
	if err != nil {
		return nil, err
	}
	return s.settings(op)
}

// RegisterAlias lets a platform admin give an identity a short alias.
func (s *CitadelSmartContract) RegisterAlias(ctx contractapi.TransactionContextInterface, targetFullID, alias string) error {
	op, err := s.begin(ctx, "RegisterAlias")
	if err != nil {
		return err
	}
	if err := op.identities().RegisterAlias(op.caller, targetFullID, alias, op.now); err != nil {
		return err
	}
	op.tx.emit("AliasRegistered", map[string]interface{}{"alias": alias, "fullId": targetFullID})
	return op.commit()
}

// GetIdentityDetails returns the registration record of an identity or alias.
func (s *CitadelSmartContract) GetIdentityDetails(ctx contractapi.TransactionContextInterface, identityOrAlias string) (*model.IdentityInfo, error) {
	op, err := s.begin(ctx, "GetIdentityDetails")
	if err != nil {
		return nil, err
	}
	return op.identities().GetIdentityInfo(identityOrAlias)
}

func (s *CitadelSmartContract) settings(op *operation) (*model.LedgerSettings, error) {
	var settings model.LedgerSettings
	found, err := op.getJSON(&settings, settingsObjectType, "ledger")
	if err != nil {
		return nil, err
	}
	if !found {
		return &model.LedgerSettings{
			ObjectType:    settingsObjectType,
			MinStakeFloor: s.minStakeFloor,
			VotingDelay:   int64(s.votingDelay / time.Second),
			PlatformFee:   s.platformFee,
		}, nil
	}
	return &settings, nil
}
