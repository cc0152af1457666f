package contract

import (
	"strings"

	"citadeldao/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
	"github.com/pkg/errors"
)

var idLogger = flogging.MustGetLogger("citadel.identity")

const (
	identityObjectType  = "IdentityInfo" // attr: FullID
	aliasObjectType     = "Alias"        // attr: ShortName, value: FullID
	adminFlagObjectType = "AdminFlag"    // attr: FullID, value: "true"
)

// IdentityManager resolves callers and aliases, and tracks platform admins.
// All writes go through the operation's state transaction.
type IdentityManager struct {
	Ctx contractapi.TransactionContextInterface
	tx  *stateTx
}

// NewIdentityManager creates an IdentityManager bound to one operation.
func NewIdentityManager(ctx contractapi.TransactionContextInterface, tx *stateTx) *IdentityManager {
	return &IdentityManager{Ctx: ctx, tx: tx}
}

func isValidX509ID(id string) bool {
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6") // "eDUwOTo6" is "x509::" base64 encoded
}

// GetCurrentIdentityFullID retrieves the full X.509 ID of the current transactor.
func (im *IdentityManager) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := im.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", errors.Wrap(err, "failed to get client identity ID from context")
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	if !isValidX509ID(id) {
		idLogger.Warningf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	return id, nil
}

// GetCurrentMSPID returns the MSP of the current transactor, or "" if unknown.
func (im *IdentityManager) GetCurrentMSPID() string {
	clientIdentity := im.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return ""
	}
	mspID, err := clientIdentity.GetMSPID()
	if err != nil {
		idLogger.Warningf("Could not determine MSPID of caller: %v", err)
		return ""
	}
	return mspID
}

// ResolveIdentity maps an alias to its full ID. Full X.509 IDs pass through.
func (im *IdentityManager) ResolveIdentity(identityOrAlias string) (string, error) {
	trimmed := strings.TrimSpace(identityOrAlias)
	if trimmed == "" {
		return "", validationError("identityOrAlias cannot be empty")
	}
	if isValidX509ID(trimmed) {
		return trimmed, nil
	}
	aliasKey, err := im.tx.key(aliasObjectType, trimmed)
	if err != nil {
		return "", err
	}
	fullID, err := im.tx.get(aliasKey)
	if err != nil {
		return "", err
	}
	if fullID == nil {
		return "", notFoundError("alias '%s' not found", trimmed)
	}
	return string(fullID), nil
}

// ResolveAccount is ResolveIdentity for payment recipients and member
// arguments: an unregistered name is taken as an opaque account identifier.
func (im *IdentityManager) ResolveAccount(identityOrAlias string) (string, error) {
	fullID, err := im.ResolveIdentity(identityOrAlias)
	if errors.Is(err, ErrNotFound) {
		idLogger.Debugf("No alias registered for '%s'; using it as an account identifier.", identityOrAlias)
		return strings.TrimSpace(identityOrAlias), nil
	}
	return fullID, err
}

// GetIdentityInfo loads the registration record of an identity or alias.
func (im *IdentityManager) GetIdentityInfo(identityOrAlias string) (*model.IdentityInfo, error) {
	fullID, err := im.ResolveIdentity(identityOrAlias)
	if err != nil {
		return nil, err
	}
	identityKey, err := im.tx.key(identityObjectType, fullID)
	if err != nil {
		return nil, err
	}
	var idInfo model.IdentityInfo
	found, err := im.tx.getJSON(identityKey, &idInfo)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("identity record not found for '%s'", fullID)
	}
	return &idInfo, nil
}

// RegisterAlias maps shortName to targetFullID. Only platform admins may call it.
func (im *IdentityManager) RegisterAlias(callerFullID, targetFullID, shortName string, now int64) error {
	isCallerAdmin, err := im.IsAdmin(callerFullID)
	if err != nil {
		return err
	}
	if !isCallerAdmin {
		return authorizationError("caller '%s' is not authorized to register aliases", callerFullID)
	}
	if !isValidX509ID(targetFullID) {
		return validationError("targetFullID '%s' is not a valid X.509 ID format", targetFullID)
	}
	shortName = strings.TrimSpace(shortName)
	if shortName == "" {
		return validationError("shortName cannot be empty")
	}
	if isValidX509ID(shortName) {
		return validationError("shortName '%s' cannot look like an X.509 ID", shortName)
	}

	aliasKey, err := im.tx.key(aliasObjectType, shortName)
	if err != nil {
		return err
	}
	existing, err := im.tx.get(aliasKey)
	if err != nil {
		return err
	}
	if existing != nil && string(existing) != targetFullID {
		return conflictError("shortName (alias) '%s' is already in use by identity '%s'", shortName, string(existing))
	}

	identityKey, err := im.tx.key(identityObjectType, targetFullID)
	if err != nil {
		return err
	}
	var idInfo model.IdentityInfo
	found, err := im.tx.getJSON(identityKey, &idInfo)
	if err != nil {
		return err
	}
	if !found {
		idInfo = model.IdentityInfo{
			ObjectType:      identityObjectType,
			FullID:          targetFullID,
			OrganizationMSP: im.GetCurrentMSPID(),
			RegisteredBy:    callerFullID,
			RegisteredAt:    now,
		}
	} else if idInfo.ShortName != "" && idInfo.ShortName != shortName {
		oldAliasKey, keyErr := im.tx.key(aliasObjectType, idInfo.ShortName)
		if keyErr != nil {
			return keyErr
		}
		im.tx.del(oldAliasKey)
	}
	idInfo.ShortName = shortName
	idInfo.LastUpdatedAt = now

	if err := im.tx.putJSON(identityKey, &idInfo); err != nil {
		return err
	}
	im.tx.put(aliasKey, []byte(targetFullID))
	idLogger.Infof("Alias '%s' now maps to '%s' (registered by '%s').", shortName, targetFullID, callerFullID)
	return nil
}

// IsAdmin checks the AdminFlag of an identity or alias.
func (im *IdentityManager) IsAdmin(identityOrAlias string) (bool, error) {
	fullID, err := im.ResolveIdentity(identityOrAlias)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	adminFlagKey, err := im.tx.key(adminFlagObjectType, fullID)
	if err != nil {
		return false, err
	}
	flag, err := im.tx.get(adminFlagKey)
	if err != nil {
		return false, err
	}
	return string(flag) == "true", nil
}

// AnyAdminExists checks if any admin flag is set on the ledger.
func (im *IdentityManager) AnyAdminExists() (bool, error) {
	entries, err := im.tx.scan(adminFlagObjectType)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// bootstrapAdmin registers fullID as the first platform admin.
func (im *IdentityManager) bootstrapAdmin(fullID string, now int64) error {
	anyAdmin, err := im.AnyAdminExists()
	if err != nil {
		return err
	}
	if anyAdmin {
		return conflictError("ledger already has an admin; InitLedger should not be re-run")
	}
	identityKey, err := im.tx.key(identityObjectType, fullID)
	if err != nil {
		return err
	}
	adminFlagKey, err := im.tx.key(adminFlagObjectType, fullID)
	if err != nil {
		return err
	}
	info := model.IdentityInfo{
		ObjectType:      identityObjectType,
		FullID:          fullID,
		OrganizationMSP: im.GetCurrentMSPID(),
		IsAdmin:         true,
		RegisteredBy:    fullID,
		RegisteredAt:    now,
		LastUpdatedAt:   now,
	}
	if err := im.tx.putJSON(identityKey, &info); err != nil {
		return err
	}
	im.tx.put(adminFlagKey, []byte("true"))
	idLogger.Infof("Bootstrap admin '%s' registered.", fullID)
	return nil
}
