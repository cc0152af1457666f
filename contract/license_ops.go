package contract

import (
	"citadeldao/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

type assetListingArgs struct {
	AssetID     string `json:"assetId" validate:"required,max=256"`
	Name        string `json:"name" validate:"required,max=256"`
	Description string `json:"description" validate:"max=4096"`
	Category    string `json:"category" validate:"max=128"`
	ContentHash string `json:"contentHash" validate:"max=256"`
	DAOID       string `json:"daoId" validate:"max=64"`
	Price       uint64 `json:"price"`
	BuyoutPrice uint64 `json:"buyoutPrice"`
}

type purchaseArgs struct {
	AssetID      string `json:"assetId" validate:"required,max=256"`
	LicenseType  string `json:"licenseType" validate:"oneof=subscription purchase pay_per_use"`
	DurationDays uint64 `json:"durationDays" validate:"lte=36500"`
}

func (op *operation) loadAsset(assetID string) (*model.AssetListing, error) {
	var a model.AssetListing
	found, err := op.getJSON(&a, assetObjectType, assetID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("asset '%s' is not listed", assetID)
	}
	return &a, nil
}

// listAsset stages a catalog entry for an already issued asset id.
func (s *CitadelSmartContract) listAsset(op *operation, args assetListingArgs, creator string) (*model.AssetListing, error) {
	if err := validateArgs(args); err != nil {
		return nil, err
	}
	assetKey, err := op.tx.key(assetObjectType, args.AssetID)
	if err != nil {
		return nil, err
	}
	existing, err := op.tx.get(assetKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflictError("asset '%s' is already listed", args.AssetID)
	}
	listing := model.AssetListing{
		ObjectType:  assetObjectType,
		AssetID:     args.AssetID,
		Name:        args.Name,
		Description: args.Description,
		Category:    args.Category,
		Creator:     creator,
		Owner:       creator,
		DAOID:       args.DAOID,
		ContentHash: args.ContentHash,
		CreatedAt:   op.now,
		UpdatedAt:   op.now,
		Active:      true,
		Price:       args.Price,
		BuyoutPrice: args.BuyoutPrice,
	}
	if err := op.tx.putJSON(assetKey, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// CreateAssetLicense lists an issued asset for licensing with the caller as
// creator and owner. When daoID is set the caller must administer that DAO,
// and the owner share of license revenue is credited to its treasury. Pricing
// starts unset; see SetAssetPricing.
func (s *CitadelSmartContract) CreateAssetLicense(ctx contractapi.TransactionContextInterface, assetID, name, description, category, daoID string) (*model.AssetListing, error) {
	op, err := s.begin(ctx, "CreateAssetLicense")
	if err != nil {
		return nil, err
	}
	if daoID != "" {
		dao, err := op.loadActiveDAO(daoID)
		if err != nil {
			return nil, err
		}
		if err := requireDAOAdmin(op, dao); err != nil {
			return nil, err
		}
	}
	listing, err := s.listAsset(op, assetListingArgs{AssetID: assetID, Name: name, Description: description, Category: category, DAOID: daoID}, op.caller)
	if err != nil {
		return nil, err
	}
	op.tx.emit("AssetListed", listing)
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("CreateAssetLicense: asset '%s' listed by '%s'", assetID, op.caller)
	return listing, nil
}

// PurchaseLicense buys a license for the caller with the attached payment and
// returns the license id. durationDays of 0 makes the license perpetual and
// usageLimit of 0 makes it unlimited. The payment must cover the asset price
// and is split between the owner and the platform fee.
func (s *CitadelSmartContract) PurchaseLicense(ctx contractapi.TransactionContextInterface, assetID, licenseType string, durationDays, usageLimit uint64) (string, error) {
	op, err := s.begin(ctx, "PurchaseLicense")
	if err != nil {
		return "", err
	}
	if err := validateArgs(purchaseArgs{AssetID: assetID, LicenseType: licenseType, DurationDays: durationDays}); err != nil {
		return "", err
	}
	asset, err := op.loadAsset(assetID)
	if err != nil {
		return "", err
	}
	if !asset.Active {
		return "", notFoundError("asset '%s' is not available for licensing", assetID)
	}

	indexKey, err := op.tx.key(userLicenseObjectType, assetID, op.caller)
	if err != nil {
		return "", err
	}
	previousID, err := op.tx.get(indexKey)
	if err != nil {
		return "", err
	}
	if previousID != nil {
		licenseKey, err := op.tx.key(licenseObjectType, string(previousID))
		if err != nil {
			return "", err
		}
		if _, err := updateState(op.tx, licenseKey, invariantError("license index points to missing license '%s'", previousID), func(prev *model.License) error {
			if prev.Usable(op.now) {
				return conflictError("'%s' already holds active license '%s' for asset '%s'", op.caller, prev.ID, assetID)
			}
			prev.Active = false
			return nil
		}); err != nil {
			return "", err
		}
	}

	payment, err := s.takePayment(op)
	if err != nil {
		return "", err
	}
	if payment.Amount < asset.Price {
		return "", paymentError("payment %d is below the price %d of asset '%s'", payment.Amount, asset.Price, assetID)
	}
	var endDate int64
	if durationDays > 0 {
		seconds, err := checkedMul(durationDays, secondsPerDay)
		if err != nil {
			return "", err
		}
		endDate = op.now + int64(seconds)
	}

	seq, err := op.tx.nextSequence(licenseSequence)
	if err != nil {
		return "", err
	}
	license := model.License{
		ObjectType: licenseObjectType,
		ID:         licenseIDFor(seq),
		AssetID:    assetID,
		Licensee:   op.caller,
		Type:       model.LicenseType(licenseType),
		StartDate:  op.now,
		EndDate:    endDate,
		UsageLimit: usageLimit,
		AmountPaid: payment.Amount,
		Active:     true,
	}
	if err := op.putJSON(&license, licenseObjectType, license.ID); err != nil {
		return "", err
	}
	op.tx.put(indexKey, []byte(license.ID))

	split, err := s.settleSale(op, asset, payment, "license "+license.ID)
	if err != nil {
		return "", err
	}
	asset.LicenseCount++
	if err := op.putJSON(asset, assetObjectType, assetID); err != nil {
		return "", err
	}

	op.tx.emit("LicensePurchased", map[string]interface{}{"licenseId": license.ID, "assetId": assetID, "licensee": op.caller, "amount": payment.Amount, "platformFee": split.platform})
	if err := op.commit(); err != nil {
		return "", err
	}
	logger.Infof("PurchaseLicense: '%s' bought license '%s' for asset '%s' (%d paid)", op.caller, license.ID, assetID, payment.Amount)
	return license.ID, nil
}

// UseLicense consumes one use of the caller's license for an asset.
func (s *CitadelSmartContract) UseLicense(ctx contractapi.TransactionContextInterface, assetID string) (*model.License, error) {
	op, err := s.begin(ctx, "UseLicense")
	if err != nil {
		return nil, err
	}
	indexKey, err := op.tx.key(userLicenseObjectType, assetID, op.caller)
	if err != nil {
		return nil, err
	}
	licenseID, err := op.tx.get(indexKey)
	if err != nil {
		return nil, err
	}
	if licenseID == nil {
		return nil, notFoundError("'%s' holds no license for asset '%s'", op.caller, assetID)
	}
	licenseKey, err := op.tx.key(licenseObjectType, string(licenseID))
	if err != nil {
		return nil, err
	}
	license, err := updateState(op.tx, licenseKey, notFoundError("license '%s' does not exist", licenseID), func(l *model.License) error {
		switch {
		case !l.Active:
			return stateError("license '%s' is not active", l.ID)
		case l.Expired(op.now):
			return stateError("license '%s' expired at %d", l.ID, l.EndDate)
		case l.Exhausted():
			return stateError("license '%s' used %d of %d times", l.ID, l.UsageCount, l.UsageLimit)
		}
		l.UsageCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	assetKey, err := op.tx.key(assetObjectType, assetID)
	if err != nil {
		return nil, err
	}
	if _, err := updateState(op.tx, assetKey, notFoundError("asset '%s' is not listed", assetID), func(a *model.AssetListing) error {
		a.UsageCount++
		return nil
	}); err != nil {
		return nil, err
	}
	op.tx.emit("LicenseUsed", map[string]interface{}{"licenseId": license.ID, "assetId": assetID, "usageCount": license.UsageCount})
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Debugf("UseLicense: '%s' used license '%s' (%d uses)", op.caller, license.ID, license.UsageCount)
	return license, nil
}

// SetAssetActive lets the asset manager withdraw or restore an asset.
// Existing licenses are unaffected.
func (s *CitadelSmartContract) SetAssetActive(ctx contractapi.TransactionContextInterface, assetID string, active bool) error {
	op, err := s.begin(ctx, "SetAssetActive")
	if err != nil {
		return err
	}
	asset, err := op.loadManagedAsset(assetID)
	if err != nil {
		return err
	}
	asset.Active = active
	asset.UpdatedAt = op.now
	if err := op.putJSON(asset, assetObjectType, assetID); err != nil {
		return err
	}
	op.tx.emit("AssetAvailabilityChanged", map[string]interface{}{"assetId": assetID, "active": active})
	return op.commit()
}

// GetAssetInfo returns the catalog entry of an asset.
func (s *CitadelSmartContract) GetAssetInfo(ctx contractapi.TransactionContextInterface, assetID string) (*model.AssetListing, error) {
	op, err := s.begin(ctx, "GetAssetInfo")
	if err != nil {
		return nil, err
	}
	return op.loadAsset(assetID)
}

// GetLicenseInfo returns a license by id.
func (s *CitadelSmartContract) GetLicenseInfo(ctx contractapi.TransactionContextInterface, licenseID string) (*model.License, error) {
	op, err := s.begin(ctx, "GetLicenseInfo")
	if err != nil {
		return nil, err
	}
	var l model.License
	found, err := op.getJSON(&l, licenseObjectType, licenseID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("license '%s' does not exist", licenseID)
	}
	return &l, nil
}

// GetUserLicense returns the latest license a licensee bought for an asset.
func (s *CitadelSmartContract) GetUserLicense(ctx contractapi.TransactionContextInterface, assetID, licensee string) (*model.License, error) {
	op, err := s.begin(ctx, "GetUserLicense")
	if err != nil {
		return nil, err
	}
	account, err := op.identities().ResolveAccount(licensee)
	if err != nil {
		return nil, err
	}
	indexKey, err := op.tx.key(userLicenseObjectType, assetID, account)
	if err != nil {
		return nil, err
	}
	licenseID, err := op.tx.get(indexKey)
	if err != nil {
		return nil, err
	}
	if licenseID == nil {
		return nil, notFoundError("'%s' holds no license for asset '%s'", account, assetID)
	}
	var l model.License
	found, err := op.getJSON(&l, licenseObjectType, string(licenseID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, invariantError("license index points to missing license '%s'", licenseID)
	}
	return &l, nil
}
