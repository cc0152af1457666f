package contract

import (
	"citadeldao/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

type assetMetadataArgs struct {
	Name        string `json:"name" validate:"required,max=256"`
	Description string `json:"description" validate:"max=4096"`
	Category    string `json:"category" validate:"max=128"`
}

// --- Asset management ---

// requireAssetManager allows the asset owner and, for a DAO-owned asset, the
// admin of that DAO.
func (op *operation) requireAssetManager(asset *model.AssetListing) error {
	if op.caller == asset.Owner {
		return nil
	}
	if asset.DAOID != "" {
		dao, err := op.loadDAO(asset.DAOID)
		if err != nil {
			return err
		}
		if op.caller == dao.Creator {
			return nil
		}
	}
	return authorizationError("only the owner of asset '%s' may call %s", asset.AssetID, op.name)
}

// loadManagedAsset loads an asset the caller manages and that is not retired.
func (op *operation) loadManagedAsset(assetID string) (*model.AssetListing, error) {
	asset, err := op.loadAsset(assetID)
	if err != nil {
		return nil, err
	}
	if err := op.requireAssetManager(asset); err != nil {
		return nil, err
	}
	if asset.Retired {
		return nil, stateError("asset '%s' is retired", assetID)
	}
	return asset, nil
}

// SetAssetPricing sets the minimum license payment and the buyout price of an
// asset. A buyout price of 0 takes the asset off the market.
func (s *CitadelSmartContract) SetAssetPricing(ctx contractapi.TransactionContextInterface, assetID string, price, buyoutPrice uint64) (*model.AssetListing, error) {
	op, err := s.begin(ctx, "SetAssetPricing")
	if err != nil {
		return nil, err
	}
	asset, err := op.loadManagedAsset(assetID)
	if err != nil {
		return nil, err
	}
	asset.Price = price
	asset.BuyoutPrice = buyoutPrice
	asset.UpdatedAt = op.now
	if err := op.putJSON(asset, assetObjectType, assetID); err != nil {
		return nil, err
	}
	op.tx.emit("AssetPricingChanged", map[string]interface{}{"assetId": assetID, "price": price, "buyoutPrice": buyoutPrice})
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("SetAssetPricing: asset '%s' priced at %d (buyout %d) by '%s'", assetID, price, buyoutPrice, op.caller)
	return asset, nil
}

// UpdateAssetMetadata replaces the descriptive fields of a listing.
func (s *CitadelSmartContract) UpdateAssetMetadata(ctx contractapi.TransactionContextInterface, assetID, name, description, category string) (*model.AssetListing, error) {
	op, err := s.begin(ctx, "UpdateAssetMetadata")
	if err != nil {
		return nil, err
	}
	if err := validateArgs(assetMetadataArgs{Name: name, Description: description, Category: category}); err != nil {
		return nil, err
	}
	asset, err := op.loadManagedAsset(assetID)
	if err != nil {
		return nil, err
	}
	asset.Name = name
	asset.Description = description
	asset.Category = category
	asset.UpdatedAt = op.now
	if err := op.putJSON(asset, assetObjectType, assetID); err != nil {
		return nil, err
	}
	op.tx.emit("AssetMetadataUpdated", map[string]interface{}{"assetId": assetID, "name": name})
	if err := op.commit(); err != nil {
		return nil, err
	}
	return asset, nil
}

// TransferAssetOwnership hands an asset to newOwner. A DAO-owned asset leaves
// the DAO, so later proceeds go to the new owner instead of the treasury.
func (s *CitadelSmartContract) TransferAssetOwnership(ctx contractapi.TransactionContextInterface, assetID, newOwner string) (*model.AssetListing, error) {
	op, err := s.begin(ctx, "TransferAssetOwnership")
	if err != nil {
		return nil, err
	}
	asset, err := op.loadManagedAsset(assetID)
	if err != nil {
		return nil, err
	}
	account, err := op.identities().ResolveAccount(newOwner)
	if err != nil {
		return nil, err
	}
	if account == asset.Owner && asset.DAOID == "" {
		return nil, validationError("'%s' already owns asset '%s'", account, assetID)
	}
	previous := asset.Owner
	asset.Owner = account
	asset.DAOID = ""
	asset.UpdatedAt = op.now
	if err := op.putJSON(asset, assetObjectType, assetID); err != nil {
		return nil, err
	}
	op.tx.emit("AssetTransferred", map[string]interface{}{"assetId": assetID, "from": previous, "to": account})
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("TransferAssetOwnership: asset '%s' moved from '%s' to '%s'", assetID, previous, account)
	return asset, nil
}

// RetireAsset permanently withdraws an asset from the catalog. Licenses
// already sold stay usable until they expire or run out.
func (s *CitadelSmartContract) RetireAsset(ctx contractapi.TransactionContextInterface, assetID string) error {
	op, err := s.begin(ctx, "RetireAsset")
	if err != nil {
		return err
	}
	asset, err := op.loadManagedAsset(assetID)
	if err != nil {
		return err
	}
	asset.Retired = true
	asset.Active = false
	asset.BuyoutPrice = 0
	asset.UpdatedAt = op.now
	if err := op.putJSON(asset, assetObjectType, assetID); err != nil {
		return err
	}
	op.tx.emit("AssetRetired", map[string]interface{}{"assetId": assetID, "by": op.caller})
	if err := op.commit(); err != nil {
		return err
	}
	logger.Infof("RetireAsset: asset '%s' retired by '%s'", assetID, op.caller)
	return nil
}

// BuyoutAsset buys the asset outright with the attached payment. The payment
// must cover the buyout price; the seller receives it minus the platform fee
// and the caller becomes the owner.
func (s *CitadelSmartContract) BuyoutAsset(ctx contractapi.TransactionContextInterface, assetID string) (*model.AssetListing, error) {
	op, err := s.begin(ctx, "BuyoutAsset")
	if err != nil {
		return nil, err
	}
	asset, err := op.loadAsset(assetID)
	if err != nil {
		return nil, err
	}
	if !asset.Active || asset.BuyoutPrice == 0 {
		return nil, stateError("asset '%s' is not for sale", assetID)
	}
	if asset.Owner == op.caller && asset.DAOID == "" {
		return nil, stateError("'%s' already owns asset '%s'", op.caller, assetID)
	}
	payment, err := s.takePayment(op)
	if err != nil {
		return nil, err
	}
	if payment.Amount < asset.BuyoutPrice {
		return nil, paymentError("payment %d is below the buyout price %d of asset '%s'", payment.Amount, asset.BuyoutPrice, assetID)
	}

	previous := asset.Owner
	split, err := s.settleSale(op, asset, payment, "buyout "+assetID)
	if err != nil {
		return nil, err
	}
	asset.Owner = op.caller
	asset.DAOID = ""
	asset.BuyoutPrice = 0
	asset.UpdatedAt = op.now
	if err := op.putJSON(asset, assetObjectType, assetID); err != nil {
		return nil, err
	}
	op.tx.emit("AssetBoughtOut", map[string]interface{}{"assetId": assetID, "from": previous, "to": op.caller, "amount": payment.Amount, "platformFee": split.platform})
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("BuyoutAsset: '%s' bought asset '%s' from '%s' for %d", op.caller, assetID, previous, payment.Amount)
	return asset, nil
}

// --- Sale settlement ---

type saleSplit struct {
	owner    uint64
	platform uint64
}

func (op *operation) loadPlatformAccount() (*model.PlatformAccount, error) {
	account := model.PlatformAccount{ObjectType: platformObjectType}
	if _, err := op.getJSON(&account, platformObjectType, "ledger"); err != nil {
		return nil, err
	}
	return &account, nil
}

// settleSale takes the platform fee out of a sale and routes the rest to the
// asset owner: the DAO treasury for DAO-owned assets, a staged payout
// otherwise. The caller stages asset afterwards.
func (s *CitadelSmartContract) settleSale(op *operation, asset *model.AssetListing, payment *Payment, memo string) (saleSplit, error) {
	var split saleSplit
	settings, err := s.settings(op)
	if err != nil {
		return split, err
	}
	if settings.PlatformFee > basisPointsDenominator {
		return split, invariantError("platform fee %d exceeds %d basis points", settings.PlatformFee, basisPointsDenominator)
	}
	split.platform = mulDiv(payment.Amount, settings.PlatformFee, basisPointsDenominator)
	split.owner = payment.Amount - split.platform

	account, err := op.loadPlatformAccount()
	if err != nil {
		return split, err
	}
	if split.owner > 0 {
		if asset.DAOID != "" {
			if _, err := op.creditTreasury(asset.DAOID, op.caller, split.owner, memo, payment.Reference); err != nil {
				return split, err
			}
		} else {
			if account.PayoutCount, err = checkedAdd(account.PayoutCount, 1); err != nil {
				return split, err
			}
			payout := model.PayoutInstruction{PaymentID: account.PayoutCount, Recipient: asset.Owner, Amount: split.owner, Memo: memo}
			if err := s.disbursement.Transfer(op.ctx, op.tx, payout); err != nil {
				return split, paymentError("transfer of %d to '%s' failed: %v", split.owner, asset.Owner, err)
			}
		}
	}
	if account.Balance, err = checkedAdd(account.Balance, split.platform); err != nil {
		return split, err
	}
	if account.TotalCollected, err = checkedAdd(account.TotalCollected, split.platform); err != nil {
		return split, err
	}
	if err := op.putJSON(account, platformObjectType, "ledger"); err != nil {
		return split, err
	}

	if asset.RevenueGenerated, err = checkedAdd(asset.RevenueGenerated, payment.Amount); err != nil {
		return split, err
	}
	if asset.OwnerRevenue, err = checkedAdd(asset.OwnerRevenue, split.owner); err != nil {
		return split, err
	}
	if asset.PlatformRevenue, err = checkedAdd(asset.PlatformRevenue, split.platform); err != nil {
		return split, err
	}
	return split, nil
}

// GetPlatformAccount returns the platform fee account.
func (s *CitadelSmartContract) GetPlatformAccount(ctx contractapi.TransactionContextInterface) (*model.PlatformAccount, error) {
	op, err := s.begin(ctx, "GetPlatformAccount")
	if err != nil {
		return nil, err
	}
	return op.loadPlatformAccount()
}

// WithdrawPlatformFees pays collected platform fees to recipient. Only the
// identity that ran InitLedger may withdraw.
func (s *CitadelSmartContract) WithdrawPlatformFees(ctx contractapi.TransactionContextInterface, recipient string, amount uint64) (*model.PlatformAccount, error) {
	op, err := s.begin(ctx, "WithdrawPlatformFees")
	if err != nil {
		return nil, err
	}
	settings, err := s.settings(op)
	if err != nil {
		return nil, err
	}
	if settings.InitializedBy == "" || op.caller != settings.InitializedBy {
		return nil, authorizationError("only the platform admin may withdraw platform fees")
	}
	if amount == 0 {
		return nil, validationError("withdrawal amount must be positive")
	}
	account, err := op.loadPlatformAccount()
	if err != nil {
		return nil, err
	}
	if amount > account.Balance {
		return nil, insufficientFundsError("platform account holds %d, withdrawal needs %d", account.Balance, amount)
	}
	to, err := op.identities().ResolveAccount(recipient)
	if err != nil {
		return nil, err
	}
	account.Balance -= amount
	if account.TotalWithdrawn, err = checkedAdd(account.TotalWithdrawn, amount); err != nil {
		return nil, err
	}
	if account.PayoutCount, err = checkedAdd(account.PayoutCount, 1); err != nil {
		return nil, err
	}
	payout := model.PayoutInstruction{PaymentID: account.PayoutCount, Recipient: to, Amount: amount, Memo: "platform fees"}
	if err := s.disbursement.Transfer(op.ctx, op.tx, payout); err != nil {
		return nil, paymentError("transfer of %d to '%s' failed: %v", amount, to, err)
	}
	if err := op.putJSON(account, platformObjectType, "ledger"); err != nil {
		return nil, err
	}
	op.tx.emit("PlatformFeesWithdrawn", map[string]interface{}{"recipient": to, "amount": amount})
	if err := op.commit(); err != nil {
		return nil, err
	}
	logger.Infof("WithdrawPlatformFees: %d paid to '%s'", amount, to)
	return account, nil
}
