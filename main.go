package main

import (
	"fmt"
	"os"

	"citadeldao/config"
	"citadeldao/contract"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
	"github.com/spf13/cobra"
)

var logger = flogging.MustGetLogger("citadel.main")

var cmdMain = &cobra.Command{
	Use:   "citadel-dao",
	Short: "DAO governance, treasury and licensing chaincode",
	Run:   runChaincode,
}

var flagMain struct {
	Address     string
	ChaincodeID string
	LogSpec     string
}

func init() {
	cmdMain.Flags().StringVar(&flagMain.Address, "address", "", "Listen address for chaincode-as-a-service (overrides CHAINCODE_SERVER_ADDRESS)")
	cmdMain.Flags().StringVar(&flagMain.ChaincodeID, "chaincode-id", "", "Chaincode package id (overrides CHAINCODE_ID)")
	cmdMain.Flags().StringVar(&flagMain.LogSpec, "log-spec", "", "flogging spec, e.g. info or citadel.contract=debug:info")
}

func main() {
	if err := cmdMain.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChaincode(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}
	if cmd.Flag("address").Changed {
		cfg.ServerAddress = flagMain.Address
	}
	if cmd.Flag("chaincode-id").Changed {
		cfg.ChaincodeID = flagMain.ChaincodeID
	}
	if cmd.Flag("log-spec").Changed {
		cfg.LogSpec = flagMain.LogSpec
	}
	flogging.ActivateSpec(cfg.LogSpec)

	dao := contract.NewCitadelSmartContract(
		contract.WithLedgerDefaults(cfg.MinStakeFloor, cfg.VotingDelay),
		contract.WithPlatformFee(cfg.PlatformFee),
		contract.WithPaymentTransport(contract.TransientPaymentTransport{Key: cfg.PaymentTransientKey}),
		contract.WithAssetIssuer(contract.ChaincodeAssetIssuer{Chaincode: cfg.AssetIssuerChaincode, Channel: cfg.AssetIssuerChannel}),
	)
	cc, err := contractapi.NewChaincode(dao)
	if err != nil {
		panic("Error creating CitadelSmartContract: " + err.Error())
	}

	if !cfg.ExternalService() {
		if err := cc.Start(); err != nil {
			panic("Error starting chaincode: " + err.Error())
		}
		return
	}

	server := &shim.ChaincodeServer{
		CCID:     cfg.ChaincodeID,
		Address:  cfg.ServerAddress,
		CC:       cc,
		TLSProps: shim.TLSProperties{Disabled: cfg.TLSDisabled},
	}
	logger.Infof("Starting chaincode server %s on %s", cfg.ChaincodeID, cfg.ServerAddress)
	if err := server.Start(); err != nil {
		panic("Error starting chaincode server: " + err.Error())
	}
}
