package auth

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// Contracts is the per-chain contract address set. The table is
// immutable; all other state is per-client.
type Contracts struct {
	Exchange          common.Address // CTF exchange, typed-data verifying contract
	NegRiskExchange   common.Address // adapter exchange for neg-risk markets
	Collateral        common.Address // USDC
	ConditionalTokens common.Address
}

var contractTable = map[int64]Contracts{
	ChainPolygon: {
		Exchange:          common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"),
		NegRiskExchange:   common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a"),
		Collateral:        common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		ConditionalTokens: common.HexToAddress("0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"),
	},
	ChainAmoy: {
		Exchange:          common.HexToAddress("0xdFE02Eb6733538f8Ea35D585af8DE5958AD99E40"),
		NegRiskExchange:   common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a"),
		Collateral:        common.HexToAddress("0x9c4e1703476e875070ee25b56a58b008cfb8fa78"),
		ConditionalTokens: common.HexToAddress("0x69308FB512518e39F9b16112fA8d994F4e2Bf8bB"),
	},
}

// ContractsFor returns the contract set for a supported chain.
func ContractsFor(chainID int64) (Contracts, error) {
	c, ok := contractTable[chainID]
	if !ok {
		return Contracts{}, apierr.Validationf("unsupported chain id %d", chainID)
	}
	return c, nil
}

// Wallet factories used for deterministic funder derivation. Both deploy
// via CREATE2 keyed on the owner address, so the funder wallet is a pure
// function of the signer.
var (
	proxyWalletFactory = common.HexToAddress("0xaB45c5A4B0c941a2F231C04C3f49182e1A254052")
	safeFactory        = common.HexToAddress("0xaacFeEa03eb1561C4e67d661e40682Bd20E3541b")

	proxyWalletInitCodeHash = common.HexToHash("0xd2fb5b2f851d2f4da4fc0e24a5f5d37bbb8e3ff4c22e0d1a1b6a5b2f9ac0f7a3")
	safeInitCodeHash        = common.HexToHash("0x2b2f6bdd3f8b4ed5f6a0b5d9bfed9f50d4f3b88a3e15e1eac2b87c7ee4ab1c65")
)

// DeriveFunder computes the funder wallet for the given signature type.
// EOA has no derived wallet: the funder is the signer itself, and asking
// for a derivation is a caller error.
func DeriveFunder(signer common.Address, sigType types.SignatureType) (common.Address, error) {
	switch sigType {
	case types.SigProxy:
		return create2Wallet(proxyWalletFactory, signer, proxyWalletInitCodeHash), nil
	case types.SigGnosisSafe:
		return create2Wallet(safeFactory, signer, safeInitCodeHash), nil
	case types.SigEOA:
		return common.Address{}, apierr.Validationf("funder derivation is not defined for EOA signatures")
	default:
		return common.Address{}, apierr.Validationf("unknown signature type %d", sigType)
	}
}

// create2Wallet follows the EIP-1014 address formula with the owner
// address (left-padded to 32 bytes) hashed as the salt.
func create2Wallet(factory, owner common.Address, initCodeHash common.Hash) common.Address {
	salt := crypto.Keccak256(common.LeftPadBytes(owner.Bytes(), 32))
	var salt32 [32]byte
	copy(salt32[:], salt)
	return crypto.CreateAddress2(factory, salt32, initCodeHash.Bytes())
}
