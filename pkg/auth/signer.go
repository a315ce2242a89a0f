// Package auth implements the three signing layers of the CLOB API:
//
//   - L1 (EIP-712): a typed-data "ClobAuth" attestation signed with the
//     wallet's private key. Used to create or derive L2 credentials.
//   - L2 (HMAC-SHA256): per-request MAC over the canonical message
//     "timestamp + method + path + body" under the derived API secret.
//   - Order signing: the canonical order record hashed under the CTF
//     exchange typed-data domain and signed with the wallet key.
//
// It also derives proxy/safe funder wallets from the signer address and
// holds the immutable chain → contract table.
package auth

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// Supported chain IDs: Polygon mainnet and the Amoy testnet.
const (
	ChainPolygon = 137
	ChainAmoy    = 80002
)

const clobAuthMessage = "This message attests that I control the given wallet"

// Signer wraps an EOA private key and its chain context. It is the only
// place in the SDK that touches the raw key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewSigner parses a hex private key (with or without 0x prefix) and
// validates the chain id against the supported set.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	if chainID != ChainPolygon && chainID != ChainAmoy {
		return nil, apierr.Validationf("unsupported chain id %d (want %d or %d)", chainID, ChainPolygon, ChainAmoy)
	}

	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, apierr.Internal("parse private key", err)
	}

	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    big.NewInt(chainID),
	}, nil
}

// Address returns the signer's EOA address.
func (s *Signer) Address() common.Address { return s.address }

// ChainID returns the configured chain id.
func (s *Signer) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// L1Headers produces the four headers for credential-issuance requests.
// The timestamp is caller-supplied so the clock source (local or server)
// stays outside this package.
func (s *Signer) L1Headers(timestamp string, nonce uint64) (map[string]string, error) {
	sig, err := s.SignClobAuth(timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign clob auth: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":   s.address.Hex(),
		"POLY_NONCE":     strconv.FormatUint(nonce, 10),
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": timestamp,
	}, nil
}

// SignClobAuth produces the EIP-712 attestation signature for L1 auth.
func (s *Signer) SignClobAuth(timestamp string, nonce uint64) (string, error) {
	sig, err := s.SignTypedData(
		&apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(s.chainID)),
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		apitypes.TypedDataMessage{
			"address":   s.address.Hex(),
			"timestamp": timestamp,
			"nonce":     strconv.FormatUint(nonce, 10),
			"message":   clobAuthMessage,
		},
		"ClobAuth",
	)
	if err != nil {
		return "", err
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

// SignOrder hashes the signable order under the exchange domain for the
// signer's chain (neg-risk selects the adapter exchange) and signs it.
func (s *Signer) SignOrder(order *types.SignableOrder, negRisk bool) ([]byte, error) {
	contracts, err := ContractsFor(s.chainID.Int64())
	if err != nil {
		return nil, err
	}
	verifying := contracts.Exchange
	if negRisk {
		verifying = contracts.NegRiskExchange
	}
	return s.SignTypedData(
		orderDomain(s.chainID, verifying),
		orderTypes(),
		orderMessage(order),
		"Order",
	)
}

// OrderDigest returns the typed-data hash an order signature commits to.
// Exposed so callers can verify recovered addresses (and tests can check
// the sign/recover round trip).
func (s *Signer) OrderDigest(order *types.SignableOrder, negRisk bool) ([]byte, error) {
	contracts, err := ContractsFor(s.chainID.Int64())
	if err != nil {
		return nil, err
	}
	verifying := contracts.Exchange
	if negRisk {
		verifying = contracts.NegRiskExchange
	}
	typedData := apitypes.TypedData{
		Types:       orderTypes(),
		PrimaryType: "Order",
		Domain:      *orderDomain(s.chainID, verifying),
		Message:     orderMessage(order),
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, apierr.Internal("order typed data hash", err)
	}
	return hash, nil
}

// RecoverOrderSigner recovers the address that produced signature over
// digest. The signature's V byte may be 27/28 or 0/1.
func RecoverOrderSigner(digest, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, apierr.Validationf("signature must be 65 bytes, got %d", len(signature))
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, apierr.Internal("recover signer", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignTypedData signs EIP-712 typed data and normalises V to 27/28.
func (s *Signer) SignTypedData(
	domain *apitypes.TypedDataDomain,
	typesDef apitypes.Types,
	message apitypes.TypedDataMessage,
	primaryType string,
) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, apierr.Internal("typed data hash", err)
	}

	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, apierr.Internal("sign typed data", err)
	}

	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func orderDomain(chainID *big.Int, verifying common.Address) *apitypes.TypedDataDomain {
	return &apitypes.TypedDataDomain{
		Name:              "Polymarket CTF Exchange",
		Version:           "1",
		ChainId:           (*ethmath.HexOrDecimal256)(new(big.Int).Set(chainID)),
		VerifyingContract: verifying.Hex(),
	}
}

func orderTypes() apitypes.Types {
	return apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Order": {
			{Name: "salt", Type: "uint256"},
			{Name: "maker", Type: "address"},
			{Name: "signer", Type: "address"},
			{Name: "taker", Type: "address"},
			{Name: "tokenId", Type: "uint256"},
			{Name: "makerAmount", Type: "uint256"},
			{Name: "takerAmount", Type: "uint256"},
			{Name: "expiration", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "feeRateBps", Type: "uint256"},
			{Name: "side", Type: "uint8"},
			{Name: "signatureType", Type: "uint8"},
		},
	}
}

func orderMessage(o *types.SignableOrder) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"salt":          strconv.FormatUint(o.Salt, 10),
		"maker":         o.Maker.Hex(),
		"signer":        o.Signer.Hex(),
		"taker":         o.Taker.Hex(),
		"tokenId":       o.TokenID.String(),
		"makerAmount":   o.MakerAmount.String(),
		"takerAmount":   o.TakerAmount.String(),
		"expiration":    o.Expiration.String(),
		"nonce":         o.Nonce.String(),
		"feeRateBps":    o.FeeRateBps.String(),
		"side":          strconv.Itoa(int(o.Side)),
		"signatureType": strconv.Itoa(int(o.SignatureType)),
	}
}
