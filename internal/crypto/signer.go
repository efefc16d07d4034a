package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// AuthAttestation is the fixed message every L1 auth signature commits to.
const AuthAttestation = "This message attests that I control the given wallet"

// Exchange contract names used in the order signing domain.
const (
	exchangeDomainName    = "Polymarket CTF Exchange"
	exchangeDomainVersion = "1"
	authDomainName        = "ClobAuthDomain"
	authDomainVersion     = "1"
)

var (
	authDomainTypeHash = ethcrypto.Keccak256([]byte(
		"EIP712Domain(string name,string version,uint256 chainId)"))
	orderDomainTypeHash = ethcrypto.Keccak256([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	clobAuthTypeHash = ethcrypto.Keccak256([]byte(
		"ClobAuth(address address,string timestamp,uint256 nonce,string message)"))
	orderTypeHash = ethcrypto.Keccak256([]byte(
		"Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"))
)

// Order is the signed portion of a limit order. Amounts are integer strings
// in 1e6 base units.
type Order struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`
	SignatureType int    `json:"signatureType"`
}

// Signer holds a secp256k1 key and produces EIP-712 signatures for order
// placement and API-key derivation.
type Signer struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	authSep  []byte
	orderSep []byte
	exchange common.Address
	chainID  int64
}

// NewSigner parses a hex private key (0x prefix optional). exchange is the
// verifying contract of the order domain.
func NewSigner(privateKeyHex string, chainID int64, exchange string) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}
	s := &Signer{
		key:      key,
		address:  ethcrypto.PubkeyToAddress(key.PublicKey),
		exchange: common.HexToAddress(exchange),
		chainID:  chainID,
	}
	chain := uint256(big.NewInt(chainID))
	s.authSep = ethcrypto.Keccak256(authDomainTypeHash,
		ethcrypto.Keccak256([]byte(authDomainName)),
		ethcrypto.Keccak256([]byte(authDomainVersion)),
		chain,
	)
	s.orderSep = ethcrypto.Keccak256(orderDomainTypeHash,
		ethcrypto.Keccak256([]byte(exchangeDomainName)),
		ethcrypto.Keccak256([]byte(exchangeDomainVersion)),
		chain,
		common.LeftPadBytes(s.exchange.Bytes(), 32),
	)
	return s, nil
}

// Address is the wallet address of the key.
func (s *Signer) Address() common.Address { return s.address }

// SignAuth signs the ClobAuth attestation for the given unix timestamp and
// nonce.
func (s *Signer) SignAuth(timestamp, nonce int64) (string, error) {
	structHash := ethcrypto.Keccak256(clobAuthTypeHash,
		common.LeftPadBytes(s.address.Bytes(), 32),
		ethcrypto.Keccak256([]byte(fmt.Sprint(timestamp))),
		uint256(big.NewInt(nonce)),
		ethcrypto.Keccak256([]byte(AuthAttestation)),
	)
	return s.sign(s.authSep, structHash)
}

// SignOrder returns the hex signature of o under the exchange domain.
func (s *Signer) SignOrder(o Order) (string, error) {
	structHash, err := o.hash()
	if err != nil {
		return "", err
	}
	return s.sign(s.orderSep, structHash)
}

func (s *Signer) sign(domainSep, structHash []byte) (string, error) {
	digest := ethcrypto.Keccak256([]byte{0x19, 0x01}, domainSep, structHash)
	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("crypto: %w: %v", domain.ErrSigningFailed, err)
	}
	// Wallets expect v in {27, 28}.
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

func (o Order) hash() ([]byte, error) {
	ints := make([][]byte, 0, 7)
	for _, f := range []struct{ name, v string }{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	} {
		n, ok := new(big.Int).SetString(f.v, 10)
		if !ok {
			return nil, fmt.Errorf("crypto: %w: %s=%q", domain.ErrInvalidOrder, f.name, f.v)
		}
		ints = append(ints, uint256(n))
	}
	addr := func(h string) []byte { return common.LeftPadBytes(common.HexToAddress(h).Bytes(), 32) }

	return ethcrypto.Keccak256(orderTypeHash,
		ints[0],
		addr(o.Maker),
		addr(o.Signer),
		addr(o.Taker),
		ints[1], ints[2], ints[3], ints[4], ints[5], ints[6],
		uint256(big.NewInt(int64(o.Side))),
		uint256(big.NewInt(int64(o.SignatureType))),
	), nil
}

// uint256 left-pads n to a 32-byte ABI word.
func uint256(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}
