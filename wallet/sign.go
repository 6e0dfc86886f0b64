package wallet

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Pre-computed EIP-712 type hashes, mirroring the USDC TransferWithAuthorization
// scheme this appliance's counterparties (facilitators) verify against.
var (
	domainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId)",
	))
	authTypeHash = crypto.Keccak256Hash([]byte(
		"TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)",
	))
)

// validBeforeMax is 2^64-1, the fixed expiry this appliance always signs.
var validBeforeMax = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))

func chainIDFor(network string) int64 {
	switch network {
	case "base":
		return 8453
	case "base-sepolia":
		return 84532
	default:
		return 8453
	}
}

func pad32(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

func addrPad(a common.Address) []byte {
	padded := make([]byte, 32)
	copy(padded[12:], a.Bytes())
	return padded
}

// domainSeparator hashes the EIP-712 domain: { name:"USD Coin", version:"2", chainId }.
func domainSeparator(chainID *big.Int) common.Hash {
	enc := make([]byte, 4*32)
	copy(enc[0:32], domainTypeHash.Bytes())
	copy(enc[32:64], crypto.Keccak256([]byte("USD Coin")))
	copy(enc[64:96], crypto.Keccak256([]byte("2")))
	copy(enc[96:128], pad32(chainID))
	return crypto.Keccak256Hash(enc)
}

// authHash hashes the TransferWithAuthorization struct fields.
func authHash(from, to common.Address, value, validAfter, validBefore *big.Int, nonce [32]byte) common.Hash {
	enc := make([]byte, 7*32)
	copy(enc[0:32], authTypeHash.Bytes())
	copy(enc[32:64], addrPad(from))
	copy(enc[64:96], addrPad(to))
	copy(enc[96:128], pad32(value))
	copy(enc[128:160], pad32(validAfter))
	copy(enc[160:192], pad32(validBefore))
	copy(enc[192:224], nonce[:])
	return crypto.Keccak256Hash(enc)
}

func eip712Digest(chainID *big.Int, from, to common.Address, value *big.Int, nonce [32]byte) common.Hash {
	ds := domainSeparator(chainID)
	ah := authHash(from, to, value, big.NewInt(0), validBeforeMax, nonce)
	return crypto.Keccak256Hash(append([]byte{0x19, 0x01}, append(ds.Bytes(), ah.Bytes()...)...))
}

// SignX402Payment builds and signs an EIP-3009 TransferWithAuthorization for
// amountCents (passed through unchanged as the minor-unit `value`, per the
// appliance's documented unit ambiguity — see DESIGN.md) payable to
// recipient on network, and returns "0x" + hex(r||s||v).
func (w *Wallet) SignX402Payment(amountCents int64, recipient, network string) (string, error) {
	if !common.IsHexAddress(recipient) {
		return "", ErrInvalidRecipient
	}
	to := common.HexToAddress(recipient)

	key, err := w.privateKey()
	if err != nil {
		return "", err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	var nonce [32]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	chainID := big.NewInt(chainIDFor(network))
	value := big.NewInt(amountCents)
	digest := eip712Digest(chainID, from, to, value, nonce)

	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return "", fmt.Errorf("sign authorization: %w", err)
	}
	// crypto.Sign returns v in {0,1}; EIP-712 signatures conventionally use
	// the Ethereum-style {27,28} encoding.
	sig[64] += 27

	return "0x" + common.Bytes2Hex(sig), nil
}
