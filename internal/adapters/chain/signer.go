package chain

// signer.go - wallet keys and signatures.
//
//   SignMessage:   EIP-191 personal_sign, used for the login challenge.
//   SignTypedData: EIP-712 signTypedData_v4 over the order payload the
//                  marketplace formats for each bid.

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// KeySigner implements domain.Signer with an in-memory private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a hex private key, with or without 0x prefix.
func NewKeySigner(privateKeyHex string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the checksummed address of the key.
func (s *KeySigner) Address() string {
	return s.address.Hex()
}

// SignMessage signs msg with the EIP-191 "Ethereum Signed Message" prefix.
func (s *KeySigner) SignMessage(msg []byte) (string, error) {
	return s.sign(accounts.TextHash(msg))
}

// typedPayload is the signData object returned by the marketplace.
type typedPayload struct {
	Domain apitypes.TypedDataDomain `json:"domain"`
	Types  apitypes.Types           `json:"types"`
	Value  map[string]any           `json:"value"`
}

// SignTypedData signs an EIP-712 payload {"domain", "types", "value"}.
func (s *KeySigner) SignTypedData(payload []byte) (string, error) {
	typed, err := parseTypedPayload(payload)
	if err != nil {
		return "", err
	}
	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return "", fmt.Errorf("chain: hash typed data: %w", err)
	}
	return s.sign(hash)
}

func (s *KeySigner) sign(hash []byte) (string, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", fmt.Errorf("chain: sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// parseTypedPayload builds apitypes.TypedData from the marketplace payload.
// Numbers are kept as decimal strings so uint256 values (nonces, amounts)
// survive without float rounding, and the EIP712Domain type is derived from
// the domain fields present, the way ethers does it.
func parseTypedPayload(payload []byte) (apitypes.TypedData, error) {
	var p typedPayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return apitypes.TypedData{}, fmt.Errorf("chain: decode typed payload: %w", err)
	}

	if p.Value == nil {
		return apitypes.TypedData{}, fmt.Errorf("chain: typed payload has no value")
	}

	primary, err := primaryType(p.Types)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	types := make(apitypes.Types, len(p.Types)+1)
	for k, v := range p.Types {
		types[k] = v
	}
	types["EIP712Domain"] = domainType(p.Domain)

	message, err := normalizeValue(p.Value)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: primary,
		Domain:      p.Domain,
		Message:     message.(map[string]any),
	}, nil
}

// primaryType finds the struct type no other type references.
func primaryType(types apitypes.Types) (string, error) {
	referenced := make(map[string]bool)
	for name, fields := range types {
		if name == "EIP712Domain" {
			continue
		}
		for _, f := range fields {
			referenced[strings.TrimSuffix(f.Type, "[]")] = true
		}
	}
	var candidates []string
	for name := range types {
		if name != "EIP712Domain" && !referenced[name] {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) != 1 {
		return "", fmt.Errorf("chain: ambiguous primary type %v", candidates)
	}
	return candidates[0], nil
}

func domainType(d apitypes.TypedDataDomain) []apitypes.Type {
	var fields []apitypes.Type
	if d.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if d.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if d.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if d.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if d.Salt != "" {
		fields = append(fields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	return fields
}

// normalizeValue rewrites numbers as decimal strings. Serialized ethers
// BigNumbers ({"type":"BigNumber","hex":"0x.."} or {"_hex":"0x.."}) collapse
// to their decimal value. JSON null stays nil.
func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return t.String(), nil
	case map[string]any:
		if hex, ok := bigNumberHex(t); ok {
			// ethers pads to whole bytes ("0x01"), which hexutil rejects.
			n, ok := new(big.Int).SetString(strings.TrimPrefix(strings.TrimPrefix(hex, "0x"), "0X"), 16)
			if !ok {
				return nil, fmt.Errorf("chain: invalid big number %q", hex)
			}
			return n.String(), nil
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalizeValue(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalizeValue(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return v, nil
}

func bigNumberHex(m map[string]any) (string, bool) {
	for _, key := range []string{"hex", "_hex"} {
		hex, ok := m[key].(string)
		if !ok {
			continue
		}
		if typ, hasType := m["type"]; hasType && typ != "BigNumber" {
			return "", false
		}
		if len(m) > 2 {
			return "", false
		}
		return hex, true
	}
	return "", false
}
