package host

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/hdevalence/ed25519consensus"
	"golang.org/x/crypto/sha3"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
)

func init() {
	register(types.ModuleCrypto, map[string]hostFn{
		"compute_hash_sha256": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := h.objects.Bytes(c.arg(0))
			if err != nil {
				return 0, err
			}
			if err := h.budget.Charge(budget.ComputeSha256, uint64(len(b))); err != nil {
				return 0, err
			}
			sum := sha256.Sum256(b)
			return h.objects.AddBytes(sum[:])
		},
		"compute_hash_keccak256": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := h.objects.Bytes(c.arg(0))
			if err != nil {
				return 0, err
			}
			if err := h.budget.Charge(budget.ComputeKeccak256, uint64(len(b))); err != nil {
				return 0, err
			}
			k := sha3.NewLegacyKeccak256()
			k.Write(b)
			return h.objects.AddBytes(k.Sum(nil))
		},
		"verify_sig_ed25519":          verifySigEd25519,
		"recover_key_ecdsa_secp256k1": recoverKeySecp256k1,
		"verify_sig_ecdsa_secp256r1":  verifySigSecp256r1,
	})
}

func cryptoInput(format string, args ...any) error {
	return types.Errorf(types.ErrCrypto, types.CodeInvalidInput, format, args...)
}

func badSignature(format string, args ...any) error {
	return types.Errorf(types.ErrCrypto, types.CodeSignatureInvalid, format, args...)
}

// sizedBytes reads a Bytes object of exactly n bytes.
func sizedBytes(h *Host, v types.Val, n int, what string) ([]byte, error) {
	b, err := h.objects.Bytes(v)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, cryptoInput("%s must be %d bytes, got %d", what, n, len(b))
	}
	return b, nil
}

// verifySigEd25519 takes (public key, message, signature) and traps unless
// the signature verifies under the consensus rules of ZIP-215.
func verifySigEd25519(h *Host, c *hostCall) (types.Val, error) {
	pk, err := sizedBytes(h, c.arg(0), 32, "ed25519 public key")
	if err != nil {
		return 0, err
	}
	msg, err := h.objects.Bytes(c.arg(1))
	if err != nil {
		return 0, err
	}
	sig, err := sizedBytes(h, c.arg(2), 64, "ed25519 signature")
	if err != nil {
		return 0, err
	}
	if err := h.budget.Charge(budget.VerifyEd25519, uint64(len(msg))); err != nil {
		return 0, err
	}
	if !ed25519consensus.Verify(pk, msg, sig) {
		return 0, badSignature("ed25519 signature does not verify")
	}
	return types.VoidVal, nil
}

// recoverKeySecp256k1 takes (digest, r||s signature, recovery id) and returns
// the 65-byte uncompressed public key. High-s signatures are rejected.
func recoverKeySecp256k1(h *Host, c *hostCall) (types.Val, error) {
	digest, err := sizedBytes(h, c.arg(0), 32, "digest")
	if err != nil {
		return 0, err
	}
	sig, err := sizedBytes(h, c.arg(1), 64, "secp256k1 signature")
	if err != nil {
		return 0, err
	}
	recID, err := u32Arg(c.arg(2))
	if err != nil {
		return 0, err
	}
	if recID > 3 {
		return 0, cryptoInput("recovery id %d", recID)
	}
	if err := h.budget.Charge(budget.RecoverSecp256k1, 1); err != nil {
		return 0, err
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sig[32:]); overflow || s.IsOverHalfOrder() {
		return 0, cryptoInput("secp256k1 signature s is not normalized")
	}
	compact := make([]byte, 0, 65)
	compact = append(compact, 27+byte(recID))
	compact = append(compact, sig...)
	pub, _, err := secpecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return 0, types.WrapError(types.ErrCrypto, types.CodeInvalidInput, err, "secp256k1 key recovery")
	}
	return h.objects.AddBytes(pub.SerializeUncompressed())
}

var p256HalfOrder = new(big.Int).Rsh(elliptic.P256().Params().N, 1)

// verifySigSecp256r1 takes (SEC-1 uncompressed public key, digest, r||s
// signature) and traps unless the low-s signature verifies.
func verifySigSecp256r1(h *Host, c *hostCall) (types.Val, error) {
	pk, err := sizedBytes(h, c.arg(0), 65, "secp256r1 public key")
	if err != nil {
		return 0, err
	}
	digest, err := sizedBytes(h, c.arg(1), 32, "digest")
	if err != nil {
		return 0, err
	}
	sig, err := sizedBytes(h, c.arg(2), 64, "secp256r1 signature")
	if err != nil {
		return 0, err
	}
	if err := h.budget.Charge(budget.VerifySecp256r1, 1); err != nil {
		return 0, err
	}
	if _, err := ecdh.P256().NewPublicKey(pk); err != nil {
		return 0, types.WrapError(types.ErrCrypto, types.CodeInvalidPoint, err, "secp256r1 public key")
	}
	x, y := elliptic.Unmarshal(elliptic.P256(), pk) //nolint:staticcheck // point validated above
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if s.Cmp(p256HalfOrder) > 0 {
		return 0, cryptoInput("secp256r1 signature s is not normalized")
	}
	if !ecdsa.Verify(&ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, digest, r, s) {
		return 0, badSignature("secp256r1 signature does not verify")
	}
	return types.VoidVal, nil
}
