package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/cashu/nuts/nut03"
	"github.com/silentcashu/swallet/cashu/nuts/nut07"
	"github.com/silentcashu/swallet/cashu/nuts/nut09"
	"github.com/silentcashu/swallet/cashu/nuts/nut12"
	"github.com/silentcashu/swallet/crypto"
)

// ScanResult summarises one pass of the Scan Engine.
type ScanResult struct {
	Restored cashu.Proofs
	// SkippedRotatedKeysets lists keyset ids the scanner could not probe
	// because they no longer match the mint's currently active keyset:
	// candidates are enumerated against the active keyset only.
	SkippedRotatedKeysets []string
}

// Scan probes the mint's spent-secret list for silent outputs addressed to
// this wallet, restores and claim-swaps any it finds, and stores the
// result. Repeated scans over the same list are safe: already-claimed
// candidates restore proofs already SPENT, which are filtered out.
func (w *Wallet) Scan() (*ScanResult, error) {
	secrets, err := FetchSpentSecrets(w.mintURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMintUnavailable, err)
	}

	keyset, err := w.activeSatKeyset()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMintUnavailable, err)
	}

	result := &ScanResult{}
	for id := range w.inactiveKeysets {
		result.SkippedRotatedKeysets = append(result.SkippedRotatedKeysets, id)
	}

	for _, c := range secrets {
		if len(c) != 66 {
			continue
		}
		ephemeralBytes, err := hex.DecodeString(c)
		if err != nil {
			continue
		}
		ephemeralPub, err := crypto.Decompress(ephemeralBytes)
		if err != nil {
			continue
		}

		restored, err := w.scanCandidate(ephemeralPub, keyset)
		if err != nil {
			return nil, fmt.Errorf("scanning candidate %s: %w", c, err)
		}
		result.Restored = append(result.Restored, restored...)
	}

	if len(result.Restored) > 0 {
		claimed, err := w.claimRestored(result.Restored, keyset)
		if err != nil {
			return nil, fmt.Errorf("claiming restored proofs: %w", err)
		}
		if err := w.db.AddProofs(claimed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
		result.Restored = claimed
	}

	return result, nil
}

// scanCandidate enumerates up to MaxSilentOutputs candidate OutputData for
// one ephemeral pubkey, asks the mint to restore any it recognises, and
// filters to those still UNSPENT.
func (w *Wallet) scanCandidate(ephemeralPub *secp256k1.PublicKey, keyset *crypto.WalletKeyset) (cashu.Proofs, error) {
	sharedSecret := w.keys.ECDHWithScan(ephemeralPub)

	candidates := make([]crypto.OutputData, crypto.MaxSilentOutputs)
	outputs := make(cashu.BlindedMessages, crypto.MaxSilentOutputs)
	for k := 0; k < crypto.MaxSilentOutputs; k++ {
		od, err := crypto.CreateSilentOutput(0, keyset.Id, sharedSecret, w.keys.SpendPub(), uint8(k))
		if err != nil {
			return nil, err
		}
		candidates[k] = od
		outputs[k] = cashu.NewBlindedMessage(keyset.Id, 0, od.BlindedMessagePoint)
	}

	restoreResp, err := PostRestore(w.mintURL, nut09.PostRestoreRequest{Outputs: outputs})
	if err != nil {
		return nil, err
	}
	if len(restoreResp.Outputs) == 0 {
		return nil, nil
	}

	byBlinded := make(map[string]crypto.OutputData, len(candidates))
	for _, od := range candidates {
		byBlinded[hex.EncodeToString(crypto.Compress(od.BlindedMessagePoint))] = od
	}

	proofs := make(cashu.Proofs, 0, len(restoreResp.Outputs))
	for i, out := range restoreResp.Outputs {
		od, ok := byBlinded[out.B_]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRestoreMismatch, out.B_)
		}
		sig := restoreResp.Signatures[i]

		C_bytes, err := hex.DecodeString(sig.C_)
		if err != nil {
			continue
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			continue
		}
		K, ok := keyset.PublicKeys[sig.Amount]
		if !ok {
			continue
		}
		C := crypto.UnblindSignature(C_, od.BlindingFactor, K)

		proof := cashu.Proof{
			Amount: sig.Amount,
			Id:     sig.Id,
			Secret: od.SecretHex(),
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
		if sig.DLEQ != nil && !nut12.VerifyBlindSignatureDLEQ(*sig.DLEQ, K, out.B_, sig.C_) {
			w.logger.Warn("restored proof failed DLEQ verification, skipping", "secret", proof.Secret)
			continue
		}
		proofs = append(proofs, proof)
	}

	return w.filterUnspent(proofs)
}

// filterUnspent keeps only proofs the mint still reports UNSPENT.
func (w *Wallet) filterUnspent(proofs cashu.Proofs) (cashu.Proofs, error) {
	if len(proofs) == 0 {
		return nil, nil
	}

	ys := make([]string, len(proofs))
	yToProof := make(map[string]cashu.Proof, len(proofs))
	for i, p := range proofs {
		Y, err := crypto.HashToCurve([]byte(p.Secret))
		if err != nil {
			return nil, err
		}
		yHex := hex.EncodeToString(crypto.Compress(Y))
		ys[i] = yHex
		yToProof[yHex] = p
	}

	stateResp, err := PostCheckProofState(w.mintURL, nut07.PostCheckStateRequest{Ys: ys})
	if err != nil {
		return nil, err
	}

	unspent := make(cashu.Proofs, 0, len(proofs))
	for _, s := range stateResp.States {
		if s.State != nut07.Unspent {
			continue
		}
		if p, ok := yToProof[s.Y]; ok {
			unspent = append(unspent, p)
		}
	}
	return unspent, nil
}

// claimRestored swaps restored proofs to fresh NUT-13-deterministic
// outputs so their secrets no longer deterministically link back to the
// sender once spent again.
func (w *Wallet) claimRestored(restored cashu.Proofs, keyset *crypto.WalletKeyset) (cashu.Proofs, error) {
	var total uint64
	for _, p := range restored {
		total += p.Amount
	}

	outputs, secrets, rs, err := w.createBlindedMessages(total, keyset.Id)
	if err != nil {
		return nil, err
	}

	resp, err := PostSwap(w.mintURL, nut03.PostSwapRequest{
		Inputs:  restored,
		Outputs: outputs,
	})
	if err != nil {
		return nil, err
	}

	return constructProofs(resp.Signatures, secrets, rs, *keyset)
}
