package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/cashu/nuts/nut03"
	"github.com/silentcashu/swallet/crypto"
)

// PayResult is what a successful Pay returns to the caller.
type PayResult struct {
	BobProofs   cashu.Proofs
	AliceChange cashu.Proofs
	SpentSecret string // hex(compress(e_pub)): the signal proof's secret
}

// Pay sends amount to addr using the two-phase silent-payment construction:
// a signal swap that publishes an ephemeral pubkey as a discovery beacon,
// followed by a silent swap that emits Bob's silently-addressed outputs and
// Alice's change.
func (w *Wallet) Pay(addrStr string, amount uint64) (*PayResult, error) {
	addr, err := ParseAddress(addrStr)
	if err != nil {
		return nil, err
	}
	if addr.MintURL != w.mintURL {
		return nil, ErrCrossMint
	}
	if w.db.GetBalance() < amount {
		return nil, ErrInsufficientFunds
	}

	keyset, err := w.activeSatKeyset()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMintUnavailable, err)
	}

	inputs, total := w.selectProofs(amount)

	// Step 1: signal proof. T = total, secret = hex(compress(e_pub)),
	// blinding factor fresh random per spec — not NUT-13 derived, since
	// the sender does not need to rediscover it deterministically.
	ePriv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	ePub := ePriv.PubKey()
	signalSecret := hex.EncodeToString(crypto.Compress(ePub))

	signalMsg, signalR, err := randomBlindedMessage(keyset.Id, total, []byte(signalSecret))
	if err != nil {
		return nil, err
	}

	signalResp, err := PostSwap(w.mintURL, nut03.PostSwapRequest{
		Inputs:  inputs,
		Outputs: cashu.BlindedMessages{signalMsg},
	})
	if err != nil {
		return nil, &PayError{Err: fmt.Errorf("%w: signal swap: %v", ErrMintUnavailable, err)}
	}
	if len(signalResp.Signatures) != 1 {
		return nil, &PayError{Err: fmt.Errorf("%w: signal swap returned %d signatures", ErrRestoreMismatch, len(signalResp.Signatures))}
	}

	signalProofs, err := constructProofs(signalResp.Signatures, []string{signalSecret}, []*secp256k1.PrivateKey{signalR}, *keyset)
	if err != nil {
		return nil, &PayError{Err: err}
	}
	signalProof := signalProofs[0]

	// Persist the signal proof defensively before attempting the silent
	// swap: if the process dies before that swap commits, the proof is
	// not lost — its secret is known, so it can be rediscovered and
	// re-swapped later instead of silently disappearing.
	if err := w.db.AddProofs(signalProofs); err != nil {
		return nil, &PayError{Err: fmt.Errorf("%w: %v", ErrStoreFailure, err)}
	}

	// Step 2: Bob's silently-addressed outputs plus Alice's change, paid
	// for by consuming the signal proof. A failure from here on leaves an
	// orphaned but safe special proof: its secret is known, so Alice can
	// later rediscover and re-swap it herself.
	sharedSecret := crypto.ECDH(ePriv, addr.ScanPub)

	bobAmounts := cashu.AmountSplit(amount)
	changeAmount := total - amount
	changeAmounts := cashu.AmountSplit(changeAmount)

	outputs := make(cashu.BlindedMessages, 0, len(bobAmounts)+len(changeAmounts))
	bobOutputs := make([]crypto.OutputData, 0, len(bobAmounts))
	for k, amt := range bobAmounts {
		od, err := crypto.CreateSilentOutput(amt, keyset.Id, sharedSecret, addr.SpendPub, uint8(k))
		if err != nil {
			return nil, &PayError{Err: err, SignalCommitted: true, OrphanedSecret: signalProof.Secret}
		}
		bobOutputs = append(bobOutputs, od)
		outputs = append(outputs, cashu.NewBlindedMessage(keyset.Id, amt, od.BlindedMessagePoint))
	}

	changeMsgs, changeSecrets, changeRs, err := w.createBlindedMessages(changeAmount, keyset.Id)
	if err != nil {
		return nil, &PayError{Err: err, SignalCommitted: true, OrphanedSecret: signalProof.Secret}
	}
	outputs = append(outputs, changeMsgs...)

	silentResp, err := PostSwap(w.mintURL, nut03.PostSwapRequest{
		Inputs:  cashu.Proofs{signalProof},
		Outputs: outputs,
	})
	if err != nil {
		return nil, &PayError{Err: fmt.Errorf("%w: silent swap: %v", ErrMintUnavailable, err), SignalCommitted: true, OrphanedSecret: signalProof.Secret}
	}
	if len(silentResp.Signatures) != len(outputs) {
		return nil, &PayError{Err: fmt.Errorf("%w: silent swap returned %d signatures for %d outputs", ErrRestoreMismatch, len(silentResp.Signatures), len(outputs)), SignalCommitted: true, OrphanedSecret: signalProof.Secret}
	}

	bobSigs := silentResp.Signatures[:len(bobAmounts)]
	changeSigs := silentResp.Signatures[len(bobAmounts):]

	bobSecrets := make([]string, len(bobOutputs))
	bobRs := make([]*secp256k1.PrivateKey, len(bobOutputs))
	for i, od := range bobOutputs {
		bobSecrets[i] = od.SecretHex()
		bobRs[i] = od.BlindingFactor
	}
	bobProofs, err := constructProofs(bobSigs, bobSecrets, bobRs, *keyset)
	if err != nil {
		return nil, &PayError{Err: err, SignalCommitted: true, OrphanedSecret: signalProof.Secret}
	}

	aliceChange, err := constructProofs(changeSigs, changeSecrets, changeRs, *keyset)
	if err != nil {
		return nil, &PayError{Err: err, SignalCommitted: true, OrphanedSecret: signalProof.Secret}
	}

	// Step 3: local commit. Only now, after the silent swap has
	// succeeded, may the originally selected inputs and the now-spent
	// signal proof be removed.
	secretsToRemove := make([]string, 0, len(inputs)+1)
	for _, p := range inputs {
		secretsToRemove = append(secretsToRemove, p.Secret)
	}
	secretsToRemove = append(secretsToRemove, signalProof.Secret)
	if err := w.db.RemoveProofs(secretsToRemove); err != nil {
		return nil, &PayError{Err: fmt.Errorf("%w: %v", ErrStoreFailure, err)}
	}
	if err := w.db.AddProofs(aliceChange); err != nil {
		return nil, &PayError{Err: fmt.Errorf("%w: %v", ErrStoreFailure, err)}
	}

	return &PayResult{
		BobProofs:   bobProofs,
		AliceChange: aliceChange,
		SpentSecret: signalProof.Secret,
	}, nil
}
