// Package wallettest provides an in-memory fake mint for exercising the
// Mint Client adapter and the Pay/Scan engines without a real Cashu mint,
// grounded on mint/server.go's mux-routed HTTP surface.
package wallettest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/gorilla/mux"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/cashu/nuts/nut01"
	"github.com/silentcashu/swallet/cashu/nuts/nut02"
	"github.com/silentcashu/swallet/cashu/nuts/nut03"
	"github.com/silentcashu/swallet/cashu/nuts/nut06"
	"github.com/silentcashu/swallet/cashu/nuts/nut07"
	"github.com/silentcashu/swallet/cashu/nuts/nut09"
	"github.com/silentcashu/swallet/crypto"
)

const maxOrder = 17 // denominations 1..65536, plenty for test amounts

// keypair is one denomination's signing key, mirroring the teacher's
// crypto.KeyPair shape for the mint side.
type keypair struct {
	amount uint64
	priv   *secp256k1.PrivateKey
}

// issuedOutput records a blinded message the fake mint has signed, so a
// later restore() call for the same B_ can replay the identical signature
// — this is what lets a scanner's independently-rederived candidate match.
type issuedOutput struct {
	amount uint64
	sig    cashu.BlindedSignature
}

// FakeMint is a single-keyset, in-memory stand-in for a Cashu mint, serving
// the subset of NUT endpoints the wallet's Mint Client adapter calls.
type FakeMint struct {
	Server *httptest.Server

	mu           sync.Mutex
	keyPairs     map[uint64]keypair
	keysetId     string
	issued       map[string]issuedOutput // B_ hex -> issued
	issuedYHex   map[string]string       // Y hex -> secret, for checkstate
	spentYHex    map[string]bool
	spentSecrets []string
}

// NewFakeMint generates a fresh signing keyset and wires up the router.
func NewFakeMint() *FakeMint {
	fm := &FakeMint{
		keyPairs:   make(map[uint64]keypair, maxOrder),
		issued:     make(map[string]issuedOutput),
		issuedYHex: make(map[string]string),
		spentYHex:  make(map[string]bool),
	}

	pubkeys := make(map[uint64]*secp256k1.PublicKey, maxOrder)
	for i := 0; i < maxOrder; i++ {
		amount := uint64(math.Pow(2, float64(i)))
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			panic(err)
		}
		fm.keyPairs[amount] = keypair{amount: amount, priv: priv}
		pubkeys[amount] = priv.PubKey()
	}
	fm.keysetId = crypto.DeriveKeysetId(pubkeys)

	r := mux.NewRouter()
	r.HandleFunc("/v1/info", fm.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/v1/keys", fm.handleKeys).Methods(http.MethodGet)
	r.HandleFunc("/v1/keys/{id}", fm.handleKeysById).Methods(http.MethodGet)
	r.HandleFunc("/v1/keysets", fm.handleKeysets).Methods(http.MethodGet)
	r.HandleFunc("/v1/swap", fm.handleSwap).Methods(http.MethodPost)
	r.HandleFunc("/v1/restore", fm.handleRestore).Methods(http.MethodPost)
	r.HandleFunc("/v1/checkstate", fm.handleCheckState).Methods(http.MethodPost)
	r.HandleFunc("/v1/spent-secrets", fm.handleSpentSecrets).Methods(http.MethodGet)

	fm.Server = httptest.NewServer(r)
	return fm
}

// URL returns the fake mint's base URL, to pass as a wallet's mintURL.
func (fm *FakeMint) URL() string {
	return fm.Server.URL
}

// KeysetId returns the fake mint's only keyset id.
func (fm *FakeMint) KeysetId() string {
	return fm.keysetId
}

// Faucet self-issues proofs for amount without requiring any inputs — a
// test-only shortcut standing in for a funded mint-quote flow, which is out
// of scope for the core this fake serves.
func (fm *FakeMint) Faucet(amount uint64) (cashu.Proofs, error) {
	splits := cashu.AmountSplit(amount)
	proofs := make(cashu.Proofs, len(splits))

	for i, amt := range splits {
		secret, err := randomHex32()
		if err != nil {
			return nil, err
		}
		B_, r, err := crypto.BlindMessage([]byte(secret), nil)
		if err != nil {
			return nil, err
		}

		fm.mu.Lock()
		kp, ok := fm.keyPairs[amt]
		fm.mu.Unlock()
		if !ok {
			return nil, errUnknownDenomination(amt)
		}

		C_ := crypto.SignBlindedMessage(B_, kp.priv)
		C := crypto.UnblindSignature(C_, r, kp.priv.PubKey())

		proofs[i] = cashu.Proof{
			Amount: amt,
			Id:     fm.keysetId,
			Secret: secret,
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
	}

	return proofs, nil
}

func (fm *FakeMint) Close() {
	fm.Server.Close()
}

func (fm *FakeMint) publicKeys() map[uint64]string {
	keys := make(map[uint64]string, len(fm.keyPairs))
	for amount, kp := range fm.keyPairs {
		keys[amount] = hex.EncodeToString(kp.priv.PubKey().SerializeCompressed())
	}
	return keys
}

func (fm *FakeMint) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := nut06.MintInfo{Name: "fake-mint", Version: "swallet-test/0.0"}
	writeJSON(w, info)
}

func (fm *FakeMint) handleKeys(w http.ResponseWriter, r *http.Request) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	writeJSON(w, nut01.GetKeysResponse{Keysets: []nut01.Keyset{
		{Id: fm.keysetId, Unit: cashu.Sat.String(), Keys: fm.publicKeys()},
	}})
}

func (fm *FakeMint) handleKeysById(w http.ResponseWriter, r *http.Request) {
	fm.handleKeys(w, r)
}

func (fm *FakeMint) handleKeysets(w http.ResponseWriter, r *http.Request) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	writeJSON(w, nut02.GetKeysetsResponse{Keysets: []nut02.Keyset{
		{Id: fm.keysetId, Unit: cashu.Sat.String(), Active: true},
	}})
}

func (fm *FakeMint) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req nut03.PostSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err.Error())
		return
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	// Mark every consumed input's secret as spent.
	for _, p := range req.Inputs {
		Y, err := crypto.HashToCurve([]byte(p.Secret))
		if err != nil {
			writeError(w, err.Error())
			return
		}
		yHex := hex.EncodeToString(crypto.Compress(Y))
		fm.spentYHex[yHex] = true
		fm.spentSecrets = append(fm.spentSecrets, p.Secret)
	}

	sigs := make(cashu.BlindedSignatures, len(req.Outputs))
	for i, out := range req.Outputs {
		sig, err := fm.sign(out)
		if err != nil {
			writeError(w, err.Error())
			return
		}
		sigs[i] = sig
	}

	writeJSON(w, nut03.PostSwapResponse{Signatures: sigs})
}

// sign produces (and caches) the blind signature for a blinded message,
// replaying a cached result if this exact B_ was signed before — this is
// what makes restore() work for candidates the scanner rederives
// independently of the original swap call.
func (fm *FakeMint) sign(out cashu.BlindedMessage) (cashu.BlindedSignature, error) {
	if cached, ok := fm.issued[out.B_]; ok {
		return cached.sig, nil
	}

	kp, ok := fm.keyPairs[out.Amount]
	if !ok {
		return cashu.BlindedSignature{}, errUnknownDenomination(out.Amount)
	}

	B_bytes, err := hex.DecodeString(out.B_)
	if err != nil {
		return cashu.BlindedSignature{}, err
	}
	B_, err := secp256k1.ParsePubKey(B_bytes)
	if err != nil {
		return cashu.BlindedSignature{}, err
	}

	C_ := crypto.SignBlindedMessage(B_, kp.priv)
	sig := cashu.BlindedSignature{
		Amount: out.Amount,
		Id:     fm.keysetId,
		C_:     hex.EncodeToString(C_.SerializeCompressed()),
	}

	fm.issued[out.B_] = issuedOutput{amount: out.Amount, sig: sig}
	return sig, nil
}

func (fm *FakeMint) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req nut09.PostRestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err.Error())
		return
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	var outs cashu.BlindedMessages
	var sigs cashu.BlindedSignatures
	for _, out := range req.Outputs {
		issued, ok := fm.issued[out.B_]
		if !ok {
			continue
		}
		outs = append(outs, out)
		sigs = append(sigs, issued.sig)
	}

	writeJSON(w, nut09.PostRestoreResponse{Outputs: outs, Signatures: sigs})
}

func (fm *FakeMint) handleCheckState(w http.ResponseWriter, r *http.Request) {
	var req nut07.PostCheckStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err.Error())
		return
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	states := make([]nut07.ProofState, len(req.Ys))
	for i, y := range req.Ys {
		state := nut07.Unspent
		if fm.spentYHex[y] {
			state = nut07.Spent
		}
		states[i] = nut07.ProofState{Y: y, State: state}
	}

	writeJSON(w, nut07.PostCheckStateResponse{States: states})
}

func (fm *FakeMint) handleSpentSecrets(w http.ResponseWriter, r *http.Request) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	writeJSON(w, struct {
		Secrets []string `json:"secrets"`
	}{Secrets: append([]string{}, fm.spentSecrets...)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(cashu.Error{Detail: detail, Code: cashu.StandardErrCode})
}

type errUnknownDenomination uint64

func (e errUnknownDenomination) Error() string {
	return "fake mint: unknown denomination"
}

func randomHex32() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
