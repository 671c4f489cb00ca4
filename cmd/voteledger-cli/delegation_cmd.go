package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"voteledger/core/types"
	"voteledger/native/votes"
)

// signedDelegation is the file format exchanged between sign-delegation and
// submit-delegation.
type signedDelegation struct {
	Signer    string `json:"signer"`
	Delegatee string `json:"delegatee"`
	Nonce     uint64 `json:"nonce"`
	Expiry    string `json:"expiry"`
	Signature string `json:"signature"`
}

type domainResult struct {
	Name              string `json:"name"`
	ChainID           uint64 `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

var now = time.Now

func runSignDelegation(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sign-delegation", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		keyPath, delegateeRaw, name, contract string
		nonce                                 int64
		expiry                                uint64
		ttl                                   time.Duration
		chainID                               uint64
	)
	fs.StringVar(&keyPath, "key", "", "keystore of the delegator")
	fs.StringVar(&delegateeRaw, "delegatee", "", "account receiving the voting power")
	fs.Int64Var(&nonce, "nonce", -1, "delegation nonce (fetched over RPC when negative)")
	fs.Uint64Var(&expiry, "expiry", 0, "unix expiry of the signature")
	fs.DurationVar(&ttl, "ttl", time.Hour, "signature lifetime when --expiry is not set")
	fs.StringVar(&name, "name", "", "signing domain name (offline signing)")
	fs.Uint64Var(&chainID, "chain-id", 0, "signing domain chain id (offline signing)")
	fs.StringVar(&contract, "contract", "", "signing domain verifying contract (offline signing)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	delegatee, err := types.ParseAccountID(delegateeRaw)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --delegatee: %v\n", err)
		return 1
	}
	keystore, code := openSigner(keyPath, stderr)
	if keystore == nil {
		return code
	}
	signer := types.AccountID(keystore.Account)

	domain, err := resolveDomain(name, chainID, contract)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if nonce < 0 {
		fetched, err := fetchNonce(signer)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		nonce = int64(fetched)
	}
	if expiry == 0 {
		expiry = uint64(now().Add(ttl).Unix())
	}
	expiryValue := uint256.NewInt(expiry)

	digest, err := domain.DelegationDigest(delegatee, uint64(nonce), expiryValue)
	if err != nil {
		fmt.Fprintf(stderr, "Error hashing delegation: %v\n", err)
		return 1
	}
	sig, err := keystore.Key.Sign(digest)
	if err != nil {
		fmt.Fprintf(stderr, "Error signing: %v\n", err)
		return 1
	}
	out, err := json.MarshalIndent(signedDelegation{
		Signer:    signer.String(),
		Delegatee: delegatee.String(),
		Nonce:     uint64(nonce),
		Expiry:    expiryValue.Dec(),
		Signature: "0x" + hex.EncodeToString(sig),
	}, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func resolveDomain(name string, chainID uint64, contract string) (votes.Domain, error) {
	if strings.TrimSpace(name) != "" || strings.TrimSpace(contract) != "" || chainID != 0 {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(contract) == "" || chainID == 0 {
			return votes.Domain{}, fmt.Errorf("offline signing requires --name, --chain-id and --contract")
		}
		return buildDomain(domainResult{Name: name, ChainID: chainID, VerifyingContract: contract})
	}
	result, rpcErr, err := callRPC("votes_domain", nil, false)
	if err != nil {
		return votes.Domain{}, err
	}
	if rpcErr != nil {
		return votes.Domain{}, fmt.Errorf("votes_domain: %s", rpcErr.Message)
	}
	var decoded domainResult
	if err := json.Unmarshal(result, &decoded); err != nil {
		return votes.Domain{}, fmt.Errorf("decode domain: %w", err)
	}
	return buildDomain(decoded)
}

func buildDomain(d domainResult) (votes.Domain, error) {
	contract, err := types.ParseAccountID(d.VerifyingContract)
	if err != nil {
		return votes.Domain{}, fmt.Errorf("invalid verifying contract: %w", err)
	}
	return votes.Domain{Name: d.Name, ChainID: d.ChainID, VerifyingContract: contract}, nil
}

func fetchNonce(account types.AccountID) (uint64, error) {
	result, rpcErr, err := callRPC("votes_nonces", map[string]string{"account": account.String()}, false)
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, fmt.Errorf("votes_nonces: %s", rpcErr.Message)
	}
	var decoded struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(result, &decoded); err != nil {
		return 0, fmt.Errorf("decode nonce: %w", err)
	}
	return decoded.Nonce, nil
}

func runSubmitDelegation(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit-delegation", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file string
	fs.StringVar(&file, "file", "", "signed delegation produced by sign-delegation (default stdin)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var raw []byte
	var err error
	if strings.TrimSpace(file) == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error reading delegation: %v\n", err)
		return 1
	}
	var signed signedDelegation
	if err := json.Unmarshal(raw, &signed); err != nil {
		fmt.Fprintf(stderr, "Error decoding delegation: %v\n", err)
		return 1
	}
	params := map[string]interface{}{
		"delegatee": signed.Delegatee,
		"nonce":     signed.Nonce,
		"expiry":    signed.Expiry,
		"signature": signed.Signature,
	}
	result, rpcErr, err := callRPC("votes_delegateBySig", params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}
