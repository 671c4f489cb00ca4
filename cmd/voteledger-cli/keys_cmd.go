package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"voteledger/cmd/internal/passphrase"
	"voteledger/crypto"
)

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate-key", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out string
	fs.StringVar(&out, "out", "", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		fmt.Fprintln(stderr, "Error: --out is required")
		return 1
	}
	pass, err := passphrase.ForCreate(keystorePassEnv, out).Get()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error generating key: %v\n", err)
		return 1
	}
	signer, err := crypto.WriteKeystore(out, key, pass)
	if err != nil {
		fmt.Fprintf(stderr, "Error writing keystore: %v\n", err)
		return 1
	}
	addr := signer.Address()
	fmt.Fprintf(stdout, "Account: %s\nHex:     %s\nKeystore: %s\n", addr.String(), addr.Hex(), out)
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyPath string
	fs.StringVar(&keyPath, "key", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	signer, code := openSigner(keyPath, stderr)
	if signer == nil {
		return code
	}
	addr := signer.Address()
	fmt.Fprintf(stdout, "Account: %s\nHex:     %s\n", addr.String(), addr.Hex())
	return 0
}

// openSigner unlocks the delegator keystore named by --key.
func openSigner(path string, stderr io.Writer) (*crypto.Signer, int) {
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(stderr, "Error: --key is required")
		return nil, 1
	}
	pass, err := passphrase.ForUnlock(keystorePassEnv, path).Get()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	signer, err := crypto.OpenKeystore(path, pass)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading keystore: %v\n", err)
		return nil, 1
	}
	return signer, 0
}
