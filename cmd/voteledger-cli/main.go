package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	keystorePassEnv = "VOTELEDGER_KEYSTORE_PASS"
	rpcTokenEnv     = "VOTELEDGER_RPC_TOKEN"
)

var rpcEndpoint = defaultRPCEndpoint()

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "generate-key":
		return runGenerateKey(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "sign-delegation":
		return runSignDelegation(args[1:], stdout, stderr)
	case "submit-delegation":
		return runSubmitDelegation(args[1:], stdout, stderr)
	case "votes":
		return runVotes(args[1:], stdout, stderr)
	case "past-votes":
		return runPastVotes(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: voteledger-cli [--rpc URL] <command> [flags]

Commands:
  generate-key      --out FILE                       create an encrypted keystore
  address           --key FILE                       print the account of a keystore
  sign-delegation   --key FILE --delegatee ACCOUNT   sign an EIP-712 delegation
                    [--nonce N] [--expiry UNIX|--ttl DURATION]
                    [--name NAME --chain-id ID --contract ADDRESS]
  submit-delegation [--file FILE]                    submit a signed delegation (stdin by default)
  votes             --account ACCOUNT                current voting power
  past-votes        --account ACCOUNT --block N      voting power at a sealed block

Environment:
  RPC_URL                   JSON-RPC endpoint (default http://127.0.0.1:8545)
  VOTELEDGER_KEYSTORE_PASS  keystore passphrase; prompted when unset`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://127.0.0.1:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}
