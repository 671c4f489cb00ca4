package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

func runVotes(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("votes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var account string
	fs.StringVar(&account, "account", "", "account to query")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(account) == "" {
		fmt.Fprintln(stderr, "Error: --account is required")
		return 1
	}
	return query("votes_getVotes", map[string]interface{}{"account": strings.TrimSpace(account)}, stdout, stderr)
}

func runPastVotes(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("past-votes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var account string
	var block uint64
	fs.StringVar(&account, "account", "", "account to query")
	fs.Uint64Var(&block, "block", 0, "sealed block number")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(account) == "" {
		fmt.Fprintln(stderr, "Error: --account is required")
		return 1
	}
	params := map[string]interface{}{"account": strings.TrimSpace(account), "block": block}
	return query("votes_getPastVotes", params, stdout, stderr)
}

func query(method string, params interface{}, stdout, stderr io.Writer) int {
	result, rpcErr, err := callRPC(method, params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}
