package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bankledger-cli",
		Short: "BankLedger CLI tool",
		Long:  `A command line interface for interacting with the BankLedger API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the BankLedger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(accountCmd(), transactionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var initialBalance string
	createCmd := &cobra.Command{
		Use:   "create <account-id>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/accounts/", map[string]string{
				"account_id":      args[0],
				"initial_balance": initialBalance,
			})
		},
	}
	createCmd.Flags().StringVar(&initialBalance, "balance", "0", "Initial balance")

	getCmd := &cobra.Command{
		Use:   "get <account-id>",
		Short: "Get an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/accounts/" + args[0])
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history <account-id>",
		Short: "List transactions for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/accounts/" + args[0] + "/transactions")
		},
	}

	cmd.AddCommand(createCmd, getCmd, historyCmd)

	return cmd
}

func transactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transaction",
		Short: "Transaction operations",
	}

	var amount string
	sendCmd := &cobra.Command{
		Use:   "send <source-account> <destination-account>",
		Short: "Submit a transfer between two accounts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/transactions/", map[string]string{
				"source_account_id":      args[0],
				"destination_account_id": args[1],
				"amount":                 amount,
			})
		},
	}
	sendCmd.Flags().StringVar(&amount, "amount", "", "Amount to transfer")

	getCmd := &cobra.Command{
		Use:   "get <transaction-id>",
		Short: "Get a transaction record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/transactions/" + args[0])
		},
	}

	cmd.AddCommand(sendCmd, getCmd)

	return cmd
}

func postJSON(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func getJSON(path string) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		fmt.Println(string(raw))
	} else {
		printJSON(decoded)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("failed to render response: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
