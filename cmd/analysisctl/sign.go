package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"portal_analysis_backend/internal/analysis/webhook"
)

type signOptions struct {
	secret    string
	file      string
	timestamp string
}

func newSignCmd() *cobra.Command {
	opts := &signOptions{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the Signature and Timestamp headers for a payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readPayload(cmd.InOrStdin(), opts.file)
			if err != nil {
				return err
			}
			ts := opts.timestamp
			if ts == "" {
				ts = nowMillis()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Timestamp: %s\nSignature: %s\n", ts, webhook.Sign(opts.secret, ts, body))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.secret, "secret", os.Getenv("ANALYSIS_WEBHOOK_SECRET"), "shared webhook secret")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "payload file, - for stdin")
	cmd.Flags().StringVar(&opts.timestamp, "timestamp", "", "epoch milliseconds (default now)")
	return cmd
}

func readPayload(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func nowMillis() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}
