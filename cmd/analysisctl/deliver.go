package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"portal_analysis_backend/internal/analysis/webhook"
)

type deliverOptions struct {
	url     string
	secret  string
	file    string
	taskID  string
	timeout time.Duration
}

func newDeliverCmd() *cobra.Command {
	opts := &deliverOptions{}
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Sign a payload and POST it to the webhook endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readPayload(cmd.InOrStdin(), opts.file)
			if err != nil {
				return err
			}
			return deliver(cmd.Context(), cmd.OutOrStdout(), http.DefaultClient, opts, body)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:8080/api/v1/webhooks/analysis", "webhook endpoint")
	cmd.Flags().StringVar(&opts.secret, "secret", os.Getenv("ANALYSIS_WEBHOOK_SECRET"), "shared webhook secret")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "payload file, - for stdin")
	cmd.Flags().StringVar(&opts.taskID, "task-id", "", "Task-Id header for correlation")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func deliver(ctx context.Context, out io.Writer, client *http.Client, opts *deliverOptions, body []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	ts := nowMillis()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Timestamp", ts)
	req.Header.Set("Signature", webhook.Sign(opts.secret, ts, body))
	if opts.taskID != "" {
		req.Header.Set("Task-Id", opts.taskID)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	fmt.Fprintf(out, "%s\n%s\n", resp.Status, respBody)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("delivery rejected with status %d", resp.StatusCode)
	}
	return nil
}
