package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var client apiClient

	cmd := &cobra.Command{
		Use:           "enrollctl",
		Short:         "Admin utility for the enrolld API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&client.baseURL, "api", "http://localhost:8080", "Base URL of the enrolld API")
	cmd.PersistentFlags().StringVar(&client.actorID, "actor", "", "Admin user id sent as X-Actor-ID")
	_ = cmd.MarkPersistentFlagRequired("actor")

	cmd.AddCommand(newPreviewCommand(&client))
	cmd.AddCommand(newDeleteCommand(&client))
	cmd.AddCommand(newRestoreCommand(&client))
	cmd.AddCommand(newAuditCommand(&client))
	return cmd
}

func newPreviewCommand(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <users|events> <id>",
		Short: "Show what a deletion would remove, without removing anything",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/admin/%s/%s/preview", args[0], args[1])
			return client.do(cmd.Context(), http.MethodGet, path, nil, cmd.OutOrStdout())
		},
	}
}

func newDeleteCommand(client *apiClient) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "delete <users|events> <id>",
		Short: "Queue a cascading deletion for the given entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]string{"reason": reason})
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/v1/admin/%s/%s", args[0], args[1])
			return client.do(cmd.Context(), http.MethodDelete, path, body, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the audit log")
	return cmd
}

func newRestoreCommand(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <users|events> <id>",
		Short: "Restore a soft-deleted entity and its cascaded children",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/admin/%s/%s/restore", args[0], args[1])
			return client.do(cmd.Context(), http.MethodPost, path, nil, cmd.OutOrStdout())
		},
	}
}

func newAuditCommand(client *apiClient) *cobra.Command {
	var (
		admin  string
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if admin != "" {
				q.Set("admin", admin)
			}
			if action != "" {
				q.Set("action", action)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/v1/admin/audit"
			if enc := q.Encode(); enc != "" {
				path += "?" + enc
			}
			return client.do(cmd.Context(), http.MethodGet, path, nil, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&admin, "admin", "", "Filter by acting admin id")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action (delete or restore)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to return")
	return cmd
}

type apiClient struct {
	baseURL string
	actorID string
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Actor-ID", c.actorID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(raw))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		_, err = out.Write(raw)
		return err
	}
	pretty.WriteByte('\n')
	_, err = out.Write(pretty.Bytes())
	return err
}
