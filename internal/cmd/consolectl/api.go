package consolectl

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"github.com/spf13/cobra"
)

// splitTarget separates an inline query string from a backend path.
func splitTarget(target string) (string, url.Values, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", nil, fmt.Errorf("path is required")
	}
	p, rawQuery, _ := strings.Cut(target, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, fmt.Errorf("parse query: %w", err)
	}
	return "/" + strings.TrimLeft(p, "/"), query, nil
}

func (c *cli) getCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Call a backend GET endpoint and print the result",
		Example: "  consolectl get admin/merchants?status=pending\n" +
			"  consolectl get admin/merchants/1 -o yaml",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := NewFormatter(format, c.opts.Out)
			if err != nil {
				return err
			}
			p, query, err := splitTarget(args[0])
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				resp, err := a.client.Do(ctx, apiclient.Request{Path: p, Query: query})
				if err != nil {
					return a.apiFailure(err)
				}
				defer resp.Close()
				if resp.Stream != nil {
					_, err := io.Copy(a.out, resp.Stream)
					return err
				}
				if len(resp.Payload) == 0 {
					return nil
				}
				return formatter.Format(resp.Payload)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", FormatText, "output format: text, json or yaml")
	return cmd
}

func (c *cli) downloadCommand() *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:     "download <path>",
		Short:   "Save a backend file export to disk",
		Example: "  consolectl download admin/orders/export -o orders.csv",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, query, err := splitTarget(args[0])
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				resp, err := a.client.Do(ctx, apiclient.Request{Path: p, Query: query})
				if err != nil {
					return a.apiFailure(err)
				}
				defer resp.Close()

				target := dest
				if target == "" {
					target = resp.Filename
				}
				if target == "" {
					target = path.Base(p)
				}
				written, err := saveResponse(target, resp)
				if err != nil {
					return err
				}
				a.success("Saved %s (%d bytes)", target, written)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dest, "output", "o", "", "destination file (default: the server supplied name)")
	return cmd
}

func saveResponse(target string, resp *apiclient.Response) (int64, error) {
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	file, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", target, err)
	}
	var written int64
	if resp.Stream != nil {
		written, err = io.Copy(file, resp.Stream)
	} else {
		var n int
		n, err = file.Write(resp.Payload)
		written = int64(n)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return written, fmt.Errorf("write %s: %w", target, err)
	}
	return written, nil
}
