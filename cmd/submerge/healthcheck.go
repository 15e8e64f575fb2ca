package main

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/submerge/internal/config"
)

// NewHealthcheckCmd creates the healthcheck command, meant for container
// HEALTHCHECK lines where no curl is available.
func NewHealthcheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check /healthz of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			u, err := deriveHealthzURL(listen)
			if err != nil {
				return err
			}
			if err := runHealthcheck(u, timeout); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringP("listen", "l", config.DefaultListen, "server listen address or base URL")
	cmd.Flags().Duration("timeout", 3*time.Second, "request timeout")
	return cmd
}

// deriveHealthzURL turns a listen address into a dialable /healthz URL.
// Wildcard hosts become 127.0.0.1; a bare port is accepted.
func deriveHealthzURL(listen string) (string, error) {
	s := strings.TrimSpace(listen)
	if s == "" {
		s = config.DefaultListen
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid listen address %q", listen)
		}
		u.Path = "/healthz"
		u.RawQuery = ""
		u.Fragment = ""
		return u.String(), nil
	}
	if !strings.Contains(s, ":") {
		s = ":" + s
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("invalid listen port %q", port)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz", nil
}

func runHealthcheck(u string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(u)
	if err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck: unexpected status %d", resp.StatusCode)
	}
	return nil
}
