package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/signal-reset/internal/status"
	"github.com/sweeney/signal-reset/internal/web"
)

const clientTimeout = 10 * time.Second

// daemonURL turns a listen address into a URL a local client can reach.
func daemonURL(httpAddr string) (string, error) {
	if httpAddr == "" {
		return "", fmt.Errorf("http server disabled, set --http")
	}
	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return "", fmt.Errorf("http address %q: %w", httpAddr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

func newStatusCmd(opts *cliOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's schedule and reset state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			base, err := daemonURL(cfg.HTTP)
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: clientTimeout}
			resp, err := client.Get(base + "/index.json")
			if err != nil {
				return fmt.Errorf("query daemon: %w", err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("daemon returned %s", resp.Status)
			}

			out := cmd.OutOrStdout()
			if raw {
				fmt.Fprintln(out, string(body))
				return nil
			}

			var sj status.StatusJSON
			if err := json.Unmarshal(body, &sj); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			printStatus(out, sj.Status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "json", false, "Print the raw JSON status")
	return cmd
}

func printStatus(w io.Writer, s status.StatusInner) {
	next := "not armed"
	if s.Armed {
		next = s.NextReset
	}
	fmt.Fprintf(w, "Next reset:  %s\n", next)
	fmt.Fprintf(w, "Fire time:   %s %s\n", s.Config.FireTime, s.Config.Timezone)
	fmt.Fprintf(w, "Permission:  %v\n", s.Permission)
	if s.LastAttempt != nil {
		fmt.Fprintf(w, "Last try:    %s %s at %s\n", s.LastAttempt.Trigger, s.LastAttempt.Outcome, s.LastAttempt.Timestamp)
		if s.LastAttempt.Error != "" {
			fmt.Fprintf(w, "Error:       %s\n", s.LastAttempt.Error)
		}
	}
	if s.LastReset != nil {
		fmt.Fprintf(w, "Last reset:  %s\n", s.LastReset.Date)
	}
	signal := s.LastSignal
	if signal == "" {
		signal = "none"
	}
	fmt.Fprintf(w, "Last signal: %s\n", signal)
	fmt.Fprintf(w, "MQTT:        connected=%v %s\n", s.MQTT.Connected, s.MQTT.Broker)
}

func newScheduleCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Ask the running daemon to re-arm the next reset now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			base, err := daemonURL(cfg.HTTP)
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: clientTimeout}
			resp, err := client.Post(base+"/schedule", "application/json", nil)
			if err != nil {
				return fmt.Errorf("contact daemon: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				var er web.ErrorResponse
				if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
					return fmt.Errorf("daemon returned %s", resp.Status)
				}
				return fmt.Errorf("schedule failed (%s): %s", er.Outcome, er.Error)
			}

			var sr web.ScheduleResponse
			if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "next reset armed for %s\n", sr.Schedule.Target)
			return nil
		},
	}
}
