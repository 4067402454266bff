package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/handlers/http/request"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultTimeout = 30 * time.Second

type connector func(configDir string) (monitor.Service, func(), error)

type cli struct {
	connect    connector
	configDir  string
	outputJSON bool
	noColor    bool

	service monitor.Service
	release func()
}

func newRootCmd(connect connector) *cobra.Command {
	c := &cli{connect: connect}

	root := &cobra.Command{
		Use:           "shieldctl",
		Short:         "Operate a TrustShield deployment",
		Long:          "Inspect and control the shared security state of TrustShield: bans, emergency modes, health and threat reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.noColor {
				color.NoColor = true
			}
			if c.service != nil {
				return nil
			}
			svc, release, err := c.connect(c.configDir)
			if err != nil {
				return err
			}
			c.service, c.release = svc, release
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.release != nil {
				c.release()
				c.release = nil
			}
		},
	}

	root.PersistentFlags().StringVar(&c.configDir, "config", "./config", "Directory holding config.yaml")
	root.PersistentFlags().BoolVar(&c.outputJSON, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		c.newBlockCmd(),
		c.newUnblockCmd(),
		c.newClearBlocksCmd(),
		c.newHealthCmd(),
		c.newReportCmd(),
		c.newAnalyzeCmd(),
		c.newStatsCmd(),
		c.newEmergencyOffCmd(),
		c.newMonitorCmd(),
	)
	return root
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), defaultTimeout)
}

func (c *cli) newBlockCmd() *cobra.Command {
	var seconds int
	cmd := &cobra.Command{
		Use:   "block <ip>",
		Short: "Ban an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			entry, err := c.service.Block(ctx, args[0], seconds)
			if err != nil {
				return err
			}
			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), entry)
			}
			successColor.Fprintf(cmd.OutOrStdout(), "Blocked %s for %ds (until %s)\n",
				entry.IP, seconds, entry.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&seconds, "duration", request.DefaultBlockSeconds, "Ban duration in seconds")
	return cmd
}

func (c *cli) newUnblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <ip>",
		Short: "Remove the ban on an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := c.service.Unblock(ctx, args[0]); err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "Unblocked %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) newClearBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-blocks",
		Short: "Remove every ban",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			n, err := c.service.ClearBlocks(ctx)
			if err != nil {
				return err
			}
			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"cleared": n})
			}
			successColor.Fprintf(cmd.OutOrStdout(), "Cleared %d ban(s)\n", n)
			return nil
		},
	}
}

func (c *cli) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the protection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			h := c.service.Health(ctx)
			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), h)
			}
			renderHealth(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func (c *cli) newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Generate the security report of the last day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			report, err := c.service.Report(ctx)
			if err != nil {
				return err
			}
			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func (c *cli) newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "List active threats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			threats, err := c.service.Analyze(ctx)
			if err != nil {
				warningColor.Fprintln(cmd.ErrOrStderr(), "analysis incomplete:", err)
			}
			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), threats)
			}
			renderThreats(cmd.OutOrStdout(), threats)
			return nil
		},
	}
}

func (c *cli) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show request counters of the last day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s := c.service.Stats(ctx)
			if c.outputJSON {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			w := cmd.OutOrStdout()
			headerColor.Fprintln(w, "REQUESTS (24h)")
			printField(w, "Total", fmt.Sprint(s.TotalRequests))
			printField(w, "Blocked", fmt.Sprint(s.BlockedRequests))
			printField(w, "Threats", fmt.Sprint(s.ThreatsDetected))
			return nil
		},
	}
}

func (c *cli) newEmergencyOffCmd() *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "emergency-off",
		Short: "Clear emergency mode before it expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			flag := posture.Emergency
			if admin {
				flag = posture.AdminEmergency
			}
			if err := c.service.ClearEmergency(ctx, flag); err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", flag)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "Clear admin emergency mode instead")
	return cmd
}

func (c *cli) newMonitorCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print health and active threats until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.monitorLoop(ctx, cmd, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Time between checks")
	return cmd
}

func (c *cli) monitorLoop(ctx context.Context, cmd *cobra.Command, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	w := cmd.OutOrStdout()
	for {
		h := c.service.Health(ctx)
		threats, err := c.service.Analyze(ctx)
		if err != nil {
			warningColor.Fprintln(cmd.ErrOrStderr(), "analysis incomplete:", err)
		}
		if c.outputJSON {
			if err := writeJSON(w, map[string]interface{}{"health": h, "active_threats": threats}); err != nil {
				return err
			}
		} else {
			renderHealth(w, h)
			renderThreats(w, threats)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
