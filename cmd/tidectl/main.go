package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidewm/tidewm/internal/config"
	"github.com/tidewm/tidewm/internal/control/client"
)

var (
	socketPath string
	timeout    time.Duration
	asJSON     bool
)

var rootCmd = &cobra.Command{
	Use:           "tidectl",
	Short:         "Control a running tidewm window manager",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the manager state: view, layout parameters, and clients",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := client.New(socketPath)
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, status)
		}
		printStatus(cmd, status)
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show event and command counters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := client.New(socketPath)
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()
		snap, err := c.Metrics(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, snap)
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the daemon's configuration file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := client.New(socketPath)
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()
		if err := c.Reload(ctx); err != nil {
			return err
		}
		cmd.Println("configuration reloaded")
		return nil
	},
}

var quitCmd = &cobra.Command{
	Use:   "quit",
	Short: "Ask the daemon to shut down",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := client.New(socketPath)
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()
		return c.Quit(ctx)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <config>",
	Short: "Validate a configuration file without a running daemon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(args[0]); err != nil {
			return err
		}
		cmd.Printf("%s is valid\n", args[0])
		return nil
	},
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func printStatus(cmd *cobra.Command, s client.Status) {
	cmd.Printf("view %s of %d tags, %d master(s) at %.2f, area %dx%d\n",
		tagList(s.View), s.TagCount, s.MasterCount, s.MasterRatio, s.Area.Width, s.Area.Height)
	for _, c := range s.Clients {
		marker := " "
		if c.Focused {
			marker = "*"
		}
		extra := ""
		if c.Floating {
			extra += " floating"
		}
		if c.Urgent {
			extra += " urgent"
		}
		if c.Hidden {
			extra += " hidden"
		}
		cmd.Printf("%s window %d  tags %s  %dx%d+%d+%d%s\n",
			marker, c.Window, tagList(c.Tags),
			c.Geometry.Width, c.Geometry.Height, c.Geometry.X, c.Geometry.Y, extra)
	}
}

// tagList renders a tag bitmask as the one-based tag numbers it contains.
func tagList(mask uint32) string {
	out := ""
	for n := 1; n <= 32; n++ {
		if mask&(1<<(n-1)) == 0 {
			continue
		}
		if out != "" {
			out += ","
		}
		out += fmt.Sprint(n)
	}
	if out == "" {
		return "none"
	}
	return out
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "path to the tidewm control socket")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Second, "control request timeout")
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON payload")
	rootCmd.AddCommand(statusCmd, metricsCmd, reloadCmd, quitCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
