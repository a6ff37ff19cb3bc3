package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spikenet-sim/spikenet-sim/conn"
)

var (
	planPath   string // Path to the yaml network plan
	logLevel   string // Log verbosity level
	seed       int64  // Overrides the plan seed when non-negative
	bufferSize int    // Per-rank round buffer of the resolution protocol
	sortConns  bool   // Sort connection buckets before resolution
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "spikenet-sim",
	Short: "Connection-management core for distributed spiking-network simulation",
}

// buildCmd builds the network described by a plan, resolves it across the
// simulated ranks, calibrates, and prints per-rank status.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and resolve a network plan",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if planPath == "" {
			logrus.Fatalf("No network plan provided. Use --plan.")
		}
		plan, err := conn.LoadNetworkPlan(planPath)
		if err != nil {
			logrus.Fatalf("Loading plan: %v", err)
		}
		if seed >= 0 {
			plan.Seed = seed
		}

		logrus.Infof("Building network: %d neurons over %d ranks x %d threads",
			plan.Neurons, plan.Ranks, plan.Threads)
		startTime := time.Now()

		_, managers, err := plan.Build()
		if err != nil {
			logrus.Fatalf("Building network: %v", err)
		}
		if sortConns {
			for _, cm := range managers {
				cm.SortConnections()
			}
		}

		resolver := conn.NewResolver(managers, bufferSize)
		if err := resolver.Resolve(); err != nil {
			logrus.Fatalf("Resolving connectivity: %v", err)
		}

		resolution := plan.ResolutionMS
		if resolution == 0 {
			resolution = 0.1
		}
		tc := conn.IdentityTimeConverter(resolution)
		for _, cm := range managers {
			cm.Calibrate(tc)
		}

		for _, cm := range managers {
			out, err := yaml.Marshal(cm.Status())
			if err != nil {
				logrus.Fatalf("Marshaling status: %v", err)
			}
			os.Stdout.Write(out)
			stats, err := yaml.Marshal(cm.ConnectionStats())
			if err != nil {
				logrus.Fatalf("Marshaling stats: %v", err)
			}
			os.Stdout.Write(stats)
		}
		logrus.Infof("Build complete in %s.", time.Since(startTime))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	buildCmd.Flags().StringVar(&planPath, "plan", "", "Path to the yaml network plan")
	buildCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	buildCmd.Flags().Int64Var(&seed, "seed", -1, "Master seed override (negative keeps the plan seed)")
	buildCmd.Flags().IntVar(&bufferSize, "round-buffer", 0, "Max target data accepted per rank per resolution round (0 = unbounded)")
	buildCmd.Flags().BoolVar(&sortConns, "sort", false, "Sort connection buckets before resolution")

	rootCmd.AddCommand(buildCmd)
}
