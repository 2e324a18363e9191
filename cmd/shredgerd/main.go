package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shredchain/shredger/pkg/blockstore"
	"github.com/shredchain/shredger/pkg/config"
	"github.com/shredchain/shredger/pkg/identity"
	"github.com/shredchain/shredger/pkg/log"
	"github.com/shredchain/shredger/pkg/metrics"
	"github.com/shredchain/shredger/pkg/node"
	"github.com/shredchain/shredger/pkg/types"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "shredgerd",
	Short:   "shredgerd runs a shred/repair/replay validator node",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("shredgerd version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(blockstoreCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a validator node",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		clusterPath, _ := cmd.Flags().GetString("cluster")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		validators, contacts, err := node.LoadCluster(clusterPath)
		if err != nil {
			return fmt.Errorf("load cluster file: %w", err)
		}

		n, err := node.New(node.Config{
			File:       cfg,
			Bank:       node.NewMinimalBank(),
			Validators: validators,
			Contacts:   contacts,
		})
		if err != nil {
			return fmt.Errorf("construct node: %w", err)
		}

		go func() {
			http.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Info(fmt.Sprintf("metrics server error: %v", err))
			}
		}()

		n.Start()
		fmt.Printf("shredgerd running as %s, metrics on http://%s/metrics\n", n.Identity().Pubkey(), metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down...")
		return n.Stop()
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new identity keypair and write it to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		id, err := identity.Generate()
		if err != nil {
			return err
		}
		if err := id.SaveToFile(out); err != nil {
			return err
		}

		fmt.Printf("identity written to %s\n", out)
		fmt.Printf("pubkey: %s\n", id.Pubkey())
		return nil
	},
}

var blockstoreCmd = &cobra.Command{
	Use:   "blockstore",
	Short: "Inspect a blockstore on disk",
}

var blockstoreInspectCmd = &cobra.Command{
	Use:   "inspect SLOT",
	Short: "Show a slot's stored metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")

		var slot uint64
		if _, err := fmt.Sscanf(args[0], "%d", &slot); err != nil {
			return fmt.Errorf("invalid slot %q: %w", args[0], err)
		}

		bs, err := blockstore.NewBoltBlockstore(dataDir)
		if err != nil {
			return err
		}
		defer bs.Close()

		meta, err := bs.Meta(types.Slot(slot))
		if err != nil {
			return err
		}

		fmt.Printf("slot:       %d\n", meta.Slot)
		fmt.Printf("parent:     %d\n", meta.ParentSlot)
		fmt.Printf("consumed:   %d\n", meta.Consumed)
		fmt.Printf("received:   %d\n", meta.Received)
		fmt.Printf("full:       %v\n", meta.IsFull)
		fmt.Printf("next slots: %v\n", meta.NextSlots)
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "shredgerd.yaml", "Path to the node configuration file")
	runCmd.Flags().String("cluster", "cluster.yaml", "Path to the static cluster/stake file")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus metrics endpoint")

	keygenCmd.Flags().String("out", "identity.key", "Output path for the generated key")

	blockstoreInspectCmd.Flags().String("data-dir", "./data", "Blockstore data directory")
	blockstoreCmd.AddCommand(blockstoreInspectCmd)
}
