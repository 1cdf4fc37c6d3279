package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/soyart/explorer-web/loader"
	"github.com/soyart/explorer-web/server"
)

// cli owns the root command and the app its PersistentPreRunE builds.
// cobra skips PersistentPostRun when RunE fails, so cleanup lives in execute.
type cli struct {
	root *cobra.Command
	app  *app
}

func newCLI() *cli {
	c := &cli{}

	var configFile string

	c.root = &cobra.Command{
		Use:          "explorer-web",
		Short:        "page data host for the block explorer",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			c.app, err = newApp(cmd.Context(), configFile)
			return err
		},
	}

	c.root.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "path to the YAML config file")

	getApp := func() *app { return c.app }

	c.root.AddCommand(
		newServeCmd(getApp),
		newBlocksCmd(getApp),
		newTxCmd(getApp),
		newEntriesCmd(getApp),
		newPrefsCmd(getApp),
	)

	return c
}

// execute runs the command line and always releases the app afterwards.
func (c *cli) execute(ctx context.Context) error {
	defer func() {
		if c.app != nil {
			c.app.close()
		}
	}()

	return c.root.ExecuteContext(ctx)
}

func newServeCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "serve page view-data and preferences over HTTP",
		Example: "explorer-web serve -c config/config.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()

			srv := server.New(a.loader, a.prefs, a.logger)
			return srv.ListenAndServe(cmd.Context(), a.conf.ListenAddr)
		},
	}
}

func newBlocksCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "print the blocks page view-data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()

			page := loader.BlocksPage(a.logger, a.loader.Blocks(cmd.Context()))
			return printJSON(cmd, page)
		},
	}
}

func newTxCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tx <hash>",
		Short: "print the transaction page view-data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()

			page := loader.TransactionPage(a.logger, a.loader.Transaction(cmd.Context(), args[0]))
			return printJSON(cmd, page)
		},
	}
}

func newEntriesCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entries",
		Short: "list the transaction routes to prerender",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()

			entries := loader.EntryList(a.logger, a.loader.Entries(cmd.Context()))
			return printJSON(cmd, entries)
		},
	}
}

func newPrefsCmd(getApp func() *app) *cobra.Command {
	prefsCmd := &cobra.Command{
		Use:   "prefs",
		Short: "show or change the persisted preferences",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "print the current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, getApp().prefs.Snapshot())
		},
	}

	var (
		nodeAddress    string
		numberOfBlocks int
	)

	set := &cobra.Command{
		Use:     "set",
		Short:   "change preferences",
		Example: "explorer-web prefs set --node-address http://10.0.0.2:8545 --number-of-blocks 20",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()

			var addressPtr *string
			if cmd.Flags().Changed("node-address") {
				addressPtr = &nodeAddress
			}

			var countPtr *int
			if cmd.Flags().Changed("number-of-blocks") {
				countPtr = &numberOfBlocks
			}

			if addressPtr == nil && countPtr == nil {
				return errors.New("nothing to set: pass --node-address and/or --number-of-blocks")
			}

			if err := a.prefs.Update(cmd.Context(), addressPtr, countPtr); err != nil {
				return err
			}

			return printJSON(cmd, a.prefs.Snapshot())
		},
	}

	set.Flags().StringVar(&nodeAddress, "node-address", "", "node address sent as X-Node-Address (empty for the API default)")
	set.Flags().IntVar(&numberOfBlocks, "number-of-blocks", 0, "number of blocks to list")

	prefsCmd.AddCommand(get, set)

	return prefsCmd
}
