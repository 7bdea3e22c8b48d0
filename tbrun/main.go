// Command tbrun runs a triggerbot from a configuration file and manages its
// access store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aarondl/triggerbot/bot"
	"github.com/aarondl/triggerbot/config"
	"github.com/aarondl/triggerbot/data"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "config.toml"

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tbrun",
		Short: "Run an irc bot",
		Long:  "tbrun connects a triggerbot to the network in its configuration and runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return bot.Run(ctx, cfgFile, func(b *bot.Bot) {
				b.Register(newAutoOp(b.User))
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "config file (toml or yaml)")

	cmd.AddCommand(newCheckConfigCmd())
	cmd.AddCommand(newAddUserCmd())
	cmd.AddCommand(newStorePassCmd())
	cmd.AddCommand(newAuditCmd())

	return cmd
}

// loadConfig reads and validates the configuration, printing every problem.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	conf := config.New().FromFile(cfgFile)
	if !conf.Validate() {
		for _, err := range conf.Errors() {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		return nil, fmt.Errorf("%s: invalid configuration", cfgFile)
	}
	return conf.SetDefaults(), nil
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkconfig",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", cfgFile)
			return nil
		},
	}
}

func newAddUserCmd() *cobra.Command {
	var level uint8
	var flags string
	var masks []string

	cmd := &cobra.Command{
		Use:   "adduser <username> <password>",
		Short: "Add a user to the access store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			store, err := data.NewStore(data.MakeFileStoreProvider(conf.StoreFile))
			if err != nil {
				return err
			}
			defer store.Close()

			user, err := data.NewStoredUser(args[0], args[1], masks...)
			if err != nil {
				return err
			}
			user.Access = data.NewAccess(level, flags)
			if err = store.AddUser(user); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %v\n", user)
			return nil
		},
	}

	cmd.Flags().Uint8Var(&level, "level", 0, "access level 0-255")
	cmd.Flags().StringVar(&flags, "flags", "", "access flags a-zA-Z")
	cmd.Flags().StringSliceVar(&masks, "mask", nil, "host masks allowed to log in (repeatable)")

	return cmd
}

func newStorePassCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "storepass <password>",
		Short: "Save the server password in the configured keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err = conf.StorePassword(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored password for %s in %s\n",
				conf.Network, conf.Keyring)
			return nil
		},
	}
}

func newAuditCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent responded triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			log, err := data.OpenAuditLog(conf.AuditFile, conf.Network)
			if err != nil {
				return err
			}
			defer log.Close()

			entries, err := log.Recent(n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s %s %s!%s %s %s %s\n",
					e.At.Format("2006-01-02 15:04:05"), e.Network, e.Nick, e.Host,
					e.Target, e.Trigger, e.Params)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "number", "n", 20, "how many entries to show")

	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
