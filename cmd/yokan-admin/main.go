package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mochi-hpc/yokan-go/pkg/rpc"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "yokan-admin",
	Short: "Administer a yokan provider's databases",
}

func init() {
	rootCmd.PersistentFlags().String("provider", "127.0.0.1:8499", "provider RPC address")
	rootCmd.PersistentFlags().String("token", "", "admin token (required for open/close/destroy/list/migrate)")

	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(kvCmd)
}

func client(cmd *cobra.Command) *rpc.Client {
	addr, _ := cmd.Flags().GetString("provider")
	token, _ := cmd.Flags().GetString("token")
	return rpc.NewClient(addr, token)
}

// Database commands

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage databases on a provider",
}

var dbOpenCmd = &cobra.Command{
	Use:   "open NAME",
	Short: "Open a new database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbType, _ := cmd.Flags().GetString("type")
		config, _ := cmd.Flags().GetString("config")
		id, err := client(cmd).OpenDatabase(args[0], dbType, config)
		if err != nil {
			return err
		}
		fmt.Printf("opened %s: %s\n", args[0], id)
		return nil
	},
}

var dbCloseCmd = &cobra.Command{
	Use:   "close ID",
	Short: "Close a database handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client(cmd).CloseDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("closed %s\n", args[0])
		return nil
	},
}

var dbDestroyCmd = &cobra.Command{
	Use:   "destroy ID",
	Short: "Destroy a database's persistent state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client(cmd).DestroyDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("destroyed %s\n", args[0])
		return nil
	},
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := client(cmd).ListDatabases()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("no open databases")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	dbOpenCmd.Flags().String("type", "map", "backend type (map, bolt)")
	dbOpenCmd.Flags().String("config", "{}", "backend configuration (JSON)")
	dbCmd.AddCommand(dbOpenCmd, dbCloseCmd, dbDestroyCmd, dbListCmd)
}

// Token commands

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage admin tokens",
}

var tokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Mint a new admin token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, expires, err := client(cmd).GenerateToken(ttl)
		if err != nil {
			return err
		}
		fmt.Printf("token:   %s\n", token)
		fmt.Printf("expires: %s\n", expires.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenGenerateCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	tokenCmd.AddCommand(tokenGenerateCmd)
}

// Migration commands

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Drive a database migration's state machine",
}

var migrateStartCmd = &cobra.Command{
	Use:   "start ID",
	Short: "Freeze a database and plan its migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, files, err := client(cmd).StartMigration(args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("no files to ship; stream the database's contents instead")
			return nil
		}
		fmt.Printf("root: %s\n", root)
		for _, f := range files {
			fmt.Println("  " + f)
		}
		return nil
	},
}

var migrateCompleteCmd = &cobra.Command{
	Use:   "complete ID",
	Short: "Mark a migration complete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client(cmd).CompleteMigration(args[0]); err != nil {
			return err
		}
		fmt.Println("migration complete")
		return nil
	},
}

var migrateCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel an in-progress migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client(cmd).CancelMigration(args[0]); err != nil {
			return err
		}
		fmt.Println("migration cancelled")
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateStartCmd, migrateCompleteCmd, migrateCancelCmd)
}

// KV commands (unauthenticated, for operators poking at a database
// without going through an application client library)

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Inspect and edit keys directly",
}

var kvGetCmd = &cobra.Command{
	Use:   "get ID KEY",
	Short: "Fetch a single value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, found, err := client(cmd).Get(args[0], []byte(args[1]))
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(string(v))
		return nil
	},
}

var kvPutCmd = &cobra.Command{
	Use:   "put ID KEY VALUE",
	Short: "Store a single value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client(cmd).Put(args[0], wire.ModeDefault, []byte(args[1]), []byte(args[2]))
	},
}

var kvEraseCmd = &cobra.Command{
	Use:   "erase ID KEY",
	Short: "Erase a single key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client(cmd).Erase(args[0], []byte(args[1]))
	},
}

var kvCountCmd = &cobra.Command{
	Use:   "count ID",
	Short: "Count keys in a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := client(cmd).Count(args[0])
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	kvCmd.AddCommand(kvGetCmd, kvPutCmd, kvEraseCmd, kvCountCmd)
}
