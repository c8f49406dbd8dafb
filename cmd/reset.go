package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/focuswatch/internal/cache"
	"github.com/andresmejia3/focuswatch/internal/utils"
)

var (
	resetDB    bool
	resetCache bool
	resetYes   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Report Cache)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetCache {
			resetDB = true
			resetCache = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if confirm(reader, "⚠️  Are you sure you want to DROP all database tables?") {
				if err := openDB(cmd.Context()); err != nil {
					utils.Die("Failed to connect to database", err, nil)
				}
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		if resetCache {
			if env.RedisAddress == "" {
				fmt.Println("ℹ️  REDIS_ADDRESS not set, no report cache to clear.")
			} else if confirm(reader, "⚠️  Are you sure you want to flush all cached focus reports?") {
				fmt.Println("🗑️  Clearing Report Cache...")
				c := cache.New(cmd.Context(), cache.Options{
					Address: env.RedisAddress, Password: env.RedisPassword, DB: env.RedisDB, TTL: env.CacheTTL,
				})
				defer c.Close()
				if err := c.Flush(cmd.Context()); err != nil {
					utils.Die("Failed to flush report cache", err, nil)
				}
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Clear PostgreSQL database")
	resetCmd.Flags().BoolVar(&resetCache, "cache", false, "Clear cached focus reports in Redis")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	if resetYes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
