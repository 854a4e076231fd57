package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	redispkg "github.com/gemrelay/gemrelay/pkg/cache/redis"
	sqlitepkg "github.com/gemrelay/gemrelay/pkg/cache/sqlite"
	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/models"
)

// persistentCache is a cache tier that outlives the process.
type persistentCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Stats(ctx context.Context) (models.CacheStats, error)
	Clear(ctx context.Context) error
	Close() error
}

// openCacheStore opens the configured persistent tier, or nil for "memory".
func openCacheStore(ctx context.Context, cfg *config.Config) (persistentCache, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		c, err := sqlitepkg.New(cfg.DBPath, cfg.Cache.Capacity)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "redis":
		r := cfg.Cache.Redis
		c, err := redispkg.New(ctx, r.Addr, r.Password, r.DB, r.TTL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, nil
	}
}

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent answer cache",
	}

	open := func(ctx context.Context) (persistentCache, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		c, err := openCacheStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("cache backend %q keeps nothing on disk", cfg.Cache.Backend)
		}
		return c, nil
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\n", stats.Entries)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("All cache entries cleared.")
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached answers, most recently used first (sqlite backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			lister, ok := c.(interface {
				Entries(ctx context.Context) ([]models.CacheEntry, error)
			})
			if !ok {
				return fmt.Errorf("cache backend cannot list entries")
			}
			entries, err := lister.Entries(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tLAST USED\tRESPONSE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key[:12], e.LastUsed.Format("2006-01-02 15:04:05"), preview(e.Response, 40))
			}
			return w.Flush()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd, listCmd)
	return cmd
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
