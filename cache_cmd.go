package main

import (
	"fmt"
	"path/filepath"

	"github.com/dgnsrekt/dramaplay/internal/cache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the synthesis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show disk cache usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openDiskStore()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		st := store.Stats()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Location:"), filepath.Join(cfg.Cache.Dir, "audio"))
		fmt.Fprintf(w, "%s %s items, %s of %s\n", headerStyle.Render("Usage:   "),
			humanize.Comma(st.ItemCount), humanize.Bytes(uint64(st.Size)), humanize.Bytes(uint64(st.Capacity))) //nolint:gosec
		if !cfg.Cache.Enabled {
			fmt.Fprintln(w, faintStyle.Render("The cache is disabled in the configuration."))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached clip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openDiskStore()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		n := store.Stats().ItemCount
		if err := store.Clear(); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s cached clips\n", humanize.Comma(n))
		return nil
	},
}

func openDiskStore() (*cache.DiskStore, error) {
	return cache.NewDiskStore(filepath.Join(cfg.Cache.Dir, "audio"), cfg.MaxCacheBytes(), cfg.Cache.Compression)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
