package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/civicscope/civicscope/internal/briefing"
	"github.com/civicscope/civicscope/internal/collect"
	"github.com/civicscope/civicscope/internal/config"
	"github.com/civicscope/civicscope/internal/database"
	"github.com/civicscope/civicscope/internal/intel"
	"github.com/civicscope/civicscope/internal/pipeline"
	"github.com/civicscope/civicscope/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "civicscope",
	Short:   "Tiered local intelligence briefings",
	Long:    "civicscope collects local-government records and news, classifies items into priority tiers, detects patterns, and synthesizes intelligence briefings.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("civicscope", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/civicscope/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, watched entities, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Owner: %s\n\n", cfg.Owner)
		fmt.Println("Items:")
		fmt.Printf("  Total collected: %d\n", stats.TotalItems)
		fmt.Printf("  Source types: %d\n", stats.SourceTypes)
		fmt.Println("\nOutput:")
		fmt.Printf("  Briefings: %d\n", stats.Briefings)
		fmt.Printf("  Relationships: %d\n", stats.Relationships)
		fmt.Println("\nWatched Entities:")
		fmt.Printf("  Total: %d\n", stats.TotalWatched)
		fmt.Printf("  Active: %d\n", stats.ActiveWatched)
		return nil
	},
}

// --- collect command ---

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect items from configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Collecting items from sources...")

		collector := collect.NewCollector(cfg, db, cfg.Briefing.WindowDays)
		result := collector.Collect(context.Background())

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Total found: %d\n", result.TotalFound)
		fmt.Printf("  New items: %d\n", result.NewItems)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)

		if len(result.Sources) > 0 {
			fmt.Println("\nItems by source:")
			// Sort sources by count descending
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> fetch -> discover -> generate -> archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)
		ctx := context.Background()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(ctx)
		} else {
			result = pipe.Run(ctx)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/5: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun && result.BriefingID != "" {
			fmt.Printf("\nPipeline complete! Briefing %s archived.\n", result.BriefingID)
			fmt.Println("Run 'civicscope serve' to view it.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show [briefing-id]",
	Short: "Print a briefing as markdown (latest when no ID given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		var b *intel.Briefing
		if len(args) == 1 {
			b, err = db.GetBriefing(ctx, args[0])
		} else {
			b, err = db.GetLatestBriefing(ctx, cfg.Owner)
		}
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("no briefing found")
		}

		fmt.Print(briefing.RenderMarkdown(b))
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, cfg.Owner, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- watch command ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched entities",
}

var watchType string

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all watched entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		watched, err := db.ListWatchedEntities(context.Background(), cfg.Owner)
		if err != nil {
			return err
		}

		if len(watched) == 0 {
			fmt.Println("No watched entities. Add one with: civicscope watch add")
			return nil
		}

		fmt.Println("Watched Entities:")
		fmt.Println()
		for _, w := range watched {
			icon := " "
			if w.IsActive {
				icon = "*"
			}
			fmt.Printf("  [%d] %s %s", w.ID, icon, w.Name)
			if w.EntityType != nil && *w.EntityType != "" {
				fmt.Printf(" (%s)", *w.EntityType)
			}
			fmt.Println()
		}
		return nil
	},
}

var watchAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Watch a new entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var typePtr *string
		if watchType != "" {
			typePtr = &watchType
		}

		id, err := db.AddWatchedEntity(context.Background(), cfg.Owner, args[0], typePtr, nil)
		if err != nil {
			return err
		}
		if id == 0 {
			fmt.Printf("Already watching: %s\n", args[0])
			return nil
		}
		fmt.Printf("Watching [%d]: %s\n", id, args[0])
		return nil
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Stop watching an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entity ID: %s", args[0])
		}

		if err := db.RemoveWatchedEntity(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Removed watched entity [%d]\n", id)
		return nil
	},
}

var watchToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle a watched entity's active state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entity ID: %s", args[0])
		}

		if err := db.ToggleWatchedEntity(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Toggled watched entity [%d]\n", id)
		return nil
	},
}

func init() {
	watchAddCmd.Flags().StringVarP(&watchType, "type", "t", "", "Entity type (organization, person, location)")

	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchToggleCmd)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DatabasePath())
}
