package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/snowrecorder/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Check if YAML file exists
	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	// Load YAML configuration
	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	printConfigSummary(configData)

	if *dryRun {
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing configuration: %v\n", err)
		os.Exit(1)
	}

	// Read it back to make sure the database loads the way the YAML did
	if _, err := provider.LoadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying SQLite configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Conversion complete.")
	fmt.Printf("Start the recorder with: snowrecorder -config %s -config-backend sqlite\n", *sqliteFile)
}

func printConfigSummary(c *config.ConfigData) {
	fmt.Println("Configuration summary:")
	if c.Slopes.File != "" {
		fmt.Printf("  Slopes: %s\n", c.Slopes.File)
	}
	if c.Storage.SQLite != nil {
		fmt.Printf("  SQLite recorder: %s\n", c.Storage.SQLite.Path)
	}
	if c.Storage.TimescaleDB != nil {
		fmt.Println("  TimescaleDB recorder: configured")
	}
	if c.Storage.Log != nil && c.Storage.Log.Enabled {
		fmt.Println("  Log recorder: enabled")
	}
	if c.Ingest != nil {
		fmt.Printf("  Ingest: %s:%d (multicore=%v)\n", c.Ingest.ListenAddr, c.Ingest.Port, c.Ingest.Multicore)
	}
	if c.REST != nil {
		fmt.Printf("  REST: %s:%d\n", c.REST.ListenAddr, c.REST.Port)
	}
}
