package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aluedeke/go-ipameta/pkg/config"
	"github.com/aluedeke/go-ipameta/pkg/ipameta"
	"github.com/aluedeke/go-ipameta/pkg/plistrename"
	"github.com/docopt/docopt-go"
)

const version = "1.0.0"

const usage = `go-ipameta - IPA metadata extraction and manifest renaming

Batch tools for iOS app archives: copy IPAs under sequence-numbered names with a
metadata report and their icons, and rename OTA manifest plists after the app id
in their download URL.

Usage:
  go-ipameta extract [--config=<path>] [--output=<dir>] [--start=<n>] [<ipa>...]
  go-ipameta rename [--config=<path>] [--dir=<dir>] [--prefix=<url>] [--name=<prefix>] [--log=<path>]
  go-ipameta info --app=<path>
  go-ipameta -h | --help
  go-ipameta --version

Commands:
  extract   Copy IPAs to the output directory, write reports and extract icons
  rename    Strip and rename *.plist manifests in a directory
  info      Display metadata of a single IPA without writing anything

Options:
  --config=<path>   YAML job file (inputs, output_dir, start_id, rename settings)
  --output=<dir>    Output directory (or IPAMETA_OUTPUT env var)
  --start=<n>       First sequence number (defaults to the job file start_id)
  --app=<path>      Path to the .ipa file (info command)
  --dir=<dir>       Directory holding the .plist manifests
  --prefix=<url>    URL prefix that precedes the app number
  --name=<prefix>   File name prefix for renamed manifests
  --log=<path>      Rename log file (defaults to <dir>/extract_and_rename.log)
  -h --help         Show this help message
  --version         Show version

Environment Variables:
  IPAMETA_OUTPUT    Output directory (overridden by --output)

Examples:
  # Process the IPAs listed in a job file
  go-ipameta extract --config=job.yaml

  # Process two IPAs, numbering from 100
  go-ipameta extract --output=out --start=100 MyApp.ipa Other.ipa

  # Rename manifests in a web root
  go-ipameta rename --dir=/srv/www/index

  # View IPA information
  go-ipameta info --app=MyApp.ipa
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	if extract, _ := opts.Bool("extract"); extract {
		err = runExtract(opts)
	} else if rename, _ := opts.Bool("rename"); rename {
		err = runRename(opts)
	} else if info, _ := opts.Bool("info"); info {
		err = runInfo(opts)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts docopt.Opts) (*config.Config, error) {
	path, _ := opts.String("--config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runExtract(opts docopt.Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Command line wins over environment, environment over the job file
	outputDir, _ := opts.String("--output")
	if outputDir == "" {
		outputDir = os.Getenv("IPAMETA_OUTPUT")
	}
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	start := cfg.StartID
	if s, _ := opts.String("--start"); s != "" {
		start, err = strconv.Atoi(s)
		if err != nil || start < 0 {
			return fmt.Errorf("--start must be a non-negative integer: %q", s)
		}
	}

	inputs := cfg.Inputs
	if args, _ := opts["<ipa>"].([]string); len(args) > 0 {
		inputs = args
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no input IPAs given")
	}

	x, err := ipameta.NewExtractor(outputDir, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("Output: %s\n", outputDir)
	fmt.Printf("Inputs: %d, starting at %d\n", len(inputs), start)
	fmt.Println()

	results, next := x.Run(inputs, start)

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}

	fmt.Println()
	fmt.Printf("Processed %d IPAs (%d with errors), next sequence number: %d\n", len(results), failed, next)
	return nil
}

func runRename(opts docopt.Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	rc := cfg.Rename
	if v, _ := opts.String("--dir"); v != "" {
		rc.Dir = v
	}
	if v, _ := opts.String("--prefix"); v != "" {
		rc.URLPrefix = v
	}
	if v, _ := opts.String("--name"); v != "" {
		rc.NamePrefix = v
	}
	if v, _ := opts.String("--log"); v != "" {
		rc.LogFile = v
	}

	logger, closer, err := plistrename.OpenLog(rc.LogPath(), os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	r := plistrename.New(rc.URLPrefix, rc.NamePrefix, logger)
	sum, err := r.Run(rc.Dir)
	if err != nil {
		return err
	}

	fmt.Printf("Renamed: %d, skipped: %d, failed: %d\n", sum.Renamed, sum.Skipped, sum.Failed)
	return nil
}

func runInfo(opts docopt.Opts) error {
	inputPath, _ := opts.String("--app")

	s, err := ipameta.Describe(inputPath)
	if err != nil {
		return err
	}

	fmt.Println("IPA Information")
	fmt.Println("===============")
	fmt.Printf("File:         %s\n", inputPath)
	fmt.Printf("Bundle:       %s\n", s.BundleDir)
	fmt.Printf("Bundle ID:    %s\n", s.Metadata.BundleIdentifier())
	fmt.Printf("Version:      %s\n", s.Metadata.Version())
	fmt.Printf("Minimum iOS:  %s\n", s.Metadata.MinimumOSVersion())
	fmt.Printf("Executable:   %s\n", s.Metadata.Executable())

	fmt.Println()
	fmt.Println("Executable")
	fmt.Println("----------")
	if s.BinaryErr != nil {
		fmt.Printf("Error:        %v\n", s.BinaryErr)
	} else {
		fmt.Printf("Path:         %s\n", s.Executable)
		fmt.Printf("Architecture: %s\n", s.Binary.Arch)
		fmt.Printf("Slices:       %d\n", s.Binary.Slices)
		fmt.Printf("Encrypted:    %v\n", s.Binary.Encrypted)
	}

	if len(s.Icons) > 0 {
		fmt.Println()
		fmt.Printf("Icons:        %d\n", len(s.Icons))
		for _, icon := range s.Icons {
			fmt.Printf("  - %s\n", icon)
		}
	}

	if p := s.Profile; p != nil {
		fmt.Println()
		fmt.Println("Embedded Provisioning Profile")
		fmt.Println("-----------------------------")
		fmt.Printf("Name:         %s\n", p.Name)
		fmt.Printf("Team ID:      %s\n", p.TeamID())
		fmt.Printf("App ID:       %s\n", p.AppID())
		fmt.Printf("Distribution: %s\n", p.Distribution())
		fmt.Printf("Expiration:   %s\n", p.ExpirationDate.Format("2006-01-02"))
		fmt.Printf("Expired:      %v\n", p.ExpiredAt(time.Now()))
	}

	return nil
}
