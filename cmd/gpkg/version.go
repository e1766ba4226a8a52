package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Limetric/geopackage"
)

// Set with -ldflags "-X main.buildVersion=... -X main.buildCommit=...".
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gpkg version and SQLite driver",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gpkg %s (%s)\n", releaseName(buildVersion, buildCommit), geopackage.DriverPackage())
	},
}

// releaseName returns a release tag as is. Development builds are named
// dev-<short commit>, or just dev without a known commit.
func releaseName(version, commit string) string {
	if v := strings.TrimSpace(version); v != "" && v != "dev" {
		return v
	}
	c := strings.TrimSpace(commit)
	if c == "" || c == "unknown" {
		return "dev"
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return "dev-" + c
}
