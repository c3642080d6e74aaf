package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrilink/usermgmt/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var openapiFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of the program.",

	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Prints the OpenAPI document of the HTTP API.",

	RunE: func(cmd *cobra.Command, args []string) error {
		switch openapiFormat {
		case "json", "yaml", "yml":
		default:
			return fmt.Errorf("unknown format %q, want json or yaml", openapiFormat)
		}
		out, err := server.MarshalOpenAPI(server.OpenAPI(version), openapiFormat)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	openapiCmd.Flags().StringVar(&openapiFormat, "format", "json", "output format: json or yaml")
}
