package main

import (
	"fmt"
	"runtime"

	"webshrink/routes"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("webshrink %s (%s)\n", routes.Version(), runtime.Version())
		},
	}
}
