// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package cmd implements the hiltic command-line front end: a thin cobra
// wrapper around pkg/driver's ProcessAST.
package cmd

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is filled when building with make, but *not* when installing via "go
// install".
var Version string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hiltic",
	Short: "A semantic analyzer for the HILTI and Spicy languages.",
	Long:  "A semantic analyzer (scope building, name/operator resolution, type unification) for the HILTI and Spicy languages.",
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "version") {
			fmt.Print("hiltic ")
			if Version != "" {
				fmt.Printf("%s", Version)
			} else if info, ok := debug.ReadBuildInfo(); ok {
				fmt.Printf("%s", info.Main.Version)
			} else {
				fmt.Printf("(unknown version)")
			}
			fmt.Println()
		} else {
			_ = cmd.Help()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("version", false, "report version of this executable")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug diagnostics and profiling hooks")
	rootCmd.PersistentFlags().Bool("skip-validation", false, "skip validator pre/post checks")
	rootCmd.PersistentFlags().Bool("skip-dependencies", false, "do not resolve imported module dependencies")
	rootCmd.PersistentFlags().Bool("optimize", false, "run the global optimizer after semantic analysis")
	rootCmd.PersistentFlags().StringArrayP("library-path", "L", []string{}, "add a module search directory")
	rootCmd.PersistentFlags().StringArray("enable-feature", []string{}, "mark a feature flag as enabled for optimizer gating")

	rootCmd.AddCommand(processCmd)

	cobra.OnInitialize(func() {
		if GetFlag(rootCmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
	})
}
