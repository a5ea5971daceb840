// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/ripple/pkg/org"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate organization YAML files",
	Long: `Validate organization documents before serving them.

The path may be a single YAML file or a directory; directories are walked
recursively and every .yaml / .yml file is checked.

Examples:
  rippled validate organizations/acme.yaml
  rippled validate organizations/`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	path := args[0]
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "❌ Not found: %s\n", path)
		os.Exit(1)
	}

	if !info.IsDir() {
		if _, err := org.LoadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Validation failed for %s:\n   %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("✅ %s is valid\n", path)
		return
	}

	var yamlFiles []string
	err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && (strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml")) {
			yamlFiles = append(yamlFiles, p)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error walking directory: %v\n", err)
		os.Exit(1)
	}
	if len(yamlFiles) == 0 {
		fmt.Printf("No YAML files found in %s\n", path)
		return
	}

	fmt.Printf("Validating %d YAML files in %s...\n\n", len(yamlFiles), path)

	validCount := 0
	var errors []string
	for _, file := range yamlFiles {
		relPath, _ := filepath.Rel(path, file)
		if _, err := org.LoadFile(file); err != nil {
			fmt.Printf("❌ %s\n", relPath)
			errors = append(errors, fmt.Sprintf("%s: %v", relPath, err))
		} else {
			fmt.Printf("✅ %s\n", relPath)
			validCount++
		}
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Valid:   %d\n", validCount)
	fmt.Printf("  Invalid: %d\n", len(errors))
	fmt.Printf("  Total:   %d\n", len(yamlFiles))

	if len(errors) > 0 {
		fmt.Println("\nErrors:")
		for _, msg := range errors {
			fmt.Printf("  - %s\n", msg)
		}
		os.Exit(1)
	}
}
