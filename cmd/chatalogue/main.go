// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command chatalogue is the terminal client for the Chatalogue dialog
// server.
//
// Usage:
//
//	chatalogue ask "who teaches MET CS 575?"
//	chatalogue chat
//	chatalogue reset
//
// The server address comes from --server or CHATALOGUE_SERVER, defaulting
// to http://localhost:8091.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// serverFlag and sessionFlag hold persistent flag values.
var (
	serverFlag  string
	sessionFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatalogue",
		Short: "Terminal client for the Chatalogue course assistant",
	}
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Dialog server base URL (default $CHATALOGUE_SERVER or http://localhost:8091)")
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "Session ID to resume (default: last session)")

	rootCmd.AddCommand(newAskCommand())
	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newResetCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
