// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the current session's conversational context",
		Run:   runResetCommand,
	}
}

func runResetCommand(_ *cobra.Command, _ []string) {
	sessionID := loadSessionID()
	if sessionID == "" {
		fmt.Println("No active session to reset.")
		return
	}

	resp, err := sendReset(sessionID)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Session %s reset: %s\n", resp.SessionID, resp.ContextSummary)
}
