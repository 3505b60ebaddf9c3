// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	sessionID := loadSessionID()

	done := make(chan bool)
	go showSpinner("Thinking", done)
	resp, err := sendTurn(question, sessionID)
	done <- true
	fmt.Print("\r\033[K")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	saveSessionID(resp.SessionID)

	fmt.Println(resp.Answer)
	if resp.ContextSummary != "" {
		fmt.Println("\n[" + resp.ContextSummary + "]")
	}
}

// showSpinner animates until done receives.
func showSpinner(msg string, done chan bool) {
	chars := []string{"▖", "▘", "▝", "▗"}
	i := 0
	fmt.Print("\033[?25l")
	defer fmt.Print("\033[?25h")
	for {
		select {
		case <-done:
			return
		default:
			fmt.Printf("\r%s  %s...\033[K", chars[i%len(chars)], msg)
			i++
			time.Sleep(100 * time.Millisecond)
		}
	}
}
