// Copyright (C) 2025 Shoplite (support@shoplite.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command assist is the CLI client for the Shoplite support assistant.
//
// Usage:
//
//	assist ask "What is your return policy?"
//	assist chat
//	assist health
//	assist functions
//	assist reload ./kb.yaml
//
// The server address defaults to http://localhost:8080 and can be
// overridden with --server or the ASSIST_SERVER environment variable.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "assist",
		Short: "Shoplite support assistant CLI",
		Long:  "Command-line client for the Shoplite support assistant API.",
	}
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Assistant server base URL (default http://localhost:8080)")

	askCmd := &cobra.Command{
		Use:   "ask [message...]",
		Short: "Send one message through the support pipeline",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session with the assistant",
		Run:   runChatCommand,
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Run:   runHealthCommand,
	}

	functionsCmd := &cobra.Command{
		Use:   "functions",
		Short: "List the functions the assistant can call",
		Run:   runFunctionsCommand,
	}

	reloadCmd := &cobra.Command{
		Use:   "reload <knowledge.yaml>",
		Short: "Replace the server's knowledge base from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run:   runReloadCommand,
	}

	rootCmd.AddCommand(askCmd, chatCmd, healthCmd, functionsCmd, reloadCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
