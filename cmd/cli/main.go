// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command triage 分诊服务命令行：交互式对话、会话查询与重置、分类树校验。
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"triage-platform/internal/triage/state"
	"triage-platform/internal/triage/taxonomy"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var server string
	root := &cobra.Command{
		Use:           "triage",
		Short:         "Incremental triage classification client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&server, "server", apiBaseURL(), "triage API base URL (env TRIAGE_API_URL)")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the CLI version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "triage %s\n", version)
			},
		},
		newChatCmd(&server),
		newStateCmd(&server),
		newResetCmd(&server),
		newTaxonomyCmd(),
	)
	return root
}

func newChatCmd(server *string) *cobra.Command {
	var sessionID, source string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive triage session; one line per input",
		Long: `Reads free text line by line and submits each line as one triage cycle.

Commands inside the session:
  /state   print the current session state
  /reset   reset the session
  /quit    leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			return runChat(newClient(*server), sessionID, source, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (random when empty)")
	cmd.Flags().StringVar(&source, "source", "keyboard", "input source: keyboard | stt")
	return cmd
}

func runChat(c *client, sessionID, source string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "session %s\n", sessionID)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/state":
			st, err := c.state(sessionID)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, prettyJSON(st))
			continue
		case "/reset":
			res, err := c.reset(sessionID)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, res.Message)
			continue
		}

		res, err := c.submit(sessionID, line, source)
		if err != nil {
			// 一轮失败不影响会话，继续读取
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printResult(out, res)
	}
}

func printResult(out io.Writer, res *inputResponse) {
	st := res.State
	if st != nil {
		if n := len(st.Conversation); n > 0 && st.Conversation[n-1].Role == state.RoleAssistant {
			fmt.Fprintln(out, st.Conversation[n-1].Text)
		}
	}
	fmt.Fprintln(out, res.Message)
	if st != nil && st.FinalSeverity != nil {
		fmt.Fprintf(out, "severity: %d\n", *st.FinalSeverity)
	}
}

func newStateCmd(server *string) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the state of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient(*server).state(sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prettyJSON(st))
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (server default when empty)")
	return cmd
}

func newResetCmd(server *string) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a session to the initial state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient(*server).reset(sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (server default when empty)")
	return cmd
}

func newTaxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Taxonomy utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Load a taxonomy file (yaml or csv) and report counts and unmapped leaves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := taxonomy.LoadFile(args[0])
			if err != nil {
				return err
			}
			stats := tree.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "level2: %d\nlevel3: %d\nlevel4: %d\n", stats.Level2, stats.Level3, stats.Level4)
			if len(stats.Unmapped) == 0 {
				fmt.Fprintln(out, "all leaves have a severity")
				return nil
			}
			fmt.Fprintf(out, "unmapped leaves: %d\n", len(stats.Unmapped))
			for _, p := range stats.Unmapped {
				fmt.Fprintf(out, "  %s\n", p)
			}
			return nil
		},
	})
	return cmd
}
