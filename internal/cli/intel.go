package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/VentureIA/chorus/internal/intel"
)

func broadcastCmd(o *options) *cobra.Command {
	var metadata string
	cmd := &cobra.Command{
		Use:   "broadcast <category> <message>",
		Short: "Broadcast a message to every other session",
		Long:  "Categories: " + strings.Join(intel.BroadcastCategories, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			var meta json.RawMessage
			if metadata != "" {
				if !json.Valid([]byte(metadata)) {
					return fmt.Errorf("--metadata is not valid JSON")
				}
				meta = json.RawMessage(metadata)
			}
			msg, err := c.Broadcast(cmd.Context(), args[0], args[1], meta)
			if err != nil {
				return err
			}
			green.Fprintf(cmd.OutOrStdout(), "broadcast %s\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&metadata, "metadata", "", "optional JSON metadata")
	return cmd
}

func messagesCmd(o *options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List broadcasts from other sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			var msgs []intel.BroadcastMessage
			if all {
				msgs, err = c.AllMessages(cmd.Context())
			} else {
				msgs, err = c.Messages(cmd.Context())
			}
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintln(w, "no messages")
				return nil
			}
			for _, m := range msgs {
				cat := cyan
				if m.Category == "warning" {
					cat = yellow
				}
				fmt.Fprintf(w, "%s session %d ", m.Timestamp, m.SessionID)
				cat.Fprintf(w, "[%s]", m.Category)
				fmt.Fprintf(w, " %s\n", m.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include this session's own broadcasts")
	return cmd
}

func reportFileCmd(o *options) *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "report-file <path>",
		Short: "Record activity on a file and show any conflict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			conflicts, err := c.ReportFile(cmd.Context(), args[0], action)
			if err != nil {
				return err
			}
			if len(conflicts) == 0 {
				green.Fprintf(cmd.OutOrStdout(), "no conflicts on %s\n", args[0])
				return nil
			}
			printConflicts(cmd.OutOrStdout(), conflicts)
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", "editing", "one of "+strings.Join(intel.FileActions, ", "))
	return cmd
}

func conflictsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List files touched by more than one session recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			conflicts, err := c.Conflicts(cmd.Context())
			if err != nil {
				return err
			}
			if len(conflicts) == 0 {
				green.Fprintln(cmd.OutOrStdout(), "no conflicts")
				return nil
			}
			printConflicts(cmd.OutOrStdout(), conflicts)
			return nil
		},
	}
}

func printConflicts(w io.Writer, conflicts []intel.FileConflict) {
	for _, fc := range conflicts {
		ids := make([]string, len(fc.Sessions))
		for i, s := range fc.Sessions {
			ids[i] = fmt.Sprint(s)
		}
		red.Fprintf(w, "CONFLICT %s", fc.FilePath)
		fmt.Fprintf(w, " sessions %s\n", strings.Join(ids, ", "))
		for _, a := range fc.Actions {
			fmt.Fprintf(w, "  %s session %d %s\n", a.Timestamp, a.SessionID, a.Action)
		}
	}
}

func scratchpadCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scratchpad",
		Short: "Read and write shared notes",
	}

	write := &cobra.Command{
		Use:   "write <category> <title> [content]",
		Short: "Add a note; content is read from stdin when omitted",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			var content string
			if len(args) == 3 {
				content = args[2]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				content = string(b)
			}
			entry, err := c.WriteScratchpad(cmd.Context(), args[0], args[1], content)
			if err != nil {
				return err
			}
			green.Fprintf(cmd.OutOrStdout(), "wrote %s\n", entry.ID)
			return nil
		},
	}

	read := &cobra.Command{
		Use:   "read",
		Short: "Print every note",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			entries, err := c.ReadScratchpad(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "scratchpad is empty")
			}
			for _, e := range entries {
				cyan.Fprintf(w, "[%s] %s", e.Category, e.Title)
				fmt.Fprintf(w, " (session %d, %s)\n%s\n\n", e.SessionID, e.Timestamp, e.Content)
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every note",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			if err := c.ClearScratchpad(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "scratchpad cleared")
			return nil
		},
	}

	cmd.AddCommand(write, read, clearCmd)
	return cmd
}

func exportCmd(o *options) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export broadcasts, conflicts and notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			b, err := c.Export(cmd.Context(), format)
			if err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return os.WriteFile(outPath, b, 0644)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "export format: json|csv|yaml")
	cmd.Flags().StringVar(&outPath, "out", "-", "output path (or - for stdout)")
	return cmd
}
