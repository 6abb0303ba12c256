package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"codeberg.org/miketth/pluggedkbd/pkg/control"
	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
	"codeberg.org/miketth/pluggedkbd/pkg/rulestore/sqlite"
)

const requestTimeout = 5 * time.Second

func send(cmd *cobra.Command, flags *globalFlags, req control.Request) (pluggedkbd.Snapshot, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	return control.Send(ctx, flags.socket, req)
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known keyboards and their input sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := send(cmd, flags, control.Request{Command: control.CommandList})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			renderSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot")
	return cmd
}

func newToggleCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <device>",
		Short: "Associate a keyboard with the active input source, or forget its association",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := send(cmd, flags, control.Request{
				Command: control.CommandToggle,
				Device:  strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newAssociateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "associate <source> <device>",
		Short: "Associate a keyboard with an input source",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := send(cmd, flags, control.Request{
				Command:  control.CommandAssociate,
				SourceID: args[0],
				Device:   strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newRulesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the persisted rules",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print the persisted rules as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, _, err := loadSettings(cmd, flags)
				if err != nil {
					return err
				}
				store, err := openRuleStore(cfg.Get().RuleStore, log.Named("rules"))
				if err != nil {
					return fmt.Errorf("open rule store: %w", err)
				}
				defer store.Close()

				rules, err := store.LoadRules(cmd.Context())
				if err != nil {
					return fmt.Errorf("load rules: %w", err)
				}
				if rules == nil {
					rules = []pluggedkbd.Rule{}
				}
				return writeJSON(cmd.OutOrStdout(), rules)
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the schema of the sqlite rule store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, log, _, err := loadSettings(cmd, flags)
				if err != nil {
					return err
				}
				store, err := sqlite.NewRuleStore("file::memory:?cache=shared", log.Named("rules"))
				if err != nil {
					return fmt.Errorf("open rule store: %w", err)
				}
				defer store.Close()

				return store.DumpSchema(cmd.Context(), cmd.OutOrStdout())
			},
		},
	)

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	colorSubtle  = lipgloss.Color("241")
	colorPrimary = lipgloss.Color("86")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	currentStyle = cellStyle.Bold(true)
	offlineStyle = cellStyle.Italic(true).Foreground(colorSubtle)
)

// renderSnapshot prints the status label and one row per keyboard.
// Disconnected keyboards are shown in italics, the current one in bold.
func renderSnapshot(w io.Writer, snap pluggedkbd.Snapshot) {
	fmt.Fprintln(w, titleStyle.Render(snap.Label))
	if len(snap.Keyboards) == 0 {
		return
	}

	rows := make([][]string, 0, len(snap.Keyboards))
	for _, kb := range snap.Keyboards {
		marker := ""
		if kb.Current {
			marker = "▶"
		}
		source := "-"
		if kb.SourceID != "" {
			source = kb.SourceName + " (" + kb.SourceID + ")"
		}
		rows = append(rows, []string{marker, kb.ID, kb.DisplayName, strconv.Itoa(kb.Priority), source})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorSubtle)).
		Headers("", "DEVICE", "NAME", "PRIORITY", "SOURCE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case snap.Keyboards[row].Current:
				return currentStyle
			case !snap.Keyboards[row].Connected:
				return offlineStyle
			}
			return cellStyle
		})

	fmt.Fprintln(w, t.Render())
}
