// Package labels implements the labels command for managing the label
// vocabulary.
package labels

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/segmentlab/internal/app"
	"github.com/tphakala/segmentlab/internal/cliutil"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/errors"
)

// Command creates the labels command with its list, add and delete
// subcommands. Without a subcommand the labels are listed.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Manage segment labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return list(cmd.Context(), cmd.OutOrStdout(), settings)
		},
	}

	var description string
	addCmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return add(cmd.Context(), cmd.OutOrStdout(), settings, args[0], description)
		},
	}
	addCmd.Flags().StringVar(&description, "description", "", "Optional label description")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List labels by name",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return list(cmd.Context(), cmd.OutOrStdout(), settings)
			},
		},
		addCmd,
		&cobra.Command{
			Use:   "delete [id]",
			Short: "Delete a label; segments using it become unlabeled",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := cliutil.ParseID(args[0])
				if err != nil {
					return err
				}
				return remove(cmd.Context(), cmd.OutOrStdout(), settings, id)
			},
		},
	)

	return cmd
}

func list(ctx context.Context, out io.Writer, settings *conf.Settings) error {
	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	labels, err := a.Store.Labels.List(ctx)
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		fmt.Fprintln(out, "No labels")
		return nil
	}

	rows := make([][]string, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []string{strconv.FormatUint(uint64(l.ID), 10), l.Name, l.Description})
	}
	fmt.Fprintln(out, cliutil.RenderTable([]string{"ID", "Name", "Description"}, rows, []cliutil.Align{cliutil.AlignRight}))
	return nil
}

func add(ctx context.Context, out io.Writer, settings *conf.Settings, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.ValidationError("label name must not be empty")
	}

	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	label, err := a.Store.Labels.Create(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created label %d %q\n", label.ID, label.Name)
	return nil
}

func remove(ctx context.Context, out io.Writer, settings *conf.Settings, id uint) error {
	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Store.Labels.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted label %d\n", id)
	return nil
}
