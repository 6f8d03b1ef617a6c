package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"substore-client/app"
	"substore-client/internal/catalog"
	"substore-client/internal/domain"
	"substore-client/internal/editor"
	"substore-client/internal/pipeline"
	"substore-client/internal/preview"
)

func newListCommand(flags *rootFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions, collections and artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, false, func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
				c := a.Catalog()
				if err := c.Refresh(ctx, force); err != nil {
					return err
				}
				if err := c.RefreshArtifacts(ctx); err != nil {
					return err
				}
				printCatalog(cmd.OutOrStdout(), c)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "drop cached usage before listing")
	return cmd
}

func printCatalog(out io.Writer, c *catalog.Catalog) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "SUBSCRIPTION\tSOURCE\tUSAGE")
	for _, row := range c.Subscriptions() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.Subscription.Name, row.Subscription.Source, row.UsageText())
	}
	fmt.Fprintln(w, "\nCOLLECTION\tMEMBERS\t")
	for _, col := range c.Collections() {
		fmt.Fprintf(w, "%s\t%s\t\n", col.Name, strings.Join(col.Subscriptions, ", "))
	}
	fmt.Fprintln(w, "\nARTIFACT\tSOURCE\tPLATFORM\tSYNC")
	for _, a := range c.Artifacts() {
		fmt.Fprintf(w, "%s\t%s (%s)\t%s\t%t\n", a.Label(), a.Source, a.Type, a.Platform, a.Sync)
	}
}

func newUsageCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <subscription-url>",
		Short: "Show traffic usage reported by a subscription URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, false, func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
				u, err := a.Client().Usage(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), u.String())
				return nil
			})
		},
	}
}

func newPreviewCommand(flags *rootFlags) *cobra.Command {
	var showDiff bool
	cmd := &cobra.Command{
		Use:   "preview <sub|collection> <name>",
		Short: "Show the nodes of an entity before and after processing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, false, func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
				if err := a.Catalog().Refresh(ctx, false); err != nil {
					return err
				}
				res, err := a.Catalog().Preview(ctx, kind, args[1])
				if err != nil {
					return err
				}
				printPreview(cmd.OutOrStdout(), res, showDiff)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showDiff, "diff", false, "print a structural diff for every paired node")
	return cmd
}

func printPreview(out io.Writer, res preview.Result, showDiff bool) {
	if res.Stale {
		fmt.Fprintln(out, "note: the server copy changed since it was listed; previewing the server copy")
	}
	for _, row := range res.Rows {
		fmt.Fprintf(out, "[%s] %s\n", row.Kind, row.Label())
		if showDiff && row.Kind == preview.RowPaired {
			if diff := row.Diff(); diff != "" {
				fmt.Fprintln(out, diff)
			}
		}
	}
}

func newDeleteCommand(flags *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <sub|collection|artifact> <name>",
		Short: "Delete an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, false, func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
				confirm := promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout())
				if yes {
					confirm = func(string) bool { return true }
				}
				deleted, err := a.Catalog().Delete(ctx, kind, args[1], confirm)
				if err != nil {
					return err
				}
				if !deleted {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func promptConfirm(in io.Reader, out io.Writer) catalog.Confirm {
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N] ", prompt)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

type editFlags struct {
	set       []string
	quick     []string
	addOps    []string
	removeOps []int
	moveOps   []string
	dryRun    bool
}

func newEditCommand(flags *rootFlags) *cobra.Command {
	ef := &editFlags{}
	cmd := &cobra.Command{
		Use:   "edit <sub|collection|artifact> [name]",
		Short: "Create or update an entity; without a name a new one is created",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, false, func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
				c := a.Catalog()
				if err := c.Refresh(ctx, false); err != nil {
					return err
				}

				var session editor.Session
				if len(args) == 2 {
					session, err = c.Edit(ctx, kind, args[1])
				} else {
					session, err = c.Add(kind)
				}
				if err != nil {
					return err
				}

				if err := applyEdits(ctx, session, ef); err != nil {
					return err
				}
				if ef.dryRun {
					return printSession(cmd.OutOrStdout(), session)
				}
				if err := session.Save(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s %q\n", session.Kind(), session.Name())
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&ef.set, "set", nil, "set a field, key=value")
	cmd.Flags().StringArrayVar(&ef.quick, "quick", nil, "set a quick setting, key=value (e.g. udp=ENABLE, useless=REMOVE)")
	cmd.Flags().StringArrayVar(&ef.addOps, "add-op", nil, `append an operator, Type or Type={"arg":...} (see "substore ops")`)
	cmd.Flags().IntSliceVar(&ef.removeOps, "remove-op", nil, "remove the operator at a 1-based position")
	cmd.Flags().StringArrayVar(&ef.moveOps, "move-op", nil, "move the operator at a 1-based position by delta, position=delta (e.g. 3=-1)")
	cmd.Flags().BoolVar(&ef.dryRun, "dry-run", false, "print the result instead of saving")
	return cmd
}

// flagForm answers the editor's form with the values given on the
// command line.
func flagForm(pairs []string) (editor.Form, error) {
	edited := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, want key=value", pair)
		}
		edited[key] = value
	}

	return editor.FormFunc(func(ctx context.Context, fields []editor.Field, values map[string]string) (map[string]string, error) {
		known := make(map[string]bool, len(fields))
		for _, f := range fields {
			known[f.Key] = true
		}
		out := make(map[string]string, len(values))
		for k, v := range values {
			out[k] = v
		}
		for k, v := range edited {
			if !known[k] {
				return nil, fmt.Errorf("unknown field %q", k)
			}
			out[k] = v
		}
		return out, nil
	}), nil
}

func applyEdits(ctx context.Context, session editor.Session, ef *editFlags) error {
	form, err := flagForm(ef.set)
	if err != nil {
		return err
	}
	if err := session.Edit(ctx, form); err != nil {
		return err
	}

	p := session.Pipeline()
	if p == nil {
		if len(ef.quick)+len(ef.addOps)+len(ef.removeOps)+len(ef.moveOps) > 0 {
			return fmt.Errorf("%s has no process chain", session.Kind())
		}
		return nil
	}

	for _, pair := range ef.quick {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --quick %q, want key=value", pair)
		}
		if err := p.SetQuickSetting(key, value); err != nil {
			return err
		}
	}

	// Positions refer to the rows as loaded.
	rows := p.Rows()
	for _, pair := range ef.moveOps {
		rawPos, rawDelta, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --move-op %q, want position=delta", pair)
		}
		pos, err := strconv.Atoi(rawPos)
		if err != nil {
			return fmt.Errorf("invalid --move-op position %q: %w", rawPos, err)
		}
		delta, err := strconv.Atoi(rawDelta)
		if err != nil {
			return fmt.Errorf("invalid --move-op delta %q: %w", rawDelta, err)
		}
		if pos < 1 || pos > len(rows) {
			return fmt.Errorf("no operator at position %d", pos)
		}
		if err := p.Move(rows[pos-1].ID, delta); err != nil {
			return err
		}
	}

	for _, pos := range ef.removeOps {
		if pos < 1 || pos > len(rows) {
			return fmt.Errorf("no operator at position %d", pos)
		}
		if err := p.RemoveOperator(rows[pos-1].ID); err != nil {
			return err
		}
	}

	for _, spec := range ef.addOps {
		if err := addOperator(p, spec); err != nil {
			return err
		}
	}
	return nil
}

func addOperator(p *pipeline.Pipeline, spec string) error {
	name, rawArgs, hasArgs := strings.Cut(spec, "=")
	index, ok := p.Registry().Index(strings.TrimSpace(name))
	if !ok {
		if n, err := strconv.Atoi(name); err == nil {
			index = n
		} else {
			return domain.NewValidationError("type", "registry", fmt.Sprintf("unknown operator type %q", name))
		}
	}

	var args map[string]any
	if hasArgs {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
	}
	_, err := p.InsertOperator(index, args)
	return err
}

func printSession(out io.Writer, session editor.Session) error {
	values := session.Values()
	for _, f := range session.Fields() {
		fmt.Fprintf(out, "%s: %s\n", f.Label, values[f.Key])
	}
	if p := session.Pipeline(); p != nil {
		chain, err := p.Materialize()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(chain, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "process: %s\n", data)
	}
	return nil
}

func newSyncCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [artifact]",
		Short: "Upload one artifact, or every artifact flagged for sync",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, false, func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
				if len(args) == 1 {
					return a.Catalog().SyncArtifact(ctx, args[0])
				}
				return a.Catalog().SyncAll(ctx)
			})
		},
	}

	toggle := func(use string, on bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <artifact>",
			Short: fmt.Sprintf("Set the sync flag of an artifact to %t", on),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, flags, false, func(ctx context.Context, a *app.Application, _ *zap.Logger) error {
					if err := a.Catalog().RefreshArtifacts(ctx); err != nil {
						return err
					}
					return a.Catalog().SetArtifactSync(ctx, args[0], on)
				})
			},
		}
	}
	cmd.AddCommand(toggle("enable", true), toggle("disable", false))
	return cmd
}

func newOpsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the operator types accepted by --add-op",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printOperatorTypes(cmd.OutOrStdout(), pipeline.DefaultRegistry())
		},
	}
}

func printOperatorTypes(out io.Writer, registry *pipeline.Registry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tTYPE\tDEFAULT ARGS")
	for i, t := range registry.Types() {
		args, err := json.Marshal(t.DefaultArgs)
		if err != nil {
			return fmt.Errorf("failed to encode defaults of %s: %w", t.Type, err)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, t.DisplayName, t.Type, args)
	}
	return w.Flush()
}
