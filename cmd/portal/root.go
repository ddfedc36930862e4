package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/usecase"
)

type cliOptions struct {
	actor string
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{actor: "cli"}

	root := &cobra.Command{
		Use:           "portal",
		Short:         "API developer portal catalog reconciliation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.actor, "actor", opts.actor, "actor recorded in logs for admin edits")

	root.AddCommand(
		newServeCmd(&opts),
		newLambdaCmd(&opts),
		newRebuildCmd(&opts),
		newVisibilityCmd(&opts),
		newManagedCmd(&opts),
		newGenericCmd(&opts),
		newSDKGenCmd(&opts),
	)
	return root
}

// withApp wires the application for one command and releases it afterwards.
func withApp(ctx context.Context, forceLocal bool, fn func(*app) error) (err error) {
	a, err := newApp(ctx, forceLocal)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(a)
}

func newRebuildCmd(_ *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Run one catalog rebuild pass in-process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				catalog, err := a.rebuild.Execute(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), domain.Summarize(catalog))
			})
		},
	}
}

func newVisibilityCmd(_ *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "visibility",
		Short: "Print the visibility report for every live API stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				report, err := a.visibility.Execute(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newManagedCmd(opts *cliOptions) *cobra.Command {
	var unsubscribable bool
	cmd := &cobra.Command{
		Use:   "managed",
		Short: "Show or hide gateway-managed API stages in the catalog",
	}
	cmd.PersistentFlags().BoolVar(&unsubscribable, "unsubscribable", false, "use the unsubscribable document key")

	request := func(args []string) usecase.ManagedDocumentRequest {
		return usecase.ManagedDocumentRequest{
			APIID:        args[0],
			Stage:        args[1],
			Subscribable: !unsubscribable,
			Actor:        opts.actor,
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <apiId> <stage>",
			Short: "Export the stage description and add it to the catalog",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), false, func(a *app) error {
					return a.documents.AddManaged(cmd.Context(), request(args))
				})
			},
		},
		&cobra.Command{
			Use:   "remove <apiId> <stage>",
			Short: "Remove the stage description from the catalog",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), false, func(a *app) error {
					return a.documents.RemoveManaged(cmd.Context(), request(args))
				})
			},
		},
	)
	return cmd
}

func newGenericCmd(opts *cliOptions) *cobra.Command {
	var headers []string
	cmd := &cobra.Command{
		Use:   "generic",
		Short: "Manage generic API descriptions",
	}

	importCmd := &cobra.Command{
		Use:   "import <source>...",
		Short: "Import descriptions from URLs, github:// paths or local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			sources := make([]usecase.SourceConfig, 0, len(args))
			for _, arg := range args {
				sources = append(sources, usecase.SourceConfig{URL: arg, Headers: parsed})
			}
			return withApp(cmd.Context(), false, func(a *app) error {
				ids, err := a.importer.ExecuteAll(cmd.Context(), sources, opts.actor)
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return err
			})
		},
	}
	importCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header as Name=Value (repeatable)")

	cmd.AddCommand(
		importCmd,
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a generic API from the catalog",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), false, func(a *app) error {
					return a.documents.RemoveGeneric(cmd.Context(), args[0], opts.actor)
				})
			},
		},
	)
	return cmd
}

func newSDKGenCmd(_ *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sdkgen",
		Short: "Read or update SDK generation flags",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the SDK generation flags",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), false, func(a *app) error {
					flags, err := a.sdkGeneration.Get(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), flags)
				})
			},
		},
		&cobra.Command{
			Use:   "set <key> <true|false>",
			Short: "Enable or disable SDK generation for an API",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				enabled, err := strconv.ParseBool(args[1])
				if err != nil {
					return fmt.Errorf("invalid flag value %q: %w", args[1], err)
				}
				return withApp(cmd.Context(), false, func(a *app) error {
					changed, err := a.sdkGeneration.Set(cmd.Context(), args[0], enabled)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]bool{"changed": changed})
				})
			},
		},
	)
	return cmd
}

func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected Name=Value", v)
		}
		headers[strings.TrimSpace(name)] = value
	}
	return headers, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
