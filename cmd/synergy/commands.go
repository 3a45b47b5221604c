package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/synergy/pkg/config"
	"github.com/ajitpratap0/synergy/pkg/errors"
	"github.com/ajitpratap0/synergy/pkg/json"
	"github.com/ajitpratap0/synergy/pkg/store"
	"github.com/ajitpratap0/synergy/pkg/synergy"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and list every violated rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.snap.Check(a.log) {
				fmt.Fprintln(out, "configuration is valid")
				return nil
			}
			var verr *config.ValidationError
			if errors.As(a.snap.Validate(), &verr) {
				for _, r := range verr.Violations {
					fmt.Fprintf(out, "%s: %s\n", r.Name, r.Message)
				}
			}
			return config.AsError(a.snap.Validate())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Marshal(a.snap)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}

// recordView is the JSON shape records are printed in
type recordView struct {
	Key       string       `json:"key"`
	Fields    store.Fields `json:"fields"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func writeJSON(w io.Writer, v any) error {
	if err := json.WriteLine(w, v); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode output")
	}
	return nil
}

// parseWhere turns field=value pairs into an equality filter. Values are
// decoded as JSON when possible so numbers and booleans compare as such.
func parseWhere(pairs []string) (store.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make([]store.Filter, 0, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "invalid filter %q, expected field=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		filters = append(filters, store.FieldEquals(name, value))
	}
	return store.And(filters...), nil
}

func (a *app) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Read and write raw records",
		Long: `Read and write raw records in any collection.

Without STORE_URI, or when the backend is unreachable, the store runs in
memory and records do not outlive the command.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "put <collection> <key> <json-object>",
		Short: "Store a JSON object under a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.UnmarshalObject([]byte(args[2]))
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeValidation, "record body must be a JSON object")
			}
			ctx := cmd.Context()
			mgr, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(ctx, mgr)

			if err := mgr.Put(ctx, args[0], args[1], store.Fields(body)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s/%s (%s)\n", args[0], args[1], mgr.State())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <collection> <key>",
		Short: "Print the record stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(ctx, mgr)

			rec, found, err := mgr.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("record %s/%s not found", args[0], args[1])
			}
			return writeJSON(cmd.OutOrStdout(), recordView(rec))
		},
	})

	var where []string
	queryCmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Print matching records, one JSON object per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseWhere(where)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			mgr, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(ctx, mgr)

			for rec, err := range mgr.Query(ctx, args[0], filter) {
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), recordView(rec)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	queryCmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Equality filter as field=value (repeatable)")
	cmd.AddCommand(queryCmd)

	return cmd
}

func (a *app) dataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Query domain data points and detected synergies",
	}

	var since time.Duration
	recentCmd := &cobra.Command{
		Use:   "recent <financial|social|iot>",
		Short: "Print the data points of a domain observed within a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := synergy.ParseDomain(args[0])
			if err != nil {
				return err
			}
			if since <= 0 {
				since = domain.Interval(a.snap.Domains) * time.Duration(a.snap.Domains.WindowSize)
			}
			ctx := cmd.Context()
			mgr, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(ctx, mgr)

			repo := synergy.NewRepository(mgr, a.snap, a.log)
			points, err := repo.RecentDataPoints(ctx, domain, time.Now().Add(-since))
			if err != nil {
				return err
			}
			for _, p := range points {
				if err := writeJSON(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	recentCmd.Flags().DurationVar(&since, "since", 0, "Window to look back over (default: domain interval x WINDOW_SIZE)")
	cmd.AddCommand(recentCmd)

	var minScore float64
	synergiesCmd := &cobra.Command{
		Use:   "synergies",
		Short: "Print detected synergies, highest score first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(ctx, mgr)

			results, err := synergy.NewRepository(mgr, a.snap, a.log).Synergies(ctx, minScore)
			if err != nil {
				return err
			}
			for _, r := range results {
				if err := writeJSON(cmd.OutOrStdout(), r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	synergiesCmd.Flags().Float64Var(&minScore, "min-score", 0, "Only print results scoring at least this much")
	cmd.AddCommand(synergiesCmd)

	return cmd
}
