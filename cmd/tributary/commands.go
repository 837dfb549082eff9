package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sydlexius/tributary/internal/gateway"
	"github.com/sydlexius/tributary/internal/provider"
	"github.com/sydlexius/tributary/internal/reconcile"
	"github.com/sydlexius/tributary/internal/version"
)

type rootOptions struct {
	configPath string
	providers  []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tributary",
		Short:         "Reconcile music metadata across providers",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", envOr("TW_CONFIG_PATH", "tributary.yaml"), "path to the YAML config file")
	root.PersistentFlags().StringSliceVarP(&opts.providers, "providers", "p", nil, "providers to query (default: all enabled)")

	root.AddCommand(
		newSyncCmd(opts),
		newSearchCmd(opts),
		newMatchCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var req reconcile.Request
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch an artist from every provider and apply the changes to the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.syncHandler(cmd.Context())
			if err != nil {
				return err
			}
			req.Providers = providerNames(opts.providers)
			report, err := h.Sync(cmd.Context(), req)
			if report != nil {
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&req.ArtistKey, "artist-key", "", "catalog key of the artist")
	cmd.Flags().StringVar(&req.ArtistID, "artist-id", "", "provider id (or name) of the artist")
	_ = cmd.MarkFlagRequired("artist-key")
	_ = cmd.MarkFlagRequired("artist-id")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search every provider and list tracks by relevance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.searcher().Search(cmd.Context(), strings.Join(args, " "), providerNames(opts.providers))
			if err != nil {
				return err
			}
			if limit > 0 && len(res.Tracks) > limit {
				res.Tracks = res.Tracks[:limit]
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of tracks to print (0 for all)")
	return cmd
}

func newMatchCmd(opts *rootOptions) *cobra.Command {
	var (
		limit        int
		minArtistSim float64
		fuzzyMax     int
	)
	cmd := &cobra.Command{
		Use:   "match QUERY",
		Short: `Rank provider tracks against "Artist - Title"`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			matchOpts := a.cfg.Matching
			if cmd.Flags().Changed("min-artist-sim") {
				matchOpts.MinArtistSim = minArtistSim
			}
			if cmd.Flags().Changed("fuzzy-max") {
				matchOpts.FuzzyMax = fuzzyMax
			}
			res, err := a.searcher().Match(cmd.Context(), strings.Join(args, " "), providerNames(opts.providers), matchOpts)
			if err != nil {
				return err
			}
			if limit > 0 && len(res.Results) > limit {
				res.Results = res.Results[:limit]
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results to print (0 for all)")
	cmd.Flags().Float64Var(&minArtistSim, "min-artist-sim", 0, "override the minimum artist similarity")
	cmd.Flags().IntVar(&fuzzyMax, "fuzzy-max", 0, "score only the N closest candidates (0 scores all)")
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every enabled provider once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			names := providerNames(opts.providers)
			if len(names) == 0 {
				names = a.registry.Names()
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tSTATUS\tDETAIL") //nolint:errcheck
			down := 0
			for _, name := range names {
				h, err := a.gateway.CheckHealth(cmd.Context(), name)
				detail := ""
				if err != nil {
					detail = err.Error()
					down++
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name.DisplayName(), h.Status, detail) //nolint:errcheck
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if down > 0 {
				return fmt.Errorf("%d of %d providers unhealthy", down, len(names))
			}
			return nil
		},
	}
}

func providerNames(in []string) []provider.ProviderName {
	if len(in) == 0 {
		return nil
	}
	out := make([]provider.ProviderName, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, provider.ProviderName(s))
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Compile-time checks that the concrete types satisfy the interfaces the
// reconcile package consumes.
var (
	_ reconcile.ArtistFetcher = (*gateway.ArtistGateway)(nil)
	_ reconcile.TrackSearcher = (*gateway.Gateway)(nil)
)
