package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/skyrank/internal/backend"
	"github.com/abelbrown/skyrank/internal/model"
	"github.com/abelbrown/skyrank/internal/ranking"
	"github.com/abelbrown/skyrank/internal/render"
	"github.com/abelbrown/skyrank/internal/store"
)

// newRankCmd creates the rank subcommand.
func newRankCmd(g *globals) *cobra.Command {
	var (
		strategy string
		input    string
		db       string
		at       string
		top      int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Order posts by a ranking strategy",
		Long: "Rank post metrics read from a JSON array (--input, \"-\" for stdin) " +
			"or from the snapshots stored by mix (--db). Strategies: newest, " +
			"trending, wilson_score, score, controversial.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if strategy == "" {
				strategy = cfg.Strategy()
			}
			r, err := ranking.ByName(strategy)
			if err != nil {
				return err
			}

			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --now %q: %w", at, err)
				}
			}

			if db == "" && input == "" {
				db = cfg.Store.Path
			}
			posts, err := loadPosts(cmd, input, db)
			if err != nil {
				return err
			}

			rctx := cfg.RankingContext(now)
			var sorted []model.PostMetrics
			if _, ok := r.(*ranking.WilsonRanker); ok && rctx.WilsonZ != ranking.DefaultWilsonZ {
				// Backends only serve the 95% bound
				sorted = ranking.Sort(posts, r, rctx)
			} else if sorted, err = backend.Sort(backend.Default(), strategy, posts, now); err != nil {
				return err
			}
			if top > 0 {
				// Ranking is idempotent, so this only cuts the list
				sorted = ranking.TopN(sorted, top, r, rctx)
			}

			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), sorted)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), render.Ranking(sorted, r, rctx, outputWidth(cmd.OutOrStdout())))
			return err
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "ranking strategy (default from config)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON array of post metrics, - for stdin")
	cmd.Flags().StringVar(&db, "db", "", "SQLite database with stored post snapshots")
	cmd.Flags().StringVar(&at, "now", "", "reference time for trending, RFC3339 (default: current time)")
	cmd.Flags().IntVarP(&top, "top", "n", 0, "show only the first n posts")

	return cmd
}

func loadPosts(cmd *cobra.Command, input, db string) ([]model.PostMetrics, error) {
	switch {
	case input != "":
		data, err := readInput(cmd, input)
		if err != nil {
			return nil, err
		}
		return model.DecodePosts(data)
	case db != "":
		st, err := store.Open(db)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.Posts()
	default:
		return nil, errors.New("no posts: pass --input or --db")
	}
}
