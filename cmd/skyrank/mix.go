package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/skyrank/internal/fetch"
	"github.com/abelbrown/skyrank/internal/logging"
	"github.com/abelbrown/skyrank/internal/mixer"
	"github.com/abelbrown/skyrank/internal/model"
	"github.com/abelbrown/skyrank/internal/render"
	"github.com/abelbrown/skyrank/internal/store"
)

// newMixCmd creates the mix subcommand.
func newMixCmd(g *globals) *cobra.Command {
	var (
		pages string
		limit int
		name  string
		db    string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "mix",
		Short: "Build one page of the weighted feed mix",
		Long: "Fetch every configured source, take each source's share of the page, " +
			"drop duplicate posts and print the result newest first. With --db the " +
			"next-page cursors are stored so the following call continues the mix.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if cmd.Flags().Changed("limit") {
				cfg.Mix.Limit = limit
			}
			if name != "" {
				cfg.Mix.Name = name
			}
			if db == "" {
				db = cfg.Store.Path
			}

			f, err := newSourceFetcher(pages, fetch.NewFeedFetcher(cfg.Fetch))
			if err != nil {
				return err
			}

			var st *store.Store
			cursors := model.Cursors{}
			if db != "" {
				st, err = store.Open(db)
				if err != nil {
					return err
				}
				defer st.Close()
				if !reset {
					if cursors, err = st.Cursors(cfg.Mix.Name); err != nil {
						return err
					}
				}
			}

			res := mixer.New(f).Mix(cmd.Context(), cfg.Mix.FeedEntries(), cfg.Mix.Limit, cursors)

			if st != nil {
				if err := saveMix(st, cfg.Mix.Name, res); err != nil {
					return err
				}
			}

			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), render.Feed(res.Feed, time.Now(), outputWidth(cmd.OutOrStdout())))
			return err
		},
	}

	cmd.Flags().StringVar(&pages, "pages", "", "JSON fixture of source pages to mix instead of fetching")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default from config)")
	cmd.Flags().StringVar(&name, "name", "", "mix name used to key stored cursors")
	cmd.Flags().StringVar(&db, "db", "", "SQLite database for cursors and post snapshots")
	cmd.Flags().BoolVar(&reset, "reset", false, "ignore stored cursors and start from the first page")

	return cmd
}

// newSourceFetcher serves every source from the fixture at pages when set;
// otherwise http(s) feed URIs are fetched over the network.
func newSourceFetcher(pages string, network mixer.Fetcher) (mixer.Fetcher, error) {
	router := fetch.NewRouter()
	if pages != "" {
		static, err := fetch.LoadStatic(pages)
		if err != nil {
			return nil, err
		}
		logging.Debug("Loaded page fixture", "path", pages, "sources", len(static.Keys()))
		return router.Kind(model.FeedTimeline, static).Kind(model.FeedCustom, static), nil
	}
	return router.Prefix("http://", network).Prefix("https://", network), nil
}

// saveMix stores the next cursors and a metrics snapshot of the page.
func saveMix(st *store.Store, mix string, res mixer.Result) error {
	if err := st.SaveCursors(mix, res.Cursors); err != nil {
		return err
	}
	downvotes, err := st.Downvotes()
	if err != nil {
		return err
	}
	n, err := st.SavePosts(model.MetricsFromTimeline(res.Feed, downvotes))
	if err != nil {
		return err
	}
	logging.Debug("Saved mix", "mix", mix, "posts", n, "cursors", len(res.Cursors))
	return nil
}
