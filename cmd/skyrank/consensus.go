package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abelbrown/skyrank/internal/backend"
	"github.com/abelbrown/skyrank/internal/logging"
	"github.com/abelbrown/skyrank/internal/model"
	"github.com/abelbrown/skyrank/internal/render"
	"github.com/abelbrown/skyrank/internal/store"
)

// newConsensusCmd creates the consensus subcommand.
func newConsensusCmd(g *globals) *cobra.Command {
	var (
		input string
		db    string
	)

	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Tally statements and cluster voters into opinion groups",
		Long: "Analyze votes read from a JSON array (--input, \"-\" for stdin). " +
			"With --db the votes are saved first and the analysis covers every " +
			"stored vote, a later vote replacing an earlier one by the same user.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if db == "" {
				db = g.cfg.Store.Path
			}
			if input == "" && db == "" {
				return errors.New("no votes: pass --input or --db")
			}

			var votes []model.Vote
			if input != "" {
				data, err := readInput(cmd, input)
				if err != nil {
					return err
				}
				if votes, err = model.DecodeVotes(data); err != nil {
					return err
				}
			}

			if db != "" {
				var err error
				if votes, err = syncVotes(db, votes); err != nil {
					return err
				}
			}

			res := backend.Default().Analyze(votes)

			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), render.Consensus(res, outputWidth(cmd.OutOrStdout())))
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON array of votes, - for stdin")
	cmd.Flags().StringVar(&db, "db", "", "SQLite database to store votes in and analyze")

	return cmd
}

// syncVotes saves votes to the database at path and returns everything
// stored there.
func syncVotes(path string, votes []model.Vote) ([]model.Vote, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	n, err := st.SaveVotes(votes)
	if err != nil {
		return nil, err
	}
	all, err := st.Votes()
	if err != nil {
		return nil, err
	}
	logging.Debug("Votes synced", "saved", n, "stored", len(all))
	return all, nil
}
