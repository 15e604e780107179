package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-querykit/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-querykit/pkg/session"
)

// txResult is what the tx command prints.
type txResult struct {
	Counts   []int64 `json:"counts" yaml:"counts"`
	TestMode bool    `json:"test_mode,omitempty" yaml:"test_mode,omitempty"`
}

func (a *app) newTxCommand() *cobra.Command {
	var pf paramFlags
	var file string
	var testMode bool

	cmd := &cobra.Command{
		Use:   "tx [sql...]",
		Short: "Execute statements in one transaction",
		Long: `Execute statements atomically: either every statement commits or none does.

Statements come from the arguments, all sharing the -p parameters, or from a
YAML or JSON batch file of {query, params} entries. A single statement holding
several semicolon separated statements is split into a batch.

With --test the transaction always rolls back; the affected row counts are
still printed.`,
		Example: `  querykit tx "UPDATE users SET age = :age WHERE id = :id" "DELETE FROM sessions WHERE user_id = :id" -p id=7 -p age=30
  querykit tx --file batch.yaml --test`,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := buildBatch(args, file, &pf)
			if err != nil {
				return err
			}
			var opts []session.TxOption
			if testMode {
				opts = append(opts, session.WithTestMode())
			}
			return a.run(cmd, func(ctx context.Context, s *session.Session) (any, error) {
				counts, err := s.RunTransaction(ctx, batch, opts...)
				if err != nil {
					if testMode && counts != nil {
						return partial{txResult{Counts: counts, TestMode: true}}, err
					}
					return nil, err
				}
				return txResult{Counts: counts, TestMode: testMode}, nil
			})
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Batch file (.yaml, .yml or .json)")
	cmd.Flags().BoolVar(&testMode, "test", false, "Roll back instead of committing")

	return cmd
}

func buildBatch(args []string, file string, pf *paramFlags) (session.Batch, error) {
	if file != "" && len(args) > 0 {
		return nil, fmt.Errorf("give statements as arguments or with --file, not both")
	}
	if file != "" {
		return readBatchFile(file)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no statements given")
	}

	params, err := pf.params()
	if err != nil {
		return nil, err
	}
	batch := make(session.Batch, len(args))
	for i, q := range args {
		batch[i] = session.BatchEntry{Query: q, Params: params.Clone()}
	}
	return batch, nil
}

type jsonBatchEntry struct {
	Query  string                     `json:"query"`
	Params map[string]json.RawMessage `json:"params"`
}

func readBatchFile(path string) (session.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var entries []jsonBatchEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		batch := make(session.Batch, len(entries))
		for i, e := range entries {
			params, err := jsonutil.Params(e.Params)
			if err != nil {
				return nil, fmt.Errorf("batch entry %d: %w", i, err)
			}
			batch[i] = session.BatchEntry{Query: e.Query, Params: params}
		}
		return batch, nil
	}

	var batch session.Batch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return batch, nil
}
