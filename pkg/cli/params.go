package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-querykit/pkg/jsonutil"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// paramFlags collects statement parameters from -p name=value pairs and an
// optional --params JSON object. Pairs win over the JSON object.
type paramFlags struct {
	pairs []string
	json  string
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.pairs, "param", "p", nil, "Parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&f.json, "params", "", `Parameters as a JSON object, e.g. '{"id": 7}'`)
}

func (f *paramFlags) params() (qsql.Params, error) {
	params := qsql.Params{}
	if f.json != "" {
		parsed, err := jsonutil.ParseParams([]byte(f.json))
		if err != nil {
			return nil, err
		}
		params = parsed
	}

	pairs, err := parsePairs(f.pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range pairs {
		params[k] = v
	}
	return params, nil
}

// parsePairs reads name=value strings. A value that parses as a JSON scalar
// is bound as that scalar, so id=7 is an integer and name=bob a string.
func parsePairs(pairs []string) (qsql.Params, error) {
	params := make(qsql.Params, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected name=value)", pair)
		}
		params[name] = jsonutil.ScalarOrString(value)
	}
	return params, nil
}
