package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querykit/pkg/logging"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

var errNoLastInsertID = errors.New("driver does not report generated ids; select them with RETURNING or OUTPUT instead")

// Outcome is what a statement produced. Kind says which of the other fields
// is meaningful.
type Outcome struct {
	Kind qsql.OutcomeKind `json:"kind" yaml:"kind"`

	// Columns and Rows hold a row set.
	Columns []string         `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty" yaml:"rows,omitempty"`

	// Affected is the affected row count of INSERT, UPDATE and DELETE.
	Affected int64 `json:"affected" yaml:"affected"`

	// Acknowledged is true for any other statement that ran successfully.
	Acknowledged bool `json:"acknowledged,omitempty" yaml:"acknowledged,omitempty"`
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	closeAfter bool
}

// WithCloseAfter closes the connection once the outcome has been produced.
func WithCloseAfter() ExecOption {
	return func(o *execOptions) {
		o.closeAfter = true
	}
}

// Execute runs one statement written with :name placeholders.
//
// Parameters the template does not use are dropped; a placeholder without a
// parameter fails with a BindingError before anything is sent. The verb of
// the template decides the outcome: SELECT and SHOW return rows, INSERT,
// UPDATE and DELETE return the affected row count, and anything else is
// acknowledged. An INSERT whose template mentions LAST_INSERT_ID() returns a
// single row holding the generated id instead of a count.
//
// Every failure is returned and also appended to the session's error log.
//
// Example:
//
//	out, err := s.Execute(ctx, "SELECT * FROM users WHERE id = :id", qsql.Params{"id": 7})
//	// out.Kind == qsql.KindRowSet
func (s *Session) Execute(ctx context.Context, template string, params qsql.Params, opts ...ExecOption) (*Outcome, error) {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.closeAfter {
		defer func() {
			_ = s.Close()
		}()
	}

	if err := qsql.ValidateTemplate(template); err != nil {
		return nil, s.fail(err, "Rejected statement")
	}

	params, err := s.reconcile(template, params)
	if err != nil {
		return nil, err
	}

	if literals := qsql.FindPlaceholdersInStringLiterals(template); len(literals) > 0 {
		s.logger.Warn("Placeholders inside string literals are not bound",
			zap.Strings("placeholders", literals),
			zap.String("query", logging.SanitizeQuery(template)))
	}

	classification := qsql.ClassifyVerb(template)
	native := template
	if classification.LastInsertID {
		native = qsql.WithoutLastInsertIDSelect(template)
	}

	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	if classification.LastInsertID && !s.conn.Dialect().SupportsLastInsertID() {
		return nil, s.fail(apperrors.Validation("%s: %v", s.conn.Dialect().Name(), errNoLastInsertID),
			"Rejected LAST_INSERT_ID() before execution",
			zap.String("query", logging.SanitizeQuery(template)))
	}

	stmt, err := s.conn.Prepare(ctx, native)
	if err != nil {
		return nil, s.fail(apperrors.Driver("prepare", err), "Failed to prepare statement",
			zap.String("query", logging.SanitizeQuery(native)))
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			s.logger.Debug("Failed to close statement", zap.String("error", logging.SanitizeError(err)))
		}
	}()

	if err := s.bindAll(ctx, stmt, template, params); err != nil {
		return nil, err
	}

	outcome, err := s.run(ctx, stmt, classification)
	if err != nil {
		return nil, s.fail(err, "Failed to execute statement",
			zap.String("verb", classification.Verb.String()),
			zap.String("query", logging.SanitizeQuery(native)))
	}

	s.logger.Debug("Statement executed",
		zap.String("verb", classification.Verb.String()),
		zap.String("outcome", outcome.Kind.String()),
		zap.Int64("affected", outcome.Affected),
		zap.Int("rows", len(outcome.Rows)))
	return outcome, nil
}

// reconcile checks params against the template's placeholders and returns
// them with every unused key pruned.
func (s *Session) reconcile(template string, params qsql.Params) (qsql.Params, error) {
	r := qsql.Reconcile(template, params)
	switch r.Status {
	case qsql.HasMissing:
		return nil, s.fail(r.Err(), "Missing parameters for placeholders",
			zap.Strings("missing", r.Missing),
			zap.String("query", logging.SanitizeQuery(template)))
	case qsql.HasExtras:
		s.logger.Debug("Dropping parameters without a placeholder", zap.Strings("extras", r.Extras))
		return qsql.PruneExtras(params, r.Extras), nil
	default:
		return params, nil
	}
}

func (s *Session) run(ctx context.Context, stmt datasource.Stmt, c qsql.Classification) (*Outcome, error) {
	if c.ReturnsRows() {
		res, err := stmt.Query(ctx)
		if err != nil {
			return nil, apperrors.Driver("execute", err)
		}
		return &Outcome{Kind: qsql.KindRowSet, Columns: res.Columns, Rows: res.Rows}, nil
	}

	res, err := stmt.Exec(ctx)
	if err != nil {
		return nil, apperrors.Driver("execute", err)
	}

	switch {
	case c.LastInsertID:
		if !res.HasLastInsertID {
			return nil, apperrors.Driver("last insert id", errNoLastInsertID)
		}
		s.logger.Info("Returning last row insert ID", zap.Int64("id", res.LastInsertID))
		return &Outcome{
			Kind:     qsql.KindRowSet,
			Columns:  []string{qsql.LastInsertIDMarker},
			Rows:     []map[string]any{{qsql.LastInsertIDMarker: res.LastInsertID}},
			Affected: res.RowsAffected,
		}, nil
	case c.Kind == qsql.KindAffectedCount:
		return &Outcome{Kind: qsql.KindAffectedCount, Affected: res.RowsAffected}, nil
	default:
		return &Outcome{Kind: qsql.KindAcknowledged, Acknowledged: true}, nil
	}
}
