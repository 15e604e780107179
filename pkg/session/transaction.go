package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querykit/pkg/audit"
	"github.com/ekaya-inc/ekaya-querykit/pkg/logging"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// BatchEntry is one statement of a transaction batch.
type BatchEntry struct {
	Query  string      `json:"query" yaml:"query"`
	Params qsql.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// Batch is an ordered list of statements run in one transaction. Templates
// must be distinct.
type Batch []BatchEntry

// TxOption adjusts a single RunTransaction call.
type TxOption func(*txOptions)

type txOptions struct {
	testMode bool
}

// WithTestMode rolls the transaction back even when every statement succeeds.
// The affected row counts are still returned, making the call a dry run.
func WithTestMode() TxOption {
	return func(o *txOptions) {
		o.testMode = true
	}
}

func (b Batch) validate() error {
	if len(b) == 0 {
		return apperrors.Validation("transaction batch is empty")
	}
	seen := make(map[string]bool, len(b))
	for i, entry := range b {
		if err := qsql.ValidateTemplate(entry.Query); err != nil {
			return fmt.Errorf("batch entry %d: %w", i, err)
		}
		key := strings.TrimSpace(entry.Query)
		if seen[key] {
			return apperrors.Validation("duplicate query in transaction batch: %s", logging.SanitizeQuery(key))
		}
		seen[key] = true
	}
	return nil
}

// expand splits a single multi-statement entry into one entry per statement,
// each with the full parameter mapping.
func (b Batch) expand() Batch {
	if len(b) != 1 || !qsql.IsMultiStatement(b[0].Query) {
		return b
	}
	statements := qsql.SplitStatements(b[0].Query)
	out := make(Batch, len(statements))
	for i, stmt := range statements {
		out[i] = BatchEntry{Query: stmt, Params: b[0].Params}
	}
	return out
}

// RunTransaction executes batch atomically and returns the affected row count
// of each statement. Any error, including a failed bind, rolls the whole batch
// back and returns a TransactionError wrapping the first cause. Nested
// transactions are refused with a ConflictError.
//
// In test mode the transaction is always rolled back and the counts gathered
// so far are returned, together with the first error if there was one.
func (s *Session) RunTransaction(ctx context.Context, batch Batch, opts ...TxOption) ([]int64, error) {
	var o txOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := batch.validate(); err != nil {
		return nil, s.fail(err, "Rejected transaction batch")
	}
	entries := batch.expand()

	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	if s.conn.InTransaction() {
		return nil, s.fail(fmt.Errorf("%w: a transaction is already active on this session", apperrors.ErrConflict),
			"Refused nested transaction")
	}

	if err := s.conn.Begin(ctx); err != nil {
		return nil, s.fail(fmt.Errorf("%w: begin: %w", apperrors.ErrTransaction, err), "Failed to begin transaction")
	}
	if !s.conn.InTransaction() {
		return nil, s.fail(fmt.Errorf("%w: transaction not active after begin", apperrors.ErrTransaction),
			"Failed to begin transaction")
	}

	logged := s.errs.Len()
	counts := make([]int64, 0, len(entries))
	for i, entry := range entries {
		n, err := s.runEntry(ctx, entry)
		if err != nil {
			s.logger.Error("Transaction statement failed",
				zap.Int("statement", i),
				zap.String("query", logging.SanitizeQuery(entry.Query)))
			break
		}
		counts = append(counts, n)
	}

	var cause error
	if failures := s.errs.Since(logged); len(failures) > 0 {
		cause = failures[0]
	}

	if o.testMode {
		s.rollback(ctx, len(counts), true, cause)
		s.logger.Info("Test mode transaction rolled back", zap.Int("statements", len(counts)))
		if cause != nil {
			return counts, fmt.Errorf("%w: test run failed: %w", apperrors.ErrTransaction, cause)
		}
		return counts, nil
	}

	if cause != nil {
		s.rollback(ctx, len(counts), false, cause)
		return nil, fmt.Errorf("%w: rolled back: %w", apperrors.ErrTransaction, cause)
	}

	if err := s.conn.Commit(ctx); err != nil {
		err = s.fail(fmt.Errorf("%w: commit: %w", apperrors.ErrTransaction, err), "Failed to commit transaction")
		s.rollback(ctx, len(counts), false, err)
		return nil, err
	}

	s.logger.Debug("Transaction committed", zap.Int("statements", len(counts)))
	return counts, nil
}

// runEntry executes one statement inside the open transaction.
func (s *Session) runEntry(ctx context.Context, entry BatchEntry) (int64, error) {
	params, err := s.reconcile(entry.Query, entry.Params)
	if err != nil {
		return 0, err
	}

	stmt, err := s.conn.Prepare(ctx, entry.Query)
	if err != nil {
		return 0, s.fail(apperrors.Driver("prepare", err), "Failed to prepare statement",
			zap.String("query", logging.SanitizeQuery(entry.Query)))
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			s.logger.Debug("Failed to close statement", zap.String("error", logging.SanitizeError(err)))
		}
	}()

	if err := s.bindAll(ctx, stmt, entry.Query, params); err != nil {
		return 0, err
	}

	res, err := stmt.Exec(ctx)
	if err != nil {
		return 0, s.fail(apperrors.Driver("execute", err), "Failed to execute statement",
			zap.String("query", logging.SanitizeQuery(entry.Query)))
	}
	return res.RowsAffected, nil
}

// rollback aborts the open transaction, logging any failure, and records the
// rollback in the audit trail.
func (s *Session) rollback(ctx context.Context, statements int, testMode bool, cause error) {
	if s.conn == nil || !s.conn.InTransaction() {
		return
	}

	details := audit.RollbackDetails{Statements: statements, TestMode: testMode}
	if cause != nil {
		details.Cause = logging.SanitizeError(cause)
	}
	s.auditor.LogRollback(s.source(), details)

	if err := s.conn.Rollback(ctx); err != nil {
		_ = s.fail(fmt.Errorf("%w: rollback: %w", apperrors.ErrTransaction, err), "Failed to roll back transaction")
		return
	}
	s.logger.Debug("Transaction rolled back")
}
