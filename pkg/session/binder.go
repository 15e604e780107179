package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querykit/pkg/audit"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// Bind assigns value to the placeholder name of stmt. The bind type is
// explicitType when given, else derived from the declared type of the column
// name in tableHint, else inferred from the value. Collections are always
// rejected. Failures are recorded in the error log and returned; the caller
// decides whether to go on.
func (s *Session) Bind(ctx context.Context, stmt datasource.Stmt, name string, value any, explicitType *qsql.ParamType, tableHint string) error {
	param := qsql.NormalizeName(name)

	if qsql.IsCollection(value) {
		return s.bindFailed(&apperrors.BindingError{
			Param:  param,
			Reason: fmt.Sprintf("collection values cannot be bound (%T)", value),
		}, "Rejected collection parameter")
	}

	t, err := s.resolveType(ctx, name, value, explicitType, tableHint)
	if err != nil {
		return s.bindFailed(&apperrors.BindingError{Param: param, Reason: err.Error()},
			"Failed to resolve parameter type")
	}

	if err := stmt.Bind(param, value, t); err != nil {
		return s.bindFailed(&apperrors.BindingError{
			Param:  param,
			Reason: fmt.Sprintf("failed to bind as %s: %v", t, err),
		}, "Failed to bind parameter", zap.Stringer("type", t))
	}

	s.logger.Debug("Parameter bound", zap.String("param", param), zap.Stringer("type", t))
	return nil
}

func (s *Session) bindFailed(err *apperrors.BindingError, msg string, fields ...zap.Field) error {
	s.auditor.LogBindingFailure(s.source(), err.Param, err.Reason)
	return s.fail(err, msg, append(fields, zap.String("param", err.Param))...)
}

func (s *Session) resolveType(ctx context.Context, name string, value any, explicitType *qsql.ParamType, tableHint string) (qsql.ParamType, error) {
	if explicitType != nil {
		return *explicitType, nil
	}
	if tableHint != "" {
		declared, err := s.ColDatatype(ctx, qsql.BareName(name), tableHint)
		if err != nil {
			return qsql.TypeNull, err
		}
		if declared != "" {
			if value == nil {
				return qsql.TypeNull, nil
			}
			return qsql.TypeFromDeclared(declared), nil
		}
	}
	return qsql.InferType(value)
}

// bindAll binds params in sorted key order, so when both "x" and ":x" are
// given the bare key is bound last and wins. Bind failures are logged and
// skipped unless the session binds strictly.
func (s *Session) bindAll(ctx context.Context, stmt datasource.Stmt, template string, params qsql.Params) error {
	if s.detectInjection {
		for _, hit := range qsql.CheckAllParameters(params) {
			s.auditor.LogInjectionAttempt(s.source(), audit.InjectionDetails{
				ParamName:   hit.ParamName,
				ParamValue:  fmt.Sprint(hit.ParamValue),
				Fingerprint: hit.Fingerprint,
				Query:       template,
			})
		}
	}

	for _, key := range params.SortedKeys() {
		if err := s.Bind(ctx, stmt, key, params[key], nil, ""); err != nil && s.strictBind {
			return err
		}
	}
	return nil
}
