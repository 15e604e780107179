// Package session runs parameterized statements and atomic batches against one
// database connection. A Session reconciles named placeholders with the
// supplied parameters, binds typed values, classifies each statement by its
// verb to decide what to return, and caches the schema for the query builders.
//
// A Session is not safe for concurrent use; give each worker its own.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querykit/pkg/audit"
	"github.com/ekaya-inc/ekaya-querykit/pkg/config"
	"github.com/ekaya-inc/ekaya-querykit/pkg/logging"
	"github.com/ekaya-inc/ekaya-querykit/pkg/retry"
)

// Session owns one database connection, its schema cache and its error log.
type Session struct {
	id      uuid.UUID
	cfg     config.DatabaseConfig
	logger  *zap.Logger
	auditor *audit.SecurityAuditor

	factory         datasource.ConnFactory
	retry           *retry.Config
	strictBind      bool
	detectInjection bool

	conn   datasource.Conn
	schema schemaCache
	errs   ErrorLog
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFactory replaces the registry-backed connection factory.
func WithFactory(factory datasource.ConnFactory) Option {
	return func(s *Session) {
		s.factory = factory
	}
}

// WithRetry sets the backoff used when opening a connection. Statements are
// never retried.
func WithRetry(cfg *retry.Config) Option {
	return func(s *Session) {
		s.retry = cfg
	}
}

// WithStrictBind makes the first failed bind abort the statement. By default
// bind failures are logged and execution continues.
func WithStrictBind() Option {
	return func(s *Session) {
		s.strictBind = true
	}
}

// WithInjectionCheck logs a warning for string parameters that look like SQL
// injection. Binding is never blocked.
func WithInjectionCheck() Option {
	return func(s *Session) {
		s.detectInjection = true
	}
}

// WithSessionConfig applies the session section of the configuration file.
func WithSessionConfig(cfg config.SessionConfig) Option {
	return func(s *Session) {
		s.strictBind = s.strictBind || cfg.StrictBind
		s.detectInjection = s.detectInjection || cfg.DetectInjection
	}
}

// New creates a session for cfg. No connection is opened until the first
// statement or an explicit Connect.
func New(cfg config.DatabaseConfig, opts ...Option) (*Session, error) {
	if cfg.Type == "" {
		return nil, apperrors.Validation("database type is required")
	}

	s := &Session{
		id:     uuid.New(),
		cfg:    cfg,
		logger: zap.NewNop(),
		schema: newSchemaCache(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.Named("session").With(zap.String("session_id", s.id.String()))
	s.auditor = audit.NewSecurityAuditor(s.logger)
	if s.factory == nil {
		s.factory = datasource.NewConnFactory(s.logger)
	}
	if s.retry == nil {
		s.retry = retry.WithMaxRetries(cfg.ConnectRetries)
	}

	return s, nil
}

func (s *Session) source() audit.Source {
	return audit.Source{SessionID: s.id, Database: s.cfg.Type + "/" + s.cfg.Name}
}

// ID returns the session's unique id, which also tags every log line.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Dialect returns the dialect of the open connection, or nil when not connected.
func (s *Session) Dialect() datasource.Dialect {
	if s.conn == nil {
		return nil
	}
	return s.conn.Dialect()
}

// Connect opens the connection if needed. A connection that fails the
// dialect's probe query is closed and replaced.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn != nil {
		err := s.conn.Ping(ctx)
		if err == nil {
			return nil
		}
		s.logger.Warn("Connection probe failed, reconnecting",
			zap.String("error", logging.SanitizeError(err)))
		_ = s.closeConn()
	}

	rc := *s.retry
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger.Warn("Connect attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("error", logging.SanitizeError(err)))
	}

	conn, err := retry.DoIfRetryable(ctx, &rc, func() (datasource.Conn, error) {
		return s.factory.Open(ctx, s.cfg.Type, s.cfg.AdapterConfig())
	})
	if err != nil {
		return s.fail(apperrors.Driver("connect", err), "Failed to connect",
			zap.String("type", s.cfg.Type))
	}

	s.conn = conn
	s.logger.Info("Connected", zap.String("type", s.cfg.Type), zap.String("database", s.cfg.Name))
	return nil
}

// CheckConnection reports whether the connection is open and answers the probe query.
func (s *Session) CheckConnection(ctx context.Context) bool {
	if s.conn == nil {
		return false
	}
	if err := s.conn.Ping(ctx); err != nil {
		s.logger.Debug("Connection check failed", zap.String("error", logging.SanitizeError(err)))
		return false
	}
	return true
}

// Close releases the connection, rolling back any open transaction. Closing a
// session that is not connected is a no-op. The schema cache survives.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.closeConn(); err != nil {
		return s.fail(apperrors.Driver("close", err), "Failed to close connection")
	}
	s.logger.Debug("Connection closed")
	return nil
}

func (s *Session) closeConn() error {
	conn := s.conn
	s.conn = nil
	return conn.Close()
}

// InTransaction reports whether a transaction is open on the connection.
func (s *Session) InTransaction() bool {
	return s.conn != nil && s.conn.InTransaction()
}

// Errors returns every recorded error message, oldest first.
func (s *Session) Errors() []string {
	return s.errs.Messages()
}

// LastError returns the most recent recorded error, or nil.
func (s *Session) LastError() error {
	return s.errs.Last()
}

// ClearErrors empties the error log.
func (s *Session) ClearErrors() {
	s.errs.Clear()
}

// fail records err in the error log, logs it and returns it.
func (s *Session) fail(err error, msg string, fields ...zap.Field) error {
	s.errs.add(err)
	fields = append(fields, zap.String("error", logging.SanitizeError(err)))
	s.logger.Error(msg, fields...)
	return err
}
