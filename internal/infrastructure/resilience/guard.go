package resilience

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Guard adapts an Executor to a single classifier so callers only pass the
// operation name.
type Guard struct {
	exec       *Executor
	classifier ErrorClassifier
}

func NewGuard(exec *Executor, classifier ErrorClassifier) *Guard {
	return &Guard{exec: exec, classifier: classifier}
}

// NewStorageGuard guards database calls.
func NewStorageGuard(cfg Config) *Guard {
	return NewGuard(NewExecutor(cfg), ClassifyStorageError)
}

// Do runs fn under retry and breaker.
func (g *Guard) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	return g.exec.Execute(ctx, operation, fn, g.classifier)
}

// ClassifyStorageError retries connection-level failures and lets semantic
// errors through without counting them against the breaker.
func ClassifyStorageError(err error) ErrorClassification {
	if class, ok := classifyKind(err); ok {
		return class
	}
	if errors.Is(err, driver.ErrBadConn) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgCode(pgErr.Code)
	}
	if pgconn.SafeToRetry(err) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: netErr.Timeout(), RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func classifyPgCode(code string) ErrorClassification {
	switch {
	case pgerrcode.IsConnectionException(code):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	case code == pgerrcode.SerializationFailure,
		code == pgerrcode.DeadlockDetected,
		code == pgerrcode.AdminShutdown,
		code == pgerrcode.TooManyConnections:
		return ErrorClassification{Retryable: true, RecordFailure: true}
	case pgerrcode.IsDataException(code), pgerrcode.IsIntegrityConstraintViolation(code):
		// caller error
		return ErrorClassification{Retryable: false, RecordFailure: false}
	default:
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
}
