package db

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	DBConnKey contextKey = "db_conn"
	DBTxKey   contextKey = "db_tx"
)

var errNoConn = errors.New("no database connection in context")

// ConnFromContext retrieves the request-scoped connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TxFromContext retrieves the request-scoped transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the connection stored in ctx and returns
// a context carrying it.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errNoConn
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// Commit commits the request transaction and returns its connection to
// the pool, so work that follows does not hold a database connection.
// Queries on ctx fail afterwards. It is a no-op outside a request session.
func Commit(ctx context.Context) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if conn := ConnFromContext(ctx); conn != nil {
		conn.Release()
	}
	return nil
}

// bufferedWriter holds the status and body written by a handler until the
// request transaction has committed.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(code int) {
	w.status = code
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) flush() error {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(w.status)
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}

// Session gives every request one pooled connection and one transaction.
// The transaction commits when the handler returns nil and rolls back
// otherwise, including on panic. The handler's response is held back
// until the commit succeeds; a failed commit answers 500 instead.
func Session(pool *pgxpool.Pool, logger zerolog.Logger, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("acquire connection")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			// Release is idempotent, so Commit may already have released it.
			defer conn.Release()

			ctx, tx, err := WithTx(context.WithValue(ctx, DBConnKey, conn))
			if err != nil {
				logger.Error().Err(err).Msg("begin transaction")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			// no-op after a successful commit
			defer tx.Rollback(context.WithoutCancel(ctx))

			c.SetRequest(c.Request().WithContext(ctx))

			res := c.Response()
			orig := res.Writer
			buf := &bufferedWriter{ResponseWriter: orig}
			res.Writer = buf
			defer func() { res.Writer = orig }()

			if err := next(c); err != nil {
				res.Writer = orig
				if res.Committed {
					_ = buf.flush()
				}
				return err
			}

			// ErrTxClosed means the handler committed through Commit.
			if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
				logger.Error().Err(err).
					Str("path", c.Request().URL.Path).
					Msg("commit transaction")
				res.Writer = orig
				res.Committed = false
				res.Status = http.StatusOK
				res.Size = 0
				return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
			}

			res.Writer = orig
			return buf.flush()
		}
	}
}
