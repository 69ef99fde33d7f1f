package persistence

import (
	"context"
	"fmt"

	"feedback_server/core/port/out"

	"github.com/jmoiron/sqlx"
)

// Store bundles the Postgres repositories and runs transactions.
type Store struct {
	db  *sqlx.DB
	ids IDGenerator
}

var _ out.Store = (*Store)(nil)

func NewStore(db *sqlx.DB, ids IDGenerator) *Store {
	return &Store{db: db, ids: ids}
}

func (s *Store) Feedback() out.FeedbackRepository { return NewFeedbackAdapter(s.db, s.ids) }
func (s *Store) Problems() out.ProblemRepository  { return NewProblemAdapter(s.db, s.ids) }
func (s *Store) Examples() out.ExampleRepository  { return NewExampleAdapter(s.db, s.ids) }

type txScope struct {
	tx  *sqlx.Tx
	ids IDGenerator
}

func (t *txScope) Feedback() out.FeedbackRepository { return NewFeedbackAdapter(t.tx, t.ids) }
func (t *txScope) Problems() out.ProblemRepository  { return NewProblemAdapter(t.tx, t.ids) }
func (t *txScope) Examples() out.ExampleRepository  { return NewExampleAdapter(t.tx, t.ids) }

// Lock takes a transaction scoped advisory lock on key, so writers in other
// processes serialize too.
func (t *txScope) Lock(ctx context.Context, key string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return translate("advisory lock", err)
	}
	return nil
}

// WithTx implements out.TxRunner.
func (s *Store) WithTx(ctx context.Context, fn func(tx out.TxScope) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(&txScope{tx: tx, ids: s.ids}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return translate("commit", err)
	}
	return nil
}
