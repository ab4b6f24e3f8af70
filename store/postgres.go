package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const findSpaceSQL = `SELECT width, height FROM "Space" WHERE id = $1`

// PostgresSpaces reads space dimensions from the shared application database.
type PostgresSpaces struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool and checks it with a ping.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresSpaces, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &PostgresSpaces{pool: pool}, nil
}

func NewPostgresSpaces(pool *pgxpool.Pool) *PostgresSpaces {
	return &PostgresSpaces{pool: pool}
}

func (p *PostgresSpaces) Find(ctx context.Context, spaceID string) (Space, error) {
	s := Space{ID: spaceID}
	err := p.pool.QueryRow(ctx, findSpaceSQL, spaceID).Scan(&s.Width, &s.Height)
	if errors.Is(err, pgx.ErrNoRows) {
		return Space{}, errors.Wrapf(ErrSpaceNotFound, "id=%s", spaceID)
	}
	if err != nil {
		return Space{}, errors.Wrapf(err, "query space %s", spaceID)
	}
	return s, nil
}

func (p *PostgresSpaces) Close() {
	p.pool.Close()
}
