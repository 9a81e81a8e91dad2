//go:build integration

package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrygate/pkg/testutil/containers"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	_, err := pg.DB.ExecContext(ctx, `CREATE TABLE marks (name TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, pg.DB.QueryRowContext(ctx, `SELECT count(*) FROM marks`).Scan(&n))
		return n
	}
	insert := func(ctx context.Context, name string) error {
		_, err := ExecutorFor(ctx, pg.DB).ExecContext(ctx, `INSERT INTO marks (name) VALUES ($1)`, name)
		return err
	}

	t.Run("nested run joins the outer transaction", func(t *testing.T) {
		errLate := errors.New("late failure")
		err := Run(ctx, pg.DB, func(ctx context.Context, _ Executor) error {
			require.NoError(t, insert(ctx, "outer"))
			require.NoError(t, Run(ctx, pg.DB, func(ctx context.Context, _ Executor) error {
				return insert(ctx, "inner")
			}))
			return errLate
		})
		assert.ErrorIs(t, err, errLate)
		assert.Equal(t, 0, count())
	})

	t.Run("commit", func(t *testing.T) {
		require.NoError(t, Run(ctx, pg.DB, func(ctx context.Context, exec Executor) error {
			_, ok := From(ctx)
			assert.True(t, ok)
			_, err := exec.ExecContext(ctx, `INSERT INTO marks (name) VALUES ('a'), ('b')`)
			return err
		}))
		assert.Equal(t, 2, count())
	})
}
