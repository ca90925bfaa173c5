//go:build integration

package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pharmatrace/internal/ledger"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/platform/tx"
	"pharmatrace/pkg/testutil/containers"
)

func TestPostgresStoreChain(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := ledger.NewPostgres(pg.DB)
	ctx := context.Background()

	entry := func(action string, previous string) ledger.Entry {
		e := ledger.Entry{
			ID:           uuid.New(),
			Action:       action,
			EntityType:   "SerializedUnit",
			EntityID:     uuid.NewString(),
			ActorID:      "tester",
			Payload:      map[string]any{"k": "v"},
			PreviousHash: previous,
			CreatedAt:    time.Now().UTC(),
		}
		e.CurrentHash = ledger.ComputeHash(e.Action, e.EntityType, e.EntityID, e.ActorID, e.Payload, e.PreviousHash, e.CreatedAt)
		return e
	}

	t.Run("append links from genesis", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "ledger_entries"))

		first := entry("UNIT_SERIALIZED", ledger.GenesisHash)
		require.NoError(t, store.Append(ctx, first, ledger.GenesisHash))

		latest, err := store.Latest(ctx)
		require.NoError(t, err)
		require.Equal(t, first.CurrentHash, latest.CurrentHash)

		second := entry("UNIT_VERIFIED", latest.CurrentHash)
		require.NoError(t, store.Append(ctx, second, latest.CurrentHash))

		entries, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, entries[0].CurrentHash, entries[1].PreviousHash)
	})

	t.Run("stale expected hash conflicts", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "ledger_entries"))

		first := entry("UNIT_SERIALIZED", ledger.GenesisHash)
		require.NoError(t, store.Append(ctx, first, ledger.GenesisHash))

		stale := entry("UNIT_VERIFIED", ledger.GenesisHash)
		require.ErrorIs(t, store.Append(ctx, stale, ledger.GenesisHash), sentinel.ErrConflict)
	})

	// Two writers at the same tip, where the first insert is still
	// uncommitted when the second runs. The CAS subquery cannot see the
	// uncommitted row, so only the previous_hash unique constraint stops the
	// loser from forking the chain.
	t.Run("uncommitted winner at the same tip conflicts the loser", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "ledger_entries"))

		sqlTx, err := pg.DB.BeginTx(ctx, nil)
		require.NoError(t, err)
		winner := entry("UNIT_SERIALIZED", ledger.GenesisHash)
		require.NoError(t, store.Append(tx.WithTx(ctx, sqlTx), winner, ledger.GenesisHash))

		loserErr := make(chan error, 1)
		go func() {
			loser := entry("UNIT_VERIFIED", ledger.GenesisHash)
			loserErr <- store.Append(ctx, loser, ledger.GenesisHash)
		}()

		// Give the loser time to pass the CAS guard and block on the
		// unique index before the winner commits.
		time.Sleep(200 * time.Millisecond)
		require.NoError(t, sqlTx.Commit())
		require.ErrorIs(t, <-loserErr, sentinel.ErrConflict)

		entries, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, winner.CurrentHash, entries[0].CurrentHash)
	})

	t.Run("concurrent recorder appends never fork", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "ledger_entries"))
		rec := ledger.NewRecorder(store, nil, nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := rec.Append(ctx, "UNIT_VERIFIED", "SerializedUnit", uuid.NewString(), "tester", nil)
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		report, err := rec.CheckIntegrity(ctx)
		require.NoError(t, err)
		require.True(t, report.Valid)
		require.Equal(t, 8, report.Entries)
	})
}
