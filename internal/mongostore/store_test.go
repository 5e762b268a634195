package mongostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vipul43/privatezone/internal/service"
	"github.com/vipul43/privatezone/internal/storetest"
	"github.com/vipul43/privatezone/internal/testutil"
)

var _ service.Store = (*Store)(nil)

func TestStore_Mongo(t *testing.T) {
	uri := testutil.MongoURI(t)
	ctx := context.Background()

	store, err := Connect(ctx, uri, "private_zone_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	require.NoError(t, store.EnsureIndexes(ctx))
	require.NoError(t, store.EnsureIndexes(ctx), "index creation is idempotent")

	storetest.Run(t, store)
}
