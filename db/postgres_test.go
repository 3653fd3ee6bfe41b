package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/models"
)

// Set TEST_DATABASE_URL to a disposable Postgres database to run these.
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, MigratePostgres(ctx, url, nil))
	p, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestOpenPostgres_NoURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "")
	assert.Error(t, err)
}

func TestPostgres_OrderLifecycle(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	o := sampleOrder(424242, "Portuguesa", testNow)
	o.Code = "PZTEST-" + uuid.NewString()[:8]
	o.Source = SourceRemote
	require.NoError(t, p.UpsertOrder(ctx, o))
	require.NoError(t, p.UpsertCustomer(ctx, o))

	changed, err := p.UpdateOrderStatus(ctx, o.Code, catalog.StatusOnTheWay, "[16/10 15:00] motoboy saiu", testNow)
	require.NoError(t, err)
	assert.True(t, changed)

	list, err := p.FindOrders(ctx, models.OrderFilter{Code: o.Code}, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, catalog.StatusOnTheWay, list[0].Status)
	assert.Equal(t, "[16/10 15:00] motoboy saiu", list[0].Notes)
	assert.True(t, list[0].Price.Equal(o.Price))
}

func TestPostgres_Announcements(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	a := &models.Announcement{ID: uuid.NewString(), Title: "Teste", Body: "corpo", Category: models.CategoryInfo, CreatedAt: testNow, Active: true}
	require.NoError(t, p.UpsertAnnouncement(ctx, a))
	require.NoError(t, p.IncrementViews(ctx, []string{a.ID}))

	ok, err := p.DeactivateAnnouncement(ctx, a.ID, testNow)
	require.NoError(t, err)
	assert.True(t, ok)

	settings, err := p.Settings(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, settings["taxa_entrega"])
}
