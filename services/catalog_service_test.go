package services

import (
	"testing"

	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_CreateAndMatch(t *testing.T) {
	f := newFixture(t)
	catalog := NewCatalogService(f.db)
	t.Cleanup(catalog.Wait)

	item, err := catalog.Create(f.ctx, f.pm, CatalogItemInput{
		Name:    "Portland Cement 50kg",
		Unit:    "bag",
		Aliases: []string{"Cement", " cement ", "OPC  bag", ""},
	})
	require.NoError(t, err)
	require.Len(t, item.Aliases, 2, "aliases are normalized and deduplicated")

	tests := []struct {
		query string
		found bool
	}{
		{"portland cement 50kg", true},
		{"PORTLAND   CEMENT 50KG", true},
		{"cement", true},
		{"opc bag", true},
		{"sand", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			match, err := catalog.Match(f.ctx, tt.query)
			if !tt.found {
				assert.True(t, workflow.IsNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, item.ID, match.ID)
		})
	}
}

func TestCatalog_AddAliasAndRules(t *testing.T) {
	f := newFixture(t)
	catalog := NewCatalogService(f.db)
	t.Cleanup(catalog.Wait)

	_, err := catalog.Create(f.ctx, f.engineer, CatalogItemInput{Name: "Rebar"})
	assert.True(t, workflow.IsForbidden(err))
	_, err = catalog.Create(f.ctx, f.pm, CatalogItemInput{Name: "Rebar", ReferencePrice: dec(-1)})
	assert.True(t, workflow.IsValidation(err))

	item, err := catalog.Create(f.ctx, f.pm, CatalogItemInput{Name: "Rebar 12mm"})
	require.NoError(t, err)

	updated, err := catalog.AddAlias(f.ctx, f.pm, item.ID, "Y12")
	require.NoError(t, err)
	require.Len(t, updated.Aliases, 1)
	assert.Equal(t, "y12", updated.Aliases[0].Alias)

	_, err = catalog.AddAlias(f.ctx, f.pm, item.ID, "y12")
	assert.True(t, workflow.IsConflict(err), "an alias maps to one item")
	_, err = catalog.AddAlias(f.ctx, f.pm, 999, "other")
	assert.True(t, workflow.IsNotFound(err))
	_, err = catalog.Create(f.ctx, f.pm, CatalogItemInput{Name: "Rebar 12mm"})
	assert.True(t, workflow.IsConflict(err))

	items, err := catalog.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCatalogLink_DoesNotAffectReconciliation(t *testing.T) {
	f := newFixture(t)
	catalog := NewCatalogService(f.db)
	t.Cleanup(catalog.Wait)
	_, err := catalog.Create(f.ctx, f.pm, CatalogItemInput{Name: "Sand", Aliases: []string{"river sand"}})
	require.NoError(t, err)

	req := f.approvedRequest(item("River Sand", 4), item("gravel", 2))
	order := f.createOrder(req.ID, nil, 0)
	require.NotNil(t, order.Items[0].CatalogItemID)
	assert.Equal(t, "River Sand", order.Items[0].Name, "the request's wording is kept")
	assert.Equal(t, workflow.RequestPartiallyOrdered, f.reloadRequest(req.ID).Status)
}
