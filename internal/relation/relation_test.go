package relation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/escolaware/portaria-bridge/internal/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClassification(t *testing.T) {
	store := relation.NewStore()

	assert.True(t, store.IsParent("Pai"))
	assert.True(t, store.IsParent("Mãe"))
	assert.False(t, store.IsParent("Avó"))
	assert.False(t, store.IsParent("pai"), "matching is exact, as recorded upstream")
}

func TestParse(t *testing.T) {
	cfg, err := relation.Parse([]byte("parent_labels:\n  - Pai\n  - Mãe\n  - Padrasto\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Pai", "Mãe", "Padrasto"}, cfg.ParentLabels)
}

func TestParse_Invalid(t *testing.T) {
	_, err := relation.Parse([]byte("parent_labels: {not: a list}"))
	assert.ErrorContains(t, err, "invalid relation configuration")
}

func TestParse_Empty(t *testing.T) {
	_, err := relation.Parse([]byte("parent_labels: []\n"))
	assert.ErrorContains(t, err, "at least one parent label")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relations.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parent_labels: [Pai, Mãe, Avô]\n"), 0o600))

	cfg, err := relation.LoadFile(path)
	require.NoError(t, err)

	store := relation.NewStore()
	store.Update(cfg)

	assert.True(t, store.IsParent("Avô"))
	assert.False(t, store.IsParent("Tia"))
}

func TestUpdateReplacesWholesale(t *testing.T) {
	store := relation.NewStore()
	store.Update(relation.Config{ParentLabels: []string{"Padrasto"}})

	assert.True(t, store.IsParent("Padrasto"))
	assert.False(t, store.IsParent("Pai"))
}
