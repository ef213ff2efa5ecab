package gamedb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.sqlite")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE Units (ID INTEGER PRIMARY KEY, Type TEXT, Description TEXT);
		INSERT INTO Units (ID, Type, Description) VALUES (0, 'UNIT_WARRIOR', NULL);
		INSERT INTO Units (ID, Type, Description) VALUES (1, 'UNIT_SCOUT', 'Scout');
		CREATE TABLE GreatPersons (ID INTEGER PRIMARY KEY, Type TEXT);
		INSERT INTO GreatPersons (ID, Type) VALUES (0, 'GREATPERSON_GENERAL');
	`)
	require.NoError(t, err)
	db.Close()

	gw, err := Open(path, path, "en_US")
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestBuildEnumCatalog_DescriptionPreferredOverType(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	catalogs, err := gw.BuildEnumCatalog(ctx, []EnumTableSpec{
		{Concept: "UnitType", Table: "Units"},
		{Concept: "GreatPersonType", Table: "GreatPersons", Prefix: "Great "},
	})
	require.NoError(t, err)

	units := catalogs["UnitType"]
	require.Equal(t, "Warrior", units.Name(0))
	require.Equal(t, "Scout", units.Name(1))
	require.Equal(t, "None", units.Name(-1))

	gp := catalogs["GreatPersonType"]
	require.Equal(t, "Great General", gp.Name(0))
}

func TestQuery_NormalizesSqliteText(t *testing.T) {
	gw := newTestGateway(t)
	rows, err := gw.Query(context.Background(), "SELECT Type FROM Units WHERE ID = ?", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, isString := rows[0]["Type"].(string)
	require.True(t, isString)
}
