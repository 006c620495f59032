package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/sqlitoy/sqlitoy/internal/engine"
	"github.com/sqlitoy/sqlitoy/internal/sql"
	"github.com/sqlitoy/sqlitoy/internal/storage"
)

// loadRowBatch bounds how many INSERT statements run in a single
// RunBatch, so loading a large fixture doesn't hold the engine's lock for
// one giant all-or-nothing transaction.
const loadRowBatch = 1000

// fixture is the shape of a TOML data file accepted by `sqlitoy load`.
type fixture struct {
	Tables []fixtureTable `toml:"tables"`
}

type fixtureTable struct {
	Name       string          `toml:"name"`
	PrimaryKey string          `toml:"primary_key"`
	Columns    []fixtureColumn `toml:"columns"`
	Rows       [][]interface{} `toml:"rows"`
}

type fixtureColumn struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

var loadCmd = &cobra.Command{
	Use:   "load <fixture.toml>",
	Short: "Replay a TOML fixture as DDL/DML against the configured engine",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runLoad(args[0])
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(path string) {
	var fx fixture
	if _, err := toml.DecodeFile(path, &fx); err != nil {
		fmt.Fprintf(os.Stderr, "error decoding fixture: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	if err := cfg.EnsureDataDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "error preparing data directories: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.Open(cfg.Engine.DBPath, cfg.Engine.IndexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening storage: %v\n", err)
		os.Exit(1)
	}
	eng, err := engine.Open(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening engine: %v\n", err)
		os.Exit(1)
	}

	for _, t := range fx.Tables {
		if err := loadTable(eng, t); err != nil {
			fmt.Fprintf(os.Stderr, "error loading table %q: %v\n", t.Name, err)
			os.Exit(1)
		}
	}
}

func loadTable(eng *engine.Engine, t fixtureTable) error {
	create, err := sql.PlanBatch(createTableSQL(t))
	if err != nil {
		return err
	}
	if _, err := eng.RunBatch(create); err != nil {
		return err
	}

	loaded := 0
	for start := 0; start < len(t.Rows); start += loadRowBatch {
		end := start + loadRowBatch
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		stmts, err := sql.PlanBatch(insertSQL(t.Name, t.Rows[start:end]))
		if err != nil {
			return err
		}
		if _, err := eng.RunBatch(stmts); err != nil {
			return err
		}
		loaded = end
		if loaded%10000 == 0 {
			fmt.Printf("%s: %d rows loaded\n", t.Name, loaded)
		}
	}
	fmt.Printf("%s: %d rows loaded\n", t.Name, len(t.Rows))
	return nil
}

func createTableSQL(t fixtureTable) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = fmt.Sprintf("%s %s", c.Name, strings.ToUpper(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s, PRIMARY KEY(%s));", t.Name, strings.Join(cols, ", "), t.PrimaryKey)
}

func insertSQL(table string, rows [][]interface{}) string {
	var b strings.Builder
	for _, row := range rows {
		vals := make([]string, len(row))
		for i, v := range row {
			vals[i] = literalSQL(v)
		}
		fmt.Fprintf(&b, "INSERT INTO %s VALUES (%s);\n", table, strings.Join(vals, ", "))
	}
	return b.String()
}

func literalSQL(v interface{}) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case int64:
		return fmt.Sprintf("%d", val)
	case int:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
