package sqlgen

import "github.com/roach88/milestone/internal/dataset"

// Built-in sink names.
const (
	SinkANSI      = "ansi"
	SinkPostgres  = "postgres"
	SinkSQLite    = "sqlite"
	SinkSQLServer = "sqlserver"
	SinkDuckDB    = "duckdb"
)

var sinks = map[string]*dialect{
	SinkANSI: {
		name:        SinkANSI,
		quoteOpen:   `"`,
		quoteClose:  `"`,
		currentTS:   "CURRENT_TIMESTAMP()",
		update:      UpdateQualifiedSet,
		del:         DeleteFromAlias,
		create:      CreateIfNotExists,
		parenSelect: true,
		dropCascade: true,
	},
	SinkPostgres: {
		name:       SinkPostgres,
		quoteOpen:  `"`,
		quoteClose: `"`,
		types: map[dataset.DataType]string{
			dataset.Int:      "INTEGER",
			dataset.TinyInt:  "SMALLINT",
			dataset.String:   "VARCHAR",
			dataset.Double:   "DOUBLE PRECISION",
			dataset.Float:    "REAL",
			dataset.DateTime: "TIMESTAMP",
		},
		currentTS:   "CURRENT_TIMESTAMP",
		update:      UpdateUnqualifiedSet,
		del:         DeleteFromAlias,
		create:      CreateIfNotExists,
		parenSelect: true,
		dropCascade: true,
	},
	// SQLite uses type affinity, so declared names pass through unchanged.
	SinkSQLite: {
		name:       SinkSQLite,
		quoteOpen:  `"`,
		quoteClose: `"`,
		currentTS:  "CURRENT_TIMESTAMP",
		update:     UpdateUnqualifiedSet,
		del:        DeleteFromAlias,
		create:     CreateIfNotExists,
	},
	SinkDuckDB: {
		name:       SinkDuckDB,
		quoteOpen:  `"`,
		quoteClose: `"`,
		types: map[dataset.DataType]string{
			dataset.String:   "VARCHAR",
			dataset.Text:     "VARCHAR",
			dataset.DateTime: "TIMESTAMP",
		},
		currentTS:   "CURRENT_TIMESTAMP",
		update:      UpdateUnqualifiedSet,
		del:         DeleteFromAlias,
		create:      CreateIfNotExists,
		dropCascade: true,
	},
	SinkSQLServer: {
		name:       SinkSQLServer,
		quoteOpen:  "[",
		quoteClose: "]",
		types: map[dataset.DataType]string{
			dataset.Double:    "FLOAT",
			dataset.Boolean:   "BIT",
			dataset.DateTime:  "DATETIME2",
			dataset.Timestamp: "DATETIME2",
		},
		unsized: map[dataset.DataType]string{
			dataset.Varchar: "VARCHAR(255)",
			dataset.String:  "NVARCHAR(MAX)",
			dataset.Text:    "NVARCHAR(MAX)",
			dataset.JSON:    "NVARCHAR(MAX)",
		},
		currentTS: "CURRENT_TIMESTAMP",
		update:    UpdateFromAlias,
		del:       DeleteAliasFrom,
		create:    CreateObjectIDGuard,
	},
}
