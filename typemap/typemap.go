// Package typemap holds the static scalar-type and parameter-mode tables
// used when rewriting routine signatures and declarations between dialects.
package typemap

import (
	"regexp"
	"strings"

	"plmorph/dialect"
)

// typeSuffix splits a scalar type into its base name and an optional
// parenthesized length/precision suffix, e.g. NUMBER(10,2) or VARCHAR2(100 CHAR).
// The suffix is preserved verbatim on the mapped type.
var typeSuffix = regexp.MustCompile(`^\s*(.*?)\s*(\([^)]*\))?\s*$`)

// mysqlTypes maps normalized Oracle scalar type names to MySQL types.
var mysqlTypes = map[string]string{
	"VARCHAR2":                       "VARCHAR",
	"NVARCHAR2":                      "VARCHAR",
	"VARCHAR":                        "VARCHAR",
	"CHAR":                           "CHAR",
	"NCHAR":                          "CHAR",
	"NUMBER":                         "DECIMAL",
	"DEC":                            "DECIMAL",
	"DECIMAL":                        "DECIMAL",
	"NUMERIC":                        "DECIMAL",
	"PLS_INTEGER":                    "INT",
	"BINARY_INTEGER":                 "INT",
	"SIMPLE_INTEGER":                 "INT",
	"INTEGER":                        "INT",
	"INT":                            "INT",
	"SMALLINT":                       "SMALLINT",
	"FLOAT":                          "DOUBLE",
	"REAL":                           "DOUBLE",
	"BINARY_FLOAT":                   "FLOAT",
	"BINARY_DOUBLE":                  "DOUBLE",
	"DATE":                           "DATETIME",
	"TIMESTAMP":                      "DATETIME",
	"TIMESTAMP WITH TIME ZONE":       "DATETIME",
	"TIMESTAMP WITH LOCAL TIME ZONE": "DATETIME",
	"INTERVAL DAY TO SECOND":         "TIME",
	"CLOB":                           "LONGTEXT",
	"NCLOB":                          "LONGTEXT",
	"LONG":                           "LONGTEXT",
	"BLOB":                           "LONGBLOB",
	"BFILE":                          "LONGBLOB",
	"RAW":                            "VARBINARY",
	"LONG RAW":                       "LONGBLOB",
	"BOOLEAN":                        "TINYINT(1)",
	"XMLTYPE":                        "LONGTEXT",
	"ROWID":                          "VARCHAR(18)",
	"UROWID":                         "VARCHAR(18)",
}

// postgresTypes maps normalized Oracle scalar type names to PostgreSQL types.
var postgresTypes = map[string]string{
	"VARCHAR2":                       "VARCHAR",
	"NVARCHAR2":                      "VARCHAR",
	"VARCHAR":                        "VARCHAR",
	"CHAR":                           "CHAR",
	"NCHAR":                          "CHAR",
	"NUMBER":                         "NUMERIC",
	"DEC":                            "NUMERIC",
	"DECIMAL":                        "NUMERIC",
	"NUMERIC":                        "NUMERIC",
	"PLS_INTEGER":                    "INTEGER",
	"BINARY_INTEGER":                 "INTEGER",
	"SIMPLE_INTEGER":                 "INTEGER",
	"INTEGER":                        "INTEGER",
	"INT":                            "INTEGER",
	"SMALLINT":                       "SMALLINT",
	"FLOAT":                          "DOUBLE PRECISION",
	"REAL":                           "REAL",
	"BINARY_FLOAT":                   "REAL",
	"BINARY_DOUBLE":                  "DOUBLE PRECISION",
	"DATE":                           "TIMESTAMP",
	"TIMESTAMP":                      "TIMESTAMP",
	"TIMESTAMP WITH TIME ZONE":       "TIMESTAMPTZ",
	"TIMESTAMP WITH LOCAL TIME ZONE": "TIMESTAMPTZ",
	"INTERVAL DAY TO SECOND":         "INTERVAL",
	"CLOB":                           "TEXT",
	"NCLOB":                          "TEXT",
	"LONG":                           "TEXT",
	"BLOB":                           "BYTEA",
	"BFILE":                          "BYTEA",
	"RAW":                            "BYTEA",
	"LONG RAW":                       "BYTEA",
	"BOOLEAN":                        "BOOLEAN",
	"XMLTYPE":                        "XML",
	"ROWID":                          "TEXT",
	"UROWID":                         "TEXT",
	"SYS_REFCURSOR":                  "REFCURSOR",
}

// MapType converts an Oracle scalar type, given as free text, to the closest
// target-dialect type. A parenthesized length/precision suffix is carried
// over verbatim, except where the mapped type already fixes one (BOOLEAN to
// TINYINT(1)). Unknown types pass through unchanged: an unmapped type is not
// necessarily wrong, just unverified, and must not block the pipeline.
func MapType(typeText string, target dialect.Dialect) string {
	m := typeSuffix.FindStringSubmatch(typeText)
	if m == nil {
		return typeText
	}
	base, suffix := m[1], m[2]
	key := strings.ToUpper(strings.Join(strings.Fields(base), " "))

	var table map[string]string
	switch target {
	case dialect.MySQL:
		table = mysqlTypes
	case dialect.Postgres:
		table = postgresTypes
	default:
		return typeText
	}

	mapped, ok := table[key]
	if !ok {
		return typeText
	}
	if strings.Contains(mapped, "(") {
		// Mapped type carries its own qualifier; the source suffix loses.
		return mapped
	}
	return mapped + suffix
}

// Known reports whether the given scalar type has an entry in the table for
// the target dialect.
func Known(typeText string, target dialect.Dialect) bool {
	m := typeSuffix.FindStringSubmatch(typeText)
	if m == nil {
		return false
	}
	key := strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))
	switch target {
	case dialect.MySQL:
		_, ok := mysqlTypes[key]
		return ok
	case dialect.Postgres:
		_, ok := postgresTypes[key]
		return ok
	}
	return false
}
