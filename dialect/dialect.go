// Package dialect defines the procedural SQL dialects plmorph converts between.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect identifies one of the supported procedural SQL variants.
// It is used as a lookup key throughout the conversion pipeline and
// never carries per-conversion state.
type Dialect string

const (
	// Oracle is the PL/SQL source dialect. It is the only dialect with
	// packages, pipelined functions and autonomous transactions.
	Oracle Dialect = "oracle"

	// MySQL is the MySQL/MariaDB stored-program dialect. Handlers are
	// declared up front, parameter modes are prefix keywords.
	MySQL Dialect = "mysql"

	// Postgres is the PL/pgSQL dialect. Procedures become functions
	// returning void, set-returning functions use RETURN NEXT.
	Postgres Dialect = "postgres"
)

// All lists every supported dialect in declaration order.
func All() []Dialect {
	return []Dialect{Oracle, MySQL, Postgres}
}

// Valid reports whether d is one of the supported dialects.
func (d Dialect) Valid() bool {
	switch d {
	case Oracle, MySQL, Postgres:
		return true
	}
	return false
}

func (d Dialect) String() string {
	return string(d)
}

// Parse resolves a user-supplied dialect name, accepting common aliases.
func Parse(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "oracle", "plsql", "pl/sql":
		return Oracle, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pg", "plpgsql":
		return Postgres, nil
	}
	return "", fmt.Errorf("unknown dialect %q (want oracle, mysql or postgres)", name)
}
