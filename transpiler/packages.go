package transpiler

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"plmorph/dialect"
	"plmorph/diag"
	"plmorph/typemap"
)

// PackageInfo is the parsed form of one package unit. It is constructed from
// the source text, consumed once to emit independent artifacts, and then
// discarded; a package never survives as state across conversions.
type PackageInfo struct {
	Name      string
	Schema    string
	IsBody    bool
	Constants []PackageConstant
	Variables []PackageVariable
	Types     []string
	Routines  []string // routine declaration or definition slices, verbatim
}

// PackageConstant is one package-level constant declaration.
type PackageConstant struct {
	Name  string
	Type  string
	Value string
}

// PackageVariable is one package-level variable declaration.
type PackageVariable struct {
	Name    string
	Type    string
	Initial string
}

var packageRe = regexp.MustCompile(`(?is)\bCREATE\s+(?:OR\s+REPLACE\s+)?PACKAGE\s+(BODY\s+)?("?[\w$#]+"?(?:\s*\.\s*"?[\w$#]+"?)?)\s+(?:IS|AS)\b(.*)\bEND(?:\s+[\w$#]+)?\s*;?\s*$`)

// IsPackage reports whether the unit is a package specification or body.
func IsPackage(text string) bool {
	return matchShaped(text, packageRe)
}

// routineHeaderRe finds nested routine declarations/definitions inside a
// package. Matching runs on the masked shadow, so PROCEDURE inside a string
// or comment never splits the package.
var routineHeaderRe = regexp.MustCompile(`(?im)^[ \t]*(PROCEDURE|FUNCTION)\s+([\w$#]+)`)

// parsePackage splits a package unit into its prelude declarations and
// routine slices. Returns nil when the text is not a package.
func parsePackage(text string) *PackageInfo {
	m := findShaped(text, packageRe)
	if m == nil {
		return nil
	}
	info := &PackageInfo{IsBody: strings.TrimSpace(m[1]) != ""}
	name := strings.ReplaceAll(m[2], `"`, "")
	if dot := strings.Index(name, "."); dot >= 0 {
		info.Schema = strings.TrimSpace(name[:dot])
		info.Name = strings.TrimSpace(name[dot+1:])
	} else {
		info.Name = strings.TrimSpace(name)
	}

	content := m[3]
	masked := maskLiterals(content)
	headers := routineHeaderRe.FindAllStringIndex(masked, -1)

	prelude := content
	if len(headers) > 0 {
		prelude = content[:headers[0][0]]
		for i, h := range headers {
			end := len(content)
			if i+1 < len(headers) {
				end = headers[i+1][0]
			}
			info.Routines = append(info.Routines, strings.TrimSpace(content[h[0]:end]))
		}
	}
	parsePrelude(prelude, info)
	return info
}

var (
	pkgConstantRe = regexp.MustCompile(`(?is)^(\w+)\s+CONSTANT\s+(.+?)\s*(?::=|\bDEFAULT\b)\s*(.+)$`)
	pkgVariableRe = regexp.MustCompile(`(?is)^(\w+)\s+([^;]+?)(?:\s*:=\s*(.+))?$`)
)

func parsePrelude(prelude string, info *PackageInfo) {
	for _, stmt := range splitTopLevel(prelude, ';') {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		switch {
		case typeDeclRe.MatchString(stmt):
			info.Types = append(info.Types, stmt+";")
		case pkgConstantRe.MatchString(stmt):
			m := pkgConstantRe.FindStringSubmatch(stmt)
			info.Constants = append(info.Constants, PackageConstant{
				Name: m[1], Type: strings.TrimSpace(m[2]), Value: strings.TrimSpace(m[3]),
			})
		case exceptionDeclRe.MatchString(stmt):
			// Package-level exceptions surface when a routine raises them.
			info.Types = append(info.Types, stmt+";")
		case pkgVariableRe.MatchString(stmt):
			m := pkgVariableRe.FindStringSubmatch(stmt)
			info.Variables = append(info.Variables, PackageVariable{
				Name: m[1], Type: strings.TrimSpace(m[2]), Initial: strings.TrimSpace(m[3]),
			})
		}
	}
}

// Decompose splits a package specification or body into independent
// routines and auxiliary state. Only the Oracle dialect has package scoping;
// for any other source the input is returned unchanged. Constants and
// variables are emitted before routines, because routines may reference
// them.
func Decompose(text string, source, target dialect.Dialect, led *diag.Ledger) string {
	if source != dialect.Oracle || source == target {
		return text
	}
	if target != dialect.MySQL && target != dialect.Postgres {
		return text
	}
	info := parsePackage(text)
	if info == nil {
		return text
	}

	var out []string
	unit := "specification"
	if info.IsBody {
		unit = "body"
	}
	out = append(out, "-- Package "+info.Name+" ("+unit+") decomposed for "+target.String())
	led.Rulef("package %s %s decomposed into independent artifacts", info.Name, unit)

	if target == dialect.Postgres {
		out = append(out, "CREATE SCHEMA IF NOT EXISTS "+info.Name+";")
		led.Rulef("schema %s created to stand in for the package namespace", info.Name)
	}

	for _, c := range info.Constants {
		out = append(out, constantFunction(info.Name, c, target, led))
	}
	if len(info.Variables) > 0 {
		out = append(out, variableState(info.Name, info.Variables, target, led)...)
	}
	for _, t := range info.Types {
		out = append(out, packageType(info.Name, t, target, led))
	}

	for _, routine := range info.Routines {
		if !strings.Contains(strings.ToUpper(routine), "BEGIN") {
			// Declaration only (specification); the body unit carries the
			// definition.
			out = append(out, "-- declaration of "+firstWordAfterKind(routine)+" ported with the package body")
			continue
		}
		out = append(out, decomposeRoutine(info.Name, routine, target, led))
	}
	return strings.Join(out, "\n\n") + "\n"
}

func firstWordAfterKind(routine string) string {
	m := routineHeaderRe.FindStringSubmatch(routine)
	if m == nil {
		return "routine"
	}
	return m[2]
}

// constantFunction encodes one package constant as a deterministic
// zero-argument function in the target dialect. Numeric values are
// normalized through decimal so "01.50" and "1.5" encode identically.
func constantFunction(pkg string, c PackageConstant, target dialect.Dialect, led *diag.Ledger) string {
	value := c.Value
	if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
		value = d.String()
	}
	mapped := typemap.MapType(c.Type, target)
	led.Rulef("constant %s.%s encoded as a zero-argument function", pkg, c.Name)
	if target == dialect.MySQL {
		return "CREATE FUNCTION " + pkg + "_" + c.Name + "() RETURNS " + mapped +
			" DETERMINISTIC\nRETURN " + value + ";"
	}
	return "CREATE OR REPLACE FUNCTION " + pkg + "." + c.Name + "() RETURNS " + mapped +
		" AS $$ SELECT " + value + " $$ LANGUAGE sql IMMUTABLE;"
}

// variableState renders package-level variables as a key-value auxiliary
// table, one row per variable. The namespacing-capable target also gets
// getter and setter routines; the prefix-only target gets a comment
// recommending session variables as the lighter-weight alternative.
func variableState(pkg string, vars []PackageVariable, target dialect.Dialect, led *diag.Ledger) []string {
	var out []string
	led.Rulef("%d package variable(s) rewritten to a key-value state table", len(vars))

	if target == dialect.MySQL {
		table := pkg + "_package_state"
		out = append(out, "CREATE TABLE IF NOT EXISTS "+table+" (name VARCHAR(128) PRIMARY KEY, value TEXT);")
		for _, v := range vars {
			out = append(out, "INSERT IGNORE INTO "+table+" (name, value) VALUES ('"+v.Name+"', "+initialLiteral(v.Initial)+");")
		}
		var names []string
		for _, v := range vars {
			names = append(names, "@"+pkg+"_"+v.Name)
		}
		out = append(out, "-- Session variables ("+strings.Join(names, ", ")+") are a lighter-weight"+
			"\n-- alternative when the state does not need to survive the connection.")
		led.Warnf(diag.KindPartialSupport, diag.SeverityWarning,
			"decide between the state table and session variables per variable",
			"package state on MySQL is connection-shared through the state table; Oracle package state was per session")
		return out
	}

	table := pkg + ".package_state"
	out = append(out, "CREATE TABLE IF NOT EXISTS "+table+" (name TEXT PRIMARY KEY, value TEXT);")
	for _, v := range vars {
		out = append(out, "INSERT INTO "+table+" (name, value) VALUES ('"+v.Name+"', "+initialLiteral(v.Initial)+") ON CONFLICT (name) DO NOTHING;")
	}
	for _, v := range vars {
		out = append(out,
			"CREATE OR REPLACE FUNCTION "+pkg+".get_"+v.Name+"() RETURNS TEXT AS $$"+
				" SELECT value FROM "+table+" WHERE name = '"+v.Name+"' $$ LANGUAGE sql;")
		out = append(out,
			"CREATE OR REPLACE FUNCTION "+pkg+".set_"+v.Name+"(p_value TEXT) RETURNS void AS $$"+
				" UPDATE "+table+" SET value = p_value WHERE name = '"+v.Name+"' $$ LANGUAGE sql;")
		led.Rulef("getter/setter generated for package variable %s.%s", pkg, v.Name)
	}
	led.Warnf(diag.KindPartialSupport, diag.SeverityWarning,
		"move the state to temporary tables if per-session semantics are required",
		"package state on PostgreSQL is shared through the state table; Oracle package state was per session")
	return out
}

func initialLiteral(initial string) string {
	if initial == "" {
		return "NULL"
	}
	if strings.HasPrefix(initial, "'") {
		return initial
	}
	if d, err := decimal.NewFromString(initial); err == nil {
		return "'" + d.String() + "'"
	}
	return "'" + strings.ReplaceAll(initial, "'", "''") + "'"
}

// packageType ports one package-level type or exception declaration.
func packageType(pkg, decl string, target dialect.Dialect, led *diag.Ledger) string {
	if target == dialect.Postgres {
		if m := recordTypeRe.FindStringSubmatch(decl); m != nil {
			led.Rulef("package record type %s hoisted to CREATE TYPE %s.%s", m[1], pkg, m[1])
			r := &bodyRewriter{target: dialect.Postgres, led: led}
			ct := r.compositeType(pkg+"."+m[1], m[2])
			return ct
		}
	}
	led.Warnf(diag.KindManualReview, diag.SeverityWarning,
		"port the declaration by hand where it is used",
		"package-level declaration kept as a comment: %s", strings.Join(strings.Fields(decl), " "))
	return "-- " + strings.Join(strings.Fields(decl), " ")
}

var recordTypeRe = regexp.MustCompile(`(?is)^TYPE\s+(\w+)\s+IS\s+RECORD\s*\(\s*((?:[^()]|\([^()]*\))*?)\s*\)\s*;?$`)

// decomposeRoutine makes one nested routine definition independent: the
// name is prefixed with the package name (MySQL) or moved into the
// same-named schema (PostgreSQL), and the result runs through the full
// signature, body and exception pipeline.
func decomposeRoutine(pkg, routine string, target dialect.Dialect, led *diag.Ledger) string {
	m := routineHeaderRe.FindStringSubmatch(routine)
	if m == nil {
		return routine
	}
	name := m[2]
	var renamed string
	if target == dialect.MySQL {
		renamed = pkg + "_" + name
	} else {
		renamed = pkg + "." + name
	}
	// Rewrite only the header occurrence; call sites inside other routines
	// of the same package are a known manual-review gap.
	headRe := regexp.MustCompile(`(?i)^([ \t]*)(PROCEDURE|FUNCTION)(\s+)` + regexp.QuoteMeta(name) + `\b`)
	routine = headRe.ReplaceAllString(routine, "${1}${2}${3}"+renamed)
	led.Rulef("package routine %s extracted as %s", name, renamed)

	standalone := "CREATE OR REPLACE " + routine
	converted, hoisted := convertRoutine(standalone, dialect.Oracle, target, led)
	if len(hoisted) > 0 {
		converted = strings.Join(hoisted, "\n") + "\n" + converted
	}
	return converted
}
