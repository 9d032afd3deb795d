package transpiler

import (
	"regexp"
	"strings"

	"plmorph/dialect"
	"plmorph/diag"
	"plmorph/typemap"
)

// Collection and cursor-by-reference type declarations. MySQL has no
// counterpart for any of them; PostgreSQL can express each one natively,
// at the cost of one semantic gap per shape (lost size bounds, lost result
// row annotations, record types hoisted to standalone composite types).

var (
	tableOfRe = regexp.MustCompile(`(?im)^([ \t]*)TYPE\s+(\w+)\s+IS\s+TABLE\s+OF\s+([^;]+?)\s*(INDEX\s+BY\s+[^;]+)?;`)
	varrayRe  = regexp.MustCompile(`(?im)^([ \t]*)TYPE\s+(\w+)\s+IS\s+(?:VARRAY|VARYING\s+ARRAY)\s*\(\s*(\d+)\s*\)\s+OF\s+([^;]+);`)
	recordRe  = regexp.MustCompile(`(?im)^([ \t]*)TYPE\s+(\w+)\s+IS\s+RECORD\s*\(\s*((?:[^()]|\([^()]*\))*?)\s*\)\s*;`)

	refCursorTypeRe = regexp.MustCompile(`(?im)^([ \t]*)TYPE\s+(\w+)\s+IS\s+REF\s+CURSOR(\s+RETURN\s+[^;]+)?\s*;`)
	sysRefCursorRe  = regexp.MustCompile(`(?im)^([ \t]*)(?:DECLARE\s+)?(\w+)\s+SYS_REFCURSOR\s*;`)
)

// typeRename is a deferred rewrite of declarations that used a local type
// name which collapsed into a native type.
type typeRename struct {
	name        string
	replacement string
}

func (r *bodyRewriter) collectionTypes(text string) string {
	if r.target == dialect.MySQL {
		for _, re := range []*regexp.Regexp{tableOfRe, varrayRe, recordRe} {
			text = replaceShaped(text, re, func(g []string) string {
				r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityError,
					"model the collection as a temporary table",
					"collection type %s has no MySQL equivalent; declaration commented out", g[2])
				return g[1] + "-- " + strings.TrimSpace(g[0][len(g[1]):])
			})
		}
		return text
	}

	// PostgreSQL. Usage rewrites are deferred: the declaration pass must
	// not splice into the text it is being iterated over.
	var renames []typeRename

	text = replaceShaped(text, tableOfRe, func(g []string) string {
		elem := typemap.MapType(strings.TrimSpace(g[3]), dialect.Postgres)
		if g[4] != "" {
			r.led.Warnf(diag.KindPartialSupport, diag.SeverityInfo,
				"use a jsonb or hstore value if key-based access is required",
				"associative array %s approximated by %s[]; the index semantics are lost", g[2], elem)
		}
		r.led.Rulef("collection type %s mapped to %s[]", g[2], elem)
		renames = append(renames, typeRename{g[2], elem + "[]"})
		return g[1] + "-- type " + g[2] + " maps to " + elem + "[]"
	})
	text = replaceShaped(text, varrayRe, func(g []string) string {
		elem := typemap.MapType(strings.TrimSpace(g[4]), dialect.Postgres)
		r.led.Warnf(diag.KindPartialSupport, diag.SeverityInfo,
			"enforce the bound with a CHECK constraint or in application code",
			"VARRAY %s mapped to %s[]; the size bound %s is lost", g[2], elem, g[3])
		renames = append(renames, typeRename{g[2], elem + "[]"})
		return g[1] + "-- type " + g[2] + " maps to " + elem + "[] (size bound " + g[3] + " lost)"
	})
	text = replaceShaped(text, recordRe, func(g []string) string {
		r.hoisted = append(r.hoisted, r.compositeType(g[2], g[3]))
		r.led.Rulef("record type %s hoisted to a CREATE TYPE statement; run it before the routine", g[2])
		return g[1] + "-- record type " + g[2] + " hoisted to CREATE TYPE " + g[2]
	})

	for _, ren := range renames {
		text = replaceTypeUsage(text, ren.name, ren.replacement)
	}
	return text
}

// compositeType renders a hoisted CREATE TYPE statement for a record
// declaration, mapping each field's scalar type.
func (r *bodyRewriter) compositeType(name, fields string) string {
	var cols []string
	for _, f := range splitTopLevel(fields, ',') {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		m := varDeclRe.FindStringSubmatch(f)
		if m == nil {
			cols = append(cols, f)
			continue
		}
		cols = append(cols, m[1]+" "+typemap.MapType(strings.TrimSpace(m[2]), dialect.Postgres))
	}
	return "CREATE TYPE " + name + " AS (" + strings.Join(cols, ", ") + ");"
}

// replaceTypeUsage rewrites declarations that use a removed local type name,
// e.g. "v_ids t_id_list;" once t_id_list collapsed into NUMERIC[].
func replaceTypeUsage(text, typeName, replacement string) string {
	usage := regexp.MustCompile(`(?im)^([ \t]*\w+\s+)` + regexp.QuoteMeta(typeName) + `\s*;`)
	return replaceShaped(text, usage, func(g []string) string {
		return g[1] + replacement + ";"
	})
}

func (r *bodyRewriter) refCursorTypes(text string) string {
	if r.target == dialect.MySQL {
		text = replaceShaped(text, refCursorTypeRe, func(g []string) string {
			r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityError,
				"return the result set directly from the procedure instead",
				"REF CURSOR type %s has no MySQL equivalent; declaration commented out", g[2])
			return g[1] + "-- " + strings.TrimSpace(g[0][len(g[1]):])
		})
		return replaceShaped(text, sysRefCursorRe, func(g []string) string {
			r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityError,
				"return the result set directly from the procedure instead",
				"SYS_REFCURSOR variable %s has no MySQL equivalent; declaration commented out", g[2])
			return g[1] + "-- " + strings.TrimSpace(g[0][len(g[1]):])
		})
	}

	// PostgreSQL maps cursor-by-reference types straight to refcursor.
	var renames []typeRename
	text = replaceShaped(text, refCursorTypeRe, func(g []string) string {
		if g[3] != "" {
			r.led.Warnf(diag.KindPartialSupport, diag.SeverityInfo, "",
				"REF CURSOR result row annotation on %s is not expressible in PostgreSQL and was dropped", g[2])
		}
		r.led.Rulef("REF CURSOR type %s mapped to refcursor", g[2])
		renames = append(renames, typeRename{g[2], "refcursor"})
		return g[1] + "-- type " + g[2] + " maps to refcursor"
	})
	for _, ren := range renames {
		text = replaceTypeUsage(text, ren.name, ren.replacement)
	}
	return text
}
