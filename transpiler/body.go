package transpiler

import (
	"regexp"
	"strings"

	"plmorph/dialect"
	"plmorph/diag"
	"plmorph/typemap"
)

// bodyResult is the extended outcome of a body conversion. Hoisted holds
// top-level statements (composite type declarations) that must run before
// the routine itself; the orchestrator prepends them ahead of the CREATE
// statement.
type bodyResult struct {
	Text    string
	Hoisted []string
}

// bodyRewriter walks a fixed, ordered list of independent sub-rewrites over
// a routine body. No sub-rewrite ever fails: each one transforms text,
// leaves it unchanged, or leaves it unchanged and appends a warning.
// Partial application is the normal outcome, not a failure mode.
type bodyRewriter struct {
	target  dialect.Dialect
	led     *diag.Ledger
	hoisted []string
}

// ConvertBody rewrites routine-body constructs that have no direct
// counterpart in the target dialect. The result is always a string; when a
// record type had to be hoisted into a standalone composite-type statement
// it is prepended to the returned text.
func ConvertBody(text string, source, target dialect.Dialect, led *diag.Ledger) string {
	res := convertBodyEx(text, source, target, led)
	if len(res.Hoisted) == 0 {
		return res.Text
	}
	return strings.Join(res.Hoisted, "\n") + "\n" + res.Text
}

func convertBodyEx(text string, source, target dialect.Dialect, led *diag.Ledger) bodyResult {
	if source == target || source != dialect.Oracle {
		return bodyResult{Text: text}
	}
	if target != dialect.MySQL && target != dialect.Postgres {
		return bodyResult{Text: text}
	}

	r := &bodyRewriter{target: target, led: led}

	// Order is load-bearing: declarations are normalized first so the
	// construct passes see them in their final position, raises run after
	// cursor attributes so SIGNAL/RAISE output is never re-matched, and the
	// MySQL assignment pass runs last so it picks up rewritten right-hand
	// sides exactly once.
	passes := []func(string) string{
		r.declarations,
		r.cursorAttributes,
		r.autonomousPragma,
		r.pipelined,
		r.debugOutput,
		r.collectionTypes,
		r.refCursorTypes,
		r.returningInto,
		r.gotoLabels,
		r.loopControlShorthand,
		r.raiseApplicationError,
		r.namedRaise,
	}
	if target == dialect.MySQL {
		passes = append(passes, r.assignments)
	}
	for _, pass := range passes {
		text = pass(text)
	}
	return bodyResult{Text: text, Hoisted: r.hoisted}
}

// ---------------------------------------------------------------------------
// Declaration section

// declSectionRe locates the declaration section of an already
// signature-converted routine: everything between the rewritten header line
// and the first BEGIN.
var declSectionRe = regexp.MustCompile(`(?is)(CREATE\s+(?:OR\s+REPLACE\s+)?(?:PROCEDURE|FUNCTION)\b[^\n]*\n)(?:DECLARE[ \t\n]+)?(.*?)(\bBEGIN\b)`)

var (
	constantDeclRe  = regexp.MustCompile(`(?is)^(\w+)\s+CONSTANT\s+(.+?)\s*(?::=|\bDEFAULT\b)\s*(.+)$`)
	cursorDeclRe    = regexp.MustCompile(`(?is)^CURSOR\s+(\w+)\s*(\((?:[^()]|\([^()]*\))*\))?\s+IS\s+(.+)$`)
	exceptionDeclRe = regexp.MustCompile(`(?is)^(\w+)\s+EXCEPTION$`)
	typeDeclRe      = regexp.MustCompile(`(?is)^TYPE\s+`)
	varDeclRe       = regexp.MustCompile(`(?is)^(\w+)\s+(.+?)(?:\s*(?::=|\bDEFAULT\b)\s*(.+))?$`)
)

// declarations normalizes the declaration section for the target.
//
// MySQL keeps declarations inside the body, so the whole section moves after
// BEGIN with every variable rewritten to a DECLARE statement. PostgreSQL
// keeps the section where it is (the signature converter already emitted the
// DECLARE keyword); only the scalar types are mapped and cursor declarations
// take the CURSOR FOR spelling.
func (r *bodyRewriter) declarations(text string) string {
	loc := findShapedIndex(text, declSectionRe)
	if loc == nil {
		return text
	}
	section := text[loc[4]:loc[5]]
	if strings.TrimSpace(section) == "" {
		return text
	}

	switch r.target {
	case dialect.MySQL:
		rewritten := r.mysqlDeclares(section)
		r.led.AddRule("declaration section relocated after BEGIN as DECLARE statements")
		return text[:loc[4]] + "BEGIN\n" + rewritten + text[loc[7]:]
	case dialect.Postgres:
		return text[:loc[4]] + r.postgresDeclares(section) + text[loc[6]:]
	}
	return text
}

// mysqlDeclares rewrites one Oracle declaration section into MySQL DECLARE
// statements, ordered variables first, then cursors, then anything else
// (unrecognized declarations keep their text and are handled, or commented,
// by later passes).
func (r *bodyRewriter) mysqlDeclares(section string) string {
	var vars, cursors, rest []string
	for _, stmt := range splitTopLevel(section, ';') {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		switch {
		case typeDeclRe.MatchString(stmt):
			rest = append(rest, stmt+";")
		case cursorDeclRe.MatchString(stmt):
			m := cursorDeclRe.FindStringSubmatch(stmt)
			if m[2] != "" {
				r.led.Warnf(diag.KindPartialSupport, diag.SeverityWarning,
					"inline the parameter into the cursor query or use a session variable",
					"parameterized cursor %s: MySQL cursors take no parameters", m[1])
			}
			cursors = append(cursors, "DECLARE "+m[1]+" CURSOR FOR "+strings.TrimSpace(m[3])+";")
			r.led.Rulef("cursor %s rewritten to DECLARE ... CURSOR FOR", m[1])
		case exceptionDeclRe.MatchString(stmt):
			m := exceptionDeclRe.FindStringSubmatch(stmt)
			vars = append(vars, "DECLARE "+m[1]+" CONDITION FOR SQLSTATE '45000';")
			r.led.Warnf(diag.KindSyntaxDifference, diag.SeverityInfo,
				"adjust the SQLSTATE if the exception maps to a specific error class",
				"user exception %s declared as CONDITION FOR SQLSTATE '45000'", m[1])
		case constantDeclRe.MatchString(stmt):
			m := constantDeclRe.FindStringSubmatch(stmt)
			vars = append(vars, "DECLARE "+m[1]+" "+typemap.MapType(strings.TrimSpace(m[2]), dialect.MySQL)+
				" DEFAULT "+strings.TrimSpace(m[3])+";")
			r.led.Warnf(diag.KindPartialSupport, diag.SeverityInfo,
				"nothing in MySQL stops later writes to the variable",
				"constant %s declared as a plain variable", m[1])
		case varDeclRe.MatchString(stmt):
			m := varDeclRe.FindStringSubmatch(stmt)
			d := "DECLARE " + m[1] + " " + typemap.MapType(strings.TrimSpace(m[2]), dialect.MySQL)
			if m[3] != "" {
				d += " DEFAULT " + strings.TrimSpace(m[3])
			}
			vars = append(vars, d+";")
		default:
			rest = append(rest, stmt+";")
		}
	}
	var b strings.Builder
	for _, group := range [][]string{vars, cursors, rest} {
		for _, d := range group {
			b.WriteString("    " + d + "\n")
		}
	}
	return b.String()
}

// postgresDeclares maps the scalar types of a declaration section and
// normalizes cursor declarations; everything else is kept verbatim.
func (r *bodyRewriter) postgresDeclares(section string) string {
	var out []string
	for _, stmt := range splitTopLevel(section, ';') {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		switch {
		case typeDeclRe.MatchString(trimmed):
			out = append(out, "    "+trimmed+";")
		case cursorDeclRe.MatchString(trimmed):
			m := cursorDeclRe.FindStringSubmatch(trimmed)
			out = append(out, "    "+m[1]+" CURSOR FOR "+strings.TrimSpace(m[3])+";")
			r.led.Rulef("cursor %s rewritten to CURSOR FOR", m[1])
		case exceptionDeclRe.MatchString(trimmed):
			m := exceptionDeclRe.FindStringSubmatch(trimmed)
			out = append(out, "    -- "+trimmed+";")
			r.led.Warnf(diag.KindSyntaxDifference, diag.SeverityInfo,
				"raise the condition directly; PostgreSQL needs no declaration",
				"user exception declaration %s commented out", m[1])
		case constantDeclRe.MatchString(trimmed):
			m := constantDeclRe.FindStringSubmatch(trimmed)
			out = append(out, "    "+m[1]+" CONSTANT "+typemap.MapType(strings.TrimSpace(m[2]), dialect.Postgres)+
				" := "+strings.TrimSpace(m[3])+";")
		case varDeclRe.MatchString(trimmed):
			m := varDeclRe.FindStringSubmatch(trimmed)
			d := "    " + m[1] + " " + typemap.MapType(strings.TrimSpace(m[2]), dialect.Postgres)
			if m[3] != "" {
				d += " := " + strings.TrimSpace(m[3])
			}
			out = append(out, d+";")
		default:
			out = append(out, "    "+trimmed+";")
		}
	}
	if len(out) == 0 {
		return "\n"
	}
	return "\n" + strings.Join(out, "\n") + "\n"
}

// ---------------------------------------------------------------------------
// Implicit-cursor attributes

var (
	rowcountAssignRe = regexp.MustCompile(`(?im)^([ \t]*)([A-Za-z_]\w*)\s*:=\s*SQL\s*%\s*ROWCOUNT\s*;`)
	rowcountRe       = regexp.MustCompile(`(?i)\bSQL\s*%\s*ROWCOUNT\b`)
	foundRe          = regexp.MustCompile(`(?i)\bSQL\s*%\s*FOUND\b`)
	notFoundRe       = regexp.MustCompile(`(?i)\bSQL\s*%\s*NOTFOUND\b`)
	isOpenRe         = regexp.MustCompile(`(?i)\bSQL\s*%\s*ISOPEN\b`)
)

func (r *bodyRewriter) cursorAttributes(text string) string {
	switch r.target {
	case dialect.MySQL:
		text = replaceShaped(text, rowcountRe, func(g []string) string {
			r.led.AddRule("SQL%ROWCOUNT rewritten to ROW_COUNT()")
			return "ROW_COUNT()"
		})
		text = replaceShaped(text, foundRe, func(g []string) string {
			r.led.AddRule("SQL%FOUND rewritten to (ROW_COUNT() > 0)")
			return "(ROW_COUNT() > 0)"
		})
		text = replaceShaped(text, notFoundRe, func(g []string) string {
			r.led.AddRule("SQL%NOTFOUND rewritten to (ROW_COUNT() = 0)")
			return "(ROW_COUNT() = 0)"
		})
		text = replaceShaped(text, isOpenRe, func(g []string) string {
			r.led.Warnf(diag.KindPartialSupport, diag.SeverityInfo, "",
				"SQL%%ISOPEN replaced with FALSE; the implicit cursor is never open between statements")
			return "FALSE"
		})
	case dialect.Postgres:
		// Assignment form first; what is left afterwards is a bare
		// expression use, which has no single-expression equivalent.
		text = replaceShaped(text, rowcountAssignRe, func(g []string) string {
			r.led.Rulef("assignment from SQL%%ROWCOUNT rewritten to GET DIAGNOSTICS %s", g[2])
			return g[1] + "GET DIAGNOSTICS " + g[2] + " = ROW_COUNT;"
		})
		text = replaceShaped(text, rowcountRe, func(g []string) string {
			r.led.Warnf(diag.KindManualReview, diag.SeverityWarning,
				"assign GET DIAGNOSTICS to a variable before this expression and use the variable",
				"SQL%%ROWCOUNT used outside an assignment has no PostgreSQL expression equivalent; placeholder 0 substituted")
			return "0 /* SQL%ROWCOUNT */"
		})
		text = replaceShaped(text, foundRe, func(g []string) string {
			r.led.AddRule("SQL%FOUND rewritten to FOUND")
			return "FOUND"
		})
		text = replaceShaped(text, notFoundRe, func(g []string) string {
			r.led.AddRule("SQL%NOTFOUND rewritten to NOT FOUND")
			return "NOT FOUND"
		})
		text = replaceShaped(text, isOpenRe, func(g []string) string {
			r.led.Warnf(diag.KindPartialSupport, diag.SeverityInfo, "",
				"SQL%%ISOPEN replaced with FALSE; the implicit cursor is never open between statements")
			return "FALSE"
		})
	}
	return text
}

// ---------------------------------------------------------------------------
// Autonomous-transaction pragma

var autonomousRe = regexp.MustCompile(`(?im)^([ \t]*)PRAGMA\s+AUTONOMOUS_TRANSACTION\s*;`)

func (r *bodyRewriter) autonomousPragma(text string) string {
	return replaceShaped(text, autonomousRe, func(g []string) string {
		if r.target == dialect.MySQL {
			r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityError,
				"run the autonomous work over a separate connection from the application layer",
				"autonomous transactions are not supported by MySQL; pragma commented out")
		} else {
			r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityWarning,
				"use the dblink extension to run the autonomous work over a separate connection",
				"autonomous transactions are not supported by PostgreSQL; pragma commented out")
		}
		return g[1] + "-- PRAGMA AUTONOMOUS_TRANSACTION;"
	})
}

// ---------------------------------------------------------------------------
// Pipelined markers and PIPE ROW

var (
	pipeRowRe   = regexp.MustCompile(`(?i)\bPIPE\s+ROW\s*\(\s*((?:[^()]|\([^()]*\))*?)\s*\)\s*;`)
	pipelinedRe = regexp.MustCompile(`(?i)\bPIPELINED\b`)
)

func (r *bodyRewriter) pipelined(text string) string {
	switch r.target {
	case dialect.MySQL:
		text = replaceShaped(text, pipeRowRe, func(g []string) string {
			r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityError,
				"collect the rows in a temporary table or return them through a cursor",
				"PIPE ROW has no MySQL equivalent; statement commented out")
			return "-- " + g[0]
		})
		text = replaceShaped(text, pipelinedRe, func(g []string) string {
			r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityError,
				"collect the rows in a temporary table or return them through a cursor",
				"PIPELINED functions have no MySQL equivalent")
			return "/* pipelined */"
		})
	case dialect.Postgres:
		text = replaceShaped(text, pipeRowRe, func(g []string) string {
			r.led.Rulef("PIPE ROW rewritten to RETURN NEXT")
			return "RETURN NEXT " + g[1] + ";"
		})
		text = replaceShaped(text, pipelinedRe, func(g []string) string {
			r.led.AddRule("PIPELINED marker rewritten to a structural comment")
			return "/* pipelined */"
		})
	}
	return text
}

// ---------------------------------------------------------------------------
// Debug output

var (
	putLineRe    = regexp.MustCompile(`(?i)\bDBMS_OUTPUT\s*\.\s*PUT_LINE\s*\(\s*((?:[^()]|\([^()]*\))*?)\s*\)\s*;`)
	dbmsOutputRe = regexp.MustCompile(`(?im)^([ \t]*)DBMS_OUTPUT\s*\.\s*\w+\s*\((?:[^()]|\([^()]*\))*\)\s*;`)
)

func (r *bodyRewriter) debugOutput(text string) string {
	switch r.target {
	case dialect.MySQL:
		text = replaceShaped(text, putLineRe, func(g []string) string {
			r.led.Rulef("DBMS_OUTPUT.PUT_LINE rewritten to SELECT")
			r.led.Warnf(diag.KindSyntaxDifference, diag.SeverityInfo,
				"drop the statement if the extra result set bothers callers",
				"debug output emitted as a result set")
			return "SELECT " + g[1] + " AS debug_output;"
		})
	case dialect.Postgres:
		text = replaceShaped(text, putLineRe, func(g []string) string {
			r.led.Rulef("DBMS_OUTPUT.PUT_LINE rewritten to RAISE NOTICE")
			return "RAISE NOTICE '%', " + g[1] + ";"
		})
	}
	// Whatever else the package offers has no counterpart on either target.
	return replaceShaped(text, dbmsOutputRe, func(g []string) string {
		r.led.Warnf(diag.KindUnsupportedFunction, diag.SeverityWarning,
			"remove the call or replace it with target-native logging",
			"DBMS_OUTPUT call has no equivalent; statement commented out")
		return g[1] + "-- " + strings.TrimSpace(g[0][len(g[1]):])
	})
}

// ---------------------------------------------------------------------------
// Assignments (MySQL only)

// assignRe matches a statement-position := assignment. MySQL compound
// statements assign with SET.
var assignRe = regexp.MustCompile(`(?im)^([ \t]*)([A-Za-z_]\w*)\s*:=\s*([^;]+);`)

func (r *bodyRewriter) assignments(text string) string {
	return replaceShaped(text, assignRe, func(g []string) string {
		r.led.Rulef("assignment to %s rewritten to SET", g[2])
		return g[1] + "SET " + g[2] + " = " + strings.TrimSpace(g[3]) + ";"
	})
}
