package transpiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"plmorph/dialect"
	"plmorph/diag"
)

// ---------------------------------------------------------------------------
// Predefined exception condition table

// condition maps one Oracle predefined exception to each target's handler
// condition. MySQLState is the SQLSTATE used in DECLARE ... HANDLER FOR and
// SIGNAL; two entries use a handler class keyword instead and are special
// cased where they are consumed.
type condition struct {
	MySQLState  string // five-char SQLSTATE
	MySQLClass  string // handler class keyword, when one exists (NOT FOUND, SQLEXCEPTION)
	PGCondition string // PL/pgSQL condition name
}

var conditionTable = map[string]condition{
	"OTHERS":              {MySQLState: "45000", MySQLClass: "SQLEXCEPTION", PGCondition: "OTHERS"},
	"NO_DATA_FOUND":       {MySQLState: "02000", MySQLClass: "NOT FOUND", PGCondition: "NO_DATA_FOUND"},
	"DUP_VAL_ON_INDEX":    {MySQLState: "23000", PGCondition: "unique_violation"},
	"TOO_MANY_ROWS":       {MySQLState: "21000", PGCondition: "too_many_rows"},
	"ZERO_DIVIDE":         {MySQLState: "22012", PGCondition: "division_by_zero"},
	"INVALID_CURSOR":      {MySQLState: "24000", PGCondition: "invalid_cursor_state"},
	"CURSOR_ALREADY_OPEN": {MySQLState: "24000", PGCondition: "duplicate_cursor"},
	"VALUE_ERROR":         {MySQLState: "22001", PGCondition: "data_exception"},
	"INVALID_NUMBER":      {MySQLState: "22018", PGCondition: "invalid_text_representation"},
	"CASE_NOT_FOUND":      {MySQLState: "20000", PGCondition: "case_not_found"},
	"LOGIN_DENIED":        {MySQLState: "28000", PGCondition: "invalid_authorization_specification"},
	"PROGRAM_ERROR":       {MySQLState: "HY000", PGCondition: "internal_error"},
	"STORAGE_ERROR":       {MySQLState: "HY000", PGCondition: "internal_error"},
}

// lookupCondition resolves an Oracle exception name, case-insensitively.
func lookupCondition(name string) (condition, bool) {
	c, ok := conditionTable[strings.ToUpper(strings.TrimSpace(name))]
	return c, ok
}

// ---------------------------------------------------------------------------
// INSERT/UPDATE/DELETE ... RETURNING ... INTO

var returningIntoRe = regexp.MustCompile(`(?i)\bRETURNING\s+[^;]+?\s+INTO\s+[^;]+`)

func (r *bodyRewriter) returningInto(text string) string {
	if r.target == dialect.Postgres {
		// PL/pgSQL understands RETURNING ... INTO as written.
		return text
	}
	return replaceShaped(text, returningIntoRe, func(g []string) string {
		r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityError,
			"use LAST_INSERT_ID() after an insert, or re-read the row with a SELECT",
			"RETURNING INTO has no MySQL equivalent; clause commented out")
		return "/* " + g[0] + " */"
	})
}

// ---------------------------------------------------------------------------
// GOTO and labels

var (
	gotoRe  = regexp.MustCompile(`(?i)\bGOTO\s+(\w+)\s*;`)
	labelRe = regexp.MustCompile(`<<\s*\w+\s*>>`)
)

func (r *bodyRewriter) gotoLabels(text string) string {
	if r.target == dialect.MySQL {
		text = replaceShaped(text, gotoRe, func(g []string) string {
			r.led.Warnf(diag.KindUnsupportedStatement, diag.SeverityError,
				"restructure the jump into loop or conditional control flow",
				"GOTO %s has no MySQL equivalent; statement commented out", g[1])
			return "-- " + g[0]
		})
		return replaceShaped(text, labelRe, func(g []string) string {
			return "/* " + g[0] + " */"
		})
	}
	// Postgres keeps the text; the construct is syntactically compatible
	// but worth flagging.
	if matchShaped(text, gotoRe) {
		text = replaceShaped(text, gotoRe, func(g []string) string {
			r.led.Warnf(diag.KindSyntaxDifference, diag.SeverityInfo,
				"prefer loop and conditional control flow over jumps",
				"GOTO %s passed through; review the control flow", g[1])
			return g[0]
		})
	}
	return text
}

// ---------------------------------------------------------------------------
// EXIT WHEN / CONTINUE WHEN loop-control shorthand

var (
	exitWhenRe     = regexp.MustCompile(`(?i)\bEXIT\s+WHEN\s+([^;]+?)\s*;`)
	continueWhenRe = regexp.MustCompile(`(?i)\bCONTINUE\s+WHEN\s+([^;]+?)\s*;`)
)

func (r *bodyRewriter) loopControlShorthand(text string) string {
	exitKw, continueKw := "EXIT", "CONTINUE"
	if r.target == dialect.MySQL {
		exitKw, continueKw = "LEAVE", "ITERATE"
	}
	text = replaceShaped(text, exitWhenRe, func(g []string) string {
		r.led.Rulef("EXIT WHEN rewritten to IF ... THEN %s", exitKw)
		if r.target == dialect.MySQL {
			r.led.Warnf(diag.KindSyntaxDifference, diag.SeverityInfo,
				"label the enclosing loop and pass the label to LEAVE",
				"LEAVE needs a loop label in MySQL")
		}
		return "IF " + strings.TrimSpace(g[1]) + " THEN " + exitKw + "; END IF;"
	})
	return replaceShaped(text, continueWhenRe, func(g []string) string {
		r.led.Rulef("CONTINUE WHEN rewritten to IF ... THEN %s", continueKw)
		if r.target == dialect.MySQL {
			r.led.Warnf(diag.KindSyntaxDifference, diag.SeverityInfo,
				"label the enclosing loop and pass the label to ITERATE",
				"ITERATE needs a loop label in MySQL")
		}
		return "IF " + strings.TrimSpace(g[1]) + " THEN " + continueKw + "; END IF;"
	})
}

// ---------------------------------------------------------------------------
// RAISE_APPLICATION_ERROR and named-exception RAISE

var raiseAppErrorRe = regexp.MustCompile(`(?i)\bRAISE_APPLICATION_ERROR\s*\(\s*((?:[^()]|\([^()]*\))*?)\s*\)\s*;`)

func (r *bodyRewriter) raiseApplicationError(text string) string {
	return replaceShaped(text, raiseAppErrorRe, func(g []string) string {
		args := splitTopLevel(g[1], ',')
		if len(args) < 2 {
			r.led.Warnf(diag.KindManualReview, diag.SeverityWarning,
				"rewrite the raise by hand; expected an error code and a message",
				"RAISE_APPLICATION_ERROR with %d argument(s) left unchanged", len(args))
			return g[0]
		}
		code := strings.TrimSpace(args[0])
		message := strings.TrimSpace(args[1])
		switch r.target {
		case dialect.MySQL:
			r.led.Rulef("RAISE_APPLICATION_ERROR rewritten to SIGNAL SQLSTATE '45000'")
			r.led.Warnf(diag.KindPartialSupport, diag.SeverityInfo,
				"recover the code from the message text if callers depend on it",
				"Oracle error code %s dropped; MySQL signals carry SQLSTATE only", code)
			return "SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = " + message + ";"
		case dialect.Postgres:
			errcode := pgErrcode(code, r.led)
			r.led.Rulef("RAISE_APPLICATION_ERROR rewritten to RAISE EXCEPTION (code %s -> ERRCODE '%s')", code, errcode)
			return "RAISE EXCEPTION " + message + " USING ERRCODE = '" + errcode + "';"
		}
		return g[0]
	})
}

// pgErrcode maps an Oracle user error code (-20000..-20999) onto the custom
// SQLSTATE range 45000..45999 so the code survives the translation. Codes
// outside that range fall back to plpgsql's default raise_exception state.
func pgErrcode(code string, led *diag.Ledger) string {
	n, err := strconv.Atoi(code)
	if err == nil && n <= -20000 && n >= -20999 {
		return fmt.Sprintf("45%03d", -n-20000)
	}
	led.Warnf(diag.KindPartialSupport, diag.SeverityInfo, "",
		"error code %s is outside the user range -20000..-20999; ERRCODE P0001 substituted", code)
	return "P0001"
}

// namedRaiseRe matches RAISE of a named exception. A bare RAISE (re-raise)
// deliberately does not match; it is the exception transpiler's business.
var namedRaiseRe = regexp.MustCompile(`(?i)\bRAISE\s+([A-Za-z_]\w*)\s*;`)

func (r *bodyRewriter) namedRaise(text string) string {
	return replaceShaped(text, namedRaiseRe, func(g []string) string {
		cond, known := lookupCondition(g[1])
		switch r.target {
		case dialect.MySQL:
			if known {
				r.led.Rulef("RAISE %s rewritten to SIGNAL SQLSTATE '%s'", g[1], cond.MySQLState)
				return "SIGNAL SQLSTATE '" + cond.MySQLState + "';"
			}
			// The declaration pass turned the exception into a named
			// CONDITION; signalling it by name keeps handlers on that
			// condition working.
			r.led.Warnf(diag.KindSyntaxDifference, diag.SeverityInfo,
				"add DECLARE "+g[1]+" CONDITION FOR SQLSTATE '45000' if the declaration lives elsewhere",
				"user exception %s signalled by its declared condition name", g[1])
			return "SIGNAL " + g[1] + ";"
		case dialect.Postgres:
			if known {
				r.led.Rulef("RAISE %s rewritten to RAISE %s", g[1], cond.PGCondition)
				return "RAISE " + cond.PGCondition + ";"
			}
			r.led.Warnf(diag.KindSyntaxDifference, diag.SeverityInfo,
				"raise a specific ERRCODE if handlers must tell exceptions apart",
				"user exception %s raised as a generic exception", g[1])
			return "RAISE EXCEPTION '" + g[1] + "';"
		}
		return g[0]
	})
}
