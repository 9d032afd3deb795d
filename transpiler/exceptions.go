package transpiler

import (
	"regexp"
	"strings"

	"plmorph/dialect"
	"plmorph/diag"
)

// Exception-section transpilation is a three-state machine:
//
//	noSection      — no exception keyword anywhere in the body; terminal,
//	                 input returned unchanged.
//	detected       — the keyword was found.
//	handlersParsed — zero or more WHEN <condition> THEN <body> clauses were
//	                 extracted from the section.
//
// From handlersParsed with a non-empty list the section is rewritten into
// the target's handler idiom. With an empty list the section is kept and
// flagged instead: deleting an exception section whose handlers were not
// understood would be a silent correctness loss, and that distinction is the
// one true branch point in this transpiler.

// ExceptionHandler is one parsed WHEN clause. It lives only for the duration
// of a single routine's conversion.
type ExceptionHandler struct {
	Conditions []string // source condition names; a clause can name several with OR
	Body       string
}

// IsCatchAll reports whether the handler names WHEN OTHERS.
func (h ExceptionHandler) IsCatchAll() bool {
	for _, c := range h.Conditions {
		if strings.EqualFold(c, "OTHERS") {
			return true
		}
	}
	return false
}

var (
	exceptionKwRe = regexp.MustCompile(`(?i)\bEXCEPTION\b`)
	handlerRe     = regexp.MustCompile(`(?is)\bWHEN\s+([A-Za-z_]\w*(?:\s+OR\s+[A-Za-z_]\w*)*)\s+THEN\b`)
	catchAllRe    = regexp.MustCompile(`(?i)\bWHEN\s+OTHERS\s+THEN\b`)
	bareRaiseRe   = regexp.MustCompile(`(?im)^([ \t]*)RAISE\s*;`)
	orSplitRe     = regexp.MustCompile(`(?i)\s+OR\s+`)
)

// blockTokenRe tokenizes the block structure around an exception section.
// The compound closers come first so "END IF" is one token, not END
// followed by a fresh IF opener.
var blockTokenRe = regexp.MustCompile(`(?i)\b(END\s+IF|END\s+LOOP|END\s+CASE|BEGIN|CASE|LOOP|IF|END)\b`)

func normalizeToken(tok string) string {
	return strings.ToUpper(strings.Join(strings.Fields(tok), " "))
}

// sectionEnd returns the offset, relative to start, of the END that closes
// the block owning the exception section at start, or -1 when the text
// runs out first. Handler bodies may hold nested blocks, IF/LOOP/CASE
// statements and CASE expressions, so the extent is found by depth
// counting rather than by picking an END lexically.
func sectionEnd(masked string, start int) int {
	depth := 0
	for _, m := range blockTokenRe.FindAllStringIndex(masked[start:], -1) {
		switch normalizeToken(masked[start+m[0] : start+m[1]]) {
		case "BEGIN", "CASE", "LOOP", "IF":
			depth++
		case "END":
			if depth == 0 {
				return m[0]
			}
			depth--
		default: // END IF, END LOOP, END CASE
			if depth > 0 {
				depth--
			}
		}
	}
	return -1
}

// owningBlockStart returns the offset just after the BEGIN that opens the
// block containing pos, or -1 when pos sits outside any BEGIN block. The
// exception section of a nested block must hand its handlers to that
// block, not to the outermost one.
func owningBlockStart(masked string, pos int) int {
	var stack []int // offset after BEGIN, or -1 for IF/LOOP/CASE openers
	for _, m := range blockTokenRe.FindAllStringIndex(masked[:pos], -1) {
		switch normalizeToken(masked[m[0]:m[1]]) {
		case "BEGIN":
			stack = append(stack, m[1])
		case "CASE", "LOOP", "IF":
			stack = append(stack, -1)
		default:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] >= 0 {
			return stack[i]
		}
	}
	return -1
}

func isWordByte(c byte) bool {
	return c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// clauseAnchored reports whether the WHEN at pos sits at statement
// position: first clause after the section keyword, or right after the
// semicolon ending the previous handler body. A WHEN inside a CASE
// expression is preceded by an expression token instead and fails the
// check. Whitespace, comment delimiters and masked bytes in between are
// skipped.
func clauseAnchored(masked string, pos int) bool {
	i := pos - 1
	for i >= 0 {
		c := masked[i]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == maskByte || c == '-' || c == '/' || c == '*' {
			i--
			continue
		}
		break
	}
	if i < 0 {
		return true
	}
	if masked[i] == ';' {
		return true
	}
	end := i + 1
	for i >= 0 && isWordByte(masked[i]) {
		i--
	}
	return strings.EqualFold(masked[i+1:end], "EXCEPTION")
}

// ConvertExceptions detects a source exception-handling section, classifies
// each handler, and emits the target dialect's handler idiom. MySQL gets
// DECLARE ... HANDLER declarations hoisted to the top of the body and the
// original section deleted; PostgreSQL keeps the section in place with
// condition names mapped, since its native EXCEPTION block already has the
// right shape.
func ConvertExceptions(text string, source, target dialect.Dialect, led *diag.Ledger) string {
	if source == target || source != dialect.Oracle {
		return text
	}
	if target != dialect.MySQL && target != dialect.Postgres {
		return text
	}

	masked := maskLiterals(text)

	// State: noSection -> detected.
	secStart := -1
	for _, m := range exceptionKwRe.FindAllStringIndex(masked, -1) {
		// Skip declaration-shaped uses ("e EXCEPTION;"); the section
		// keyword stands alone before its WHEN clauses.
		rest := strings.TrimLeft(masked[m[1]:], " \t\r\n")
		if strings.HasPrefix(rest, ";") {
			continue
		}
		secStart = m[0]
		break
	}
	if secStart == -1 {
		return text
	}

	// The section runs to the END that closes its owning block. A section
	// inside a nested block must stop at that block's END, leaving the
	// outer statements after it untouched.
	rel := sectionEnd(masked, secStart)
	if rel < 0 {
		led.Warnf(diag.KindManualReview, diag.SeverityWarning,
			"close the block and convert the handlers by hand",
			"exception section has no closing END; left unchanged")
		return text
	}
	secEnd := secStart + rel
	section := text[secStart:secEnd]

	// State: detected -> handlersParsed.
	handlers := parseHandlers(section)
	if len(handlers) == 0 {
		led.Warnf(diag.KindManualReview, diag.SeverityWarning,
			"segment the handler clauses by hand and port each one",
			"exception section detected but its handlers could not be parsed; section kept")
		commented := replaceShaped(section, catchAllRe, func(g []string) string {
			return "-- " + g[0]
		})
		return text[:secStart] + commented + text[secEnd:]
	}

	switch target {
	case dialect.MySQL:
		return mysqlHandlers(text, secStart, secEnd, owningBlockStart(masked, secStart), handlers, led)
	case dialect.Postgres:
		return postgresHandlers(text, secStart, secEnd, handlers, led)
	}
	return text
}

// parseHandlers splits an exception section into WHEN clauses. The section
// text starts at the EXCEPTION keyword and excludes the closing END.
func parseHandlers(section string) []ExceptionHandler {
	masked := maskLiterals(section)
	var matches [][]int
	for _, m := range handlerRe.FindAllStringSubmatchIndex(masked, -1) {
		// A WHEN inside a CASE expression in a handler body has the same
		// lexical shape; only statement-positioned clauses count.
		if clauseAnchored(masked, m[0]) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	var handlers []ExceptionHandler
	for i, m := range matches {
		bodyEnd := len(section)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		names := orSplitRe.Split(section[m[2]:m[3]], -1)
		for j := range names {
			names[j] = strings.TrimSpace(names[j])
		}
		handlers = append(handlers, ExceptionHandler{
			Conditions: names,
			Body:       strings.TrimSpace(section[m[1]:bodyEnd]),
		})
	}
	return handlers
}

// convertHandlerBody applies the handler-body sub-conversions shared by both
// targets: a no-op body collapses to nothing (the caller decides the empty
// shape), a bare re-raise becomes the target's re-signal statement. All
// other statements were already rewritten by the body passes.
func convertHandlerBody(body string, target dialect.Dialect, led *diag.Ledger) string {
	if strings.EqualFold(strings.TrimSpace(body), "NULL;") {
		return ""
	}
	if target == dialect.MySQL {
		body = replaceShaped(body, bareRaiseRe, func(g []string) string {
			led.AddRule("bare RAISE rewritten to RESIGNAL")
			return g[1] + "RESIGNAL;"
		})
	}
	return body
}

// mysqlHandlers deletes the exception section and inserts one DECLARE
// HANDLER per parsed clause immediately after the owning block's BEGIN,
// behind any variable or cursor DECLAREs already sitting there (MySQL
// requires handlers to come after them). A catch-all handler exits the
// block; every other condition continues it. blockStart is the offset
// just after that BEGIN, computed before the section is deleted, or -1.
func mysqlHandlers(text string, secStart, secEnd, blockStart int, handlers []ExceptionHandler, led *diag.Ledger) string {
	var decls []string
	for _, h := range handlers {
		kind := "CONTINUE"
		if h.IsCatchAll() {
			kind = "EXIT"
		}
		var conds []string
		for _, name := range h.Conditions {
			cond, known := lookupCondition(name)
			switch {
			case known && cond.MySQLClass != "":
				conds = append(conds, cond.MySQLClass)
			case known:
				conds = append(conds, "SQLSTATE '"+cond.MySQLState+"'")
			default:
				// User-declared exceptions became CONDITIONs in the
				// declaration pass and can be named directly.
				conds = append(conds, name)
			}
		}
		body := convertHandlerBody(h.Body, dialect.MySQL, led)
		var d string
		if body == "" {
			d = "DECLARE " + kind + " HANDLER FOR " + strings.Join(conds, ", ") + " BEGIN END;"
		} else {
			d = "DECLARE " + kind + " HANDLER FOR " + strings.Join(conds, ", ") + "\n    BEGIN\n        " +
				strings.ReplaceAll(body, "\n", "\n        ") + "\n    END;"
		}
		decls = append(decls, d)
		led.Rulef("handler for %s rewritten to DECLARE %s HANDLER", strings.Join(h.Conditions, " OR "), kind)
	}

	// Drop the section, then hoist the declarations. blockStart precedes
	// the section, so the offset survives the deletion.
	text = text[:secStart] + text[secEnd:]
	if blockStart < 0 {
		led.Warnf(diag.KindManualReview, diag.SeverityWarning,
			"place the handler declarations at the top of the routine body",
			"no BEGIN found to anchor handler declarations; they were prepended")
		return strings.Join(decls, "\n") + "\n" + text
	}
	insert := skipDeclareLines(text, maskLiterals(text), blockStart)
	return text[:insert] + "\n    " + strings.Join(decls, "\n    ") + text[insert:]
}

var declareLineRe = regexp.MustCompile(`^\s*DECLARE\s+[^;]*;`)

// skipDeclareLines advances the insertion point past consecutive DECLARE
// statements following BEGIN, so handlers land after variables and cursors.
func skipDeclareLines(text, masked string, pos int) int {
	for {
		m := declareLineRe.FindStringIndex(masked[pos:])
		if m == nil || strings.Contains(masked[pos:pos+m[0]], "\n\n") {
			return pos
		}
		// Handlers themselves must not be skipped past; only plain
		// variable, cursor and condition declares count.
		stmt := text[pos+m[0] : pos+m[1]]
		if regexp.MustCompile(`(?i)\bHANDLER\b`).MatchString(stmt) {
			return pos
		}
		pos += m[1]
	}
}

// postgresHandlers keeps the section where it is and maps each condition
// name through the predefined table. The clause count is preserved exactly:
// one emitted handler per parsed clause.
func postgresHandlers(text string, secStart, secEnd int, handlers []ExceptionHandler, led *diag.Ledger) string {
	section := text[secStart:secEnd]
	masked := maskLiterals(section)
	var b strings.Builder
	last := 0
	for _, m := range handlerRe.FindAllStringSubmatchIndex(masked, -1) {
		if !clauseAnchored(masked, m[0]) {
			continue
		}
		names := orSplitRe.Split(section[m[2]:m[3]], -1)
		var conds []string
		for _, name := range names {
			name = strings.TrimSpace(name)
			cond, known := lookupCondition(name)
			if known {
				conds = append(conds, cond.PGCondition)
				continue
			}
			led.Warnf(diag.KindManualReview, diag.SeverityWarning,
				"match the condition by ERRCODE raised for this user exception",
				"no PostgreSQL condition for user exception %s; name kept as written", name)
			conds = append(conds, name)
		}
		b.WriteString(section[last:m[0]])
		b.WriteString("WHEN " + strings.Join(conds, " OR ") + " THEN")
		last = m[1]
	}
	b.WriteString(section[last:])
	section = b.String()
	for _, h := range handlers {
		if strings.EqualFold(strings.TrimSpace(h.Body), "NULL;") {
			continue
		}
		led.Rulef("handler for %s mapped to PostgreSQL conditions", strings.Join(h.Conditions, " OR "))
	}
	return text[:secStart] + section + text[secEnd:]
}
