package transpiler

import (
	"regexp"
	"strings"

	"plmorph/dialect"
	"plmorph/diag"
	"plmorph/typemap"
)

// RoutineSignature is the parsed form of a routine declaration header. It
// exists only while the header is being rewritten and is discarded after.
type RoutineSignature struct {
	Name       string
	Kind       string // PROCEDURE or FUNCTION
	Params     []Param
	ReturnType string
	Pipelined  bool
}

// Param is one parameter of a routine signature.
type Param struct {
	Name    string
	Mode    typemap.Mode
	Type    string
	Default string
}

// headerRe matches an Oracle routine declaration header up to and including
// the IS/AS keyword. The parameter-list group tolerates one level of nested
// parentheses, enough for length/precision suffixes like VARCHAR2(100).
var headerRe = regexp.MustCompile(`(?is)\b(CREATE\s+(?:OR\s+REPLACE\s+)?)?(PROCEDURE|FUNCTION)\s+("?[\w$#]+"?(?:\s*\.\s*"?[\w$#]+"?)?)\s*(\((?:[^()]|\([^()]*\))*\))?\s*(?:RETURN\s+(.+?))?\s*\b(IS|AS)\b`)

// routineModifiers are Oracle header modifiers that can trail the return
// clause. PIPELINED is remembered, the rest are dropped.
var routineModifiers = regexp.MustCompile(`(?i)\b(PIPELINED|DETERMINISTIC|RESULT_CACHE|PARALLEL_ENABLE|AUTHID\s+(?:DEFINER|CURRENT_USER))\b`)

// parseSignature extracts a RoutineSignature from text, or nil when no
// recognizable header is present.
func parseSignature(text string) *RoutineSignature {
	m := findShaped(text, headerRe)
	if m == nil {
		return nil
	}
	sig := &RoutineSignature{
		Kind: strings.ToUpper(m[2]),
		Name: strings.TrimSpace(m[3]),
	}
	if ret := strings.TrimSpace(m[5]); ret != "" {
		sig.Pipelined = regexp.MustCompile(`(?i)\bPIPELINED\b`).MatchString(ret)
		ret = routineModifiers.ReplaceAllString(ret, "")
		sig.ReturnType = strings.TrimSpace(ret)
	}
	if list := m[4]; list != "" {
		sig.Params = parseParams(strings.TrimSuffix(strings.TrimPrefix(list, "("), ")"))
	}
	return sig
}

// parseParams splits a parameter list on top-level commas and reads each
// entry's name, mode, type and default.
func parseParams(list string) []Param {
	var params []Param
	for _, entry := range splitTopLevel(list, ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		params = append(params, parseParam(entry))
	}
	return params
}

var paramRe = regexp.MustCompile(`(?is)^("?[\w$#]+"?)\s*(IN\s+OUT\b|OUT\b|IN\b)?\s*(.*?)(?:\s*(?::=|\bDEFAULT\b)\s*(.+))?$`)

func parseParam(entry string) Param {
	m := paramRe.FindStringSubmatch(entry)
	if m == nil {
		return Param{Name: entry, Type: ""}
	}
	return Param{
		Name:    m[1],
		Mode:    typemap.ParseMode(m[2]),
		Type:    strings.TrimSpace(m[3]),
		Default: strings.TrimSpace(m[4]),
	}
}

// splitTopLevel splits s on sep, ignoring separators nested inside
// parentheses or string literals.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch {
		case inString:
			if s[i] == '\'' {
				inString = false
			}
		case s[i] == '\'':
			inString = true
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
		case s[i] == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// ConvertSignature rewrites a routine declaration header from the source
// dialect into the target dialect: the routine-kind keyword, the parameter
// list and the return clause. If no header can be located by its lexical
// shape the input is returned unchanged and no rule is recorded; absence of
// a signature is not an error, the text may simply not be a routine.
func ConvertSignature(text string, source, target dialect.Dialect, led *diag.Ledger) string {
	if source == target || source != dialect.Oracle {
		return text
	}
	loc := findShapedIndex(text, headerRe)
	if loc == nil {
		return text
	}
	sig := parseSignature(text)
	if sig == nil {
		return text
	}

	var header string
	switch target {
	case dialect.MySQL:
		header = mysqlHeader(sig, led)
	case dialect.Postgres:
		header = postgresHeader(sig, led)
	default:
		return text
	}
	return text[:loc[0]] + header + text[loc[1]:]
}

func mysqlHeader(sig *RoutineSignature, led *diag.Ledger) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	b.WriteString(sig.Kind)
	b.WriteString(" ")
	b.WriteString(sig.Name)
	b.WriteString("(")
	for i, p := range sig.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if sig.Kind == "FUNCTION" {
			// MySQL function parameters take no mode keyword.
			b.WriteString(p.Name + " " + typemap.MapType(p.Type, dialect.MySQL))
			if p.Mode != typemap.ModeIn {
				led.Warnf(diag.KindPartialSupport, diag.SeverityWarning,
					"return the value from the function or convert the routine to a procedure",
					"MySQL functions cannot declare %s parameter %s", p.Mode, p.Name)
			}
		} else {
			b.WriteString(typemap.RenderParam(p.Name, p.Mode, p.Type, dialect.MySQL))
		}
		if p.Default != "" {
			led.Warnf(diag.KindPartialSupport, diag.SeverityInfo,
				"handle the default inside the routine body or at every call site",
				"parameter default dropped for %s: MySQL routine parameters cannot carry defaults", p.Name)
		}
	}
	b.WriteString(")")
	if sig.ReturnType != "" {
		b.WriteString(" RETURNS " + typemap.MapType(sig.ReturnType, dialect.MySQL))
		led.Rulef("return clause rewritten: RETURN %s -> RETURNS %s",
			sig.ReturnType, typemap.MapType(sig.ReturnType, dialect.MySQL))
	}
	b.WriteString("\n")
	led.Rulef("signature converted to MySQL %s %s", strings.ToLower(sig.Kind), sig.Name)
	if len(sig.Params) > 0 {
		led.AddRule("parameter list rewritten to MySQL prefix modes")
	}
	return b.String()
}

func postgresHeader(sig *RoutineSignature, led *diag.Ledger) string {
	var b strings.Builder
	b.WriteString("CREATE OR REPLACE FUNCTION ")
	b.WriteString(sig.Name)
	b.WriteString("(")
	for i, p := range sig.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(typemap.RenderParam(p.Name, p.Mode, p.Type, dialect.Postgres))
		if p.Default != "" && p.Mode == typemap.ModeIn {
			b.WriteString(" DEFAULT " + p.Default)
		}
	}
	b.WriteString(")")
	switch {
	case sig.Pipelined:
		// The PIPELINED marker itself is a body concern; only the return
		// clause shape belongs here.
		b.WriteString(" RETURNS SETOF " + typemap.MapType(sig.ReturnType, dialect.Postgres))
		led.Rulef("pipelined return clause rewritten to RETURNS SETOF %s",
			typemap.MapType(sig.ReturnType, dialect.Postgres))
		led.Warnf(diag.KindPartialSupport, diag.SeverityInfo,
			"verify the element type of the original collection return type",
			"RETURNS SETOF emitted from collection type %s", sig.ReturnType)
	case sig.ReturnType != "":
		b.WriteString(" RETURNS " + typemap.MapType(sig.ReturnType, dialect.Postgres))
		led.Rulef("return clause rewritten: RETURN %s -> RETURNS %s",
			sig.ReturnType, typemap.MapType(sig.ReturnType, dialect.Postgres))
	default:
		b.WriteString(" RETURNS void")
		led.Rulef("procedure %s converted to PostgreSQL function returning void", sig.Name)
	}
	b.WriteString(" AS $$\nDECLARE")
	led.Rulef("signature converted to PostgreSQL function %s", sig.Name)
	if len(sig.Params) > 0 {
		led.AddRule("parameter list rewritten to PostgreSQL suffix modes")
	}
	return b.String()
}
