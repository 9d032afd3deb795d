package transpiler

import (
	"regexp"
	"strings"

	"plmorph/dialect"
	"plmorph/diag"
)

// strategy converts one routine or package unit for a fixed dialect pair.
type strategy func(text string, led *diag.Ledger) string

// pair is a (source, target) dialect combination, the dispatch key for the
// whole engine. Adding a dialect means adding rows here, nothing else.
type pair struct {
	source, target dialect.Dialect
}

func strategies() map[pair]strategy {
	return map[pair]strategy{
		{dialect.Oracle, dialect.MySQL}:    func(t string, l *diag.Ledger) string { return convertUnit(t, dialect.MySQL, l) },
		{dialect.Oracle, dialect.Postgres}: func(t string, l *diag.Ledger) string { return convertUnit(t, dialect.Postgres, l) },
	}
}

// Convert is the orchestrator's single public entry point. It sequences
// signature, body and exception conversion, and package decomposition when
// the unit is a package. The result is always a best-effort string; failure
// is represented as ledger entries, never as control flow, and a conversion
// is a pure function of its inputs plus the static tables.
func Convert(text string, source, target dialect.Dialect, led *diag.Ledger) string {
	if source == target {
		return text
	}
	strat, ok := strategies()[pair{source, target}]
	if !ok {
		led.Warnf(diag.KindPartialSupport, diag.SeverityWarning,
			"only oracle -> mysql and oracle -> postgres conversions are implemented",
			"conversion %s -> %s is not supported; input returned unchanged", source, target)
		return text
	}
	return strat(text, led)
}

func convertUnit(text string, target dialect.Dialect, led *diag.Ledger) string {
	if IsPackage(text) {
		return Decompose(text, dialect.Oracle, target, led)
	}
	converted, hoisted := convertRoutine(text, dialect.Oracle, target, led)
	if len(hoisted) > 0 {
		led.AddRule("hoisted type statements placed before the routine; they must run first")
		return strings.Join(hoisted, "\n") + "\n\n" + converted
	}
	return converted
}

// convertRoutine runs one non-package unit through the full pipeline:
// signature, ordered body sub-rewrites, exception section, block trailer.
func convertRoutine(text string, source, target dialect.Dialect, led *diag.Ledger) (string, []string) {
	text = ConvertSignature(text, source, target, led)
	res := convertBodyEx(text, source, target, led)
	text = ConvertExceptions(res.Text, source, target, led)
	text = finalizeTrailer(text, target, led)
	return text, res.Hoisted
}

var trailingEndRe = regexp.MustCompile(`(?is)\bEND(\s+[A-Za-z_][\w$#]*)?\s*;?\s*$`)

// finalizeTrailer normalizes the closing END of a converted routine.
// Neither target accepts Oracle's "END routine_name;" spelling, and the
// PostgreSQL function produced by the signature converter still needs its
// dollar-quote and language clause closed.
func finalizeTrailer(text string, target dialect.Dialect, led *diag.Ledger) string {
	loc := findShapedIndex(text, trailingEndRe)
	if loc == nil {
		return text
	}
	switch target {
	case dialect.MySQL:
		if text[loc[2]:loc[3]] != "" {
			led.AddRule("routine name dropped from the closing END")
		}
		return text[:loc[0]] + "END;\n"
	case dialect.Postgres:
		if !strings.Contains(text, "$$") {
			// Signature conversion never ran; there is no quoting to close.
			return text
		}
		return text[:loc[0]] + "END;\n$$ LANGUAGE plpgsql;\n"
	}
	return text
}
