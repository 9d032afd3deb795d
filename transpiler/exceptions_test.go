package transpiler

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plmorph/dialect"
	"plmorph/diag"
)

const handlerRoutine = `BEGIN
    SELECT sal INTO v_sal FROM emp WHERE id = p_id;
EXCEPTION
    WHEN NO_DATA_FOUND THEN
        v_sal := 0;
    WHEN OTHERS THEN
        ROLLBACK;
        RAISE;
END;`

var exceptionKeyword = regexp.MustCompile(`(?m)^\s*EXCEPTION\b`)

func TestExceptionsMySQL(t *testing.T) {
	led := diag.NewLedger()
	out := ConvertExceptions(handlerRoutine, dialect.Oracle, dialect.MySQL, led)

	// One handler declaration per source clause, an EXIT for the catch-all.
	assert.Contains(t, out, "DECLARE CONTINUE HANDLER FOR NOT FOUND")
	assert.Contains(t, out, "DECLARE EXIT HANDLER FOR SQLEXCEPTION")
	assert.Contains(t, out, "RESIGNAL;")
	// The section itself is gone. The handler class keyword SQLEXCEPTION
	// contains the word EXCEPTION, so match the keyword at statement
	// position rather than as a substring.
	assert.False(t, exceptionKeyword.MatchString(out))
}

func TestExceptionsMySQLHandlersFollowDeclares(t *testing.T) {
	in := `BEGIN
    DECLARE v_sal DECIMAL(10,2);
    DECLARE c_emp CURSOR FOR SELECT id FROM emp;
    OPEN c_emp;
EXCEPTION
    WHEN OTHERS THEN
        NULL;
END;`
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)

	// MySQL requires handlers after every variable and cursor DECLARE.
	handlerAt := strings.Index(out, "DECLARE EXIT HANDLER")
	require.GreaterOrEqual(t, handlerAt, 0)
	assert.Less(t, strings.Index(out, "DECLARE v_sal"), handlerAt)
	assert.Less(t, strings.Index(out, "DECLARE c_emp"), handlerAt)
	assert.Less(t, handlerAt, strings.Index(out, "OPEN c_emp"))
}

func TestExceptionsMySQLEmptyHandlerBody(t *testing.T) {
	in := "BEGIN\n    NULL;\nEXCEPTION\n    WHEN NO_DATA_FOUND THEN\n        NULL;\nEND;"
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)
	assert.Contains(t, out, "DECLARE CONTINUE HANDLER FOR NOT FOUND BEGIN END;")
}

func TestExceptionsMySQLUserCondition(t *testing.T) {
	in := "BEGIN\n    NULL;\nEXCEPTION\n    WHEN e_overdrawn THEN\n        ROLLBACK;\nEND;"
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)
	// User-declared exceptions were turned into CONDITIONs by the
	// declaration pass and keep their name here.
	assert.Contains(t, out, "DECLARE CONTINUE HANDLER FOR e_overdrawn")
}

func TestExceptionsNestedBlockMySQL(t *testing.T) {
	in := `BEGIN
    BEGIN
        SELECT sal INTO v_sal FROM emp WHERE id = p_id;
    EXCEPTION
        WHEN NO_DATA_FOUND THEN
            v_sal := 0;
    END;
    UPDATE emp SET sal = v_sal WHERE id = p_id;
END;`
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)

	// The section belongs to the inner block; the handler is declared
	// there, and the statements after that block's END stay outside it and
	// keep running unconditionally.
	handlerAt := strings.Index(out, "DECLARE CONTINUE HANDLER FOR NOT FOUND")
	require.GreaterOrEqual(t, handlerAt, 0)
	handlerEnd := strings.Index(out[handlerAt:], "END;")
	require.GreaterOrEqual(t, handlerEnd, 0)
	assert.NotContains(t, out[handlerAt:handlerAt+handlerEnd], "UPDATE")

	firstBegin := strings.Index(out, "BEGIN")
	innerBegin := firstBegin + 1 + strings.Index(out[firstBegin+1:], "BEGIN")
	assert.Less(t, innerBegin, handlerAt)

	selectAt := strings.Index(out, "SELECT sal")
	updateAt := strings.Index(out, "UPDATE emp")
	require.GreaterOrEqual(t, selectAt, 0)
	require.GreaterOrEqual(t, updateAt, 0)
	assert.Less(t, selectAt, updateAt)
	assert.Contains(t, out[selectAt:updateAt], "END;")
	assert.Equal(t, 1, strings.Count(out, "UPDATE emp SET sal = v_sal WHERE id = p_id;"))
	assert.False(t, exceptionKeyword.MatchString(out))
}

func TestExceptionsNestedBlockPostgres(t *testing.T) {
	in := `BEGIN
    BEGIN
        SELECT sal INTO v_sal FROM emp WHERE id = p_id;
    EXCEPTION
        WHEN NO_DATA_FOUND THEN
            v_sal := 0;
    END;
    UPDATE emp SET sal = v_sal WHERE id = p_id;
END;`
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.Postgres, led)
	// NO_DATA_FOUND maps to itself and the section stays with the inner
	// block, so nothing outside it moves.
	assert.Equal(t, in, out)
}

func TestExceptionsHandlerBodyControlFlow(t *testing.T) {
	in := `BEGIN
    DELETE FROM emp WHERE id = p_id;
EXCEPTION
    WHEN OTHERS THEN
        IF v_retry THEN
            ROLLBACK;
        END IF;
END;`
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)
	// The END IF inside the handler body must not be taken for the END
	// closing the section.
	assert.Contains(t, out, "END IF;")
	assert.Equal(t, 1, strings.Count(out, "HANDLER FOR"))
	assert.False(t, exceptionKeyword.MatchString(out))
}

func TestExceptionsCaseExpressionNotAHandler(t *testing.T) {
	in := `BEGIN
    DELETE FROM emp WHERE id = p_id;
EXCEPTION
    WHEN OTHERS THEN
        v_status := CASE WHEN v_code THEN 'bad' ELSE 'worse' END;
        ROLLBACK;
END;`
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)
	// A WHEN inside a CASE expression has the clause's lexical shape but
	// sits mid-statement; it must stay part of the one real handler body.
	assert.Equal(t, 1, strings.Count(out, "HANDLER FOR"))
	assert.Contains(t, out, "CASE WHEN v_code THEN 'bad' ELSE 'worse' END;")
	assert.Contains(t, out, "ROLLBACK;")

	led2 := diag.NewLedger()
	pg := ConvertExceptions(in, dialect.Oracle, dialect.Postgres, led2)
	assert.Equal(t, in, pg)
}

func TestExceptionsPostgresMapsConditionNames(t *testing.T) {
	led := diag.NewLedger()
	out := ConvertExceptions(handlerRoutine, dialect.Oracle, dialect.Postgres, led)

	// The section stays in place with the names mapped.
	assert.True(t, exceptionKeyword.MatchString(out))
	assert.Contains(t, out, "WHEN NO_DATA_FOUND THEN")
	assert.Contains(t, out, "WHEN OTHERS THEN")
	// Clause count preserved: exactly two WHEN ... THEN handlers.
	assert.Len(t, handlerRe.FindAllString(out, -1), 2)
}

func TestExceptionsPostgresPredefinedNames(t *testing.T) {
	in := `BEGIN
    v_avg := v_total / v_count;
EXCEPTION
    WHEN ZERO_DIVIDE OR VALUE_ERROR THEN
        v_avg := NULL;
END;`
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.Postgres, led)
	assert.Contains(t, out, "WHEN division_by_zero OR data_exception THEN")
}

func TestExceptionsPostgresUserConditionFlagged(t *testing.T) {
	in := "BEGIN\n    NULL;\nEXCEPTION\n    WHEN e_overdrawn THEN\n        ROLLBACK;\nEND;"
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.Postgres, led)
	assert.Contains(t, out, "WHEN e_overdrawn THEN")
	require.Len(t, led.Warnings(), 1)
	assert.Equal(t, diag.KindManualReview, led.Warnings()[0].Kind)
}

func TestExceptionsNoSection(t *testing.T) {
	in := "BEGIN\n    NULL;\nEND;"
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)
	assert.Equal(t, in, out)
	assert.Empty(t, led.Warnings())
}

func TestExceptionsDeclarationShapedKeywordIgnored(t *testing.T) {
	// "e EXCEPTION;" is a declaration, not a section.
	in := "DECLARE\n    e EXCEPTION;\nBEGIN\n    NULL;\nEND;"
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.Postgres, led)
	assert.Equal(t, in, out)
}

func TestExceptionsUnparsableSectionKept(t *testing.T) {
	// The section keyword is present but no WHEN clause parses; deleting
	// it would silently drop handler behavior, so it must survive with the
	// catch-all marker commented and a review warning recorded.
	in := "BEGIN\n    NULL;\nEXCEPTION\n    -- hand-written handler soup\n    garbage here\nEND;"
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)
	assert.Contains(t, out, "garbage here")
	assert.True(t, exceptionKeyword.MatchString(out))
	require.Len(t, led.Warnings(), 1)
	assert.Equal(t, diag.KindManualReview, led.Warnings()[0].Kind)
	assert.Equal(t, diag.SeverityWarning, led.Warnings()[0].Severity)
}

func TestExceptionsLiteralKeywordNotASection(t *testing.T) {
	in := "BEGIN\n    v_msg := 'EXCEPTION WHEN OTHERS THEN';\nEND;"
	led := diag.NewLedger()
	out := ConvertExceptions(in, dialect.Oracle, dialect.MySQL, led)
	assert.Equal(t, in, out)
	assert.Empty(t, led.Warnings())
}
