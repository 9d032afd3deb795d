package transpiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plmorph/dialect"
	"plmorph/diag"
)

func TestConvertIdentity(t *testing.T) {
	in := "CREATE PROCEDURE p IS\nBEGIN\n    v := SQL%ROWCOUNT;\nEND;"
	for _, d := range dialect.All() {
		led := diag.NewLedger()
		out := Convert(in, d, d, led)
		assert.Equal(t, in, out, "identity conversion for %s must not touch the text", d)
		assert.Empty(t, led.Warnings())
		assert.Empty(t, led.Rules())
	}
}

func TestConvertUnsupportedPair(t *testing.T) {
	in := "CREATE PROCEDURE p()\nBEGIN\nEND"
	led := diag.NewLedger()
	out := Convert(in, dialect.MySQL, dialect.Postgres, led)
	assert.Equal(t, in, out)
	require.Len(t, led.Warnings(), 1)
	assert.Equal(t, diag.KindPartialSupport, led.Warnings()[0].Kind)
}

// Scenario: a full procedure through the whole pipeline.
func TestConvertProcedureEndToEnd(t *testing.T) {
	in := `CREATE OR REPLACE PROCEDURE adjust_salary(p_id IN NUMBER, p_delta IN NUMBER) IS
    v_count NUMBER := 0;
BEGIN
    UPDATE employees SET salary = salary + p_delta WHERE employee_id = p_id;
    v_count := SQL%ROWCOUNT;
    IF v_count = 0 THEN
        RAISE_APPLICATION_ERROR(-20002, 'No such employee');
    END IF;
EXCEPTION
    WHEN OTHERS THEN
        ROLLBACK;
        RAISE;
END adjust_salary;`

	t.Run("mysql", func(t *testing.T) {
		led := diag.NewLedger()
		out := Convert(in, dialect.Oracle, dialect.MySQL, led)

		assert.Contains(t, out, "CREATE PROCEDURE adjust_salary(IN p_id DECIMAL, IN p_delta DECIMAL)")
		assert.Contains(t, out, "DECLARE v_count DECIMAL DEFAULT 0;")
		assert.Contains(t, out, "SET v_count = ROW_COUNT();")
		assert.Contains(t, out, "SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'No such employee';")
		assert.Contains(t, out, "DECLARE EXIT HANDLER FOR SQLEXCEPTION")
		assert.Contains(t, out, "RESIGNAL;")
		// The closing END loses the routine name.
		assert.True(t, strings.HasSuffix(out, "END;\n"))
		assert.NotContains(t, out, "END adjust_salary")
	})

	t.Run("postgres", func(t *testing.T) {
		led := diag.NewLedger()
		out := Convert(in, dialect.Oracle, dialect.Postgres, led)

		assert.Contains(t, out, "CREATE OR REPLACE FUNCTION adjust_salary(p_id NUMERIC, p_delta NUMERIC) RETURNS void AS $$")
		assert.Contains(t, out, "v_count NUMERIC := 0;")
		assert.Contains(t, out, "GET DIAGNOSTICS v_count = ROW_COUNT;")
		assert.Contains(t, out, "RAISE EXCEPTION 'No such employee' USING ERRCODE = '45002';")
		assert.Contains(t, out, "WHEN OTHERS THEN")
		assert.True(t, strings.HasSuffix(out, "END;\n$$ LANGUAGE plpgsql;\n"))
	})
}

// Scenario: a pipelined function comes out as RETURNS SETOF with RETURN NEXT.
func TestConvertPipelinedFunctionPostgres(t *testing.T) {
	in := `CREATE FUNCTION emp_rows RETURN t_emp_tab PIPELINED IS
BEGIN
    FOR rec IN (SELECT * FROM employees) LOOP
        PIPE ROW(rec);
    END LOOP;
    RETURN;
END;`
	led := diag.NewLedger()
	out := Convert(in, dialect.Oracle, dialect.Postgres, led)
	assert.Contains(t, out, "RETURNS SETOF")
	assert.Contains(t, out, "RETURN NEXT rec;")
	assert.NotContains(t, out, "PIPE ROW")
}

// Scenario: hoisted record types land before the routine text.
func TestConvertHoistsRecordTypes(t *testing.T) {
	in := `CREATE PROCEDURE snapshot IS
    TYPE t_row IS RECORD (id NUMBER, name VARCHAR2(50));
BEGIN
    NULL;
END;`
	led := diag.NewLedger()
	out := Convert(in, dialect.Oracle, dialect.Postgres, led)
	typeAt := strings.Index(out, "CREATE TYPE t_row AS (id NUMERIC, name VARCHAR(50));")
	routineAt := strings.Index(out, "CREATE OR REPLACE FUNCTION snapshot(")
	require.GreaterOrEqual(t, typeAt, 0)
	require.GreaterOrEqual(t, routineAt, 0)
	assert.Less(t, typeAt, routineAt)
}

// Keywords inside string literals and comments must never trigger rewrites.
func TestConvertLeavesLiteralsAlone(t *testing.T) {
	in := `CREATE PROCEDURE log_note(p_id IN NUMBER) IS
BEGIN
    -- RAISE_APPLICATION_ERROR(-20000, 'not real');
    INSERT INTO notes (body) VALUES ('PRAGMA AUTONOMOUS_TRANSACTION; PIPE ROW(x); GOTO out;');
END;`
	led := diag.NewLedger()
	out := Convert(in, dialect.Oracle, dialect.MySQL, led)

	assert.Contains(t, out, "'PRAGMA AUTONOMOUS_TRANSACTION; PIPE ROW(x); GOTO out;'")
	assert.Contains(t, out, "-- RAISE_APPLICATION_ERROR(-20000, 'not real');")
	assert.NotContains(t, out, "SIGNAL")
	for _, w := range led.Warnings() {
		assert.NotEqual(t, diag.KindUnsupportedStatement, w.Kind,
			"literal content misread as a statement: %s", w.Message)
	}
}

func TestConvertPackageRouting(t *testing.T) {
	led := diag.NewLedger()
	out := Convert(hrUtilsBody, dialect.Oracle, dialect.MySQL, led)
	// Package units route through decomposition, not the routine pipeline.
	assert.Contains(t, out, "-- Package hr_utils (body) decomposed for mysql")
	assert.Contains(t, out, "CREATE PROCEDURE hr_utils_update_employee_salary(")
}

func TestConvertIsPureOverRepeatedCalls(t *testing.T) {
	in := "CREATE PROCEDURE p IS\nBEGIN\n    v := SQL%ROWCOUNT;\nEND;"
	a := Convert(in, dialect.Oracle, dialect.MySQL, diag.NewLedger())
	b := Convert(in, dialect.Oracle, dialect.MySQL, diag.NewLedger())
	assert.Equal(t, a, b)
}
