package transpiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plmorph/dialect"
	"plmorph/diag"
	"plmorph/typemap"
)

func TestParseSignatureProcedure(t *testing.T) {
	sig := parseSignature(`CREATE OR REPLACE PROCEDURE update_salary(p_id IN NUMBER, p_salary IN OUT NUMBER(10,2), p_note VARCHAR2(200) := 'none') IS`)
	require.NotNil(t, sig)
	assert.Equal(t, "PROCEDURE", sig.Kind)
	assert.Equal(t, "update_salary", sig.Name)
	require.Len(t, sig.Params, 3)
	assert.Equal(t, Param{Name: "p_id", Mode: typemap.ModeIn, Type: "NUMBER"}, sig.Params[0])
	assert.Equal(t, Param{Name: "p_salary", Mode: typemap.ModeInOut, Type: "NUMBER(10,2)"}, sig.Params[1])
	assert.Equal(t, typemap.ModeIn, sig.Params[2].Mode)
	assert.Equal(t, "VARCHAR2(200)", sig.Params[2].Type)
	assert.Equal(t, "'none'", sig.Params[2].Default)
	assert.Empty(t, sig.ReturnType)
}

func TestParseSignatureFunction(t *testing.T) {
	sig := parseSignature("CREATE FUNCTION get_bonus(p_id IN NUMBER) RETURN NUMBER(10,2) DETERMINISTIC IS")
	require.NotNil(t, sig)
	assert.Equal(t, "FUNCTION", sig.Kind)
	assert.Equal(t, "NUMBER(10,2)", sig.ReturnType)
	assert.False(t, sig.Pipelined)
}

func TestParseSignaturePipelined(t *testing.T) {
	sig := parseSignature("CREATE OR REPLACE FUNCTION list_emps RETURN t_emp_list PIPELINED IS")
	require.NotNil(t, sig)
	assert.True(t, sig.Pipelined)
	assert.Equal(t, "t_emp_list", sig.ReturnType)
}

func TestParseSignatureNotARoutine(t *testing.T) {
	assert.Nil(t, parseSignature("CREATE TABLE t (id NUMBER);"))
}

func TestConvertSignatureMySQLProcedure(t *testing.T) {
	led := diag.NewLedger()
	out := ConvertSignature(
		"CREATE OR REPLACE PROCEDURE update_salary(p_id IN NUMBER, p_delta OUT NUMBER) IS\nBEGIN\nNULL;\nEND;",
		dialect.Oracle, dialect.MySQL, led)
	assert.Contains(t, out, "CREATE PROCEDURE update_salary(IN p_id DECIMAL, OUT p_delta DECIMAL)")
	assert.NotContains(t, out, " IS\n")
	assert.NotEmpty(t, led.Rules())
}

func TestConvertSignatureMySQLFunction(t *testing.T) {
	led := diag.NewLedger()
	out := ConvertSignature(
		"CREATE FUNCTION get_name(p_id IN NUMBER) RETURN VARCHAR2(100) IS\nBEGIN\nNULL;\nEND;",
		dialect.Oracle, dialect.MySQL, led)
	assert.Contains(t, out, "CREATE FUNCTION get_name(p_id DECIMAL) RETURNS VARCHAR(100)")
}

func TestConvertSignaturePostgresProcedureReturnsVoid(t *testing.T) {
	led := diag.NewLedger()
	out := ConvertSignature(
		"CREATE OR REPLACE PROCEDURE log_event(p_msg IN VARCHAR2(200)) IS\nBEGIN\nNULL;\nEND;",
		dialect.Oracle, dialect.Postgres, led)
	assert.Contains(t, out, "CREATE OR REPLACE FUNCTION log_event(p_msg VARCHAR(200)) RETURNS void AS $$")
	assert.Contains(t, out, "DECLARE")
}

func TestConvertSignaturePostgresOutSuffix(t *testing.T) {
	led := diag.NewLedger()
	out := ConvertSignature(
		"CREATE PROCEDURE split_pay(p_total IN NUMBER, p_tax OUT NUMBER) IS\nBEGIN\nNULL;\nEND;",
		dialect.Oracle, dialect.Postgres, led)
	assert.Contains(t, out, "p_total NUMERIC, p_tax OUT NUMERIC")
}

func TestConvertSignatureUnrecognizedUnchanged(t *testing.T) {
	led := diag.NewLedger()
	in := "SELECT * FROM employees;"
	out := ConvertSignature(in, dialect.Oracle, dialect.MySQL, led)
	// Absence of a recognizable header is not an error and records nothing.
	assert.Equal(t, in, out)
	assert.Empty(t, led.Rules())
	assert.Empty(t, led.Warnings())
}
