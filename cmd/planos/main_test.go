package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/planos/internal/core"
	"github.com/JonMunkholm/planos/internal/source"
)

const (
	cashCSV = "SAP;Fecha Terminación. (Digite);DESCUADRES DE CAJA PARA DESCONTAR\n" +
		"12345;08/07/2025;1500\n"
	benefitsCSV = "N° Sap ;Terminación;Descontar;Pagar;PEOPLE\n" +
		"777 ;;;2,500;\n" +
		"888;2025-07-01;100;;40\n"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeInputs(t *testing.T, cash, benefits string) (dir, cashPath, benefitsPath string) {
	t.Helper()

	dir = t.TempDir()
	cashPath = filepath.Join(dir, "caja.csv")
	benefitsPath = filepath.Join(dir, "bigpass.csv")
	require.NoError(t, os.WriteFile(cashPath, []byte(cash), 0o644))
	require.NoError(t, os.WriteFile(benefitsPath, []byte(benefits), 0o644))
	return dir, cashPath, benefitsPath
}

func TestRun_WritesFlatFile(t *testing.T) {
	dir, cash, benefits := writeInputs(t, cashCSV, benefitsCSV)
	outDir := filepath.Join(dir, "salida")

	stdout, _, err := execute(t, "run",
		"--cash", cash, "--benefits", benefits,
		"--out", outDir, "--format", "csv", "--timestamp=false",
	)
	require.NoError(t, err)

	want := filepath.Join(outDir, "archivo_plano.csv")
	assert.Contains(t, stdout, "CAJA (Z498)")
	assert.Contains(t, stdout, "TOTAL GENERAL")
	assert.Regexp(t, `TOTAL GENERAL +4 +\$4\.?140`, stdout)
	assert.Contains(t, stdout, "Archivo generado: "+want)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "\xEF\xBB\xBF"+
		"SAP;FECHA;CONCEPTO;VALOR\n"+
		"12345;08.07.2025;Z498;1500\n"+
		"888;01.07.2025;Z609;100\n"+
		"777;;Y602;2500\n"+
		"888;01.07.2025;Y608;40\n", string(data))
}

func TestRun_TimestampedXLSX(t *testing.T) {
	dir, cash, benefits := writeInputs(t, cashCSV, benefitsCSV)
	outDir := filepath.Join(dir, "salida")

	_, _, err := execute(t, "run", "--cash", cash, "--benefits", benefits, "--out", outDir, "--format", "xlsx", "--timestamp")
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^archivo_plano_\d{8}_\d{6}\.xlsx$`, entries[0].Name())
}

func TestRun_DateLayout(t *testing.T) {
	dir, cash, benefits := writeInputs(t, cashCSV, benefitsCSV)

	_, _, err := execute(t, "run", "--cash", cash, "--benefits", benefits,
		"--out", dir, "--format", "csv", "--timestamp=false", "--date-layout", "2006-01-02")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "archivo_plano.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "12345;2025-07-08;Z498;1500\n")
}

func TestRun_EmptyResult(t *testing.T) {
	dir, cash, benefits := writeInputs(t,
		"SAP;DESCUADRES DE CAJA PARA DESCONTAR\n1;0\n",
		"N° Sap ;Pagar\n2;-5\n",
	)
	outDir := filepath.Join(dir, "salida")

	stdout, _, err := execute(t, "run", "--cash", cash, "--benefits", benefits, "--out", outDir)
	require.NoError(t, err, "an empty result is not a failure")
	assert.Contains(t, stdout, "no qualifying rows")

	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr), "no file is written")
}

func TestRun_Errors(t *testing.T) {
	dir, cash, benefits := writeInputs(t, cashCSV, benefitsCSV)
	broken := filepath.Join(dir, "rota.xlsx")
	require.NoError(t, os.WriteFile(broken, []byte("not a workbook"), 0o644))

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"unreadable source", []string{"--cash", broken, "--benefits", benefits}, "FILE002"},
		{"missing source", []string{"--cash", filepath.Join(dir, "nope.xlsx"), "--benefits", benefits}, "FILE002"},
		{"unknown format", []string{"--cash", cash, "--benefits", benefits, "--format", "pdf"}, "VAL001"},
		{"bad date layout", []string{"--cash", cash, "--benefits", benefits, "--date-layout", "yyyy"}, "VAL001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--out", dir}, tt.args...)
			_, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, core.MapError(err).Code)
		})
	}
}

func TestRun_UnreadableIsSourceError(t *testing.T) {
	dir, _, benefits := writeInputs(t, cashCSV, benefitsCSV)
	broken := filepath.Join(dir, "rota.xlsx")
	require.NoError(t, os.WriteFile(broken, []byte("not a workbook"), 0o644))

	_, _, err := execute(t, "run", "--cash", broken, "--benefits", benefits, "--out", dir)
	assert.ErrorIs(t, err, source.ErrUnreadableSource)
}

func TestRun_RequiresBothFiles(t *testing.T) {
	_, _, err := execute(t, "run", "--cash", "caja.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "benefits")
}

func TestRun_LogsToStderr(t *testing.T) {
	dir, cash, benefits := writeInputs(t, cashCSV, benefitsCSV)

	stdout, stderr, err := execute(t, "run", "-v", "--cash", cash, "--benefits", benefits,
		"--out", dir, "--format", "csv")
	require.NoError(t, err)

	assert.Contains(t, stderr, "run started")
	assert.Contains(t, stderr, "rule applied")
	assert.NotContains(t, stdout, "run started")
}

func TestCheck(t *testing.T) {
	_, cash, benefits := writeInputs(t,
		"SAP;Fecha Terminación. (Digite);DESCUADRES DE CAJA PARA DESCONTAR\n"+
			"12345;08/07/2025;1500\n"+
			"2;;0\n"+
			"3;;abc\n",
		benefitsCSV,
	)

	stdout, _, err := execute(t, "check", "--cash", cash, "--benefits", benefits)
	require.NoError(t, err)

	assert.Contains(t, stdout, "caja.csv: 3 filas")
	assert.Contains(t, stdout, "bigpass.csv: 2 filas")
	assert.Regexp(t, `Z498 +3 +1 +1500 +not numeric=1, not positive=1 +0`, stdout)
	assert.Contains(t, stdout, "Registros: 4 (ok)")
}

func TestCheck_MissingColumn(t *testing.T) {
	_, cash, benefits := writeInputs(t, cashCSV, "N° Sap ;Pagar\n2;10\n")

	stdout, _, err := execute(t, "check", "--cash", cash, "--benefits", benefits)
	require.NoError(t, err)
	assert.Contains(t, stdout, `falta columna "Descontar"`)
	assert.Contains(t, stdout, "Registros: 2 (ok)")
}

func TestCheck_Errors(t *testing.T) {
	dir, cash, benefits := writeInputs(t, cashCSV, benefitsCSV)

	_, _, err := execute(t, "check", "--cash", filepath.Join(dir, "nope.xlsx"), "--benefits", benefits)
	require.Error(t, err)
	assert.Equal(t, "FILE002", core.MapError(err).Code)

	_, _, err = execute(t, "check", "--cash", cash, "--benefits", benefits, "--date-layout", "yyyy")
	require.Error(t, err)
	assert.Equal(t, "VAL001", core.MapError(err).Code)
}

func TestRules(t *testing.T) {
	stdout, _, err := execute(t, "rules")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "CONCEPTO"))
	assert.True(t, strings.HasPrefix(lines[1], "Z498"))
	assert.Contains(t, lines[1], `"DESCUADRES DE CAJA PARA DESCONTAR"`)
	assert.True(t, strings.HasPrefix(lines[4], "Y608"))
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "planos dev\n", stdout)
}
