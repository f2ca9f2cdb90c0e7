package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/planos/internal/core"
)

func TestIndex(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Index(core.DefaultRules(), "CSV", true).Render(context.Background(), &buf))

	body := buf.String()
	assert.Contains(t, body, "<title>Archivo plano de nómina</title>")
	assert.Contains(t, body, `value="csv" checked`)
	assert.NotContains(t, body, `value="xlsx" checked`)
	assert.Contains(t, body, `name="timestamp" value="true"`)
	assert.Contains(t, body, `<td class="code">Z498</td>`)
	assert.Contains(t, body, "DESCUADRES DE CAJA PARA DESCONTAR")
}

func TestIndex_EscapesRuleText(t *testing.T) {
	rules := []core.Rule{{Concept: "X1", Label: "<b>bold</b>", ValueColumn: `"col"`}}

	var buf bytes.Buffer
	require.NoError(t, Index(rules, "xlsx", false).Render(context.Background(), &buf))

	assert.Contains(t, buf.String(), "&lt;b&gt;bold&lt;/b&gt;")
	assert.NotContains(t, buf.String(), "<b>bold</b>")
}

func TestErrorAlert(t *testing.T) {
	msg := core.UserMessage{Code: "FILE002", Message: "No se pudo leer", Action: "Revise el archivo"}

	var buf bytes.Buffer
	require.NoError(t, ErrorAlert(msg).Render(context.Background(), &buf))
	assert.Equal(t,
		`<div class="alert" role="alert"><p>No se pudo leer</p><p>Revise el archivo</p><p class="code">FILE002</p></div>`,
		buf.String())
}

func TestErrorPage(t *testing.T) {
	msg := core.UserMessage{Code: "EMPTY001", Message: "Sin registros"}

	var buf bytes.Buffer
	require.NoError(t, ErrorPage(msg).Render(context.Background(), &buf))

	body := buf.String()
	assert.Contains(t, body, "<title>Error</title>")
	assert.Contains(t, body, `<div class="alert" role="alert">`)
	assert.Contains(t, body, "EMPTY001")
	assert.Contains(t, body, `<a href="/">Volver</a>`)
}
