package consolectl

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatterRejectsUnknownFormat(t *testing.T) {
	_, err := NewFormatter("xml", &bytes.Buffer{})
	require.Error(t, err)
}

func TestTextFormatterRendersItemsAsTable(t *testing.T) {
	var out bytes.Buffer
	f, err := NewFormatter(FormatText, &out)
	require.NoError(t, err)

	payload := json.RawMessage(`{"items":[{"name":"Fresh Farm Co-op","id":1},{"name":"Harbor Seafood","id":2}],"total":2}`)
	require.NoError(t, f.Format(payload))

	lines := strings.Split(out.String(), "\n")
	require.Greater(t, len(lines), 3)
	header := strings.ToLower(lines[1])
	assert.Less(t, strings.Index(header, "id"), strings.Index(header, "name"))
	assert.Contains(t, out.String(), "Harbor Seafood")
}

func TestTextFormatterFallsBackToJSON(t *testing.T) {
	var out bytes.Buffer
	f, err := NewFormatter("", &out)
	require.NoError(t, err)
	require.NoError(t, f.Format(map[string]int{"orders": 3}))
	assert.JSONEq(t, `{"orders":3}`, out.String())
}

func TestYAMLFormatterUsesJSONNames(t *testing.T) {
	var out bytes.Buffer
	f, err := NewFormatter(FormatYAML, &out)
	require.NoError(t, err)
	require.NoError(t, f.Format(whoamiView{LoggedIn: true, Username: "alice", Roles: []string{"admin"}}))
	assert.Contains(t, out.String(), "logged_in: true")
	assert.Contains(t, out.String(), "username: alice")
}

func TestSplitTarget(t *testing.T) {
	p, query, err := splitTarget("admin/merchants?status=pending&page=2")
	require.NoError(t, err)
	assert.Equal(t, "/admin/merchants", p)
	assert.Equal(t, "pending", query.Get("status"))

	_, _, err = splitTarget("  ")
	require.Error(t, err)
}
