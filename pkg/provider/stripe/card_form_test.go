package stripe

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCardForm_EscapesValues(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	err := addCardForm(cardForm{
		ButtonText:     "<b>Save</b>",
		PublishableKey: "pk_test_123",
		ClientSecret:   `seti_1_secret_"x"`,
		ReturnURL:      "https://example.com/done?a=1&b=2",
	}).Render(context.Background(), &sb)
	require.NoError(t, err)

	html := sb.String()
	assert.Contains(t, html, "&lt;b&gt;Save&lt;/b&gt;")
	assert.NotContains(t, html, "<b>Save</b>")
	assert.Contains(t, html, `data-secret="seti_1_secret_&#34;x&#34;"`)
	assert.Contains(t, html, `data-return-url="https://example.com/done?a=1&amp;b=2"`)
	assert.Contains(t, html, "https://js.stripe.com/v3/")
}
