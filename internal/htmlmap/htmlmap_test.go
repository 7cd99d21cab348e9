package htmlmap

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>t</title><script>var x;</script></head>
<body>
  <form id="search">
    <input id="q" placeholder="Search" type="text">
    <button>Go</button>
    <button id="clear"></button>
  </form>
  <div><a href="/home"> Home <b>page</b> </a></div>
  <a href="">  </a>
  <select name="n"></select>
</body></html>`

func TestCollectFindsInteractiveElements(t *testing.T) {
	entries, err := Collect(page)
	require.NoError(t, err)

	require.Len(t, entries, 4)
	require.Equal(t, "/html/body/form/input", entries[0].XPath)
	require.Equal(t, map[string]string{"id": "q", "placeholder": "Search"}, entries[0].Element.Attributes)

	require.Equal(t, "/html/body/form/button[1]", entries[1].XPath)
	require.Equal(t, "Go", entries[1].Element.Text)

	require.Equal(t, "/html/body/form/button[2]", entries[2].XPath)
	require.Equal(t, "clear", entries[2].Element.Attributes["id"])

	require.Equal(t, "/html/body/div/a", entries[3].XPath)
	require.Equal(t, "Homepage", entries[3].Element.Text)
}

func TestXPathMapIsValidJSONInDocumentOrder(t *testing.T) {
	out, err := XPathMap(page)
	require.NoError(t, err)

	var decoded map[string]Element
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 4)
	require.Equal(t, "/home", decoded["/html/body/div/a"].Attributes["href"])
	require.Less(t, strings.Index(out, "form/input"), strings.Index(out, "div/a"))
}

func TestXPathMapEmpty(t *testing.T) {
	out, err := XPathMap("<p>nothing to click</p>")
	require.NoError(t, err)
	require.Equal(t, "{}", out)
}
