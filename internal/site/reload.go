package site

import (
	"bytes"
	"fmt"
)

const reloadScript = `<script>(function(){var es=new EventSource(%q);es.addEventListener("reload",function(){location.reload()});es.addEventListener("build.failed",function(e){console.error("quire: build failed: "+JSON.parse(e.data).error)});})();</script>`

// InjectReload inserts the live reload script before the last </body>, or
// appends it when there is none.
func InjectReload(page []byte, endpoint string) []byte {
	snippet := []byte(fmt.Sprintf(reloadScript, endpoint))
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(page, snippet...)
	}
	out := make([]byte, 0, len(page)+len(snippet))
	out = append(out, page[:i]...)
	out = append(out, snippet...)
	return append(out, page[i:]...)
}
