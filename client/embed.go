// Package client embeds the crimedesk browser runtime: the live socket, the
// wizard op interpreter and the page glue (theme, tooltips, previews).
package client

import (
	"embed"
	"io/fs"
)

// Script is the runtime's file name under the assets root.
const Script = "crimedesk.js"

//go:embed src/crimedesk.js
var files embed.FS

// Assets returns the runtime rooted at src/.
func Assets() fs.FS {
	sub, err := fs.Sub(files, "src")
	if err != nil {
		panic(err)
	}
	return sub
}
