package widget

import _ "embed"

// Script is the embeddable widget loader served at /widget.js.
//
//go:embed widget.js
var Script []byte
