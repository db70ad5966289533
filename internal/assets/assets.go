package assets

import _ "embed"

// SigningReturnHTML is shown to signers when the e-signature provider sends
// them back after an embedded signing session.
//
//go:embed signing_return.html
var SigningReturnHTML []byte
