// Package verify checks downloaded artifacts against checksums and
// signatures before they are unpacked or executed.
package verify

// Method indicates how an artifact was verified.
type Method int

const (
	// MethodNone indicates the artifact was not verified.
	MethodNone Method = iota
	// MethodSHA256 indicates SHA256 checksum verification was used.
	MethodSHA256
	// MethodGPG indicates a detached GPG signature was checked.
	MethodGPG
	// MethodMinisign indicates a minisign signature was checked.
	MethodMinisign
)

// String returns a human-readable name for the verification method.
func (m Method) String() string {
	switch m {
	case MethodSHA256:
		return "sha256"
	case MethodGPG:
		return "gpg"
	case MethodMinisign:
		return "minisign"
	case MethodNone:
		return "none"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a verification attempt.
type Result struct {
	Method  Method
	Success bool
	Error   error
}
