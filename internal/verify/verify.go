package verify

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/jedisct1/go-minisign"
)

// Verifier checks artifacts against checksum files and signatures.
// GPG keyrings live under keyringDir, one file per tool.
type Verifier struct {
	keyringDir string
}

// NewVerifier creates a verifier reading keyrings from keyringDir.
func NewVerifier(keyringDir string) *Verifier {
	return &Verifier{keyringDir: keyringDir}
}

// SHA256 verifies a file against a checksum file in the usual
// "abc123...  filename" format.
func (v *Verifier) SHA256(artifactPath, checksumPath string) (*Result, error) {
	actualChecksum, err := SHA256File(artifactPath)
	if err != nil {
		return fail(MethodSHA256, fmt.Errorf("calculate checksum: %w", err))
	}

	expectedChecksum, err := findChecksum(checksumPath, filepath.Base(artifactPath))
	if err != nil {
		return fail(MethodSHA256, fmt.Errorf("find checksum: %w", err))
	}

	if !strings.EqualFold(actualChecksum, expectedChecksum) {
		return fail(MethodSHA256, fmt.Errorf("checksum mismatch:\nactual:   %s\nexpected: %s",
			actualChecksum, expectedChecksum))
	}

	return &Result{Method: MethodSHA256, Success: true}, nil
}

// SHA256Hex verifies a file against an expected hex digest.
func (v *Verifier) SHA256Hex(artifactPath, expected string) (*Result, error) {
	actual, err := SHA256File(artifactPath)
	if err != nil {
		return fail(MethodSHA256, fmt.Errorf("calculate checksum: %w", err))
	}
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return fail(MethodSHA256, fmt.Errorf("checksum mismatch:\nactual:   %s\nexpected: %s", actual, expected))
	}
	return &Result{Method: MethodSHA256, Success: true}, nil
}

// GPG verifies a detached signature for artifactPath using the keyring
// registered for tool. Armored and binary signatures are both accepted.
func (v *Verifier) GPG(artifactPath, signaturePath, tool string) (*Result, error) {
	keyring, err := v.loadKeyring(tool)
	if err != nil {
		return fail(MethodGPG, fmt.Errorf("load keyring: %w", err))
	}

	artifactFile, err := os.Open(artifactPath)
	if err != nil {
		return fail(MethodGPG, fmt.Errorf("open artifact: %w", err))
	}
	defer artifactFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fail(MethodGPG, fmt.Errorf("open signature: %w", err))
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, artifactFile, sigFile, nil)
	if err != nil {
		// Try non-armored signature
		artifactFile.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keyring, artifactFile, sigFile, nil)
	}
	if err != nil {
		return fail(MethodGPG, fmt.Errorf("verify signature: %w", err))
	}

	return &Result{Method: MethodGPG, Success: true}, nil
}

// Minisign verifies a minisign signature using a base64 public key
// string of the kind upstream projects publish alongside releases.
func (v *Verifier) Minisign(artifactPath, signaturePath, publicKey string) (*Result, error) {
	pubKey, err := minisign.NewPublicKey(publicKey)
	if err != nil {
		return fail(MethodMinisign, fmt.Errorf("decode public key: %w", err))
	}

	sig, err := minisign.NewSignatureFromFile(signaturePath)
	if err != nil {
		return fail(MethodMinisign, fmt.Errorf("read signature: %w", err))
	}

	content, err := os.ReadFile(artifactPath)
	if err != nil {
		return fail(MethodMinisign, fmt.Errorf("read artifact: %w", err))
	}

	valid, err := pubKey.Verify(content, sig)
	if err != nil {
		return fail(MethodMinisign, fmt.Errorf("verification error: %w", err))
	}
	if !valid {
		return fail(MethodMinisign, fmt.Errorf("signature verification failed"))
	}

	return &Result{Method: MethodMinisign, Success: true}, nil
}

// loadKeyring loads the GPG keyring registered for a tool.
func (v *Verifier) loadKeyring(tool string) (openpgp.EntityList, error) {
	keyringFile, err := os.Open(KeyringPath(v.keyringDir, tool))
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		// Try reading as non-armored keyring
		keyringFile.Seek(0, io.SeekStart)
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// SHA256File calculates the SHA256 digest of a file as lowercase hex.
func SHA256File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// findChecksum finds the checksum for a specific filename in a checksum file.
// Format: "abc123def456  filename.tar.gz"
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		// Exact match first, then basename for entries carrying paths
		// or the leading "*" of binary-mode checksums.
		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || filepath.Base(name) == filename {
			return parts[0], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}

func fail(method Method, err error) (*Result, error) {
	return &Result{Method: method, Success: false, Error: err}, err
}
