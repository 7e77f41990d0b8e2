// Command ransomeye-keygen generates an ed25519 keypair and writes it to a
// key directory in the PEM layout pkg/keystore expects:
// "<hex-sha256-of-pubkey>.pub" (SubjectPublicKeyInfo, mode 0644) and
// "<name>.key" (PKCS#8, mode 0600).
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ransomeye/core/pkg/keystore"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ransomeye-keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dir, name string
	cmd.StringVar(&dir, "dir", "", "key directory to write into (REQUIRED)")
	cmd.StringVar(&name, "name", "key", "base filename for the private key (<name>.key)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" {
		fmt.Fprintln(stderr, "Error: -dir is required")
		return 2
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(stderr, "Error: cannot create key directory: %v\n", err)
		return 3
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(stderr, "Error: key generation failed: %v\n", err)
		return 3
	}

	keyID := keystore.KeyID(pub)
	pubPath := filepath.Join(dir, keyID+".pub")
	privPath := filepath.Join(dir, name+".key")

	if err := keystore.WritePublicPEM(pubPath, pub); err != nil {
		fmt.Fprintf(stderr, "Error: writing public key: %v\n", err)
		return 3
	}
	if err := keystore.WritePrivatePEM(privPath, priv); err != nil {
		fmt.Fprintf(stderr, "Error: writing private key: %v\n", err)
		return 3
	}

	fmt.Fprintf(stdout, "key_id:      %s\n", keyID)
	fmt.Fprintf(stdout, "public_key:  %s\n", pubPath)
	fmt.Fprintf(stdout, "private_key: %s\n", privPath)
	return 0
}
