// mktoken generates a caller token secret and its bcrypt hash for manual
// provisioning (e.g. seeding a caller row by hand).
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	secret := hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Token secret: %s\n", secret)
	fmt.Printf("Bcrypt hash:  %s\n", string(hash))
	fmt.Println("Bearer token is <caller-uuid>.<secret>")
}
