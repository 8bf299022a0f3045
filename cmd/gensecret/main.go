// Print fresh token signing secrets in .env format
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

func main() {
	for _, key := range []string{"ACCESS_TOKEN_SECRET", "REFRESH_TOKEN_SECRET"} {
		secret, err := generate()
		if err != nil {
			fmt.Printf("error while generating secret key: %v", err)
			os.Exit(1)
		}
		fmt.Printf("%s=%s\n", key, secret)
	}
}

func generate() (string, error) {
	b := make([]byte, SecretKeyBytesLen)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
