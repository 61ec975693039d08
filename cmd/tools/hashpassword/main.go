// cmd/tools/hashpassword/main.go
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/codr1/Ensaios/internal/api/auth"
)

// Reads the shared agenda password from stdin and prints the APP_PASSWORD_HASH line.
func main() {
	flag.Parse()

	fmt.Fprint(os.Stderr, "Senha: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("Failed to read password: %v", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		log.Fatal("Password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Printf("APP_PASSWORD_HASH='%s'\n", hash)
}
