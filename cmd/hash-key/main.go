package main

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// Generates the bcrypt hash for OPS_KEY_HASH from a key typed at the
// terminal, so the plain key never lands in shell history.
func main() {
	fmt.Println("=== Generate Ops Key Hash ===")

	fmt.Print("Enter Ops Key: ")
	byteKey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading key")
		os.Exit(1)
	}
	key := string(byteKey)
	fmt.Println()
	if len(key) < 16 {
		fmt.Println("Error: Key must be at least 16 characters")
		os.Exit(1)
	}

	fmt.Print("Confirm Ops Key: ")
	byteConfirm, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading confirmation")
		os.Exit(1)
	}
	fmt.Println()
	if string(byteConfirm) != key {
		fmt.Println("Error: Keys do not match")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword(byteKey, bcrypt.DefaultCost)
	if err != nil {
		fmt.Println("Error: Failed to hash key")
		os.Exit(1)
	}

	fmt.Println("\nSet this in the environment:")
	fmt.Printf("OPS_KEY_HASH=%s\n", string(hash))
}
