package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"doclife/internal/app"
	"doclife/internal/doc"
)

var errPathDeclined = errors.New("path suggestion declined")

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptResolver asks the operator what to do with a non-canonical path:
// accept the suggestion, keep typing a different path, or give up.
func promptResolver() doc.PathResolver {
	return doc.PathResolverFunc(func(s doc.PathSuggestion) (string, error) {
		fmt.Println(warnStyle.Render("Path " + s.Supplied + " is not canonical: " + s.Problem.Error()))
		fmt.Printf("Suggested: %s\n", s.Suggested)
		fmt.Print("Use suggestion? [Y/n/other path]: ")

		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading answer: %w", err)
		}
		switch answer := strings.TrimSpace(line); strings.ToLower(answer) {
		case "", "y", "yes":
			return s.Suggested, nil
		case "n", "no":
			return "", errPathDeclined
		default:
			return answer, nil
		}
	})
}

// readPassphrase takes the backup passphrase from the environment, or prompts
// for it without echo.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv(app.EnvBackupPassphrase); p != "" {
		return p, nil
	}
	if !isInteractive() {
		return "", fmt.Errorf("%s is not set and stdin is not a terminal", app.EnvBackupPassphrase)
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(b) == 0 {
		return "", errors.New("empty passphrase")
	}
	return string(b), nil
}

// unlockBackups asks for the passphrase when backups are encrypted.
func unlockBackups(a *app.DocLifeApp) error {
	if !a.BackupsEncrypted() {
		return nil
	}
	passphrase, err := readPassphrase("Backup passphrase: ")
	if err != nil {
		return err
	}
	if err := a.UnlockBackups(passphrase); err != nil {
		return fmt.Errorf("unlocking backups: %w", err)
	}
	return nil
}
