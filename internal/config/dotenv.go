package config

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

// LoadDotEnv reads .env-style files in order and exports their pairs.
// Variables already present in the process environment always win, so a
// deploy can override anything a checked-in .env declares. Missing files
// are skipped silently.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		err := applyDotEnvFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyDotEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := parseDotEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
	return scanner.Err()
}

func parseDotEnvLine(raw string) (string, string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	return key, unquoteDotEnvValue(value), true
}

func unquoteDotEnvValue(raw string) string {
	value := strings.TrimSpace(raw)
	if len(value) >= 2 {
		switch quote := value[0]; quote {
		case '\'':
			if value[len(value)-1] == quote {
				return value[1 : len(value)-1]
			}
		case '"':
			if value[len(value)-1] == quote {
				return strings.NewReplacer(
					`\\`, `\`,
					`\n`, "\n",
					`\r`, "\r",
					`\t`, "\t",
					`\"`, `"`,
				).Replace(value[1 : len(value)-1])
			}
		}
	}

	// Unquoted values may carry an inline comment: VALUE # comment
	if index := strings.Index(value, " #"); index >= 0 {
		value = strings.TrimSpace(value[:index])
	}
	return value
}
