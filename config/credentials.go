package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Credentials holds AWS credentials read from a key=value text file.
// The file format matches the aws_credentials.txt convention used by the
// deployment tooling: one key=value pair per line, with the keys
// aws_access_key_id, aws_secret_access_key, and region recognized.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// ReadCredentialsFile parses a key=value credentials file. Unrecognized
// keys and malformed lines are ignored; a file that yields no access key
// pair is reported as an error so startup can fail fast.
func ReadCredentialsFile(path string) (*Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	creds := &Credentials{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "aws_access_key_id":
			creds.AccessKeyID = value
		case "aws_secret_access_key":
			creds.SecretAccessKey = value
		case "region":
			creds.Region = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, fmt.Errorf("credentials file %s is missing aws_access_key_id or aws_secret_access_key", path)
	}

	return creds, nil
}

// MaskedAccessKey returns the access key with all but the leading and
// trailing four characters hidden, for diagnostic logging.
func (c *Credentials) MaskedAccessKey() string {
	if len(c.AccessKeyID) > 8 {
		return c.AccessKeyID[:4] + "..." + c.AccessKeyID[len(c.AccessKeyID)-4:]
	}
	return "****"
}
