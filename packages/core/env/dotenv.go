package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadDotEnv parses a .env file into a map. Lines look like KEY=value,
// optionally prefixed with "export". Double-quoted values accept Go escape
// sequences, single-quoted values are taken literally. Blank lines, lines
// starting with # and lines without '=' are ignored. Nothing is exported to
// the process environment.
func LoadDotEnv(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}

	vars := make(map[string]string)
	n := 0
	for line := range strings.Lines(string(data)) {
		n++
		key, value, ok, err := parseDotEnvLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		if ok {
			vars[key] = value
		}
	}
	return vars, nil
}

func parseDotEnvLine(line string) (key, value string, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", "", false, nil
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false, nil
	}
	value = strings.TrimSpace(value)

	if len(value) >= 2 {
		switch q := value[0]; {
		case q == '"' && value[len(value)-1] == '"':
			unquoted, err := strconv.Unquote(value)
			if err != nil {
				return "", "", false, fmt.Errorf("invalid quoted value for %s", key)
			}
			value = unquoted
		case q == '\'' && value[len(value)-1] == '\'':
			value = value[1 : len(value)-1]
		}
	}
	return key, value, true, nil
}
