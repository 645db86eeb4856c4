package credential

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads a .env secrets file into a map; the process environment
// is left untouched. Values holding a literal $ must be single quoted.
func LoadDotEnv(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening secrets file: %w", err)
	}
	if err := checkAssignments(string(data)); err != nil {
		return nil, fmt.Errorf("secrets file %s: %w", path, err)
	}
	secrets, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("secrets file %s: %w", path, err)
	}
	return secrets, nil
}

// checkAssignments rejects lines that assign nothing, which the parser would
// otherwise let through silently. Continuation lines of a multi-line double
// quoted value are skipped.
func checkAssignments(data string) error {
	inQuote := false
	for i, raw := range strings.Split(data, "\n") {
		line := strings.TrimSpace(raw)
		if inQuote {
			if strings.HasSuffix(line, `"`) {
				inQuote = false
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("line %d: invalid format (expected KEY=VALUE)", i+1)
		}
		if strings.TrimSpace(strings.TrimPrefix(key, "export ")) == "" {
			return fmt.Errorf("line %d: empty key", i+1)
		}
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, `"`) && !strings.Contains(value[1:], `"`) {
			inQuote = true
		}
	}
	return nil
}
