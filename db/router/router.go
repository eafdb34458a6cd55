package router

import (
	"fmt"
	"net/url"
	"regexp"
)

// SchoolSchemaPrefix is prepended to every tenant schema name.
const SchoolSchemaPrefix = "school_"

var schoolDatabaseNameRegex = regexp.MustCompile(`^school_[a-z0-9_]{1,50}$`)

// ValidateSchoolDatabaseName rejects names that could not have been produced by the domain allocator.
func ValidateSchoolDatabaseName(databaseName string) error {
	if !schoolDatabaseNameRegex.MatchString(databaseName) {
		return fmt.Errorf("invalid school database name %q", databaseName)
	}
	return nil
}

// GetDSNForSchoolDatabase returns the catalog DSN with its `search_path` pointed at the school's isolated schema.
func GetDSNForSchoolDatabase(dataSourceName, databaseName string) (string, error) {
	if err := ValidateSchoolDatabaseName(databaseName); err != nil {
		return "", err
	}

	u, err := url.Parse(dataSourceName)
	if err != nil {
		return "", fmt.Errorf("parsing database DSN: %w", err)
	}

	q := u.Query()
	q.Set("search_path", databaseName)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
