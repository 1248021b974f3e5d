package cloudsql

import (
	"fmt"
	"os"
	"strings"
)

// BuildDatabaseURL resolves the PostgreSQL connection string for both local
// development and Cloud Run deployments.
//
// Locally, DATABASE_URL wins and is used verbatim. On Cloud Run, set
// INSTANCE_CONNECTION_NAME (project:region:instance) together with DB_USER,
// DB_NAME and optionally DB_PASSWORD; the connection then goes over the Unix
// socket Cloud Run mounts under /cloudsql. Leaving DB_PASSWORD empty selects
// IAM authentication.
func BuildDatabaseURL() (string, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL, nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", fmt.Errorf("neither DATABASE_URL nor INSTANCE_CONNECTION_NAME is set")
	}

	user := os.Getenv("DB_USER")
	name := os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	socketPath := fmt.Sprintf("/cloudsql/%s", instance)

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			socketPath, user, password, name), nil
	}
	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable",
		socketPath, user, name), nil
}

// GetConnectionConfig describes the active connection setup with the password
// redacted, for startup logging.
func GetConnectionConfig() map[string]string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return map[string]string{
			"connection_type": "direct",
			"database_url":    redactPassword(dbURL),
		}
	}

	if instance := os.Getenv("INSTANCE_CONNECTION_NAME"); instance != "" {
		return map[string]string{
			"connection_type": "cloud_sql",
			"instance":        instance,
			"user":            os.Getenv("DB_USER"),
			"database":        os.Getenv("DB_NAME"),
			"socket_path":     fmt.Sprintf("/cloudsql/%s", instance),
		}
	}

	return map[string]string{
		"connection_type": "none",
		"error":           "no database configuration found",
	}
}

func redactPassword(connStr string) string {
	if !strings.HasPrefix(connStr, "postgresql://") && !strings.HasPrefix(connStr, "postgres://") {
		return connStr
	}

	parts := strings.SplitN(connStr, "@", 2)
	if len(parts) != 2 {
		return connStr
	}

	userParts := strings.Split(parts[0], ":")
	if len(userParts) < 3 {
		return connStr
	}
	return userParts[0] + "://" + userParts[1] + ":***@" + parts[1]
}
