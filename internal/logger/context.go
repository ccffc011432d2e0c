package logger

// Component-specific logger functions

// HTTP returns a logger for request handling
func HTTP() Logger {
	return WithField("component", "http")
}

// Auth returns a logger for authentication and token operations
func Auth() Logger {
	return WithField("component", "auth")
}

// Schema returns a logger for schema diffing
func Schema() Logger {
	return WithField("component", "schema")
}

// Migration returns a logger for migration operations
func Migration() Logger {
	return WithField("component", "migration")
}

// CLI returns a logger for CLI operations
func CLI() Logger {
	return WithField("component", "cli")
}

// DB returns a logger for database operations
func DB() Logger {
	return WithField("component", "db")
}
