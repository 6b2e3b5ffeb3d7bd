package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagBindings maps viper keys to flag names. Commands share keys such as
// db.host, so each command binds its own flags when it runs.
type flagBindings map[string]string

func (b flagBindings) bind(cmd *cobra.Command) {
	for key, flag := range b {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

var databaseBindings = flagBindings{
	"db.driver":            "db-driver",
	"db.host":              "db-host",
	"db.port":              "db-port",
	"db.user":              "db-user",
	"db.password":          "db-password",
	"db.name":              "db-name",
	"db.sslmode":           "db-sslmode",
	"db.statement_timeout": "db-statement-timeout",
	"db.max_retries":       "db-max-retries",
	"db.retry_delay":       "db-retry-delay",
}

func addDatabaseFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", "postgres", "database driver: postgres, mysql, sqlserver, oracle")
	f.String("db-host", "localhost", "database host")
	f.Int("db-port", 0, "database port (0 = driver default)")
	f.String("db-user", "", "database user")
	f.String("db-password", "", "database password")
	f.String("db-name", "", "database name")
	f.String("db-sslmode", "disable", "SSL mode (disable, require, verify-ca, verify-full)")
	f.Int("db-statement-timeout", 300, "statement timeout in seconds (0 = no timeout)")
	f.Int("db-max-retries", 3, "maximum number of retry attempts for failed queries")
	f.Int("db-retry-delay", 5, "delay in seconds between retry attempts")
}

func databaseConfigFromViper() DatabaseConfig {
	return DatabaseConfig{
		Driver:           viper.GetString("db.driver"),
		Host:             viper.GetString("db.host"),
		Port:             viper.GetInt("db.port"),
		User:             viper.GetString("db.user"),
		Password:         viper.GetString("db.password"),
		Name:             viper.GetString("db.name"),
		SSLMode:          viper.GetString("db.sslmode"),
		StatementTimeout: viper.GetInt("db.statement_timeout"),
		MaxRetries:       viper.GetInt("db.max_retries"),
		RetryDelay:       viper.GetInt("db.retry_delay"),
	}
}

var dataBindings = flagBindings{
	"generate.patients":   "patients",
	"generate.start_date": "start-date",
	"generate.end_date":   "end-date",
	"generate.seed":       "seed",
	"generate.min_visits": "min-visits",
	"generate.max_visits": "max-visits",
}

func addDataFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("patients", 0, "number of patients (0 = default)")
	f.String("start-date", "", "first visit date (YYYY-MM-DD)")
	f.String("end-date", "", "last visit date (YYYY-MM-DD)")
	f.Int64("seed", 0, "random seed (0 = random)")
	f.Int("min-visits", 0, "minimum visits per day (0 = default)")
	f.Int("max-visits", 0, "maximum visits per day (0 = default)")
}

func dataConfigFromViper() DataConfig {
	return DataConfig{
		Patients:  viper.GetInt("generate.patients"),
		StartDate: viper.GetString("generate.start_date"),
		EndDate:   viper.GetString("generate.end_date"),
		Seed:      viper.GetInt64("generate.seed"),
		MinVisits: viper.GetInt("generate.min_visits"),
		MaxVisits: viper.GetInt("generate.max_visits"),
	}
}
