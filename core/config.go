package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		DebugAddress    string
		Host            string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	// PaymentsConfig describes the payments backend and the reconciliation timings.
	PaymentsConfig struct {
		BaseURL        string
		APIToken       string
		RequestTimeout time.Duration
		Deadline       time.Duration
		PollInterval   time.Duration
		CheckTimeout   time.Duration
		NotifyTimeout  time.Duration
	}

	LedgerConfig struct {
		Driver    string // memory | sqlite | postgres | none
		KeyPrefix string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		SQLitePath    string
	}

	Config struct {
		Env             string
		Debug           bool
		TestMode        bool
		AppName         string
		Build           string
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		SendgridAPIKey  string

		defaultFromEmail string

		Server   ServerConfig
		Payments PaymentsConfig
		Ledger   LedgerConfig
		Database DatabaseConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values come from, by order of precedence: environment variables prefixed with the ENV name,
// config/.env.<env> and defaults.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debugAddress", ":4000")
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_shutdownTimeout", 5*time.Second)
	v.SetDefault("server_disableReqLogs", false)

	v.SetDefault("payments_baseURL", "http://localhost:3000/api")
	v.SetDefault("payments_apiToken", "")
	v.SetDefault("payments_requestTimeout", 10*time.Second)
	v.SetDefault("payments_deadline", 60*time.Second)
	v.SetDefault("payments_pollInterval", 3*time.Second)
	v.SetDefault("payments_checkTimeout", 2*time.Second)
	v.SetDefault("payments_notifyTimeout", 5*time.Second)

	v.SetDefault("ledger_driver", "sqlite")
	v.SetDefault("ledger_keyPrefix", "masomo.payment.status.")

	v.SetDefault("db_engine", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_name", "masomopay")
	v.SetDefault("db_user", "masomopay")
	v.SetDefault("db_password", "")
	v.SetDefault("db_adminUser", "postgres")
	v.SetDefault("db_adminPassword", "")
	v.SetDefault("db_disableTLS", true)
	v.SetDefault("db_sqlitePath", "masomopay.db")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("ledger_driver", "memory")
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:         v.GetString("server_address"),
			DebugAddress:    v.GetString("server_debugAddress"),
			Host:            v.GetString("server_host"),
			ShutdownTimeout: v.GetDuration("server_shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server_disableReqLogs"),
		},
		Payments: PaymentsConfig{
			BaseURL:        strings.TrimRight(v.GetString("payments_baseURL"), "/"),
			APIToken:       v.GetString("payments_apiToken"),
			RequestTimeout: v.GetDuration("payments_requestTimeout"),
			Deadline:       v.GetDuration("payments_deadline"),
			PollInterval:   v.GetDuration("payments_pollInterval"),
			CheckTimeout:   v.GetDuration("payments_checkTimeout"),
			NotifyTimeout:  v.GetDuration("payments_notifyTimeout"),
		},
		Ledger: LedgerConfig{
			Driver:    strings.ToLower(v.GetString("ledger_driver")),
			KeyPrefix: v.GetString("ledger_keyPrefix"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetString("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_adminUser"),
			AdminPassword: v.GetString("db_adminPassword"),
			DisableTLS:    v.GetBool("db_disableTLS"),
			SQLitePath:    v.GetString("db_sqlitePath"),
		},
	}

	// a database-backed ledger decides the engine
	if d := conf.Ledger.Driver; d == "sqlite" || d == "postgres" {
		conf.Database.Engine = d
	}
	return conf
}
