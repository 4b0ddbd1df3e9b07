package config

type Config struct {
	Warehouse WarehouseConfig
}

type Secrets struct {
	SQL    SqlSecrets
	Influx InfluxSecrets

	// Alternative to the Sql struct, designed to be used with the heroku
	// style DATABASE_URL env variable
	DatabaseURL string `env:"DATABASE_URL"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Warehouse
///////////////////////////////////////////////////////////////////////////////////////

type WarehouseConfig struct {
	// cron expression for scheduled pipeline runs
	UpdateFrequency string

	SQL struct {
		WarehouseDatabase string
		BatchSize         int
	}

	CSV struct {
		TransactionsFile string
	}

	// calendar range the date dimension is provisioned for
	DateRange struct {
		StartYear int
		EndYear   int
	}

	Influx struct {
		Database string
	}
}

type SqlSecrets struct {
	SqlHost     string `env:"SQL_HOST"`
	SqlUsername string `env:"SQL_USERNAME"`
	SqlPassword string `env:"SQL_PASSWORD"`
}

type InfluxSecrets struct {
	InfluxEndpoint string `json:"influxEndpoint" env:"INFLUX_ENDPOINT"`
	InfluxUsername string `json:"influxUsername" env:"INFLUX_USERNAME"`
	InfluxPassword string `json:"influxPassword" env:"INFLUX_PASSWORD"`
}
