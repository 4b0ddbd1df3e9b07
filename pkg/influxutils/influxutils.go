package influxutils

import (
	"fmt"
	"time"

	influxdb "github.com/influxdata/influxdb/client/v2"

	"github.com/andresbrocco/finance-etl/pkg/config"
	"github.com/andresbrocco/finance-etl/pkg/loader"
)

func CreateInfluxClient(secrets *config.InfluxSecrets) (influxdb.Client, error) {
	return influxdb.NewHTTPClient(influxdb.HTTPConfig{
		Addr:     secrets.InfluxEndpoint,
		Username: secrets.InfluxUsername,
		Password: secrets.InfluxPassword,
	})
}

func EnsureDatabase(influxClient influxdb.Client, name string) error {
	createCommand := fmt.Sprintf("CREATE DATABASE %s", name)

	q := influxdb.NewQuery(createCommand, "", "")
	if response, err := influxClient.Query(q); err == nil && response.Error() != nil {
		return response.Error()
	} else if err != nil {
		return err
	}
	return nil
}

// WriteRunSummary records one point per pipeline run with the load
// counters and duration, so run history is graphable next to the
// warehouse it feeds.
func WriteRunSummary(influxClient influxdb.Client, database string, result *loader.Result, duration time.Duration) error {
	bp, err := influxdb.NewBatchPoints(influxdb.BatchPointsConfig{
		Database:  database,
		Precision: "s",
	})
	if err != nil {
		return fmt.Errorf("Error creating InfluxDB point batch: %s", err.Error())
	}

	fields := map[string]interface{}{
		"facts_inserted":   result.FactsInserted,
		"facts_skipped":    result.FactsSkipped,
		"duration_seconds": duration.Seconds(),
	}

	for dimension, count := range result.DimensionsInserted {
		fields[dimension+"_inserted"] = count
	}

	pt, err := influxdb.NewPoint("etl_runs", map[string]string{"pipeline": "transactions"}, fields, time.Now())
	if err != nil {
		return fmt.Errorf("Error adding new point: %s", err.Error())
	}
	bp.AddPoint(pt)

	err = influxClient.Write(bp)
	if err != nil {
		return fmt.Errorf("Error writing to influx: %s", err.Error())
	}

	return nil
}
